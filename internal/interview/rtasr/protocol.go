package rtasr

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Protocol actions the transcription service sends.
const (
	actionStarted  = "started"
	actionResult   = "result"
	actionError    = "error"
	actionFinished = "finished"
	actionClosed   = "closed"
)

// endMarker signals end of audio to the service.
const endMarker = `{"end": true}`

// serverMessage is one protocol frame. The status code is transmitted as
// either a string or a number depending on the message, so it is kept loose
// here and normalized before any branching.
type serverMessage struct {
	Code    any    `json:"code"`
	Action  string `json:"action"`
	Data    string `json:"data"`
	Desc    string `json:"desc"`
	Message string `json:"message"`
}

// statusCode normalizes the loosely-typed code field. A missing code counts
// as success; an unparsable one as failure.
func (m *serverMessage) statusCode() int {
	switch v := m.Code.(type) {
	case nil:
		return 0
	case float64:
		return int(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0
		}
		code, err := strconv.Atoi(trimmed)
		if err != nil {
			return -1
		}
		return code
	default:
		return -1
	}
}

func (m *serverMessage) errorText() string {
	if desc := strings.TrimSpace(m.Desc); desc != "" {
		return desc
	}
	return strings.TrimSpace(m.Message)
}

// resultPayload is the recognition result nested inside a result message's
// data field (itself a JSON-encoded string). Text lives in word-level arrays
// at cn.st.rt[].ws[].cw[].w; ls flags the utterance-final result.
type resultPayload struct {
	LS bool `json:"ls"`
	CN struct {
		ST struct {
			RT []struct {
				WS []struct {
					CW []struct {
						W string `json:"w"`
					} `json:"cw"`
				} `json:"ws"`
			} `json:"rt"`
		} `json:"st"`
	} `json:"cn"`
}

// parseResult decodes a result message's data field and flattens the nested
// word arrays into one text fragment.
func parseResult(data string) (text string, final bool, err error) {
	var payload resultPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return "", false, err
	}

	var builder strings.Builder
	for _, rt := range payload.CN.ST.RT {
		for _, ws := range rt.WS {
			for _, cw := range ws.CW {
				builder.WriteString(cw.W)
			}
		}
	}
	return builder.String(), payload.LS, nil
}
