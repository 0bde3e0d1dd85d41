// Package rtasr streams normalized PCM audio to a real-time speech
// transcription service over a websocket and reconciles the incremental
// recognition results into one transcript.
package rtasr

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultURL           = "ws://rtasr.xfyun.cn/v1/ws"
	defaultFrameSize     = 1280
	defaultFrameInterval = 40 * time.Millisecond
	defaultMinTimeout    = 60 * time.Second

	// bytesPerSecond of mono 16 kHz 16-bit PCM, used to derive the audio
	// duration from the file size.
	bytesPerSecond = 32000

	// timeoutBuffer covers server-side processing after the last frame.
	timeoutBuffer = 30 * time.Second
)

// Config holds the transcription service settings.
type Config struct {
	AppID         string
	APIKey        string
	URL           string
	FrameSize     int
	FrameInterval time.Duration
	MinTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = defaultURL
	}
	if c.FrameSize <= 0 {
		c.FrameSize = defaultFrameSize
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = defaultFrameInterval
	}
	if c.MinTimeout <= 0 {
		c.MinTimeout = defaultMinTimeout
	}
	return c
}

// connState tracks the lifecycle of one streaming call.
type connState int

const (
	stateConnecting connState = iota
	stateOpen
	stateStreaming
	stateAwaitingFinal
	stateClosed
	stateErrored
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	case stateStreaming:
		return "streaming"
	case stateAwaitingFinal:
		return "awaiting_final"
	case stateClosed:
		return "closed"
	case stateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Client performs one streaming transcription call per Transcribe invocation.
type Client struct {
	cfg        Config
	reconciler *Reconciler
	logger     *zap.Logger
	dialer     *websocket.Dialer
	now        func() time.Time
}

// NewClient builds a transcription client. The reconciler must not be nil.
func NewClient(cfg Config, reconciler *Reconciler, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:        cfg.withDefaults(),
		reconciler: reconciler,
		logger:     log,
		dialer:     websocket.DefaultDialer,
		now:        time.Now,
	}
}

// Transcribe streams the PCM file to the service and returns the reconciled
// transcript. It never returns an error: every failure mode degrades to an
// empty-or-partial transcript plus warnings. The PCM file is removed on all
// exit paths.
func (c *Client) Transcribe(ctx context.Context, pcmPath string) (string, []string) {
	var warnings []string
	defer func() {
		if err := os.Remove(pcmPath); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("removing temporary PCM file failed", zap.Error(err))
		}
	}()

	if strings.TrimSpace(c.cfg.AppID) == "" || strings.TrimSpace(c.cfg.APIKey) == "" {
		warnings = append(warnings, "Transcription service app id or api key is not configured; transcription skipped.")
		return "", warnings
	}

	info, err := os.Stat(pcmPath)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("Reading PCM file failed: %v", err))
		return "", warnings
	}

	audioDuration := time.Duration(float64(info.Size()) / bytesPerSecond * float64(time.Second))
	timeout := c.computeTimeout(audioDuration)

	signedURL, err := c.signURL()
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("Building transcription service URL failed: %v", err))
		return "", warnings
	}

	c.logger.Info("starting streaming transcription",
		zap.Duration("audio_duration", audioDuration),
		zap.Duration("timeout", timeout),
		zap.Int64("pcm_bytes", info.Size()),
	)

	sess := newStreamSession(c.logger)
	conn, _, err := c.dialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("Connecting to the transcription service failed: %v", err))
		return "", warnings
	}
	sess.setState(stateOpen)

	go sess.readLoop(conn)
	go sess.writeLoop(conn, pcmPath, c.cfg.FrameSize, c.cfg.FrameInterval)

	select {
	case <-sess.terminal:
	case <-ctx.Done():
		sess.addWarning("Transcription cancelled before the service finished.")
	case <-time.After(timeout):
		sess.addWarning(fmt.Sprintf("Transcription timed out after %s; the recording may be too long or the network too slow.", timeout))
		c.logger.Warn("streaming transcription timed out", zap.Duration("timeout", timeout))
	}

	conn.Close()
	sess.awaitReader(2 * time.Second)

	partials, final := sess.results()
	warnings = append(warnings, sess.warningList()...)

	transcript, recWarnings := c.reconciler.Reconcile(ctx, partials, final)
	warnings = append(warnings, recWarnings...)

	c.logger.Info("streaming transcription finished",
		zap.String("state", sess.state().String()),
		zap.Int("partial_count", len(partials)),
		zap.Int("transcript_length", utf8.RuneCountInString(transcript)),
	)

	return transcript, warnings
}

// computeTimeout bounds the wait for a terminal protocol message: playback
// time plus paced sending plus a processing buffer, floored at the
// configured minimum.
func (c *Client) computeTimeout(audioDuration time.Duration) time.Duration {
	sendDuration := time.Duration(float64(audioDuration) * 1.1)
	timeout := audioDuration + sendDuration + timeoutBuffer
	if timeout < c.cfg.MinTimeout {
		return c.cfg.MinTimeout
	}
	return timeout
}

// signURL builds the authenticated endpoint: an HMAC-SHA1 signature over the
// hex MD5 of appid+timestamp, keyed with the api key.
func (c *Client) signURL() (string, error) {
	base, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", err
	}

	ts := strconv.FormatInt(c.now().Unix(), 10)
	sum := md5.Sum([]byte(c.cfg.AppID + ts))
	mac := hmac.New(sha1.New, []byte(c.cfg.APIKey))
	mac.Write([]byte(hex.EncodeToString(sum[:])))
	signa := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	query := base.Query()
	query.Set("appid", c.cfg.AppID)
	query.Set("ts", ts)
	query.Set("signa", signa)
	base.RawQuery = query.Encode()

	return base.String(), nil
}

// streamSession holds the shared state of one call: the lifecycle state, the
// collected partials and the terminal signal connecting the reader, the
// writer and the waiting caller.
type streamSession struct {
	logger *zap.Logger

	mu       sync.Mutex
	st       connState
	partials []string
	final    string
	warnings []string

	terminal   chan struct{}
	once       sync.Once
	readerDone chan struct{}
}

func newStreamSession(logger *zap.Logger) *streamSession {
	return &streamSession{
		logger:     logger,
		st:         stateConnecting,
		terminal:   make(chan struct{}),
		readerDone: make(chan struct{}),
	}
}

func (s *streamSession) setState(st connState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st == stateClosed || s.st == stateErrored {
		return
	}
	s.st = st
}

func (s *streamSession) state() connState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// finish moves the session into a terminal state and releases the waiter.
func (s *streamSession) finish(st connState) {
	s.mu.Lock()
	if s.st != stateClosed && s.st != stateErrored {
		s.st = st
	}
	s.mu.Unlock()
	s.once.Do(func() { close(s.terminal) })
}

func (s *streamSession) addWarning(warning string) {
	s.mu.Lock()
	s.warnings = append(s.warnings, warning)
	s.mu.Unlock()
}

func (s *streamSession) addPartial(text string, final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partials = append(s.partials, text)
	if final {
		s.final = text
	}
}

func (s *streamSession) results() ([]string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.partials...), s.final
}

func (s *streamSession) warningList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

func (s *streamSession) awaitReader(grace time.Duration) {
	select {
	case <-s.readerDone:
	case <-time.After(grace):
	}
}

// writeLoop pushes the PCM payload in fixed-size frames at a pacing interval
// approximating real-time playback, then sends the end-of-stream marker.
func (s *streamSession) writeLoop(conn *websocket.Conn, pcmPath string, frameSize int, interval time.Duration) {
	f, err := os.Open(pcmPath)
	if err != nil {
		s.addWarning(fmt.Sprintf("Opening PCM file for streaming failed: %v", err))
		s.finish(stateErrored)
		return
	}
	defer f.Close()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	buf := make([]byte, frameSize)
	frames := 0
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				s.addWarning(fmt.Sprintf("Sending audio to the transcription service failed: %v", werr))
				s.finish(stateErrored)
				return
			}
			frames++
		}
		if err != nil {
			break
		}

		select {
		case <-ticker.C:
		case <-s.terminal:
			return
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(endMarker)); err != nil {
		s.addWarning(fmt.Sprintf("Sending end-of-stream marker failed: %v", err))
		s.finish(stateErrored)
		return
	}

	s.setState(stateAwaitingFinal)
	s.logger.Debug("audio frames sent", zap.Int("frames", frames))
}

// readLoop consumes protocol messages until a terminal action arrives or the
// transport closes.
func (s *streamSession) readLoop(conn *websocket.Conn) {
	defer close(s.readerDone)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			// A read error after finished/closed is the normal
			// teardown of the transport.
			select {
			case <-s.terminal:
			default:
				s.addWarning(fmt.Sprintf("Transcription connection closed unexpectedly: %v", err))
			}
			s.finish(stateClosed)
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.addWarning(fmt.Sprintf("The transcription service sent an unparsable message: %v", err))
			continue
		}

		if code := msg.statusCode(); code != 0 {
			s.addWarning(fmt.Sprintf("Transcription service error code=%v message=%s", msg.Code, msg.errorText()))
			s.finish(stateErrored)
			return
		}

		switch msg.Action {
		case actionStarted:
			s.setState(stateStreaming)
			s.logger.Debug("transcription stream acknowledged")
		case actionResult:
			s.handleResult(msg.Data)
		case actionError:
			s.addWarning(fmt.Sprintf("Transcription service reported an error: %s", msg.errorText()))
			s.finish(stateErrored)
			return
		case actionFinished:
			s.logger.Debug("transcription stream finished")
			s.finish(stateClosed)
			return
		case actionClosed:
			s.logger.Debug("transcription stream closed by the service")
			s.finish(stateClosed)
			return
		case "":
			s.logger.Debug("transcription message without action field")
		default:
			s.logger.Info("unknown transcription action ignored", zap.String("action", msg.Action))
		}
	}
}

func (s *streamSession) handleResult(data string) {
	if strings.TrimSpace(data) == "" {
		return
	}

	text, final, err := parseResult(data)
	if err != nil {
		s.logger.Warn("parsing recognition result failed", zap.Error(err))
		return
	}
	if text == "" {
		return
	}

	s.addPartial(text, final)
	s.logger.Debug("recognition fragment received",
		zap.Int("length", utf8.RuneCountInString(text)),
		zap.Bool("final", final),
	)
}
