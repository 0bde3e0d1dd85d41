// Package audio persists submitted answer recordings and normalizes them to
// the PCM format the transcription service expects.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultExtension = ".webm"

// Ingest stores raw audio blobs under a configured directory and converts
// them with an external decode tool.
type Ingest struct {
	dir     string
	command string
	logger  *zap.Logger
}

// NewIngest builds an Ingest writing into dir. command names the decode tool;
// empty selects ffmpeg.
func NewIngest(dir, command string, log *zap.Logger) *Ingest {
	if command == "" {
		command = "ffmpeg"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingest{dir: dir, command: command, logger: log}
}

// Store writes the blob under a collision-resistant name derived from the
// session and question ids, preserving the original extension.
func (i *Ingest) Store(sessionID, questionID string, r io.Reader, originalFilename string) (string, error) {
	if err := os.MkdirAll(i.dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(originalFilename)))
	if ext == "" || ext == "." {
		ext = defaultExtension
	}

	name := fmt.Sprintf("%s-%s-%s%s", sessionID, questionID, uuid.New().String(), ext)
	path := filepath.Join(i.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close audio file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

// Normalize converts the file to mono 16 kHz 16-bit little-endian PCM in a
// temporary file. A missing tool or a failed conversion is a soft failure:
// the returned path is empty and the reason lands in the warnings.
func (i *Ingest) Normalize(ctx context.Context, audioPath string) (string, []string) {
	var warnings []string

	toolPath, err := exec.LookPath(i.command)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("Decode tool %q is not installed; transcription skipped. Install it to enable speech recognition.", i.command))
		return "", warnings
	}

	tmp, err := os.CreateTemp("", "interview-*.pcm")
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("Creating temporary PCM file failed: %v", err))
		return "", warnings
	}
	tmpPath := tmp.Name()
	tmp.Close()

	args := []string{
		"-y",
		"-i", audioPath,
		"-ac", "1",
		"-ar", "16000",
		"-f", "s16le",
		tmpPath,
	}

	cmd := exec.CommandContext(ctx, toolPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(tmpPath)
		diag := strings.TrimSpace(stderr.String())
		i.logger.Warn("audio conversion failed",
			zap.String("audio_path", audioPath),
			zap.Error(err),
			zap.String("stderr", diag),
		)
		warnings = append(warnings, fmt.Sprintf("Audio conversion failed: %s", diag))
		return "", warnings
	}

	return tmpPath, warnings
}
