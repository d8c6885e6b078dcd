// Package transcribe turns a session's audio recording into text with
// per-segment timing, using the OpenAI Whisper API.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mfolsom/drivelog/internal/models"
)

var (
	// ErrRecognizerUnavailable means no recognizer is configured or the
	// service cannot be reached.
	ErrRecognizerUnavailable = errors.New("transcribe: recognizer unavailable")
	// ErrAuthorizationDenied means the API rejected the credentials.
	ErrAuthorizationDenied = errors.New("transcribe: authorization denied")
)

// Result is a full transcript plus timed segments ready to attach to a
// session.
type Result struct {
	Text     string
	Segments []models.TranscriptSegment
}

// Recognizer converts an audio file into a transcript.
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath, language string) (*Result, error)
}

// Whisper recognizes speech through the OpenAI transcription endpoint.
type Whisper struct {
	client *openai.Client
}

// NewWhisper builds a recognizer from an API key. An empty key reports
// ErrRecognizerUnavailable so callers can degrade cleanly.
func NewWhisper(apiKey string) (*Whisper, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no API key", ErrRecognizerUnavailable)
	}
	return &Whisper{client: openai.NewClient(apiKey)}, nil
}

// NewWhisperWithConfig builds a recognizer from a full client config, for
// self-hosted endpoints.
func NewWhisperWithConfig(cfg openai.ClientConfig) *Whisper {
	return &Whisper{client: openai.NewClientWithConfig(cfg)}
}

// Transcribe sends the audio file to Whisper and converts the verbose
// response into timed segments. Segment end offsets become durations.
func (w *Whisper) Transcribe(ctx context.Context, audioPath, language string) (*Result, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("transcribe: audio file: %w", err)
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, classify(err)
	}

	result := &Result{Text: strings.TrimSpace(resp.Text)}
	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		duration := seg.End - seg.Start
		if duration < 0 {
			duration = 0
		}
		result.Segments = append(result.Segments, models.TranscriptSegment{
			StartOffset: seg.Start,
			Duration:    duration,
			Text:        text,
		})
	}
	return result, nil
}

// classify maps API failures onto the package's typed errors.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return fmt.Errorf("%w: %v", ErrAuthorizationDenied, err)
		}
		return fmt.Errorf("transcribe: api: %w", err)
	}
	return fmt.Errorf("%w: %v", ErrRecognizerUnavailable, err)
}
