package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func audioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rec.m4a")
	if err := os.WriteFile(path, []byte("not real audio"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// whisperStub serves the transcription endpoint with a canned verbose
// response.
func whisperStub(t *testing.T, status int, body string) *Whisper {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewWhisperWithConfig(cfg)
}

func TestNewWhisper_NoKey(t *testing.T) {
	_, err := NewWhisper("")
	if !errors.Is(err, ErrRecognizerUnavailable) {
		t.Fatalf("err = %v, want ErrRecognizerUnavailable", err)
	}
}

func TestTranscribe_ConvertsSegments(t *testing.T) {
	w := whisperStub(t, http.StatusOK, `{
		"task": "transcribe",
		"language": "german",
		"duration": 6.2,
		"text": " Spiegel prüfen. Blinker links. ",
		"segments": [
			{"id": 0, "start": 0.0, "end": 2.5, "text": " Spiegel prüfen."},
			{"id": 1, "start": 4.0, "end": 6.2, "text": " Blinker links."},
			{"id": 2, "start": 6.2, "end": 6.2, "text": "   "}
		]
	}`)

	res, err := w.Transcribe(context.Background(), audioFixture(t), "de")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "Spiegel prüfen. Blinker links." {
		t.Errorf("Text = %q", res.Text)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("segments = %d, want 2 (blank dropped)", len(res.Segments))
	}

	first := res.Segments[0]
	if first.StartOffset != 0 || first.Duration != 2.5 {
		t.Errorf("segment 0 timing = (%v, %v)", first.StartOffset, first.Duration)
	}
	if first.Text != "Spiegel prüfen." {
		t.Errorf("segment 0 text = %q", first.Text)
	}

	second := res.Segments[1]
	if second.StartOffset != 4.0 || second.Duration != 6.2-4.0 {
		t.Errorf("segment 1 timing = (%v, %v)", second.StartOffset, second.Duration)
	}
}

func TestTranscribe_MissingAudioFile(t *testing.T) {
	w := whisperStub(t, http.StatusOK, `{"text": "x"}`)
	if _, err := w.Transcribe(context.Background(), "/no/such/file.m4a", "de"); err == nil {
		t.Fatal("expected error for missing audio file")
	}
}

func TestTranscribe_AuthorizationDenied(t *testing.T) {
	w := whisperStub(t, http.StatusUnauthorized, `{
		"error": {"message": "invalid api key", "type": "invalid_request_error"}
	}`)

	_, err := w.Transcribe(context.Background(), audioFixture(t), "de")
	if !errors.Is(err, ErrAuthorizationDenied) {
		t.Fatalf("err = %v, want ErrAuthorizationDenied", err)
	}
}

func TestTranscribe_ServerErrorIsNotAuthDenied(t *testing.T) {
	w := whisperStub(t, http.StatusInternalServerError, `{
		"error": {"message": "overloaded", "type": "server_error"}
	}`)

	_, err := w.Transcribe(context.Background(), audioFixture(t), "de")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrAuthorizationDenied) {
		t.Error("500 should not map to ErrAuthorizationDenied")
	}
}

func TestTranscribe_UnreachableEndpoint(t *testing.T) {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = "http://127.0.0.1:1/v1" // nothing listens here

	_, err := NewWhisperWithConfig(cfg).Transcribe(context.Background(), audioFixture(t), "de")
	if !errors.Is(err, ErrRecognizerUnavailable) {
		t.Fatalf("err = %v, want ErrRecognizerUnavailable", err)
	}
}
