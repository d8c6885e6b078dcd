package mapsnap

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mfolsom/drivelog/internal/geo"
)

var testRegion = geo.Region{CenterLat: 52.5, CenterLon: 13.4, LatSpan: 0.01, LonSpan: 0.01}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSnapshot_DecodesImage(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write(pngBytes(t, 40, 60))
	}))
	defer srv.Close()

	img := NewHTTP(srv.URL).Snapshot(context.Background(), testRegion, 40, 60)
	if img == nil {
		t.Fatal("expected an image")
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 60 {
		t.Errorf("bounds = %v", b)
	}

	if got := gotQuery["center"]; len(got) != 1 || got[0] != "52.500000,13.400000" {
		t.Errorf("center = %v", got)
	}
	if got := gotQuery["size"]; len(got) != 1 || got[0] != "40x60" {
		t.Errorf("size = %v", got)
	}
}

func TestSnapshot_ErrorStatusDegradesToNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if img := NewHTTP(srv.URL).Snapshot(context.Background(), testRegion, 40, 60); img != nil {
		t.Error("error status should yield nil")
	}
}

func TestSnapshot_GarbageBodyDegradesToNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image"))
	}))
	defer srv.Close()

	if img := NewHTTP(srv.URL).Snapshot(context.Background(), testRegion, 40, 60); img != nil {
		t.Error("undecodable body should yield nil")
	}
}

func TestSnapshot_TimeoutDegradesToNil(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	p := NewHTTP(srv.URL)
	p.timeout = 50 * time.Millisecond

	start := time.Now()
	img := p.Snapshot(context.Background(), testRegion, 40, 60)
	if img != nil {
		t.Error("timed-out fetch should yield nil")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
}

func TestSnapshot_EmptyBaseURL(t *testing.T) {
	if img := NewHTTP("").Snapshot(context.Background(), testRegion, 40, 60); img != nil {
		t.Error("empty base URL should yield nil without a request")
	}
}
