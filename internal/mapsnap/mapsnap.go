// Package mapsnap fetches a static map raster for a route region. A
// snapshot is decorative: every failure degrades to a nil image and the
// export proceeds with a flat background.
package mapsnap

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/mfolsom/drivelog/internal/geo"
)

// Provider produces a background raster for a region, or nil when none is
// available.
type Provider interface {
	Snapshot(ctx context.Context, region geo.Region, width, height int) image.Image
}

// DefaultTimeout caps a snapshot fetch so a slow tile server never stalls
// an export.
const DefaultTimeout = 5 * time.Second

// HTTP fetches snapshots from a static-map endpoint that accepts center,
// span, and size query parameters and returns a PNG or JPEG.
type HTTP struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewHTTP builds a provider for the given endpoint. An empty baseURL
// yields a provider whose snapshots are always nil.
func NewHTTP(baseURL string) *HTTP {
	return &HTTP{
		baseURL: baseURL,
		client:  &http.Client{},
		timeout: DefaultTimeout,
	}
}

// Snapshot requests a raster for the region. Any failure (transport,
// status, decode, timeout) is logged and reported as nil.
func (p *HTTP) Snapshot(ctx context.Context, region geo.Region, width, height int) image.Image {
	if p.baseURL == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	img, err := p.fetch(ctx, region, width, height)
	if err != nil {
		log.Printf("mapsnap: snapshot unavailable, using flat background: %v", err)
		return nil
	}
	return img
}

func (p *HTTP) fetch(ctx context.Context, region geo.Region, width, height int) (image.Image, error) {
	q := url.Values{}
	q.Set("center", fmt.Sprintf("%.6f,%.6f", region.CenterLat, region.CenterLon))
	q.Set("span", fmt.Sprintf("%.6f,%.6f", region.LatSpan, region.LonSpan))
	q.Set("size", fmt.Sprintf("%dx%d", width, height))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("mapsnap: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mapsnap: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mapsnap: status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mapsnap: decode: %w", err)
	}
	return img, nil
}
