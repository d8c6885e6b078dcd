package main

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{-5 * time.Second, "0s"},
		{38 * time.Second, "38s"},
		{42 * time.Minute, "42m"},
		{time.Hour + 5*time.Minute, "1h05m"},
		{2*time.Hour + 30*time.Second, "2h00m"},
	}
	for _, c := range cases {
		if got := formatDuration(c.d); got != c.want {
			t.Errorf("formatDuration(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}

func TestFormatDistance(t *testing.T) {
	cases := []struct {
		meters float64
		want   string
	}{
		{0, "0 m"},
		{850, "850 m"},
		{999.4, "999 m"},
		{1000, "1.0 km"},
		{12345, "12.3 km"},
	}
	for _, c := range cases {
		if got := formatDistance(c.meters); got != c.want {
			t.Errorf("formatDistance(%v) = %q, want %q", c.meters, got, c.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		s    string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a longer string here", 10, "a longe..."},
		{"abc", 2, "ab"},
		{"ümläut text value", 10, "ümläut ..."},
	}
	for _, c := range cases {
		if got := truncate(c.s, c.max); got != c.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", c.s, c.max, got, c.want)
		}
	}
}
