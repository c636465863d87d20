package dlna

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMediaRangedRequest(t *testing.T) {
	content := strings.Repeat("0123456789", 100) // 1000 bytes
	srv := newTestServer(t, map[string]string{"a.mp4": content})

	req := httptest.NewRequest(http.MethodGet, "/media/a.mp4", nil)
	req.Header.Set("Range", "bytes=100-199")
	rec := doRequest(t, srv, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != "100" {
		t.Errorf("Content-Length = %q, want 100", got)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 100-199/1000" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := rec.Body.String(); got != content[100:200] {
		t.Errorf("body = %q, want bytes 100-199", got)
	}
}

func TestMediaUnrangedIsStill206(t *testing.T) {
	srv := newTestServer(t, map[string]string{"song.mp3": "abcdefgh"})

	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/media/song.mp3", nil))
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206 even without Range", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 0-7/8" {
		t.Errorf("Content-Range = %q", got)
	}
	if rec.Body.String() != "abcdefgh" {
		t.Errorf("body = %q, want full file", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestMediaHeaders(t *testing.T) {
	srv := newTestServer(t, map[string]string{"a.mp4": "xxxx"})
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/media/a.mp4", nil))

	want := map[string]string{
		"Accept-Ranges":            "bytes",
		"TransferMode.DLNA.ORG":    "Streaming",
		"ContentFeatures.DLNA.ORG": "DLNA.ORG_PN=AVC_MP4_MP_SD_AAC_MULT5;DLNA.ORG_OP=01;DLNA.ORG_CI=0;DLNA.ORG_FLAGS=01700000000000000000000000000000",
		"Cache-Control":            "max-age=3600",
		"Connection":               "keep-alive",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if rec.Header().Get("Server") == "" {
		t.Error("missing Server header")
	}
}

func TestMediaHead(t *testing.T) {
	srv := newTestServer(t, map[string]string{"a.mp4": "xxxx"})
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodHead, "/media/a.mp4", nil))

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != "4" {
		t.Errorf("Content-Length = %q, want 4", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD returned %d body bytes", rec.Body.Len())
	}
}

func TestMediaSetsNowPlaying(t *testing.T) {
	srv := newTestServer(t, map[string]string{"shows/pilot.mkv": "x"})
	path := "/media/" + url.PathEscape("shows/pilot.mkv")
	doRequest(t, srv, httptest.NewRequest(http.MethodGet, path, nil))
	if got := srv.identity.NowPlaying(); got != "pilot.mkv" {
		t.Errorf("NowPlaying = %q, want pilot.mkv", got)
	}
}

func TestMediaNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/media/nope.mp4", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMediaDirectoryIs404(t *testing.T) {
	srv := newTestServer(t, map[string]string{"movies/a.mp4": "x"})
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/media/movies", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for directory", rec.Code)
	}
}

func TestMediaTraversalRejected(t *testing.T) {
	srv := newTestServer(t, nil)

	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("top secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	rel, err := filepath.Rel(srv.cfg.MediaDirectory, secret)
	if err != nil {
		t.Fatal(err)
	}

	path := "/media/" + url.PathEscape(filepath.ToSlash(rel))
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, path, nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for traversal to %s", rec.Code, rel)
	}
	if strings.Contains(rec.Body.String(), "top secret") {
		t.Error("secret file contents leaked")
	}
}

func TestParseRange(t *testing.T) {
	const size = 1000
	tests := []struct {
		name   string
		header string
		start  int64
		end    int64
	}{
		{"absent", "", 0, 999},
		{"window", "bytes=100-199", 100, 199},
		{"open end", "bytes=100-", 100, 999},
		{"open start", "bytes=-100", 0, 100},
		{"not bytes", "items=0-5", 0, 999},
		{"garbage start", "bytes=abc-199", 0, 999},
		{"garbage end", "bytes=100-xyz", 0, 999},
		{"end past size", "bytes=100-2000", 0, 999},
		{"inverted", "bytes=500-400", 0, 999},
		{"negative", "bytes=-5-10", 0, 999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := parseRange(tt.header, size)
			if start != tt.start || end != tt.end {
				t.Errorf("parseRange(%q) = (%d, %d), want (%d, %d)",
					tt.header, start, end, tt.start, tt.end)
			}
		})
	}
}
