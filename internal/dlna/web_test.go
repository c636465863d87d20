package dlna

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
)

func TestBrowsePage(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"movies/a.mp4": "xxxx",
		"song.mp3":     "yy",
		"notes.txt":    "zz",
	})
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/browse", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<title>TestServer</title>",
		`href="/browse?path=movies"`,
		"http://127.0.0.1:8200/media/song.mp3",
		"Type: audio/mpeg | Size: 2 bytes",
		"Found 1 media files in this directory",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "notes.txt") {
		t.Error("unsupported file listed on browse page")
	}
}

func TestBrowsePageSubdirectory(t *testing.T) {
	srv := newTestServer(t, map[string]string{"movies/a.mp4": "xxxx"})
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/browse?path=movies", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `<a href="/browse">Home</a>`) {
		t.Errorf("missing Home breadcrumb:\n%s", body)
	}
	if !strings.Contains(body, "/media/movies%2Fa.mp4") {
		t.Errorf("missing encoded media link:\n%s", body)
	}
}

func TestBrowsePageBrotli(t *testing.T) {
	srv := newTestServer(t, map[string]string{"a.mp4": "x"})
	req := httptest.NewRequest(http.MethodGet, "/browse", nil)
	req.Header.Set("Accept-Encoding", "gzip, br")
	rec := doRequest(t, srv, req)

	if got := rec.Header().Get("Content-Encoding"); got != "br" {
		t.Fatalf("Content-Encoding = %q, want br", got)
	}
	decoded, err := io.ReadAll(brotli.NewReader(rec.Body))
	if err != nil {
		t.Fatalf("brotli decode: %v", err)
	}
	if !strings.Contains(string(decoded), "a.mp4") {
		t.Errorf("decoded page missing file entry:\n%s", decoded)
	}
}

func TestBrowsePageTraversalRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/browse?path=..%2F..", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestBrowsePageMissingDirectory(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/browse?path=nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
