package dlna

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/richstokes/zeroconfdlna/internal/config"
	"github.com/richstokes/zeroconfdlna/internal/safepath"
)

// Streaming chunk policy. Small chunks while a lot remains keep seeks and
// resumes responsive; the tail can go out in bigger writes.
const (
	smallChunk     = 16 * 1024
	largeChunk     = 512 * 1024
	smallChunkPast = 2 * 1024 * 1024
)

// handleMedia serves GET and HEAD for /media/<url-encoded-rel-path>.
// Every response is 206 Partial Content, ranged or not; one popular
// renderer family refuses to stream from a 200.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	encoded := strings.TrimPrefix(r.URL.EscapedPath(), "/media/")
	rel, err := url.PathUnescape(encoded)
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	abs := filepath.Join(s.cfg.MediaDirectory, filepath.FromSlash(rel))

	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	if !safepath.IsSafe(s.cfg.MediaDirectory, abs) {
		s.logger.Warn().Str("path", abs).Str("remote", r.RemoteAddr).Msg("directory traversal attempt rejected")
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	mime, _ := s.mimes.Guess(abs)
	if mime == "" {
		mime = "application/octet-stream"
	}
	size := info.Size()

	s.identity.SetNowPlaying(filepath.Base(rel))
	s.metrics.mediaRequests.Inc()

	start, end := parseRange(r.Header.Get("Range"), size)
	length := end - start + 1

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("ContentFeatures.DLNA.ORG", contentFeatures(mime))
	w.Header().Set("TransferMode.DLNA.ORG", "Streaming")
	w.Header().Set("Server", config.ServerAgent)
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Cache-Control", "max-age=3600")
	w.WriteHeader(http.StatusPartialContent)

	if r.Method == http.MethodHead {
		return
	}
	s.streamFile(w, abs, start, length)
}

// parseRange resolves the Range header to a byte window. Anything absent,
// malformed, or out of bounds falls back to the whole file.
func parseRange(header string, size int64) (start, end int64) {
	start, end = 0, size-1
	if !strings.HasPrefix(header, "bytes=") {
		return start, end
	}
	parts := strings.SplitN(strings.TrimPrefix(header, "bytes="), "-", 2)
	if len(parts) != 2 {
		return start, end
	}
	a, b := int64(0), size-1
	var err error
	if parts[0] != "" {
		if a, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
			return 0, size - 1
		}
	}
	if parts[1] != "" {
		if b, err = strconv.ParseInt(parts[1], 10, 64); err != nil {
			return 0, size - 1
		}
	}
	if a < 0 || b >= size || a > b {
		return 0, size - 1
	}
	return a, b
}

// streamFile writes the selected window in chunks, extending the write
// deadline per chunk so hour-long streams survive without an unbounded
// global timeout. Peer disconnects end the stream silently.
func (s *Server) streamFile(w http.ResponseWriter, path string, start, length int64) {
	f, err := os.Open(path)
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("open for streaming failed")
		return
	}
	defer f.Close()

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return
	}

	rc := http.NewResponseController(w)
	buf := make([]byte, largeChunk)
	remaining := length
	sinceFlush := int64(0)

	for remaining > 0 {
		chunk := int64(largeChunk)
		if remaining > smallChunkPast {
			chunk = smallChunk
		}
		if chunk > remaining {
			chunk = remaining
		}

		n, err := f.Read(buf[:chunk])
		if n == 0 {
			break
		}

		rc.SetWriteDeadline(time.Now().Add(time.Minute))
		if _, werr := w.Write(buf[:n]); werr != nil {
			if isPeerGone(werr) {
				s.logger.Debug().Str("path", path).Msg("client disconnected during streaming")
				return
			}
			s.logger.Debug().Err(werr).Str("path", path).Msg("write failed during streaming")
			return
		}
		remaining -= int64(n)
		sinceFlush += int64(n)
		if sinceFlush >= 2*largeChunk {
			rc.Flush()
			sinceFlush = 0
		}
		if err != nil {
			break
		}
	}
	rc.Flush()
}

// isPeerGone reports whether a write error means the client went away,
// which is routine for DLNA renderers and not worth more than a debug line.
func isPeerGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, http.ErrHandlerTimeout)
}
