// Package probe extracts media durations for DIDL-Lite res attributes
// without shelling out to external tools. It reads only the first 64 KiB of
// a file, enough to find the MP4 mvhd atom or the AVI avih chunk in typical
// encodes, and falls back to a per-MIME default when parsing fails.
package probe

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/richstokes/zeroconfdlna/internal/log"
)

// headerBytes caps how much of a file a probe may read.
const headerBytes = 64 * 1024

// defaultDurations are advisory fallbacks per MIME type. Most renderers only
// use the duration for progress-bar sizing, so a plausible guess beats
// omitting the attribute.
var defaultDurations = map[string]string{
	"video/mp4":        "01:30:00",
	"video/x-msvideo":  "00:45:00",
	"video/x-matroska": "02:00:00",
	"video/quicktime":  "01:15:00",
	"video/x-ms-wmv":   "01:00:00",
	"video/x-flv":      "00:30:00",
	"video/webm":       "01:00:00",
	"video/x-m4v":      "01:30:00",
	"video/3gpp":       "00:15:00",

	"audio/mpeg":     "00:03:30",
	"audio/wav":      "00:05:00",
	"audio/mp4":      "00:04:00",
	"audio/x-m4a":    "00:04:00",
	"audio/flac":     "00:05:00",
	"audio/ogg":      "00:04:00",
	"audio/x-ms-wma": "00:04:00",
	"audio/aiff":     "00:05:00",
}

// Prober resolves durations with an sqlite-backed cache keyed by the file's
// path, size, and mtime, so unchanged files are parsed once per run (or once
// ever, with a persistent cache path).
type Prober struct {
	db     *sql.DB
	logger zerolog.Logger
}

// New opens the duration cache at cachePath. An empty path keeps the cache
// in memory, which is the zero-configuration default.
func New(cachePath string) (*Prober, error) {
	dsn := cachePath
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duration cache: %w", err)
	}
	// The cache is consulted from concurrent request handlers; a single
	// connection sidesteps sqlite's writer locking.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS durations (
		path     TEXT    NOT NULL,
		size     INTEGER NOT NULL,
		mtime    INTEGER NOT NULL,
		duration TEXT    NOT NULL,
		PRIMARY KEY (path, size, mtime)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init duration cache: %w", err)
	}
	return &Prober{db: db, logger: log.WithComponent("probe")}, nil
}

// Close releases the cache database.
func (p *Prober) Close() error {
	return p.db.Close()
}

// Duration returns the HH:MM:SS duration for path, or the per-MIME default
// (generic fallbacks for unlisted types) when the file cannot be parsed.
// Non-video, non-audio MIME types get no duration at all.
func (p *Prober) Duration(path, mimeType string) string {
	if !strings.HasPrefix(mimeType, "video/") && !strings.HasPrefix(mimeType, "audio/") {
		return ""
	}

	info, err := os.Stat(path)
	if err != nil {
		return fallbackDuration(mimeType)
	}
	size, mtime := info.Size(), info.ModTime().Unix()

	if d, ok := p.cached(path, size, mtime); ok {
		return d
	}

	d := parseDuration(path, mimeType)
	if d == "" {
		return fallbackDuration(mimeType)
	}
	p.store(path, size, mtime, d)
	return d
}

func (p *Prober) cached(path string, size, mtime int64) (string, bool) {
	var d string
	err := p.db.QueryRow(
		`SELECT duration FROM durations WHERE path = ? AND size = ? AND mtime = ?`,
		path, size, mtime,
	).Scan(&d)
	if err != nil {
		return "", false
	}
	return d, true
}

func (p *Prober) store(path string, size, mtime int64, duration string) {
	_, err := p.db.Exec(
		`INSERT OR REPLACE INTO durations (path, size, mtime, duration) VALUES (?, ?, ?, ?)`,
		path, size, mtime, duration,
	)
	if err != nil {
		p.logger.Debug().Err(err).Str("path", path).Msg("duration cache write failed")
	}
}

func parseDuration(path, mimeType string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, headerBytes)
	n, err := f.Read(buf)
	if n == 0 && err != nil {
		return ""
	}
	data := buf[:n]

	switch mimeType {
	case "video/mp4", "video/x-m4v", "video/quicktime", "audio/mp4", "audio/x-m4a":
		return parseMP4(data)
	case "video/x-msvideo":
		return parseAVI(data)
	}
	return ""
}

// parseMP4 finds the mvhd atom and divides its duration field by its
// timescale. The fields sit 12 and 16 bytes past the atom tag (version,
// flags, creation and modification times precede them).
func parseMP4(data []byte) string {
	pos := bytes.Index(data, []byte("mvhd"))
	if pos == -1 || pos+20 > len(data) {
		return ""
	}
	timescale := binary.BigEndian.Uint32(data[pos+12 : pos+16])
	duration := binary.BigEndian.Uint32(data[pos+16 : pos+20])
	if timescale == 0 {
		return ""
	}
	return formatHMS(float64(duration) / float64(timescale))
}

// parseAVI reads microseconds-per-frame and the frame count out of the avih
// chunk, 8 and 12 bytes past the chunk tag, both little endian.
func parseAVI(data []byte) string {
	pos := bytes.Index(data, []byte("avih"))
	if pos == -1 || pos+16 > len(data) {
		return ""
	}
	usecPerFrame := binary.LittleEndian.Uint32(data[pos+8 : pos+12])
	totalFrames := binary.LittleEndian.Uint32(data[pos+12 : pos+16])
	if usecPerFrame == 0 || totalFrames == 0 {
		return ""
	}
	return formatHMS(float64(totalFrames) * float64(usecPerFrame) / 1e6)
}

func fallbackDuration(mimeType string) string {
	if d, ok := defaultDurations[mimeType]; ok {
		return d
	}
	if strings.HasPrefix(mimeType, "audio/") {
		return "00:04:00"
	}
	if strings.HasPrefix(mimeType, "video/") {
		return "01:00:00"
	}
	return ""
}

func formatHMS(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}
