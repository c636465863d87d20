// Package mimetypes resolves file extensions to MIME types from a local
// mime.types file, with a built-in table as fallback.
package mimetypes

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Resolver maps lowercased dot-extensions (".mp4") to MIME types.
type Resolver struct {
	types map[string]string
}

// builtinTypes covers the formats the server must always recognize, used when
// no mime.types file can be read.
var builtinTypes = map[string]string{
	// video
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".3gp":  "video/3gpp",
	// audio
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".m4a":  "audio/x-m4a",
	".wma":  "audio/x-ms-wma",
	".aiff": "audio/aiff",
	// image
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
}

// New builds a resolver from the mime.types file at path. Lines are
// "mime ext [ext ...]"; empty lines and # comments are skipped. If the file
// cannot be read or yields nothing, the built-in table is used instead.
func New(path string) *Resolver {
	r := &Resolver{types: make(map[string]string)}
	if path != "" {
		r.loadFile(path)
	}
	if len(r.types) == 0 {
		for ext, mime := range builtinTypes {
			r.types[ext] = mime
		}
	}
	return r
}

// Default looks for mime.types next to the executable, falling back to the
// built-in table.
func Default() *Resolver {
	exe, err := os.Executable()
	if err != nil {
		return New("")
	}
	return New(filepath.Join(filepath.Dir(exe), "mime.types"))
}

func (r *Resolver) loadFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		mime := strings.ToLower(fields[0])
		for _, ext := range fields[1:] {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			r.types[ext] = mime
		}
	}
}

// Guess returns the MIME type and encoding for a filename, keyed by its
// lowercased final dot-suffix. Encoding is always empty; the second return
// mirrors the classic guess_type contract. An unknown extension yields "".
func (r *Resolver) Guess(filename string) (mime string, encoding string) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "" {
		return "", ""
	}
	return r.types[ext], ""
}

// IsSupported reports whether the file resolves to a video/, audio/ or image/
// MIME type.
func (r *Resolver) IsSupported(path string) bool {
	mime, _ := r.Guess(path)
	return strings.HasPrefix(mime, "video/") ||
		strings.HasPrefix(mime, "audio/") ||
		strings.HasPrefix(mime, "image/")
}
