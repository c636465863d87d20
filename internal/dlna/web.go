package dlna

import (
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/richstokes/zeroconfdlna/internal/safepath"
)

const browsePageStyle = `        body { font-family: Arial, sans-serif; margin: 40px; }
        .breadcrumb { display: flex; flex-wrap: wrap; list-style: none; padding: 0; margin-bottom: 20px; }
        .breadcrumb li { margin-right: 10px; }
        .breadcrumb li:after { content: " > "; margin-left: 10px; color: #666; }
        .breadcrumb li:last-child:after { content: ""; }
        .breadcrumb a { text-decoration: none; color: #0066cc; }
        .breadcrumb a:hover { text-decoration: underline; }
        .current-path { margin-bottom: 20px; color: #666; }
        .file-list { list-style-type: none; padding: 0; }
        .file-item { margin: 10px 0; padding: 10px; border: 1px solid #ddd; border-radius: 5px; }
        .dir-item { background-color: #f5f5f5; }
        .file-name { font-weight: bold; }
        .file-info { color: #666; font-size: 0.9em; }
        .folder-icon { margin-right: 5px; color: #ffa500; }`

type webEntry struct {
	name  string
	rel   string
	isDir bool
	mime  string
	size  int64
}

// handleBrowsePage renders a plain HTML listing for humans checking what
// the server exposes. Same confinement rules as /media.
func (s *Server) handleBrowsePage(w http.ResponseWriter, r *http.Request) {
	currentDir := r.URL.Query().Get("path")
	absDir := filepath.Join(s.cfg.MediaDirectory, filepath.FromSlash(currentDir))

	if !safepath.IsSafe(s.cfg.MediaDirectory, absDir) {
		s.logger.Warn().Str("path", absDir).Str("remote", r.RemoteAddr).Msg("directory traversal attempt rejected")
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}
	if info, err := os.Stat(absDir); err != nil || !info.IsDir() {
		http.Error(w, "Directory not found", http.StatusNotFound)
		return
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		http.Error(w, "Error reading directory", http.StatusInternalServerError)
		return
	}

	var items []webEntry
	for _, e := range entries {
		rel := e.Name()
		if currentDir != "" {
			rel = filepath.Join(currentDir, e.Name())
		}
		if e.IsDir() {
			items = append(items, webEntry{name: e.Name(), rel: rel, isDir: true})
			continue
		}
		if !s.mimes.IsSupported(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mime, _ := s.mimes.Guess(e.Name())
		items = append(items, webEntry{name: e.Name(), rel: rel, mime: mime, size: info.Size()})
	}
	// Directories first, then files, both alphabetical.
	sort.Slice(items, func(i, j int) bool {
		if items[i].isDir != items[j].isDir {
			return items[i].isDir
		}
		return items[i].name < items[j].name
	})

	page := s.renderBrowsePage(currentDir, absDir, items)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	var out io.Writer = w
	if strings.Contains(r.Header.Get("Accept-Encoding"), "br") {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		defer bw.Close()
		out = bw
	}
	io.WriteString(out, page)
}

func (s *Server) renderBrowsePage(currentDir, absDir string, items []webEntry) string {
	var b strings.Builder
	title := html.EscapeString(s.cfg.ServerName)

	fmt.Fprintf(&b, `<!DOCTYPE html>
<html>
<head>
    <title>%s</title>
    <style>
%s
    </style>
</head>
<body>
    <h1>%s</h1>

    <ul class="breadcrumb">
`, title, browsePageStyle, title)

	// Breadcrumbs: Home plus one link per path component.
	fmt.Fprintf(&b, "        <li><a href=\"/browse\">Home</a></li>\n")
	if currentDir != "" {
		parts := strings.Split(filepath.ToSlash(currentDir), "/")
		cumulative := ""
		for i, part := range parts {
			if part == "" {
				continue
			}
			cumulative = filepath.ToSlash(filepath.Join(cumulative, part))
			if i == len(parts)-1 {
				fmt.Fprintf(&b, "        <li>%s</li>\n", html.EscapeString(part))
			} else {
				fmt.Fprintf(&b, "        <li><a href=\"/browse?path=%s\">%s</a></li>\n",
					url.QueryEscape(cumulative), html.EscapeString(part))
			}
		}
	}

	mediaCount := 0
	for _, it := range items {
		if !it.isDir {
			mediaCount++
		}
	}

	fmt.Fprintf(&b, `    </ul>

    <div class="current-path">Current directory: %s</div>
    <p>Found %d media files in this directory</p>

    <ul class="file-list">`, html.EscapeString(absDir), mediaCount)

	for _, it := range items {
		if it.isDir {
			fmt.Fprintf(&b, `
        <li class="file-item dir-item">
            <div class="file-name">
                <a href="/browse?path=%s"><span class="folder-icon">&#128193;</span> %s</a>
            </div>
        </li>`, url.QueryEscape(filepath.ToSlash(it.rel)), html.EscapeString(it.name))
			continue
		}
		mediaURL := fmt.Sprintf("%s/media/%s", s.BaseURL(), url.PathEscape(filepath.ToSlash(it.rel)))
		fmt.Fprintf(&b, `
        <li class="file-item">
            <div class="file-name">
                <a href="%s" target="_blank">%s</a>
            </div>
            <div class="file-info">
                Type: %s | Size: %d bytes
            </div>
        </li>`, mediaURL, html.EscapeString(it.name), it.mime, it.size)
	}

	b.WriteString(`
    </ul>
</body>
</html>`)
	return b.String()
}
