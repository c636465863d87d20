package dlna

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/richstokes/zeroconfdlna/internal/catalog"
)

const mediaLibraryTitle = "Media Library"

// browseChild is one directory entry headed for the DIDL output: either a
// container (subdirectory) or a supported media file.
type browseChild struct {
	isDir      bool
	childCount int
	item       mediaItem
	id         string
	name       string
}

// handleBrowseAction implements the ContentDirectory Browse action.
// Browsing the root (IDs 0 and 1) bumps SystemUpdateID; the object map is
// rebuilt per request so new files appear without a restart.
func (s *Server) handleBrowseAction(w http.ResponseWriter, data string) {
	objectID, ok := extractTag(data, "ObjectID")
	if !ok || objectID == "" {
		objectID = catalog.RootID
	}
	browseFlag, ok := extractTag(data, "BrowseFlag")
	if !ok || browseFlag == "" {
		browseFlag = "BrowseDirectChildren"
	}
	startingIndex := extractInt(data, "StartingIndex", 0)
	requestedCount := extractInt(data, "RequestedCount", 0)

	updateID := s.identity.SystemUpdateID()
	if objectID == catalog.RootID || objectID == catalog.MediaDirID {
		updateID = s.identity.OnRootAccess()
	}
	m := catalog.BuildObjectMap(s.cfg.MediaDirectory)

	var fragments []string
	var numberReturned, totalMatches int

	switch {
	case browseFlag == "BrowseDirectChildren" && objectID == catalog.RootID:
		fragments = append(fragments, didlContainer(catalog.MediaDirID, catalog.RootID,
			mediaLibraryTitle, s.countDirChildren(s.cfg.MediaDirectory)))
		numberReturned, totalMatches = 1, 1

	case browseFlag == "BrowseDirectChildren":
		dirRel := ""
		if objectID != catalog.MediaDirID {
			rel, known := m.PathOf(objectID)
			if !known {
				break
			}
			dirRel = rel
		}
		absDir := filepath.Join(s.cfg.MediaDirectory, dirRel)
		if info, err := os.Stat(absDir); err != nil || !info.IsDir() {
			break
		}
		children := s.listChildren(m, absDir, dirRel, objectID)
		totalMatches = len(children)
		slice := paginate(children, startingIndex, requestedCount)
		numberReturned = len(slice)
		for _, c := range slice {
			if c.isDir {
				fragments = append(fragments, didlContainer(c.id, objectID, c.name, c.childCount))
			} else {
				fragments = append(fragments, s.renderItem(c.item))
			}
		}

	case browseFlag == "BrowseMetadata" && objectID == catalog.RootID:
		fragments = append(fragments, didlContainer(catalog.RootID, catalog.RootParent, mediaLibraryTitle, 1))
		numberReturned, totalMatches = 1, 1

	case browseFlag == "BrowseMetadata" && objectID == catalog.MediaDirID:
		fragments = append(fragments, didlContainer(catalog.MediaDirID, catalog.RootID,
			mediaLibraryTitle, s.countDirChildren(s.cfg.MediaDirectory)))
		numberReturned, totalMatches = 1, 1

	case browseFlag == "BrowseMetadata":
		rel, known := m.PathOf(objectID)
		if !known {
			break
		}
		abs := filepath.Join(s.cfg.MediaDirectory, rel)
		parentID := m.ParentOf(objectID)
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			fragments = append(fragments, didlContainer(objectID, parentID,
				filepath.Base(rel), s.countDirChildren(abs)))
			numberReturned, totalMatches = 1, 1
		} else if err == nil && s.mimes.IsSupported(info.Name()) {
			mime, _ := s.mimes.Guess(info.Name())
			fragments = append(fragments, s.renderItem(mediaItem{
				ID:       objectID,
				ParentID: parentID,
				Name:     filepath.Base(rel),
				RelPath:  rel,
				AbsPath:  abs,
				Size:     info.Size(),
				MIME:     mime,
			}))
			numberReturned, totalMatches = 1, 1
		}
	}

	s.metrics.browseRequests.Inc()
	inner := fmt.Sprintf(
		"            <Result>%s</Result>\n"+
			"            <NumberReturned>%d</NumberReturned>\n"+
			"            <TotalMatches>%d</TotalMatches>\n"+
			"            <UpdateID>%d</UpdateID>\n",
		escapeXML(didlDocument(fragments)), numberReturned, totalMatches, updateID)

	w.Header().Set("Cache-Control", "max-age=10, must-revalidate")
	s.writeSOAP(w, soapResponse(contentDirectoryService, "Browse", inner))
}

// listChildren returns a directory's DIDL-bound children: subdirectories
// first, then supported media files, each group in lexicographic order.
func (s *Server) listChildren(m *catalog.ObjectMap, absDir, relDir, parentID string) []browseChild {
	entries, err := os.ReadDir(absDir)
	if err != nil {
		s.logger.Warn().Err(err).Str("dir", absDir).Msg("listing directory failed")
		return nil
	}

	var dirs, files []browseChild
	for _, e := range entries {
		name := e.Name()
		rel := name
		if relDir != "" {
			rel = filepath.Join(relDir, name)
		}
		abs := filepath.Join(absDir, name)
		if e.IsDir() {
			dirs = append(dirs, browseChild{
				isDir:      true,
				id:         m.IDOf(rel),
				name:       name,
				childCount: s.countDirChildren(abs),
			})
			continue
		}
		if !s.mimes.IsSupported(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mime, _ := s.mimes.Guess(name)
		files = append(files, browseChild{
			item: mediaItem{
				ID:       m.IDOf(rel),
				ParentID: parentID,
				Name:     name,
				RelPath:  rel,
				AbsPath:  abs,
				Size:     info.Size(),
				MIME:     mime,
			},
		})
	}
	return append(dirs, files...)
}

// countDirChildren counts a directory's direct children that would show up
// in a browse: subdirectories and supported media files.
func (s *Server) countDirChildren(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() || s.mimes.IsSupported(e.Name()) {
			count++
		}
	}
	return count
}

func (s *Server) renderItem(it mediaItem) string {
	itemURL := fmt.Sprintf("%s/media/%s", s.BaseURL(),
		url.PathEscape(filepath.ToSlash(it.RelPath)))
	duration := s.prober.Duration(it.AbsPath, it.MIME)
	return didlItem(it, itemURL, duration)
}

// paginate slices children per the UPnP convention: RequestedCount 0 means
// everything from StartingIndex to the end.
func paginate(children []browseChild, startingIndex, requestedCount int) []browseChild {
	if startingIndex < 0 {
		startingIndex = 0
	}
	if startingIndex >= len(children) {
		return nil
	}
	rest := children[startingIndex:]
	if requestedCount > 0 && requestedCount < len(rest) {
		return rest[:requestedCount]
	}
	return rest
}

// escapeXML escapes a document for embedding as text inside <Result>.
func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#x27;",
	)
	return r.Replace(s)
}
