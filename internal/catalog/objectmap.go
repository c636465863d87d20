package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Reserved ContentDirectory object IDs.
const (
	RootID     = "0"  // virtual root container
	MediaDirID = "1"  // the media directory itself
	RootParent = "-1" // parent of the virtual root, metadata responses only
)

// ObjectMap maps decimal string object IDs to media-root-relative paths and
// back. It is rebuilt per Browse request so files added between requests
// show up without a restart; within one response lookups never re-scan.
type ObjectMap struct {
	mediaRoot string
	idToPath  map[string]string
	pathToID  map[string]string
	nextID    int
}

// BuildObjectMap walks mediaRoot depth first, entries in lexicographic
// order, assigning IDs 2, 3, ... in visitation order. IDs 0 and 1 map to
// the empty relative path.
func BuildObjectMap(mediaRoot string) *ObjectMap {
	m := &ObjectMap{
		mediaRoot: mediaRoot,
		idToPath:  map[string]string{RootID: "", MediaDirID: ""},
		pathToID:  map[string]string{},
		nextID:    2,
	}
	m.scan(mediaRoot, "")
	return m
}

func (m *ObjectMap) scan(dir, rel string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		itemRel := name
		if rel != "" {
			itemRel = filepath.Join(rel, name)
		}
		m.assign(itemRel)
		abs := filepath.Join(dir, name)
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			m.scan(abs, itemRel)
		}
	}
}

func (m *ObjectMap) assign(rel string) string {
	id := strconv.Itoa(m.nextID)
	m.nextID++
	m.idToPath[id] = rel
	m.pathToID[rel] = id
	return id
}

// PathOf returns the relative path for id. The boolean is false for IDs the
// walk never assigned.
func (m *ObjectMap) PathOf(id string) (string, bool) {
	p, ok := m.idToPath[id]
	return p, ok
}

// IDOf returns the object ID for a media-root-relative path, assigning a
// fresh ID past the end of the walk if the path was never seen. That keeps
// ID lookups total for paths discovered mid-response.
func (m *ObjectMap) IDOf(rel string) string {
	if id, ok := m.pathToID[rel]; ok {
		return id
	}
	return m.assign(rel)
}

// ParentOf resolves the parentID reported in BrowseMetadata and item
// entries. The virtual root's parent is "-1" and the media directory's is
// "0"; everything else follows the directory structure, with top-level
// entries parented to "1".
func (m *ObjectMap) ParentOf(id string) string {
	switch id {
	case RootID:
		return RootParent
	case MediaDirID:
		return RootID
	}
	rel, ok := m.idToPath[id]
	if !ok || rel == "" {
		return MediaDirID
	}
	parent := filepath.Dir(rel)
	if parent == "." || parent == "" {
		return MediaDirID
	}
	return m.IDOf(parent)
}
