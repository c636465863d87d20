// Package catalog tracks the server's identity and the numeric object IDs
// that ContentDirectory clients use to address files under the media root.
package catalog

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/richstokes/zeroconfdlna/internal/log"
)

// uuidPrefix identifies this implementation family. The remaining groups are
// derived from the media root's path and content hashes, so the full UUID is
// stable until the directory contents change.
const uuidPrefix = "65da942e-1984-3309"

// hashCheckInterval throttles content re-hashing on root browses. Clients
// hammer the root container, and a full walk per request would be wasteful.
const hashCheckInterval = 30 * time.Second

// Identity holds the mutable per-run state that ContentDirectory exposes:
// the device UUID, the SystemUpdateID counter, and an advisory now-playing
// label. A single mutex serializes all of it.
type Identity struct {
	MediaRoot string

	mu            sync.RWMutex
	uuid          string
	contentHash   string
	updateID      uint32
	lastHashCheck time.Time
	nowPlaying    string

	logger zerolog.Logger
}

// NewIdentity computes the initial UUID and seeds SystemUpdateID from the
// clock, so a restarted server presents a fresh counter to caching clients.
func NewIdentity(mediaRoot string) *Identity {
	id := &Identity{
		MediaRoot: mediaRoot,
		logger:    log.WithComponent("catalog"),
	}
	id.contentHash = id.hashDirectory()
	id.uuid = id.computeUUID(id.contentHash)
	id.updateID = uint32(time.Now().Unix() % 1_000_000)
	id.lastHashCheck = time.Now()
	id.logger.Info().Str("uuid", id.uuid).Uint32("system_update_id", id.updateID).Msg("identity initialized")
	return id
}

// UUID returns the current device UUID without the "uuid:" scheme prefix.
func (id *Identity) UUID() string {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.uuid
}

// SystemUpdateID returns the current counter value.
func (id *Identity) SystemUpdateID() uint32 {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.updateID
}

// NowPlaying returns the advisory label of the most recently streamed item.
func (id *Identity) NowPlaying() string {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return id.nowPlaying
}

// SetNowPlaying records the name of the item currently being streamed.
func (id *Identity) SetNowPlaying(name string) {
	id.mu.Lock()
	id.nowPlaying = name
	id.mu.Unlock()
}

// OnRootAccess is called by the browse engine whenever ObjectID "0" or "1"
// is browsed. It bumps SystemUpdateID and, at most once per 30 seconds,
// re-hashes the media root; a changed hash regenerates the UUID. The new
// counter value is returned so the response echoes exactly the value its
// own browse produced.
func (id *Identity) OnRootAccess() uint32 {
	id.mu.Lock()
	defer id.mu.Unlock()

	id.updateID++
	if time.Since(id.lastHashCheck) > hashCheckInterval {
		id.lastHashCheck = time.Now()
		h := id.hashDirectory()
		if h != id.contentHash {
			id.contentHash = h
			id.uuid = id.computeUUID(h)
			id.logger.Info().Str("uuid", id.uuid).Msg("media root changed, regenerated device UUID")
		}
	}
	return id.updateID
}

// hashDirectory walks the media root and hashes every file's relative path,
// size, and mtime. Subdirectories and files are visited in lexicographic
// order so the digest is independent of readdir ordering. An empty library
// hashes the empty record list, which is as stable as any other contents;
// only an unreadable root falls back to hashing the current time so the
// server still gets a usable identifier.
func (id *Identity) hashDirectory() string {
	var records []string
	err := walk(id.MediaRoot, func(abs string, info os.FileInfo) {
		rel, err := filepath.Rel(id.MediaRoot, abs)
		if err != nil {
			return
		}
		records = append(records, fmt.Sprintf("%s:%d:%d", rel, info.Size(), info.ModTime().Unix()))
	})
	if err != nil {
		sum := md5.Sum([]byte(fmt.Sprintf("%d", time.Now().Unix())))
		return fmt.Sprintf("%x", sum)[:12]
	}
	sum := md5.Sum([]byte(strings.Join(records, "\n")))
	return fmt.Sprintf("%x", sum)[:12]
}

// computeUUID assembles the device UUID from the path hash and the 12-digit
// content hash: 65da942e-1984-3309-AAAA-BBBBBBBBCCCC, where AAAA and
// BBBBBBBB come from the content hash and CCCC from the path hash.
func (id *Identity) computeUUID(contentHash string) string {
	pathSum := md5.Sum([]byte(id.MediaRoot))
	pathHash := fmt.Sprintf("%x", pathSum)[:8]
	return fmt.Sprintf("%s-%s-%s%s", uuidPrefix, contentHash[0:4], contentHash[4:12], pathHash[0:4])
}

// walk visits every regular file under root, the current directory's files
// in lexicographic order before descending into subdirectories, also in
// lexicographic order. A read failure on root itself is reported; failures
// further down are skipped.
func walk(root string, fn func(abs string, info os.FileInfo)) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	var dirs, files []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		} else {
			files = append(files, e.Name())
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)
	for _, name := range files {
		abs := filepath.Join(root, name)
		info, err := os.Stat(abs)
		if err != nil {
			continue
		}
		fn(abs, info)
	}
	for _, name := range dirs {
		walk(filepath.Join(root, name), fn)
	}
	return nil
}
