package blob

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownLink is returned for links the store never minted or already revoked
var ErrUnknownLink = errors.New("unknown blob link")

const linkScheme = "blob:"

// PathPrefix is where ServeHTTP expects blob requests
const PathPrefix = "/blobs/"

// Store mints ephemeral links to in-memory blobs. A link stays valid until
// it is revoked; the caller that minted it owns it.
type Store struct {
	origin string

	mu    sync.RWMutex
	blobs map[string]*Blob
}

// NewStore creates a store whose links look like blob:<origin>/<uuid>
func NewStore(origin string) *Store {
	return &Store{
		origin: strings.TrimRight(origin, "/"),
		blobs:  make(map[string]*Blob),
	}
}

// SetOrigin changes the origin of links minted from now on
func (s *Store) SetOrigin(origin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.origin = strings.TrimRight(origin, "/")
}

// Mint registers b under a fresh link
func (s *Store) Mint(b *Blob) string {
	id := uuid.NewString()

	s.mu.Lock()
	s.blobs[id] = b
	origin := s.origin
	s.mu.Unlock()

	return linkScheme + origin + "/" + id
}

// Lookup resolves a link or a bare id
func (s *Store) Lookup(link string) (*Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[linkID(link)]
	return b, ok
}

// Revoke releases a link. Revoking twice returns ErrUnknownLink.
func (s *Store) Revoke(link string) error {
	id := linkID(link)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		return ErrUnknownLink
	}
	delete(s.blobs, id)
	return nil
}

// Len returns the number of live links
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// HTTPPath maps a link to the path ServeHTTP answers on
func (s *Store) HTTPPath(link string) string {
	return PathPrefix + linkID(link)
}

// ServeHTTP serves GET <PathPrefix><id> with the blob's content type
func (s *Store) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, PathPrefix)
	b, ok := s.Lookup(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", b.Type)
	http.ServeContent(w, r, id, b.Created, b.Reader())
}

// linkID extracts the uuid from a blob: link. Bare ids pass through.
func linkID(link string) string {
	if i := strings.LastIndexByte(link, '/'); i >= 0 {
		return link[i+1:]
	}
	return link
}
