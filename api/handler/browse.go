package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/posterbridge/models"
)

// browseCookie carries the id of the caller's browsing session.
const browseCookie = "posterbridge_session"

// browseSession is the per-user state between listing items and uploading:
// the listed items and the poster chosen for each.
type browseSession struct {
	items      []models.LibraryItem
	serverInfo models.ServerInfo
	selections map[string]string // item id -> poster url
	touched    time.Time
}

// Store keeps browsing sessions in memory. Sessions idle for longer than
// the TTL are evicted by a background sweep.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*browseSession
	ttl      time.Duration
	done     chan struct{}
	once     sync.Once
}

// NewStore creates a Store. A non-positive ttl keeps sessions forever.
func NewStore(ttl time.Duration) *Store {
	s := &Store{
		sessions: make(map[string]*browseSession),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	if ttl > 0 {
		go s.cleanupLoop()
	}
	return s
}

// Close stops the background sweep.
func (s *Store) Close() {
	s.once.Do(func() { close(s.done) })
}

// Len reports how many browsing sessions are live.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// PutItems replaces the listed items of session id, creating it if needed.
// Earlier selections survive for items that are still listed.
func (s *Store) PutItems(id string, items []models.LibraryItem, info models.ServerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &browseSession{selections: make(map[string]string)}
		s.sessions[id] = sess
	}
	sess.items = append([]models.LibraryItem(nil), items...)
	sess.serverInfo = info
	sess.touched = time.Now()
}

// Item returns the listed item with itemID. found reports whether the
// session exists at all.
func (s *Store) Item(id, itemID string) (item models.LibraryItem, found, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, found := s.sessions[id]
	if !found {
		return models.LibraryItem{}, false, false
	}
	sess.touched = time.Now()
	for _, it := range sess.items {
		if it.ID == itemID {
			return it, true, true
		}
	}
	return models.LibraryItem{}, true, false
}

// Select records posterURL as the choice for itemID. Nothing is recorded
// unless the session exists (found) and lists the item (listed).
func (s *Store) Select(id, itemID, posterURL string) (found, listed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, found := s.sessions[id]
	if !found {
		return false, false
	}
	sess.touched = time.Now()
	for _, it := range sess.items {
		if it.ID == itemID {
			sess.selections[itemID] = posterURL
			return true, true
		}
	}
	return true, false
}

// Selection returns the poster chosen for itemID.
func (s *Store) Selection(id, itemID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return "", false
	}
	u, ok := sess.selections[itemID]
	return u, ok
}

// Selections returns a copy of every choice in session id.
func (s *Store) Selections(id string) (map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(sess.selections))
	for k, v := range sess.selections {
		out[k] = v
	}
	return out, true
}

// title returns the listed title of itemID, or "".
func (s *Store) title(id, itemID string) string {
	it, _, ok := s.Item(id, itemID)
	if !ok {
		return ""
	}
	return it.Title
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictIdle(time.Now())
		}
	}
}

func (s *Store) evictIdle(now time.Time) {
	cutoff := now.Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.touched.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}

// sessionID returns the caller's browsing session id. With create set, a
// new id is issued when the request carries none.
func sessionID(c *gin.Context, create bool) (string, bool) {
	if id, err := c.Cookie(browseCookie); err == nil && id != "" {
		return id, true
	}
	if !create {
		return "", false
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(browseCookie, id, 0, "/", "", false, true)
	return id, true
}
