package client

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/moolen/mcpcall/internal/config"
	"github.com/moolen/mcpcall/internal/logging"
)

// DefaultManagerSize is the default number of live sessions a Manager keeps.
const DefaultManagerSize = 16

// Manager caches live sessions in an LRU keyed by transport and endpoint so
// long-running callers (the proxy, batched listings) reuse handshakes
// instead of re-dialing for every operation. Evicted sessions are closed.
type Manager struct {
	cache  *lru.Cache[string, *Session]
	opts   Options
	logger *logging.Logger
	mu     sync.Mutex
}

// NewManager creates a session manager holding up to size sessions, all
// dialed with the given options.
func NewManager(size int, opts Options) (*Manager, error) {
	if size <= 0 {
		size = DefaultManagerSize
	}

	m := &Manager{
		opts:   opts,
		logger: logging.GetLogger("client.manager"),
	}

	cache, err := lru.NewWithEvict[string, *Session](size, func(key string, s *Session) {
		m.logger.Debug("evicting session %s", key)
		if err := s.Close(); err != nil {
			m.logger.Warn("failed to close evicted session %s: %v", key, err)
		}
	})
	if err != nil {
		return nil, err
	}

	m.cache = cache
	return m, nil
}

func sessionKey(tr config.Transport, endpoint string) string {
	return fmt.Sprintf("%s|%s", tr, endpoint)
}

// Session returns a cached session for the endpoint or dials a new one.
func (m *Manager) Session(ctx context.Context, tr config.Transport, endpoint string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(tr, endpoint)
	if s, ok := m.cache.Get(key); ok {
		return s, nil
	}

	s, err := Dial(ctx, tr, endpoint, m.opts)
	if err != nil {
		return nil, err
	}

	m.cache.Add(key, s)
	return s, nil
}

// Invalidate closes and drops the cached session for the endpoint, if any.
// The next Session call re-dials.
func (m *Manager) Invalidate(tr config.Transport, endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Remove triggers the eviction callback, which closes the session.
	m.cache.Remove(sessionKey(tr, endpoint))
}

// Close closes all cached sessions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Purge()
}
