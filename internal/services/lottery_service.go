package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/logger"

	"luckydraw/internal/models"
	"luckydraw/internal/storage"
)

// DefaultAppID prefixes every persisted blob key.
const DefaultAppID = "lucky-draw"

// LotterySession holds the data for a single user/tenant.
type LotterySession struct {
	TenantID     string
	Store        *GameStore
	Draws        *DrawCoordinator
	LastActivity time.Time

	// saveMu spans snapshot and write so an older snapshot never lands last.
	saveMu sync.Mutex
}

// Options configures a LotteryService. Zero values select the defaults.
type Options struct {
	Blobs      storage.BlobStore // nil keeps sessions in memory only
	Clock      Clock
	AppID      string
	Seed       int64 // 0 seeds each session from the clock
	SessionTTL time.Duration
}

// LotteryService manages one draw session per tenant.
type LotteryService struct {
	mu        sync.RWMutex
	sessions  map[string]*LotterySession // Key: tenantID
	blobs     storage.BlobStore
	clock     Clock
	appID     string
	seed      int64
	ttl       time.Duration
	listeners []func(tenantID string, c Completion)
}

// NewLotteryService creates and initializes a new LotteryService.
func NewLotteryService(opts Options) *LotteryService {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.AppID == "" {
		opts.AppID = DefaultAppID
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	return &LotteryService{
		sessions: make(map[string]*LotterySession),
		blobs:    opts.Blobs,
		clock:    opts.Clock,
		appID:    opts.AppID,
		seed:     opts.Seed,
		ttl:      opts.SessionTTL,
	}
}

// OnDrawComplete registers fn to run after every committed draw of any session.
// Listeners must be registered before sessions are created.
func (s *LotteryService) OnDrawComplete(fn func(tenantID string, c Completion)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *LotteryService) blobKey(tenantID string) string {
	return s.appID + ":" + tenantID
}

func (s *LotterySession) touch(now time.Time) { s.LastActivity = now }

// Session returns the session for a tenant, loading it from the blob store
// or creating it if it doesn't exist yet.
func (s *LotteryService) Session(ctx context.Context, tenantID string) *LotterySession {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[tenantID]
	if !exists {
		session = s.newSession(ctx, tenantID)
		s.sessions[tenantID] = session
		logger.Infof("Created session for tenant: %s (%d active)", tenantID, len(s.sessions))
	}
	session.touch(s.clock.Now())
	return session
}

// newSession must be called with s.mu held.
func (s *LotteryService) newSession(ctx context.Context, tenantID string) *LotterySession {
	store := NewGameStore(s.clock)
	if s.blobs != nil {
		data, err := s.blobs.Load(ctx, s.blobKey(tenantID))
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			logger.Errorf("Failed to load state for tenant %s, starting fresh: %v", tenantID, err)
		default:
			var state models.PersistedState
			if err := json.Unmarshal(data, &state); err != nil {
				logger.Errorf("Discarding unreadable state for tenant %s: %v", tenantID, err)
			} else {
				store.Restore(state)
			}
		}
	}
	store.InitializeDefaultCategory()

	seed := s.seed
	if seed == 0 {
		seed = s.clock.Now().UnixNano()
	}
	session := &LotterySession{
		TenantID: tenantID,
		Store:    store,
		Draws:    NewDrawCoordinator(store, NewDrawEngine(seed), s.clock),
	}
	listeners := s.listeners
	session.Draws.OnDrawComplete(func(c Completion) {
		// A cleared session must not be written back by its last draw.
		if s.owns(session) {
			if err := s.persist(context.Background(), session); err != nil {
				logger.Errorf("Failed to persist draw for tenant %s: %v", tenantID, err)
			}
		}
		for _, fn := range listeners {
			fn(tenantID, c)
		}
	})

	return session
}

// Save writes a tenant's current state to the blob store. It is a no-op for
// unknown tenants and when persistence is disabled.
func (s *LotteryService) Save(ctx context.Context, tenantID string) error {
	if s.blobs == nil {
		return nil
	}
	s.mu.RLock()
	session, ok := s.sessions[tenantID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return s.persist(ctx, session)
}

func (s *LotteryService) owns(session *LotterySession) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[session.TenantID] == session
}

// persist writes a session's snapshot. Saves of one session are serialized
// from snapshot to write, so the blob always holds the newest state.
func (s *LotteryService) persist(ctx context.Context, session *LotterySession) error {
	if s.blobs == nil {
		return nil
	}
	session.saveMu.Lock()
	defer session.saveMu.Unlock()

	state, err := session.Store.Persisted()
	if err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.blobs.Save(ctx, s.blobKey(session.TenantID), data)
}

// ActiveSessions returns the number of sessions held in memory.
func (s *LotteryService) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CleanUpInactiveSessions evicts sessions that have been inactive for longer
// than the session TTL. Sessions with a draw still spinning are kept; their
// state is already persisted, so an evicted tenant reloads on its next request.
func (s *LotteryService) CleanUpInactiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for tenantID, session := range s.sessions {
		if now.Sub(session.LastActivity) <= s.ttl || session.Draws.IsSpinning() {
			continue
		}
		delete(s.sessions, tenantID)
		removed++
		logger.Infof("Evicted inactive session for tenant: %s", tenantID)
	}
	return removed
}

// ClearSession removes all data associated with a specific tenant, including
// its persisted blob.
func (s *LotteryService) ClearSession(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	delete(s.sessions, tenantID)
	s.mu.Unlock()

	logger.Infof("Cleared session for tenant: %s", tenantID)
	if s.blobs == nil {
		return nil
	}
	return s.blobs.Delete(ctx, s.blobKey(tenantID))
}

// SaveAll persists every in-memory session; used on shutdown.
func (s *LotteryService) SaveAll(ctx context.Context) error {
	s.mu.RLock()
	tenants := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		tenants = append(tenants, id)
	}
	s.mu.RUnlock()

	var errs []error
	for _, id := range tenants {
		if err := s.Save(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
