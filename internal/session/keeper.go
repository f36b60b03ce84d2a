package session

import (
	"sync"
	"time"

	jitterbug "github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/hireloop/apply-planner/internal/automation"
	"github.com/hireloop/apply-planner/pkg/metrics"
)

const (
	// DefaultTTL bounds how long a live browser page is held waiting for
	// an emailed verification code.
	DefaultTTL = 900 * time.Second

	defaultSweepInterval = 60 * time.Second
)

// Session is one live automation resource waiting for a verification code.
// The resource is owned exclusively by the session until it is removed.
type Session struct {
	ApplicationID string
	Resource      automation.Resource
	CreatedAt     time.Time
	Email         string
	Attempts      int
}

// Info is a read-only projection of a session; it never exposes the resource.
type Info struct {
	ApplicationID    string    `json:"application_id"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresInSeconds int       `json:"expires_in_seconds"`
	Attempts         int       `json:"attempts"`
}

// Keeper is the process-wide table of verification sessions plus its reaper.
// At most one live session exists per application id; storing a replacement
// asynchronously retires the previous resource.
type Keeper struct {
	mu            sync.Mutex
	sessions      map[string]*Session
	ttl           time.Duration
	sweepInterval time.Duration
	reaperRunning bool

	stopOnce sync.Once
	stopCh   chan struct{}

	now func() time.Time
}

func NewKeeper(ttl time.Duration) *Keeper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Keeper{
		sessions:      make(map[string]*Session),
		ttl:           ttl,
		sweepInterval: defaultSweepInterval,
		stopCh:        make(chan struct{}),
		now:           time.Now,
	}
}

// Store installs a session for the application id, asynchronously retiring
// any resource already held for that id, and lazily starts the reaper.
func (k *Keeper) Store(applicationID string, resource automation.Resource, email string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if old, ok := k.sessions[applicationID]; ok {
		go releaseResource(old.ApplicationID, old.Resource)
	}

	k.sessions[applicationID] = &Session{
		ApplicationID: applicationID,
		Resource:      resource,
		CreatedAt:     k.now(),
		Email:         email,
	}
	metrics.SetVerificationSessionCount(len(k.sessions))
	zap.S().Named("session").Infow("stored verification session",
		"application_id", applicationID, "ttl", k.ttl)

	if !k.reaperRunning {
		k.reaperRunning = true
		go k.reap()
	}
}

// Get returns the live session for the id, or nil when absent or past the
// TTL. An expired entry is expelled and its resource released in the
// background; callers must treat nil as "no retry possible".
func (k *Keeper) Get(applicationID string) *Session {
	k.mu.Lock()
	defer k.mu.Unlock()

	s, ok := k.sessions[applicationID]
	if !ok {
		return nil
	}

	if k.expired(s) {
		delete(k.sessions, applicationID)
		metrics.SetVerificationSessionCount(len(k.sessions))
		go releaseResource(s.ApplicationID, s.Resource)
		return nil
	}
	return s
}

// Remove deletes the entry and releases its resource. The entry leaves the
// table before the release starts, so a concurrent Get never observes a
// session whose resource is being torn down. No-op on a missing id.
func (k *Keeper) Remove(applicationID string) {
	k.mu.Lock()
	s, ok := k.sessions[applicationID]
	if ok {
		delete(k.sessions, applicationID)
		metrics.SetVerificationSessionCount(len(k.sessions))
	}
	k.mu.Unlock()

	if ok {
		releaseResource(s.ApplicationID, s.Resource)
	}
}

// RecordFailedAttempt bumps the wrong-code counter for the session and
// returns the new total. Returns 0 when no live session exists.
func (k *Keeper) RecordFailedAttempt(applicationID string) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	s, ok := k.sessions[applicationID]
	if !ok || k.expired(s) {
		return 0
	}
	s.Attempts++
	return s.Attempts
}

func (k *Keeper) Count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.sessions)
}

func (k *Keeper) Describe(applicationID string) (*Info, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	s, ok := k.sessions[applicationID]
	if !ok {
		return nil, false
	}

	remaining := s.CreatedAt.Add(k.ttl).Sub(k.now())
	if remaining < 0 {
		remaining = 0
	}
	return &Info{
		ApplicationID:    s.ApplicationID,
		CreatedAt:        s.CreatedAt,
		ExpiresInSeconds: int(remaining.Seconds()),
		Attempts:         s.Attempts,
	}, true
}

// Shutdown releases every held session. Called on process stop.
func (k *Keeper) Shutdown() {
	k.stopOnce.Do(func() {
		close(k.stopCh)
	})

	k.mu.Lock()
	leftovers := make([]*Session, 0, len(k.sessions))
	for _, s := range k.sessions {
		leftovers = append(leftovers, s)
	}
	k.sessions = make(map[string]*Session)
	metrics.SetVerificationSessionCount(0)
	k.mu.Unlock()

	for _, s := range leftovers {
		releaseResource(s.ApplicationID, s.Resource)
	}
}

func (k *Keeper) expired(s *Session) bool {
	return k.now().After(s.CreatedAt.Add(k.ttl))
}

// reap scans for sessions past the TTL while the table is non-empty and
// exits when it drains; Store restarts it on the next insert.
func (k *Keeper) reap() {
	log := zap.S().Named("session")
	ticker := jitterbug.New(k.sweepInterval, &jitterbug.Norm{Stdev: 500 * time.Millisecond})
	defer ticker.Stop()

	for {
		select {
		case <-k.stopCh:
			k.mu.Lock()
			k.reaperRunning = false
			k.mu.Unlock()
			return
		case <-ticker.C:
		}

		k.mu.Lock()
		var expired []*Session
		for id, s := range k.sessions {
			if k.expired(s) {
				delete(k.sessions, id)
				expired = append(expired, s)
			}
		}
		empty := len(k.sessions) == 0
		if empty {
			k.reaperRunning = false
		}
		metrics.SetVerificationSessionCount(len(k.sessions))
		k.mu.Unlock()

		for _, s := range expired {
			log.Infow("verification session expired", "application_id", s.ApplicationID)
			releaseResource(s.ApplicationID, s.Resource)
		}

		if empty {
			log.Debug("no more pending sessions, reaper exiting")
			return
		}
	}
}

// releaseResource closes a resource, logging failures instead of propagating
// them; a stuck release must never block the reaper or future stores.
func releaseResource(applicationID string, resource automation.Resource) {
	if resource == nil {
		return
	}
	if err := resource.Close(); err != nil {
		zap.S().Named("session").Errorw("failed to release session resource",
			"application_id", applicationID, "error", err)
	}
}
