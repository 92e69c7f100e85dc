package kollywood

import (
	"context"
	"crypto/rand"
	"sync"
	"time"
)

const (
	gameIDLength     = 8
	DefaultQueueSize = 64

	minReapInterval = time.Second
)

// Options configures a Registry. The zero value is usable.
type Options struct {
	Rules     Rules
	QueueSize int

	// IdleTimeout is how long a session may sit with nobody ever joining
	// before Reap drops it. Zero disables reaping.
	IdleTimeout time.Duration

	// Transport receives every session's broadcasts. Nil drops them.
	Transport Transport

	Logf func(format string, args ...any)
}

type entry struct {
	engine    *Engine
	createdAt time.Time
}

// Registry maps game ids to the engines that own them, so each game is its
// own isolated session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]entry
	opts     Options
}

func NewRegistry(opts Options) *Registry {
	opts.Rules = opts.Rules.withDefaults()
	if opts.QueueSize < 1 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}
	return &Registry{
		sessions: make(map[string]entry),
		opts:     opts,
	}
}

// Create allocates a new lobby session and starts its engine.
func (r *Registry) Create(capacity int) (string, error) {
	if capacity < MinCapacity || capacity > MaxCapacity {
		return "", ErrInvalidCapacity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newGameIDLocked()
	e := newEngine(newSession(id, capacity, r.opts.Rules), r.opts.QueueSize, r.opts.Transport, r.opts.Logf, r.Remove)
	r.sessions[id] = entry{engine: e, createdAt: time.Now()}
	go e.run()

	r.opts.Logf("GAMES: Created game %s for %d players", id, capacity)

	return id, nil
}

func (r *Registry) Get(id string) (*Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ent, ok := r.sessions[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return ent.engine, nil
}

// Remove drops a session and retires its engine. Unknown ids are ignored.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	ent, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		ent.engine.stop()
		r.opts.Logf("GAMES: Removed game %s", id)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close retires every session.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, ent := range r.sessions {
		ent.engine.stop()
		delete(r.sessions, id)
	}
}

// Reap periodically removes sessions that nobody joined within the idle
// timeout. It returns when ctx is done.
func (r *Registry) Reap(ctx context.Context) error {
	if r.opts.IdleTimeout <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(max(r.opts.IdleTimeout/2, minReapInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r.reapBefore(now.Add(-r.opts.IdleTimeout))
		}
	}
}

func (r *Registry) reapBefore(cutoff time.Time) {
	r.mu.RLock()
	var stale []string
	for id, ent := range r.sessions {
		if ent.createdAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		e, err := r.Get(id)
		if err != nil {
			continue
		}
		// Decided inside the engine so it cannot race a join.
		_, _ = e.do(func(s *Session) (Outcome, error) {
			if !s.everJoined {
				r.opts.Logf("GAMES: Reaping idle game %s", id)
				r.Remove(id)
			}
			return Outcome{}, nil
		})
	}
}

// newGameIDLocked generates a crypto-random game id that does not collide
// with an existing game.
func (r *Registry) newGameIDLocked() string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	const maxByte = byte(255 - (256 % len(letters)))

	for {
		out := make([]byte, 0, gameIDLength)
		buf := make([]byte, gameIDLength*2)

		for len(out) < gameIDLength {
			if _, err := rand.Read(buf); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}
			for _, b := range buf {
				if b <= maxByte && len(out) < gameIDLength {
					out = append(out, letters[int(b)%len(letters)])
				}
			}
		}

		id := string(out)
		if _, exists := r.sessions[id]; !exists {
			return id
		}
	}
}
