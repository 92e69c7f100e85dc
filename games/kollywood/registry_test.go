package kollywood

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRegistryCreateRejectsCapacity(t *testing.T) {
	r := NewRegistry(Options{})
	defer r.Close()

	for _, c := range []int{-1, 0, 1, 9, 100} {
		if _, err := r.Create(c); !errors.Is(err, ErrInvalidCapacity) {
			t.Fatalf("Create(%d): expected ErrInvalidCapacity, got %v", c, err)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistryCreateAndGet(t *testing.T) {
	r := NewRegistry(Options{})
	defer r.Close()

	id, err := r.Create(4)
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if len(id) != gameIDLength {
		t.Fatalf("expected %d-char id, got %q", gameIDLength, id)
	}

	e, err := r.Get(id)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if e.ID() != id {
		t.Fatalf("engine id %q != %q", e.ID(), id)
	}

	if _, err := r.Get("missing"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound, got %v", err)
	}
}

func TestRegistryConcurrentCreate(t *testing.T) {
	r := NewRegistry(Options{})
	defer r.Close()

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			id, err := r.Create(2)
			if err != nil {
				t.Errorf("Create err: %v", err)
				return
			}
			if _, err := r.Get(id); err != nil {
				t.Errorf("Get(%s) err: %v", id, err)
			}
		})
	}
	wg.Wait()

	if r.Len() != 50 {
		t.Fatalf("expected 50 sessions, got %d", r.Len())
	}
}

func TestRegistryRemoveRetiresEngine(t *testing.T) {
	r := NewRegistry(Options{})
	defer r.Close()

	id, _ := r.Create(2)
	e, _ := r.Get(id)
	r.Remove(id)

	if _, err := r.Get(id); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected ErrGameNotFound after Remove, got %v", err)
	}
	if _, err := e.Join("p1", "Alice"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected retired engine to report ErrGameNotFound, got %v", err)
	}
}

func TestRegistryReclaimsEmptiedSession(t *testing.T) {
	r := NewRegistry(Options{})
	defer r.Close()

	id, _ := r.Create(2)
	e, _ := r.Get(id)
	if _, err := e.Join("p1", "Alice"); err != nil {
		t.Fatalf("Join err: %v", err)
	}
	if _, err := e.Disconnect("p1"); err != nil {
		t.Fatalf("Disconnect err: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for r.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("emptied session was not reclaimed")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRegistryReapSkipsJoinedSessions(t *testing.T) {
	r := NewRegistry(Options{IdleTimeout: time.Minute})
	defer r.Close()

	idle, _ := r.Create(2)
	busy, _ := r.Create(2)
	e, _ := r.Get(busy)
	if _, err := e.Join("p1", "Alice"); err != nil {
		t.Fatalf("Join err: %v", err)
	}

	r.reapBefore(time.Now().Add(time.Hour))

	if _, err := r.Get(idle); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("expected idle session to be reaped, got %v", err)
	}
	if _, err := r.Get(busy); err != nil {
		t.Fatalf("joined session should survive reaping: %v", err)
	}
}

func TestRegistryReapTinyTimeout(t *testing.T) {
	r := NewRegistry(Options{IdleTimeout: time.Nanosecond})
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := r.Reap(ctx); err != nil {
		t.Fatalf("Reap err: %v", err)
	}
}
