package kollywood

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type sent struct {
	to  string
	msg any
}

type recordingTransport struct {
	mu   sync.Mutex
	sent []sent
	fail map[string]bool
}

func (r *recordingTransport) Send(connID string, msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[connID] {
		return errors.New("connection gone")
	}
	r.sent = append(r.sent, sent{to: connID, msg: msg})
	return nil
}

func (r *recordingTransport) take() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sent
	r.sent = nil
	return out
}

func newTestDispatcher(t *testing.T, capacity int) (*Dispatcher, *recordingTransport, string) {
	t.Helper()

	tr := &recordingTransport{fail: make(map[string]bool)}
	r := NewRegistry(Options{Transport: tr})
	t.Cleanup(r.Close)

	id, err := r.Create(capacity)
	if err != nil {
		t.Fatal(err)
	}
	return NewDispatcher(r), tr, id
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func ackOf(t *testing.T, msgs []sent, to string) Ack {
	t.Helper()
	for _, m := range msgs {
		if ack, ok := m.msg.(Ack); ok && m.to == to {
			return ack
		}
	}
	t.Fatalf("no ack sent to %s in %v", to, msgs)
	return Ack{}
}

func TestDispatch_UnknownSessionAcksSenderOnly(t *testing.T) {
	d, tr, _ := newTestDispatcher(t, 2)

	d.Dispatch(Event{RequestID: 7, SessionID: "nope", SenderID: "alice", Name: EventJoin, Payload: payload(t, joinPayload{Name: "Alice"})})

	msgs := tr.take()
	if len(msgs) != 1 {
		t.Fatalf("expected only the ack, got %v", msgs)
	}
	ack := ackOf(t, msgs, "alice")
	if ack.OK || ack.ID != 7 || ack.Code != "GameNotFound" {
		t.Fatalf("unexpected ack %+v", ack)
	}
}

func TestDispatch_JoinBroadcastsRoster(t *testing.T) {
	d, tr, id := newTestDispatcher(t, 2)

	d.Dispatch(Event{RequestID: 1, SessionID: id, SenderID: "alice", Name: EventJoin, Payload: payload(t, joinPayload{Name: "Alice"})})
	tr.take()
	d.Dispatch(Event{RequestID: 2, SessionID: id, SenderID: "bob", Name: EventJoin, Payload: payload(t, joinPayload{Name: "Bob"})})

	msgs := tr.take()
	ack := ackOf(t, msgs, "bob")
	if !ack.OK {
		t.Fatalf("join failed: %+v", ack)
	}
	if data := ack.Data.(JoinAck); data.HostID != "alice" || data.SelfID != "bob" {
		t.Fatalf("unexpected join ack %+v", data)
	}

	rosters := map[string]bool{}
	for _, m := range msgs {
		if _, ok := m.msg.(RosterChangedMessage); ok {
			rosters[m.to] = true
		}
	}
	if !rosters["alice"] || !rosters["bob"] {
		t.Fatalf("roster not broadcast to everyone: %v", rosters)
	}

	d.Dispatch(Event{RequestID: 3, SessionID: id, SenderID: "carol", Name: EventJoin, Payload: payload(t, joinPayload{Name: "Carol"})})
	if ack := ackOf(t, tr.take(), "carol"); ack.OK || ack.Code != "GameFull" {
		t.Fatalf("expected GameFull, got %+v", ack)
	}
}

func TestDispatch_EndToEnd(t *testing.T) {
	d, tr, id := newTestDispatcher(t, 2)

	events := []Event{
		{Name: EventJoin, SenderID: "alice", Payload: payload(t, joinPayload{Name: "Alice"})},
		{Name: EventJoin, SenderID: "bob", Payload: payload(t, joinPayload{Name: "Bob"})},
		{Name: EventStart, SenderID: "alice"},
		{Name: EventSetLetters, SenderID: "alice", Payload: payload(t, lettersPayload{Letters: []string{"R", "A", "S", "M"}})},
	}
	for i, ev := range events {
		ev.RequestID = int64(i)
		ev.SessionID = id
		d.Dispatch(ev)
		if ack := ackOf(t, tr.take(), ev.SenderID); !ack.OK {
			t.Fatalf("event %s failed: %+v", ev.Name, ack)
		}
	}

	d.Dispatch(Event{
		SessionID: id,
		SenderID:  "bob",
		Name:      EventSubmitGuess,
		Payload:   json.RawMessage(`{"targetId":"bob","cellIndex":0,"text":"Rajini"}`),
	})

	msgs := tr.take()
	if ack := ackOf(t, msgs, "bob"); !ack.OK {
		t.Fatalf("guess failed: %+v", ack)
	}
	var results int
	for _, m := range msgs {
		if res, ok := m.msg.(GuessResultMessage); ok {
			results++
			if res.Status != "correct" {
				t.Fatalf("expected correct, got %+v", res)
			}
		}
	}
	if results != 2 {
		t.Fatalf("expected guess-result for both players, got %d", results)
	}

	d.Dispatch(Event{SessionID: id, SenderID: "alice", Name: EventGetState})
	snap := ackOf(t, tr.take(), "alice").Data.(Snapshot)
	if snap.Boards["bob"][0].Status != "correct" {
		t.Fatalf("unexpected board %+v", snap.Boards["bob"])
	}
}

func TestDispatch_BadInput(t *testing.T) {
	d, tr, id := newTestDispatcher(t, 2)

	d.Dispatch(Event{SessionID: id, SenderID: "alice", Name: "dance"})
	if ack := ackOf(t, tr.take(), "alice"); ack.Code != "UnknownEvent" {
		t.Fatalf("expected UnknownEvent, got %+v", ack)
	}

	d.Dispatch(Event{SessionID: id, SenderID: "alice", Name: EventJoin, Payload: json.RawMessage(`{"name":`)})
	if ack := ackOf(t, tr.take(), "alice"); ack.Code != "BadPayload" {
		t.Fatalf("expected BadPayload, got %+v", ack)
	}

	d.Dispatch(Event{SessionID: id, SenderID: "alice", Name: EventLockCell, Payload: json.RawMessage(`{"targetId":"alice"}`)})
	if ack := ackOf(t, tr.take(), "alice"); ack.Code != "CellNotFound" {
		t.Fatalf("expected CellNotFound, got %+v", ack)
	}

	d.Dispatch(Event{SessionID: id, SenderID: "alice", Name: EventUnlockCell, Payload: json.RawMessage(`{"targetId":"alice"}`)})
	msgs := tr.take()
	if ack := ackOf(t, msgs, "alice"); !ack.OK {
		t.Fatalf("unlockCell without an index should be a quiet no-op, got %+v", ack)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected only the ack, got %v", msgs)
	}
}

func TestDispatch_DeliveryFailureKeepsState(t *testing.T) {
	d, tr, id := newTestDispatcher(t, 2)
	tr.fail["alice"] = true

	d.Dispatch(Event{SessionID: id, SenderID: "alice", Name: EventJoin, Payload: payload(t, joinPayload{Name: "Alice"})})

	e, err := d.registry.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := e.GetState()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Participants) != 1 || snap.HostID != "alice" {
		t.Fatalf("join should stick despite failed delivery: %+v", snap)
	}
}

func TestDispatch_DisconnectBroadcastsToRemaining(t *testing.T) {
	d, tr, id := newTestDispatcher(t, 3)
	for _, p := range []string{"alice", "bob"} {
		d.Dispatch(Event{SessionID: id, SenderID: p, Name: EventJoin, Payload: payload(t, joinPayload{Name: p})})
	}
	tr.take()

	d.Disconnect(id, "alice")

	msgs := tr.take()
	if len(msgs) != 1 || msgs[0].to != "bob" {
		t.Fatalf("expected one roster update for bob, got %v", msgs)
	}
	if roster := msgs[0].msg.(RosterChangedMessage); roster.HostID != "bob" {
		t.Fatalf("expected bob as host, got %+v", roster)
	}

	d.Disconnect("missing", "bob")
	if msgs := tr.take(); len(msgs) != 0 {
		t.Fatalf("disconnect from unknown session should be silent, got %v", msgs)
	}
}

// slowAckTransport stalls acks to one connection once armed.
type slowAckTransport struct {
	recordingTransport
	slow     string
	armed    atomic.Bool
	delaying chan struct{}
	once     sync.Once
}

func (s *slowAckTransport) Send(connID string, msg any) error {
	if _, ok := msg.(Ack); ok && connID == s.slow && s.armed.Load() {
		s.once.Do(func() { close(s.delaying) })
		time.Sleep(50 * time.Millisecond)
	}
	return s.recordingTransport.Send(connID, msg)
}

func TestDispatch_BroadcastsFollowEngineOrder(t *testing.T) {
	tr := &slowAckTransport{slow: "bob", delaying: make(chan struct{})}
	r := NewRegistry(Options{Transport: tr})
	t.Cleanup(r.Close)

	id, err := r.Create(3)
	if err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(r)

	setup := []Event{
		{Name: EventJoin, SenderID: "alice", Payload: payload(t, joinPayload{Name: "Alice"})},
		{Name: EventJoin, SenderID: "bob", Payload: payload(t, joinPayload{Name: "Bob"})},
		{Name: EventJoin, SenderID: "carol", Payload: payload(t, joinPayload{Name: "Carol"})},
		{Name: EventStart, SenderID: "alice"},
		{Name: EventSetLetters, SenderID: "alice", Payload: payload(t, lettersPayload{Letters: []string{"R", "A", "S", "M"}})},
	}
	for _, ev := range setup {
		ev.SessionID = id
		d.Dispatch(ev)
		if ack := ackOf(t, tr.take(), ev.SenderID); !ack.OK {
			t.Fatalf("event %s failed: %+v", ev.Name, ack)
		}
	}
	tr.armed.Store(true)

	var wg sync.WaitGroup
	wg.Go(func() {
		d.Dispatch(Event{SessionID: id, SenderID: "bob", Name: EventLockCell, Payload: json.RawMessage(`{"targetId":"alice","cellIndex":0}`)})
	})

	// Bob's lock is applied; his ack is still in flight.
	<-tr.delaying
	d.Dispatch(Event{SessionID: id, SenderID: "carol", Name: EventSubmitGuess, Payload: json.RawMessage(`{"targetId":"alice","cellIndex":0,"text":"Rajini"}`)})
	wg.Wait()

	var order []string
	for _, m := range tr.take() {
		if m.to != "alice" {
			continue
		}
		switch msg := m.msg.(type) {
		case CellLockedMessage:
			order = append(order, msg.Type)
		case GuessResultMessage:
			order = append(order, msg.Type)
		}
	}
	if len(order) != 2 || order[0] != "cell-locked" || order[1] != "guess-result" {
		t.Fatalf("alice saw %v, want [cell-locked guess-result]", order)
	}
}
