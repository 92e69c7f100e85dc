package kollywood

import (
	"encoding/json"
	"errors"
)

// Transport delivers messages to a single connection. Connection ids are the
// participant ids used by the engine.
type Transport interface {
	Send(connID string, msg any) error
}

// Inbound event names.
const (
	EventJoin        = "join"
	EventStart       = "start"
	EventSetLetters  = "setLetters"
	EventLockCell    = "lockCell"
	EventUnlockCell  = "unlockCell"
	EventSubmitGuess = "submitGuess"
	EventNextRound   = "nextRound"
	EventGetState    = "getState"
)

// Event is one inbound request from a connection.
type Event struct {
	RequestID int64
	SessionID string
	SenderID  string
	Name      string
	Payload   json.RawMessage
}

// Ack is the one reply every Event receives.
type Ack struct {
	Type  string `json:"type"` // "ack"
	ID    int64  `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type joinPayload struct {
	Name string `json:"name"`
}

type lettersPayload struct {
	Letters []string `json:"letters"`
}

type cellPayload struct {
	TargetID  string `json:"targetId"`
	CellIndex *int   `json:"cellIndex"`
	Text      string `json:"text,omitempty"`
}

// Dispatcher routes events to the owning session's engine and acknowledges
// the sender. Broadcasts leave from the engine itself through the registry's
// transport.
type Dispatcher struct {
	registry  *Registry
	transport Transport
	logf      func(format string, args ...any)
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		transport: registry.opts.Transport,
		logf:      registry.opts.Logf,
	}
}

// Dispatch handles ev and acknowledges the sender.
func (d *Dispatcher) Dispatch(ev Event) {
	out, err := d.handle(ev)

	ack := Ack{Type: "ack", ID: ev.RequestID, OK: err == nil}
	if err != nil {
		ack.Error = err.Error()
		ack.Code = Code(err)
	} else {
		ack.Data = out.Ack
	}
	d.send(ev.SenderID, ack)
}

// Disconnect removes senderID from the session. Whoever remains hears about
// it from the engine.
func (d *Dispatcher) Disconnect(sessionID, senderID string) {
	e, err := d.registry.Get(sessionID)
	if err != nil {
		return
	}
	_, _ = e.Disconnect(senderID)
}

func (d *Dispatcher) handle(ev Event) (Outcome, error) {
	e, err := d.registry.Get(ev.SessionID)
	if err != nil {
		return Outcome{}, err
	}

	switch ev.Name {
	case EventJoin:
		var p joinPayload
		if err := decode(ev.Payload, &p); err != nil {
			return Outcome{}, err
		}
		return e.Join(ev.SenderID, p.Name)

	case EventStart:
		return e.StartGame(ev.SenderID)

	case EventSetLetters:
		var p lettersPayload
		if err := decode(ev.Payload, &p); err != nil {
			return Outcome{}, err
		}
		return e.SetLetters(ev.SenderID, p.Letters)

	case EventLockCell, EventUnlockCell, EventSubmitGuess:
		var p cellPayload
		if err := decode(ev.Payload, &p); err != nil {
			return Outcome{}, err
		}
		if p.CellIndex == nil {
			// unlockCell never fails; a missing index just matches no lock.
			if ev.Name == EventUnlockCell {
				return Outcome{}, nil
			}
			return Outcome{}, ErrCellNotFound
		}
		switch ev.Name {
		case EventLockCell:
			return e.LockCell(ev.SenderID, p.TargetID, *p.CellIndex)
		case EventUnlockCell:
			return e.UnlockCell(ev.SenderID, p.TargetID, *p.CellIndex)
		default:
			return e.SubmitGuess(ev.SenderID, p.TargetID, *p.CellIndex, p.Text)
		}

	case EventNextRound:
		return e.NextRound(ev.SenderID)

	case EventGetState:
		snap, err := e.GetState()
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Ack: snap}, nil
	}

	return Outcome{}, ErrUnknownEvent
}

// send is fire-and-forget: a failed delivery never undoes a state change.
func (d *Dispatcher) send(connID string, msg any) {
	if d.transport == nil {
		return
	}
	if err := d.transport.Send(connID, msg); err != nil {
		d.logf("ERROR: Delivering to %s: %v", connID, err)
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Join(ErrBadPayload, err)
	}
	return nil
}
