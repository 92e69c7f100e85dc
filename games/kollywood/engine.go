package kollywood

import "sync"

// Outcome is the result of one engine operation: the payload acknowledged to
// the caller, the notifications for the whole session, and the participants
// those notifications go to.
type Outcome struct {
	Ack        any
	Broadcasts []any
	Recipients []string
}

type command struct {
	apply func(s *Session) (Outcome, error)
	reply chan result
}

type result struct {
	out Outcome
	err error
}

// Engine serializes every operation on a session through a single goroutine.
type Engine struct {
	session *Session

	commands chan command
	quit     chan struct{}
	stopOnce sync.Once

	transport Transport
	logf      func(format string, args ...any)
	onEmpty   func(id string)
}

func newEngine(s *Session, queueSize int, transport Transport, logf func(string, ...any), onEmpty func(string)) *Engine {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Engine{
		session:   s,
		commands:  make(chan command, queueSize),
		quit:      make(chan struct{}),
		transport: transport,
		logf:      logf,
		onEmpty:   onEmpty,
	}
}

func (e *Engine) ID() string {
	return e.session.ID
}

func (e *Engine) run() {
	for {
		select {
		case cmd := <-e.commands:
			out, err := cmd.apply(e.session)
			if err == nil {
				out.Recipients = e.session.Members()
				e.broadcast(out)
			}
			cmd.reply <- result{out: out, err: err}

			if e.session.abandoned() {
				e.logf("GAMES: Last participant left %s", e.session.ID)
				e.stop()
				if e.onEmpty != nil {
					e.onEmpty(e.session.ID)
				}
				return
			}

		case <-e.quit:
			return
		}
	}
}

// broadcast fans out from the engine goroutine so every connection sees
// notifications in the order they were applied. Transport.Send must not block.
func (e *Engine) broadcast(out Outcome) {
	if e.transport == nil {
		return
	}
	for _, msg := range out.Broadcasts {
		for _, id := range out.Recipients {
			if err := e.transport.Send(id, msg); err != nil {
				e.logf("ERROR: Delivering to %s in %s: %v", id, e.session.ID, err)
			}
		}
	}
}

// stop retires the engine. Pending and future operations fail with
// ErrGameNotFound.
func (e *Engine) stop() {
	e.stopOnce.Do(func() { close(e.quit) })
}

func (e *Engine) do(apply func(s *Session) (Outcome, error)) (Outcome, error) {
	cmd := command{apply: apply, reply: make(chan result, 1)}

	select {
	case e.commands <- cmd:
	case <-e.quit:
		return Outcome{}, ErrGameNotFound
	}

	select {
	case r := <-cmd.reply:
		return r.out, r.err
	case <-e.quit:
		// The final command of a retiring engine still gets its answer.
		select {
		case r := <-cmd.reply:
			return r.out, r.err
		default:
			return Outcome{}, ErrGameNotFound
		}
	}
}

func (e *Engine) Join(participantID, name string) (Outcome, error) {
	return e.do(func(s *Session) (Outcome, error) {
		ack, msgs, err := s.join(participantID, name)
		if err != nil {
			return Outcome{}, err
		}
		e.logf("GAMES: Player %q joined %s", name, s.ID)
		return Outcome{Ack: ack, Broadcasts: msgs}, nil
	})
}

func (e *Engine) StartGame(participantID string) (Outcome, error) {
	return e.do(func(s *Session) (Outcome, error) {
		msgs, err := s.start(participantID)
		if err != nil {
			return Outcome{}, err
		}
		e.logf("GAMES: Started %s with %d players", s.ID, len(s.order))
		return Outcome{Broadcasts: msgs}, nil
	})
}

func (e *Engine) SetLetters(participantID string, letters []string) (Outcome, error) {
	return e.do(func(s *Session) (Outcome, error) {
		msgs, err := s.setLetters(participantID, letters)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Broadcasts: msgs}, nil
	})
}

func (e *Engine) LockCell(callerID, targetID string, cellIndex int) (Outcome, error) {
	return e.do(func(s *Session) (Outcome, error) {
		msgs, err := s.lock(callerID, targetID, cellIndex)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Broadcasts: msgs}, nil
	})
}

func (e *Engine) UnlockCell(callerID, targetID string, cellIndex int) (Outcome, error) {
	return e.do(func(s *Session) (Outcome, error) {
		return Outcome{Broadcasts: s.unlock(callerID, targetID, cellIndex)}, nil
	})
}

func (e *Engine) SubmitGuess(callerID, targetID string, cellIndex int, text string) (Outcome, error) {
	return e.do(func(s *Session) (Outcome, error) {
		msgs, err := s.guess(callerID, targetID, cellIndex, text)
		if err != nil {
			return Outcome{}, err
		}
		for _, m := range msgs {
			if elim, ok := m.(PlayerEliminatedMessage); ok {
				e.logf("GAMES: %q eliminated in round %d of %s", s.participants[elim.TargetID].Name, s.round, s.ID)
			}
		}
		return Outcome{Broadcasts: msgs}, nil
	})
}

func (e *Engine) NextRound(participantID string) (Outcome, error) {
	return e.do(func(s *Session) (Outcome, error) {
		ack, msgs, err := s.nextRound(participantID)
		if err != nil {
			return Outcome{}, err
		}
		if s.status == StatusFinished {
			e.logf("GAMES: Finished %s after %d rounds", s.ID, s.round)
		}
		return Outcome{Ack: ack, Broadcasts: msgs}, nil
	})
}

func (e *Engine) GetState() (Snapshot, error) {
	out, err := e.do(func(s *Session) (Outcome, error) {
		return Outcome{Ack: s.snapshot()}, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return out.Ack.(Snapshot), nil
}

func (e *Engine) Disconnect(participantID string) (Outcome, error) {
	return e.do(func(s *Session) (Outcome, error) {
		msgs := s.leave(participantID)
		if msgs != nil {
			e.logf("GAMES: Player %s left %s", participantID, s.ID)
		}
		return Outcome{Broadcasts: msgs}, nil
	})
}
