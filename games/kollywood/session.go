package kollywood

import (
	"slices"
	"strings"
)

const (
	MinCapacity      = 2
	MaxCapacity      = 8
	DefaultMaxRounds = 5
)

type Status int

const (
	StatusLobby Status = iota
	StatusActive
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusFinished:
		return "finished"
	default:
		return "lobby"
	}
}

// Rules are the per-session constants shared by every session of a registry.
type Rules struct {
	MaxRounds   int
	PenaltyWord string
}

func (r Rules) withDefaults() Rules {
	if r.MaxRounds < 1 {
		r.MaxRounds = DefaultMaxRounds
	}
	if r.PenaltyWord == "" {
		r.PenaltyWord = DefaultPenaltyWord
	}
	return r
}

type Participant struct {
	ID         string
	Name       string
	Score      int
	Eliminated bool
}

// Session is the state of one game. It is not safe for concurrent use; all
// access goes through the owning Engine.
type Session struct {
	ID       string
	Capacity int

	rules        Rules
	participants map[string]*Participant
	order        []string // participant ids by join time
	hostID       string
	round        int
	status       Status
	boards       map[string]*Board
	strikes      map[string]StrikeTrack
	everJoined   bool
}

func newSession(id string, capacity int, rules Rules) *Session {
	return &Session{
		ID:           id,
		Capacity:     capacity,
		rules:        rules.withDefaults(),
		participants: make(map[string]*Participant),
		boards:       make(map[string]*Board),
		strikes:      make(map[string]StrikeTrack),
	}
}

func (s *Session) HostID() string { return s.hostID }
func (s *Session) Round() int     { return s.round }
func (s *Session) Status() Status { return s.status }

// Members returns participant ids in join order.
func (s *Session) Members() []string {
	return slices.Clone(s.order)
}

// abandoned reports whether everybody who joined has since left.
func (s *Session) abandoned() bool {
	return s.everJoined && len(s.order) == 0
}

func (s *Session) resetRound() {
	for _, id := range s.order {
		b := newBoard()
		s.boards[id] = &b
		s.strikes[id] = newStrikeTrack(s.rules.PenaltyWord)
		s.participants[id].Eliminated = false
	}
}

func (s *Session) rosterMessage() RosterChangedMessage {
	entries := make([]RosterEntry, 0, len(s.order))
	for _, id := range s.order {
		p := s.participants[id]
		entries = append(entries, RosterEntry{ID: p.ID, Name: p.Name, Score: p.Score})
	}
	return RosterChangedMessage{
		Type:         "roster-changed",
		Participants: entries,
		HostID:       s.hostID,
		Capacity:     s.Capacity,
	}
}

func (s *Session) cell(targetID string, idx int) (*Cell, error) {
	b, ok := s.boards[targetID]
	if !ok || !validIndex(idx) {
		return nil, ErrCellNotFound
	}
	return &b[idx], nil
}

func (s *Session) requireMember(id string) error {
	if _, ok := s.participants[id]; !ok {
		return ErrNotParticipant
	}
	return nil
}

func (s *Session) join(id, name string) (JoinAck, []any, error) {
	name = strings.TrimSpace(name)
	switch {
	case s.status == StatusFinished:
		return JoinAck{}, nil, ErrGameFinished
	case s.status == StatusActive:
		return JoinAck{}, nil, ErrGameStarted
	case name == "":
		return JoinAck{}, nil, ErrInvalidName
	}
	if _, ok := s.participants[id]; ok {
		return JoinAck{}, nil, ErrAlreadyJoined
	}
	if len(s.order) >= s.Capacity {
		return JoinAck{}, nil, ErrGameFull
	}

	s.participants[id] = &Participant{ID: id, Name: name}
	s.order = append(s.order, id)
	if s.hostID == "" {
		s.hostID = id
	}
	b := newBoard()
	s.boards[id] = &b
	s.strikes[id] = newStrikeTrack(s.rules.PenaltyWord)
	s.everJoined = true

	return JoinAck{HostID: s.hostID, SelfID: id}, []any{s.rosterMessage()}, nil
}

func (s *Session) start(caller string) ([]any, error) {
	if s.status == StatusFinished {
		return nil, ErrGameFinished
	}
	if caller == "" || caller != s.hostID {
		return nil, ErrNotHost
	}
	if s.status == StatusActive {
		return nil, ErrGameStarted
	}

	s.status = StatusActive
	s.round = 1
	s.resetRound()

	return []any{RoundStartedMessage{Type: "round-started", Round: s.round}}, nil
}

// setLetters ignores callers other than the host without reporting an error.
func (s *Session) setLetters(caller string, letters []string) ([]any, error) {
	if caller == "" || caller != s.hostID {
		return nil, nil
	}
	switch s.status {
	case StatusLobby:
		return nil, ErrGameNotStarted
	case StatusFinished:
		return nil, ErrGameFinished
	}
	normalized, err := normalizeLetters(letters)
	if err != nil {
		return nil, err
	}

	for _, id := range s.order {
		s.boards[id].open(normalized)
	}

	return []any{LettersRevealedMessage{Type: "letters-revealed", Letters: normalized[:]}}, nil
}

func (s *Session) lock(caller, targetID string, idx int) ([]any, error) {
	if s.status == StatusFinished {
		return nil, ErrGameFinished
	}
	if err := s.requireMember(caller); err != nil {
		return nil, err
	}
	c, err := s.cell(targetID, idx)
	if err != nil {
		return nil, err
	}
	if c.Status != CellOpen {
		return nil, ErrCellNotOpen
	}
	if c.LockHolder != "" && c.LockHolder != caller {
		return nil, ErrCellLocked
	}

	c.LockHolder = caller

	return []any{CellLockedMessage{
		Type:      "cell-locked",
		TargetID:  targetID,
		CellIndex: idx,
		HolderID:  caller,
	}}, nil
}

// unlock is a no-op unless caller holds the lock.
func (s *Session) unlock(caller, targetID string, idx int) []any {
	if s.status == StatusFinished || caller == "" {
		return nil
	}
	c, err := s.cell(targetID, idx)
	if err != nil || c.LockHolder != caller {
		return nil
	}

	c.LockHolder = ""

	return []any{CellUnlockedMessage{Type: "cell-unlocked", TargetID: targetID, CellIndex: idx}}
}

func (s *Session) guess(caller, targetID string, idx int, text string) ([]any, error) {
	if s.status == StatusFinished {
		return nil, ErrGameFinished
	}
	if err := s.requireMember(caller); err != nil {
		return nil, err
	}
	c, err := s.cell(targetID, idx)
	if err != nil {
		return nil, err
	}
	if c.Status != CellOpen {
		return nil, ErrCellNotOpen
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyGuess
	}

	if GuessMatches(c.Letter, text) {
		c.Answer = text
		c.Status = CellCorrect
		c.LockHolder = ""
		return []any{GuessResultMessage{
			Type:      "guess-result",
			TargetID:  targetID,
			CellIndex: idx,
			Status:    "correct",
			Text:      text,
		}}, nil
	}

	target := s.participants[targetID]
	track := s.strikes[targetID]
	if target.Eliminated || track.Empty() {
		return nil, ErrPlayerEliminated
	}

	removed, _ := track.pop()
	s.strikes[targetID] = track

	out := []any{
		StrikeMessage{
			Type:         "strike",
			TargetID:     targetID,
			RemovedToken: removed,
			Remaining:    len(track),
		},
		GuessResultMessage{
			Type:      "guess-result",
			TargetID:  targetID,
			CellIndex: idx,
			Status:    "wrong",
			Text:      text,
		},
	}

	if track.Empty() {
		target.Eliminated = true
		hostScore := 0
		if host, ok := s.participants[s.hostID]; ok {
			host.Score++
			hostScore = host.Score
		}
		out = append(out, PlayerEliminatedMessage{
			Type:      "player-eliminated",
			TargetID:  targetID,
			HostScore: hostScore,
		})
	}

	return out, nil
}

func (s *Session) nextRound(caller string) (NextRoundAck, []any, error) {
	if s.status == StatusFinished {
		return NextRoundAck{}, nil, ErrGameFinished
	}
	if caller == "" || caller != s.hostID {
		return NextRoundAck{}, nil, ErrNotHost
	}
	if s.status == StatusLobby {
		return NextRoundAck{}, nil, ErrGameNotStarted
	}

	if s.round >= s.rules.MaxRounds {
		results := s.results()
		s.status = StatusFinished
		return NextRoundAck{Final: results}, []any{GameOverMessage{Type: "game-over", Results: results}}, nil
	}

	s.round++
	s.resetRound()

	return NextRoundAck{}, []any{RoundChangedMessage{Type: "round-changed", Round: s.round}}, nil
}

// results ranks participants by score, keeping join order among ties.
func (s *Session) results() []Result {
	results := make([]Result, 0, len(s.order))
	for _, id := range s.order {
		p := s.participants[id]
		results = append(results, Result{Name: p.Name, Score: p.Score})
	}
	slices.SortStableFunc(results, func(a, b Result) int {
		return b.Score - a.Score
	})
	return results
}

// leave removes a participant along with every lock it held. Unknown ids are
// ignored.
func (s *Session) leave(id string) []any {
	if _, ok := s.participants[id]; !ok {
		return nil
	}

	var out []any
	for _, owner := range s.order {
		for _, idx := range s.boards[owner].releaseHeldBy(id) {
			if owner == id {
				continue
			}
			out = append(out, CellUnlockedMessage{Type: "cell-unlocked", TargetID: owner, CellIndex: idx})
		}
	}

	delete(s.participants, id)
	delete(s.boards, id)
	delete(s.strikes, id)
	s.order = slices.DeleteFunc(s.order, func(other string) bool { return other == id })

	if s.hostID == id {
		s.hostID = ""
		if len(s.order) > 0 {
			s.hostID = s.order[0]
		}
	}

	return append(out, s.rosterMessage())
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		ID:           s.ID,
		Capacity:     s.Capacity,
		Status:       s.status.String(),
		Round:        s.round,
		HostID:       s.hostID,
		Participants: make([]ParticipantView, 0, len(s.order)),
		Boards:       make(map[string][]CellView, len(s.boards)),
		Strikes:      make(map[string][]string, len(s.strikes)),
	}

	for _, id := range s.order {
		p := s.participants[id]
		snap.Participants = append(snap.Participants, ParticipantView{
			ID:         p.ID,
			Name:       p.Name,
			Score:      p.Score,
			Eliminated: p.Eliminated,
		})

		cells := make([]CellView, 0, BoardSize)
		for _, c := range s.boards[id] {
			cells = append(cells, CellView{
				Category:   c.Category.String(),
				Letter:     c.Letter,
				Answer:     c.Answer,
				Status:     c.Status.String(),
				LockHolder: c.LockHolder,
			})
		}
		snap.Boards[id] = cells
		snap.Strikes[id] = slices.Clone([]string(s.strikes[id]))
	}

	return snap
}
