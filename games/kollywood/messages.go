package kollywood

// Broadcasts sent to every participant in a session.

type RosterEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type RosterChangedMessage struct {
	Type         string        `json:"type"` // "roster-changed"
	Participants []RosterEntry `json:"participants"`
	HostID       string        `json:"hostId"`
	Capacity     int           `json:"capacity"`
}

type RoundStartedMessage struct {
	Type  string `json:"type"` // "round-started"
	Round int    `json:"round"`
}

type LettersRevealedMessage struct {
	Type    string   `json:"type"` // "letters-revealed"
	Letters []string `json:"letters"`
}

type CellLockedMessage struct {
	Type      string `json:"type"` // "cell-locked"
	TargetID  string `json:"targetId"`
	CellIndex int    `json:"cellIndex"`
	HolderID  string `json:"holderId"`
}

type CellUnlockedMessage struct {
	Type      string `json:"type"` // "cell-unlocked"
	TargetID  string `json:"targetId"`
	CellIndex int    `json:"cellIndex"`
}

type GuessResultMessage struct {
	Type      string `json:"type"` // "guess-result"
	TargetID  string `json:"targetId"`
	CellIndex int    `json:"cellIndex"`
	Status    string `json:"status"` // "correct" or "wrong"
	Text      string `json:"text"`
}

type StrikeMessage struct {
	Type         string `json:"type"` // "strike"
	TargetID     string `json:"targetId"`
	RemovedToken string `json:"removedToken"`
	Remaining    int    `json:"remaining"`
}

type PlayerEliminatedMessage struct {
	Type      string `json:"type"` // "player-eliminated"
	TargetID  string `json:"targetId"`
	HostScore int    `json:"hostScore"`
}

type RoundChangedMessage struct {
	Type  string `json:"type"` // "round-changed"
	Round int    `json:"round"`
}

type GameOverMessage struct {
	Type    string   `json:"type"` // "game-over"
	Results []Result `json:"results"`
}

// Result is one line of the final standings.
type Result struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Acknowledgement payloads returned to the caller only.

type JoinAck struct {
	HostID string `json:"hostId"`
	SelfID string `json:"selfId"`
}

type NextRoundAck struct {
	Final []Result `json:"finalResults,omitempty"`
}

type ParticipantView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Score      int    `json:"score"`
	Eliminated bool   `json:"eliminated"`
}

type CellView struct {
	Category   string `json:"category"`
	Letter     string `json:"firstLetter,omitempty"`
	Answer     string `json:"answer,omitempty"`
	Status     string `json:"status"`
	LockHolder string `json:"lockHolder,omitempty"`
}

// Snapshot is a read-only copy of a session, safe to hand outside the engine.
type Snapshot struct {
	ID           string                `json:"id"`
	Capacity     int                   `json:"capacity"`
	Status       string                `json:"status"`
	Round        int                   `json:"round"`
	HostID       string                `json:"hostId"`
	Participants []ParticipantView     `json:"participants"`
	Boards       map[string][]CellView `json:"boards"`
	Strikes      map[string][]string   `json:"strikes"`
}
