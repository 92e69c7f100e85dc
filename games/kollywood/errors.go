package kollywood

import "errors"

var (
	ErrGameNotFound     = errors.New("game not found")
	ErrGameFull         = errors.New("game full")
	ErrNotHost          = errors.New("only the host may do that")
	ErrCellNotFound     = errors.New("cell not found")
	ErrCellLocked       = errors.New("cell locked")
	ErrCellNotOpen      = errors.New("cell not open")
	ErrEmptyGuess       = errors.New("empty guess")
	ErrInvalidCapacity  = errors.New("numPlayers must be 2..8")
	ErrGameStarted      = errors.New("game already started")
	ErrGameNotStarted   = errors.New("game not started")
	ErrGameFinished     = errors.New("game finished")
	ErrInvalidName      = errors.New("name must not be empty")
	ErrInvalidLetters   = errors.New("exactly one letter per category is required")
	ErrAlreadyJoined    = errors.New("already joined")
	ErrNotParticipant   = errors.New("not a participant in this game")
	ErrPlayerEliminated = errors.New("player already eliminated this round")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrBadPayload       = errors.New("malformed payload")
)

var errorCodes = map[error]string{
	ErrGameNotFound:     "GameNotFound",
	ErrGameFull:         "GameFull",
	ErrNotHost:          "NotHost",
	ErrCellNotFound:     "CellNotFound",
	ErrCellLocked:       "CellLocked",
	ErrCellNotOpen:      "CellNotOpen",
	ErrEmptyGuess:       "EmptyGuess",
	ErrInvalidCapacity:  "InvalidCapacity",
	ErrGameStarted:      "GameStarted",
	ErrGameNotStarted:   "GameNotStarted",
	ErrGameFinished:     "GameFinished",
	ErrInvalidName:      "InvalidName",
	ErrInvalidLetters:   "InvalidLetters",
	ErrAlreadyJoined:    "AlreadyJoined",
	ErrNotParticipant:   "NotParticipant",
	ErrPlayerEliminated: "PlayerEliminated",
	ErrUnknownEvent:     "UnknownEvent",
	ErrBadPayload:       "BadPayload",
}

// Code returns the stable identifier clients receive for err.
func Code(err error) string {
	for target, code := range errorCodes {
		if errors.Is(err, target) {
			return code
		}
	}
	return "Internal"
}
