package kollywood

// DefaultPenaltyWord spells out the strike track every player starts a round with.
const DefaultPenaltyWord = "KOLLYWOOD"

// StrikeTrack is a player's remaining penalty tokens. Wrong guesses against the
// player remove tokens from the front; an empty track eliminates the player.
type StrikeTrack []string

func newStrikeTrack(word string) StrikeTrack {
	t := make(StrikeTrack, 0, len(word))
	for _, r := range word {
		t = append(t, string(r))
	}
	return t
}

// pop removes the front token. ok is false when the track is already empty.
func (t *StrikeTrack) pop() (token string, ok bool) {
	if len(*t) == 0 {
		return "", false
	}
	token = (*t)[0]
	*t = (*t)[1:]
	return token, true
}

func (t StrikeTrack) Empty() bool {
	return len(t) == 0
}
