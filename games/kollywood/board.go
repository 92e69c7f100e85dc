/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package kollywood

import (
	"strings"
	"unicode/utf8"
)

// Category is the fixed position of a cell on every board.
type Category int

const (
	Hero Category = iota
	Heroine
	Song
	Movie
)

// BoardSize is the number of cells on a board, one per category.
const BoardSize = 4

var categoryNames = [BoardSize]string{"Hero", "Heroine", "Song", "Movie"}

func (c Category) String() string {
	if c < 0 || int(c) >= BoardSize {
		return "Unknown"
	}
	return categoryNames[c]
}

type CellStatus int

const (
	CellEmpty CellStatus = iota
	CellOpen
	CellCorrect
)

func (s CellStatus) String() string {
	switch s {
	case CellOpen:
		return "open"
	case CellCorrect:
		return "correct"
	default:
		return "empty"
	}
}

// Cell is one guessable slot. LockHolder is only set while the cell is open.
type Cell struct {
	Category   Category
	Letter     string
	Answer     string
	Status     CellStatus
	LockHolder string
}

// Board holds one cell per category, indexed by category position.
type Board [BoardSize]Cell

func newBoard() Board {
	var b Board
	for i := range b {
		b[i] = Cell{Category: Category(i)}
	}
	return b
}

func validIndex(idx int) bool {
	return idx >= 0 && idx < BoardSize
}

// open reveals the first letter of every cell and discards answers and locks.
func (b *Board) open(letters [BoardSize]string) {
	for i := range b {
		b[i].Letter = letters[i]
		b[i].Status = CellOpen
		b[i].Answer = ""
		b[i].LockHolder = ""
	}
}

// releaseHeldBy clears every lock owned by holder and returns the freed indexes.
func (b *Board) releaseHeldBy(holder string) []int {
	var freed []int
	for i := range b {
		if b[i].LockHolder == holder {
			b[i].LockHolder = ""
			freed = append(freed, i)
		}
	}
	return freed
}

// GuessMatches reports whether text answers a cell revealed with letter: the
// first character must equal the letter ignoring case and the answer must be
// at least two characters long.
func GuessMatches(letter, text string) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < 2 || letter == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(text)
	return strings.EqualFold(string(first), letter)
}

// normalizeLetters checks that exactly one letter is given per category.
func normalizeLetters(letters []string) ([BoardSize]string, error) {
	var out [BoardSize]string
	if len(letters) != BoardSize {
		return out, ErrInvalidLetters
	}
	for i, l := range letters {
		l = strings.TrimSpace(l)
		if utf8.RuneCountInString(l) != 1 {
			return out, ErrInvalidLetters
		}
		out[i] = l
	}
	return out, nil
}
