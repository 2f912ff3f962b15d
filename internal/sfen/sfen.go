// Package sfen implements the SFEN-style board notation used on the wire:
// a 9x9 board field, a turn field, a captured-pieces field and an optional
// shared stock field, separated by single spaces.
package sfen

import (
	"fmt"
	"strconv"
	"strings"
)

// Initial is the even-game starting position.
const Initial = "lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL b -"

const (
	pieceLetters      = "plnsgbrk"
	promotableLetters = "plnsbr"
)

// hand/stock serialization priority. Black first, then white.
var (
	blackHandOrder = []string{"P", "L", "N", "S", "G", "B", "R", "K"}
	whiteHandOrder = []string{"p", "l", "n", "s", "g", "b", "r", "k"}
	stockOrder     = []string{"K", "R", "B", "G", "S", "N", "L", "P", "k", "r", "b", "g", "s", "n", "l", "p"}
)

// Position is the parsed form of a notation string. Empty cells are "".
// A board token is one letter, optionally prefixed with "+" for promotion;
// letter case marks the side (uppercase = black, the first player).
// Hands are per-side piece counts; Stock is a shared, side-less pool.
type Position struct {
	Board     [9][9]string
	Turn      string
	HandBlack map[string]int
	HandWhite map[string]int
	Stock     map[string]int
}

// ParseError reports a malformed notation string.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return "sfen: " + e.Msg }

func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...)}
}

func isPieceLetter(c byte) bool {
	return strings.ContainsRune(pieceLetters, rune(lower(c)))
}

func isPromotable(c byte) bool {
	return strings.ContainsRune(promotableLetters, rune(lower(c)))
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

// Parse decodes a notation string into a Position. The grid is always
// exactly 9x9 on success; short rows are padded with empty cells.
func Parse(text string) (*Position, error) {
	parts := strings.Split(strings.TrimSpace(text), " ")
	if len(parts) < 3 {
		return nil, parseErrorf("expected board, turn and hand fields, got %d field(s)", len(parts))
	}
	if len(parts) > 4 {
		return nil, parseErrorf("too many fields: %d", len(parts))
	}

	p := &Position{
		HandBlack: map[string]int{},
		HandWhite: map[string]int{},
		Stock:     map[string]int{},
	}

	rows := strings.Split(parts[0], "/")
	if len(rows) != 9 {
		return nil, parseErrorf("expected 9 board rows, got %d", len(rows))
	}
	for y, row := range rows {
		x := 0
		for i := 0; i < len(row); i++ {
			c := row[i]
			switch {
			case c >= '1' && c <= '9':
				n := int(c - '0')
				if x+n > 9 {
					return nil, parseErrorf("row %d overflows 9 cells", y+1)
				}
				x += n
			case c == '+':
				if i+1 >= len(row) {
					return nil, parseErrorf("row %d: promotion marker without a piece", y+1)
				}
				next := row[i+1]
				if !isPromotable(next) {
					return nil, parseErrorf("row %d: piece %q cannot be promoted", y+1, string(next))
				}
				if x >= 9 {
					return nil, parseErrorf("row %d overflows 9 cells", y+1)
				}
				p.Board[y][x] = "+" + string(next)
				x++
				i++
			case isPieceLetter(c):
				if x >= 9 {
					return nil, parseErrorf("row %d overflows 9 cells", y+1)
				}
				p.Board[y][x] = string(c)
				x++
			default:
				return nil, parseErrorf("row %d: unrecognized character %q", y+1, string(c))
			}
		}
		// anything the row left unsaid is empty
	}

	turn := parts[1]
	if turn != "b" && turn != "w" {
		return nil, parseErrorf("invalid turn field %q", turn)
	}
	p.Turn = turn

	if err := parseCounts(parts[2], func(letter string, count int) {
		if isUpper(letter[0]) {
			p.HandBlack[letter] += count
		} else {
			p.HandWhite[letter] += count
		}
	}); err != nil {
		return nil, err
	}

	if len(parts) == 4 {
		if err := parseCounts(parts[3], func(letter string, count int) {
			p.Stock[letter] += count
		}); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// parseCounts scans a run-length piece field like "2Pb3p" or "-".
func parseCounts(field string, add func(letter string, count int)) error {
	if field == "" {
		return parseErrorf("empty piece-count field")
	}
	if field == "-" {
		return nil
	}
	count := 0
	for i := 0; i < len(field); i++ {
		c := field[i]
		switch {
		case c >= '0' && c <= '9':
			count = count*10 + int(c-'0')
		case isPieceLetter(c):
			n := count
			if n == 0 {
				n = 1
			}
			add(string(c), n)
			count = 0
		default:
			return parseErrorf("piece-count field: unrecognized character %q", string(c))
		}
	}
	if count != 0 {
		return parseErrorf("piece-count field: trailing count %d without a piece", count)
	}
	return nil
}

// Serialize is the inverse of Parse. Hand and stock entries come out in a
// fixed priority order, so serializing a parse result is canonical.
func (p *Position) Serialize() string {
	var b strings.Builder
	for y := 0; y < 9; y++ {
		if y > 0 {
			b.WriteByte('/')
		}
		empties := 0
		for x := 0; x < 9; x++ {
			cell := p.Board[y][x]
			if cell == "" {
				empties++
				continue
			}
			if empties > 0 {
				b.WriteString(strconv.Itoa(empties))
				empties = 0
			}
			b.WriteString(cell)
		}
		if empties > 0 {
			b.WriteString(strconv.Itoa(empties))
		}
	}

	b.WriteByte(' ')
	b.WriteString(p.Turn)
	b.WriteByte(' ')
	b.WriteString(serializeCounts(p.HandBlack, p.HandWhite))

	if len(p.Stock) > 0 {
		b.WriteByte(' ')
		b.WriteString(countsInOrder(p.Stock, stockOrder))
	}
	return b.String()
}

func serializeCounts(black, white map[string]int) string {
	out := countsInOrder(black, blackHandOrder) + countsInOrder(white, whiteHandOrder)
	if out == "" {
		return "-"
	}
	return out
}

func countsInOrder(counts map[string]int, order []string) string {
	var b strings.Builder
	for _, letter := range order {
		n := counts[letter]
		if n <= 0 {
			continue
		}
		if n > 1 {
			b.WriteString(strconv.Itoa(n))
		}
		b.WriteString(letter)
	}
	return b.String()
}

// Mirror flips the position to the second player's perspective: the cell
// sequence is reversed end to end and every board and hand token changes
// side. Counts, the turn marker and the stock pool are untouched.
// Mirror is its own inverse.
func Mirror(p *Position) *Position {
	m := &Position{
		Turn:      p.Turn,
		HandBlack: map[string]int{},
		HandWhite: map[string]int{},
		Stock:     map[string]int{},
	}
	for y := 0; y < 9; y++ {
		for x := 0; x < 9; x++ {
			m.Board[y][x] = swapCaseToken(p.Board[8-y][8-x])
		}
	}
	for letter, n := range p.HandWhite {
		m.HandBlack[swapCaseToken(letter)] = n
	}
	for letter, n := range p.HandBlack {
		m.HandWhite[swapCaseToken(letter)] = n
	}
	for letter, n := range p.Stock {
		m.Stock[letter] = n
	}
	return m
}

func swapCaseToken(tok string) string {
	if tok == "" {
		return ""
	}
	out := []byte(tok)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z':
			out[i] = c - ('a' - 'A')
		case c >= 'A' && c <= 'Z':
			out[i] = c + ('a' - 'A')
		}
	}
	return string(out)
}
