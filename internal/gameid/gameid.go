// Package gameid mints sortable game identifiers: a UUIDv7 rendered as a
// 26 character Crockford base32 string.
package gameid

import (
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Crockford's base32, lowercase.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

const encodedLen = 26

// Generator mints ids. A nil random source uses crypto/rand.
type Generator struct {
	rand io.Reader
}

// NewGenerator creates a generator drawing randomness from r.
func NewGenerator(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// Generate creates a new game id.
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate creates a new game id using the generator's random source.
func (g *Generator) Generate() string {
	var (
		id  uuid.UUID
		err error
	)
	if g.rand != nil {
		id, err = uuid.NewV7FromReader(g.rand)
	} else {
		id, err = uuid.NewV7()
	}
	if err != nil {
		panic("gameid: failed to generate uuid: " + err.Error())
	}
	return Encode(id)
}

// Encode renders a UUID as 26 base32 characters. The 128 bits are
// left-padded with two zero bits, so the first character is always 0-7.
func Encode(id uuid.UUID) string {
	out := make([]byte, encodedLen)
	for i := range encodedLen {
		var v byte
		for b := range 5 {
			pos := i*5 + b - 2
			v <<= 1
			if pos >= 0 && id[pos/8]&(0x80>>(pos%8)) != 0 {
				v |= 1
			}
		}
		out[i] = alphabet[v]
	}
	return string(out)
}

// Parse decodes an id produced by Encode.
func Parse(s string) (uuid.UUID, error) {
	var id uuid.UUID
	if len(s) != encodedLen {
		return id, fmt.Errorf("game ID must be exactly %d characters, got %d", encodedLen, len(s))
	}
	if s[0] > '7' {
		return id, fmt.Errorf("game ID first character must be 0-7, got %c", s[0])
	}
	for i := range encodedLen {
		v := indexOf(s[i])
		if v < 0 {
			return id, fmt.Errorf("invalid character %c at position %d", s[i], i)
		}
		for b := range 5 {
			pos := i*5 + b - 2
			if pos >= 0 && v&(0x10>>b) != 0 {
				id[pos/8] |= 0x80 >> (pos % 8)
			}
		}
	}
	return id, nil
}

// Validate checks that s is a well-formed game id.
func Validate(s string) error {
	_, err := Parse(s)
	return err
}

func indexOf(c byte) int {
	for i := range len(alphabet) {
		if alphabet[i] == c {
			return i
		}
	}
	return -1
}
