// Package roomcode generates and parses the six-character codes players use
// to join a room.
package roomcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// Length is the number of characters in a room code.
const Length = 6

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// codeRegex matches six uppercase letters or digits, e.g. K3F9QZ.
var codeRegex = regexp.MustCompile(`^[A-Z0-9]{6}$`)

var (
	ErrEmptyCode   = errors.New("roomcode: code is required")
	ErrInvalidCode = errors.New("roomcode: invalid code format")
)

// New returns a random room code.
func New() (string, error) {
	var b strings.Builder
	b.Grow(Length)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < Length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("roomcode: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Parse normalizes user input (trimmed, upper-cased) and validates it.
func Parse(input string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(input))
	if code == "" {
		return "", ErrEmptyCode
	}
	if !codeRegex.MatchString(code) {
		return "", fmt.Errorf("%w: %s (expected %d letters or digits)", ErrInvalidCode, input, Length)
	}
	return code, nil
}
