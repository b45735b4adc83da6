package session

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/mcdev12/ludotime/go/internal/models"
)

const (
	// CodeLength is the number of symbols in a session code.
	CodeLength = 6
	// CodeAlphabet is the set of symbols a session code is drawn from.
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Directory hands out session codes and colour slots. Codes are not checked
// for uniqueness here; the store rejects a code that is already taken.
type Directory struct {
	rand io.Reader
}

// NewDirectory returns a Directory drawing from crypto/rand.
func NewDirectory() *Directory {
	return &Directory{rand: rand.Reader}
}

// NewCode returns a random session code.
func (d *Directory) NewCode() (string, error) {
	max := big.NewInt(int64(len(CodeAlphabet)))
	code := make([]byte, CodeLength)
	for i := range code {
		n, err := rand.Int(d.rand, max)
		if err != nil {
			return "", fmt.Errorf("generate session code: %w", err)
		}
		code[i] = CodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// ValidCode reports whether code has the session code shape.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// FirstFreeSlot returns the lowest unoccupied slot index, or -1 when the
// session is full.
func FirstFreeSlot(slots []models.Slot) int {
	for i, slot := range slots {
		if !slot.Occupied() {
			return i
		}
	}
	return -1
}
