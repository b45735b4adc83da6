package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
)

// Roller produces dice values in 1..6.
type Roller interface {
	Roll() (int, error)
}

// RandomRoller rolls with crypto/rand so no client can predict another's dice.
type RandomRoller struct{}

func (RandomRoller) Roll() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(6))
	if err != nil {
		return 0, fmt.Errorf("roll dice: %w", err)
	}
	return int(n.Int64()) + 1, nil
}

// FixedRoller replays a sequence of values, repeating the last one. It is
// meant for demos and tests.
type FixedRoller struct {
	Values []int

	mu   sync.Mutex
	next int
}

func (r *FixedRoller) Roll() (int, error) {
	if len(r.Values) == 0 {
		return 0, fmt.Errorf("roll dice: no values configured")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.Values[r.next]
	if r.next < len(r.Values)-1 {
		r.next++
	}
	return v, nil
}
