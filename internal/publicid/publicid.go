// Package publicid generates the human-readable document numbers shown to users.
package publicid

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// ErrTaken is returned by an insert callback when the generated id collided.
var ErrTaken = errors.New("public id taken")

const maxAttempts = 5

// New generates a human-readable public ID, e.g. "prj-12345-6789".
func New(prefix string) (string, error) {
	a, err := randInt(10000, 99999)
	if err != nil {
		return "", err
	}
	b, err := randInt(1000, 9999)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%05d-%04d", prefix, a, b), nil
}

// Insert calls fn with fresh ids until it stops returning ErrTaken.
func Insert(ctx context.Context, prefix string, fn func(id string) error) error {
	for i := 0; i < maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, err := New(prefix)
		if err != nil {
			return err
		}
		err = fn(id)
		if errors.Is(err, ErrTaken) {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to generate unique %s id", prefix)
}

func randInt(min, max int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return 0, err
	}
	return min + n.Int64(), nil
}
