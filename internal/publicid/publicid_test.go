package publicid

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	re := regexp.MustCompile(`^bid-\d{5}-\d{4}$`)
	for i := 0; i < 50; i++ {
		id, err := New("bid")
		require.NoError(t, err)
		assert.Regexp(t, re, id)
	}
}

func TestInsert_RetriesOnCollision(t *testing.T) {
	calls := 0
	err := Insert(context.Background(), "prj", func(id string) error {
		calls++
		if calls < 3 {
			return ErrTaken
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestInsert_GivesUp(t *testing.T) {
	calls := 0
	err := Insert(context.Background(), "prj", func(id string) error {
		calls++
		return ErrTaken
	})
	assert.Error(t, err)
	assert.Equal(t, maxAttempts, calls)
}

func TestInsert_PropagatesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	err := Insert(context.Background(), "prj", func(id string) error { return boom })
	assert.ErrorIs(t, err, boom)
}
