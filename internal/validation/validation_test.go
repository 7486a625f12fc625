package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
)

type sampleItem struct {
	Quantity float64 `json:"quantity" validate:"gt=0"`
}

type sampleRequest struct {
	Slug  string       `json:"slug" validate:"required,slug"`
	Date  string       `json:"date" validate:"required,date"`
	Kind  string       `json:"kind" validate:"oneof=a b"`
	Items []sampleItem `json:"items" validate:"min=1,dive"`
}

func TestStruct(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		err := Struct(sampleRequest{Slug: "acme-build", Date: "2026-03-01", Kind: "a", Items: []sampleItem{{Quantity: 1}}})
		assert.NoError(t, err)
	})

	t.Run("reports json field paths", func(t *testing.T) {
		err := Struct(sampleRequest{Slug: "Bad Slug", Date: "03/01/2026", Kind: "c", Items: []sampleItem{{Quantity: 0}}})
		require.Error(t, err)

		var vErr *apperr.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Contains(t, vErr.Fields, "slug")
		assert.Equal(t, "must be a date in YYYY-MM-DD format", vErr.Fields["date"])
		assert.Equal(t, "must be one of: a b", vErr.Fields["kind"])
		assert.Equal(t, "must be greater than 0", vErr.Fields["items[0].quantity"])
	})
}

func TestDates(t *testing.T) {
	d, err := ParseDate("2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-28", FormatDate(d))

	none, err := ParseOptionalDate(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	empty := ""
	none, err = ParseOptionalDate(&empty)
	require.NoError(t, err)
	assert.Nil(t, none)

	assert.Nil(t, FormatOptionalDate(nil))

	ts := time.Date(2026, 5, 4, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), Truncate(ts))
}
