// Package paging parses limit/offset query parameters.
package paging

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/groundwork-cm/groundwork-backend/internal/apperr"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Params struct {
	Limit  int
	Offset int
}

// FromQuery reads ?limit= and ?offset=.
func FromQuery(c *gin.Context) (Params, error) {
	p := Params{Limit: DefaultLimit}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxLimit {
			return p, apperr.Invalid("limit", "must be between 1 and "+strconv.Itoa(MaxLimit))
		}
		p.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, apperr.Invalid("offset", "must be a non-negative integer")
		}
		p.Offset = n
	}
	return p, nil
}

// Normalize clamps values coming from non-HTTP callers.
func (p Params) Normalize() Params {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// NextOffset returns the offset of the following page, or nil when the page was short.
func (p Params) NextOffset(returned int) *int {
	if returned < p.Limit {
		return nil
	}
	n := p.Offset + returned
	return &n
}
