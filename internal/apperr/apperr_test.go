package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("bid not found"), http.StatusNotFound},
		{fmt.Errorf("wrap: %w", Conflict("dup")), http.StatusConflict},
		{InvalidState("locked"), http.StatusUnprocessableEntity},
		{Forbidden("no"), http.StatusForbidden},
		{Unauthorized("no"), http.StatusUnauthorized},
		{Invalid("name", "required"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(tc.err), tc.err.Error())
	}
}

func TestFromDB(t *testing.T) {
	err := FromDB(&pq.Error{Code: "23505"}, "code taken")
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "code taken", err.Error())

	other := errors.New("x")
	assert.Equal(t, other, FromDB(other, "code taken"))
	assert.Nil(t, FromDB(nil, "code taken"))
}

func TestValidationError(t *testing.T) {
	var v *ValidationError
	assert.Nil(t, v.OrNil())

	v = v.Add("b", "bad").Add("a", "missing")
	require.Error(t, v.OrNil())
	assert.Equal(t, "validation failed: a: missing; b: bad", v.Error())
}

func TestWrite(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("validation error includes fields", func(t *testing.T) {
		rr := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rr)
		c.Request = httptest.NewRequest(http.MethodPost, "/x", nil)

		Write(c, Invalid("minutes", "must be between 1 and 1440"))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, false, body["ok"])
		assert.Equal(t, "must be between 1 and 1440", body["fields"].(map[string]any)["minutes"])
	})

	t.Run("internal errors are masked", func(t *testing.T) {
		rr := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rr)
		c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

		Write(c, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Contains(t, rr.Body.String(), "internal error")
		assert.NotContains(t, rr.Body.String(), "connection refused")
	})
}
