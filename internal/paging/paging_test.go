package paging

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctxWithQuery(q string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/x?"+q, nil)
	return c
}

func TestFromQuery(t *testing.T) {
	p, err := FromQuery(ctxWithQuery(""))
	require.NoError(t, err)
	assert.Equal(t, Params{Limit: DefaultLimit}, p)

	p, err = FromQuery(ctxWithQuery("limit=10&offset=20"))
	require.NoError(t, err)
	assert.Equal(t, Params{Limit: 10, Offset: 20}, p)

	_, err = FromQuery(ctxWithQuery("limit=500"))
	assert.Error(t, err)

	_, err = FromQuery(ctxWithQuery("offset=-1"))
	assert.Error(t, err)
}

func TestNextOffset(t *testing.T) {
	p := Params{Limit: 10, Offset: 20}
	assert.Nil(t, p.NextOffset(3))
	if next := p.NextOffset(10); assert.NotNil(t, next) {
		assert.Equal(t, 30, *next)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Params{Limit: DefaultLimit}, Params{Limit: 0, Offset: -5}.Normalize())
	assert.Equal(t, MaxLimit, Params{Limit: 1000}.Normalize().Limit)
}
