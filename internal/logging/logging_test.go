package logging

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	ctx := WithTenantID(WithRequestID(context.Background(), "rid-1"), "tenant-1")

	entry := FromContext(ctx)
	assert.Equal(t, "rid-1", entry.Data["request_id"])
	assert.Equal(t, "tenant-1", entry.Data["tenant_id"])
	assert.Equal(t, "rid-1", RequestID(ctx))

	empty := FromContext(context.Background())
	assert.Empty(t, empty.Data)
}

func TestSetup(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	Setup("debug", "json")
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	_, isJSON := log.StandardLogger().Formatter.(*log.JSONFormatter)
	assert.True(t, isJSON)

	Setup("nonsense", "")
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}
