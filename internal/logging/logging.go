package logging

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	tenantIDKey
)

// Setup configures the standard logrus logger.
func Setup(level, format string) {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// WithRequestID stores the request id for FromContext.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey, rid)
}

// WithTenantID stores the tenant id for FromContext.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey).(string)
	return rid
}

// FromContext returns an entry tagged with the request and tenant ids found in ctx.
func FromContext(ctx context.Context) *log.Entry {
	fields := log.Fields{}
	if rid, ok := ctx.Value(requestIDKey).(string); ok && rid != "" {
		fields["request_id"] = rid
	}
	if tid, ok := ctx.Value(tenantIDKey).(string); ok && tid != "" {
		fields["tenant_id"] = tid
	}
	return log.WithFields(fields)
}
