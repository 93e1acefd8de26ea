package simpleblog

import (
	"context"
	"log/slog"
	"time"
)

// NoopEventSink is a no-operation implementation of EventSink.
// Useful for production when you don't need event handling or for testing.
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink.
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) BlogCreated(ctx context.Context, blog *Blog) error { return nil }

func (n *NoopEventSink) BlogUpdated(ctx context.Context, blog *Blog) error { return nil }

func (n *NoopEventSink) BlogDeleted(ctx context.Context, blogID int64) error { return nil }

func (n *NoopEventSink) BlogViewed(ctx context.Context, blogID int64, views int64) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other
// action. Useful for development and debugging.
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink.
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) BlogCreated(ctx context.Context, blog *Blog) error {
	l.logger.Info("blog created", "blog_id", blog.ID, "title", blog.Title)
	return nil
}

func (l *LoggingEventSink) BlogUpdated(ctx context.Context, blog *Blog) error {
	l.logger.Info("blog updated", "blog_id", blog.ID, "title", blog.Title)
	return nil
}

func (l *LoggingEventSink) BlogDeleted(ctx context.Context, blogID int64) error {
	l.logger.Info("blog deleted", "blog_id", blogID)
	return nil
}

func (l *LoggingEventSink) BlogViewed(ctx context.Context, blogID int64, views int64) error {
	l.logger.Info("blog viewed", "blog_id", blogID, "views", views)
	return nil
}

// NoopCache is a no-operation implementation of Cache. Minimal deployments
// run without a cache layer; every operation degrades to a no-op.
type NoopCache struct{}

// NewNoopCache creates a new no-operation cache.
func NewNoopCache() Cache {
	return &NoopCache{}
}

func (n *NoopCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }

func (n *NoopCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {}

func (n *NoopCache) Delete(ctx context.Context, keys ...string) {}

func (n *NoopCache) DeleteByPrefix(ctx context.Context, prefix string) {}
