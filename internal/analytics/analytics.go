// Package analytics records lightweight engagement counters in Redis.
// Counters are advisory: every recorder method degrades to a no-op when
// Redis is unavailable, and failures are never surfaced to callers
// beyond a log line.
package analytics

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

const (
	keyViews    = "analytics:event:%d:views"
	keyShares   = "analytics:event:%d:shares"
	keyAttempts = "analytics:event:%d:booking_attempts"
)

// Recorder increments per-event engagement counters. A nil client makes
// every method a no-op so the API keeps working without Redis.
type Recorder struct {
	client *redis.Client
}

func NewRecorder(client *redis.Client) *Recorder {
	return &Recorder{client: client}
}

// Snapshot is the counter set returned to organizers.
type Snapshot struct {
	Views           int64 `json:"views"`
	Shares          int64 `json:"shares"`
	BookingAttempts int64 `json:"bookingAttempts"`
}

// EventViewed bumps the view counter for an event.
func (r *Recorder) EventViewed(ctx context.Context, eventID uint64) {
	r.incr(ctx, fmt.Sprintf(keyViews, eventID))
}

// EventShared bumps the share counter for an event.
func (r *Recorder) EventShared(ctx context.Context, eventID uint64) {
	r.incr(ctx, fmt.Sprintf(keyShares, eventID))
}

// BookingAttempted bumps the attempt counter; recorded before the
// booking transaction runs, so failed attempts count too.
func (r *Recorder) BookingAttempted(ctx context.Context, eventID uint64) {
	r.incr(ctx, fmt.Sprintf(keyAttempts, eventID))
}

// EventSnapshot reads all counters for an event. Missing keys read as
// zero; a Redis outage returns a zero snapshot rather than an error.
func (r *Recorder) EventSnapshot(ctx context.Context, eventID uint64) Snapshot {
	if r.client == nil {
		return Snapshot{}
	}
	var snap Snapshot
	snap.Views = r.readCounter(ctx, fmt.Sprintf(keyViews, eventID))
	snap.Shares = r.readCounter(ctx, fmt.Sprintf(keyShares, eventID))
	snap.BookingAttempts = r.readCounter(ctx, fmt.Sprintf(keyAttempts, eventID))
	return snap
}

func (r *Recorder) incr(ctx context.Context, key string) {
	if r.client == nil {
		return
	}
	if err := r.client.Incr(ctx, key).Err(); err != nil {
		log.Printf("⚠️  analytics incr %s failed: %v", key, err)
	}
}

func (r *Recorder) readCounter(ctx context.Context, key string) int64 {
	val, err := r.client.Get(ctx, key).Int64()
	if err != nil && err != redis.Nil {
		log.Printf("⚠️  analytics read %s failed: %v", key, err)
	}
	return val
}
