package analytics

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestRecorderIncrementsCounters(t *testing.T) {
	client, mock := redismock.NewClientMock()
	rec := NewRecorder(client)
	ctx := context.Background()

	mock.ExpectIncr("analytics:event:7:views").SetVal(1)
	mock.ExpectIncr("analytics:event:7:shares").SetVal(1)
	mock.ExpectIncr("analytics:event:7:booking_attempts").SetVal(1)

	rec.EventViewed(ctx, 7)
	rec.EventShared(ctx, 7)
	rec.BookingAttempted(ctx, 7)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventSnapshotReadsAllCounters(t *testing.T) {
	client, mock := redismock.NewClientMock()
	rec := NewRecorder(client)

	mock.ExpectGet("analytics:event:3:views").SetVal("120")
	mock.ExpectGet("analytics:event:3:shares").SetVal("14")
	mock.ExpectGet("analytics:event:3:booking_attempts").RedisNil()

	snap := rec.EventSnapshot(context.Background(), 3)
	assert.Equal(t, Snapshot{Views: 120, Shares: 14, BookingAttempts: 0}, snap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilClientIsNoOp(t *testing.T) {
	rec := NewRecorder(nil)
	ctx := context.Background()

	rec.EventViewed(ctx, 1)
	rec.EventShared(ctx, 1)
	rec.BookingAttempted(ctx, 1)
	assert.Equal(t, Snapshot{}, rec.EventSnapshot(ctx, 1))
}
