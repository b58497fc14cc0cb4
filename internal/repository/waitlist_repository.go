package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/eventhorizon/eventhorizon/internal/model"
)

// WaitlistRepo manages the per-(event, tier) waitlist. Entries expire
// seven days after creation, and notified entries that blow their
// response deadline are skipped in future drains; both transitions are
// applied lazily by ExpireStale before the rows are consulted, since
// nothing sweeps the table in the background.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a WaitlistRepo bound to the given database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

const waitlistColumns = `w.id, w.user_id, w.event_id, w.tier_name, w.quantity, w.max_price,
	w.status, w.priority, w.notification_sent, w.notification_sent_at,
	w.expires_at, w.response_deadline, w.created_at`

func scanWaitlist(row interface{ Scan(...any) error }) (model.WaitlistEntry, error) {
	var w model.WaitlistEntry
	var sentAt sql.NullTime
	err := row.Scan(&w.ID, &w.UserID, &w.EventID, &w.TierName, &w.Quantity, &w.MaxPrice,
		&w.Status, &w.Priority, &w.NotificationSent, &sentAt,
		&w.ExpiresAt, &w.ResponseDeadline, &w.CreatedAt)
	if sentAt.Valid {
		w.NotificationSentAt = &sentAt.Time
	}
	return w, err
}

// Create inserts a fresh active entry. The response deadline is set
// eagerly; it only becomes meaningful once the entry is notified.
func (r *WaitlistRepo) Create(ctx context.Context, w *model.WaitlistEntry) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO waitlist_entries
		(user_id, event_id, tier_name, quantity, max_price, status, priority, expires_at, response_deadline)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		w.UserID, w.EventID, w.TierName, w.Quantity, w.MaxPrice,
		w.Status, w.Priority, w.ExpiresAt, w.ResponseDeadline)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	w.ID = uint64(id)
	return nil
}

// ExpireStale flips overdue rows for one (event, tier) to expired:
// active entries past their expiry, and notified entries past their
// response deadline. Run before any read that depends on entry state.
func (r *WaitlistRepo) ExpireStale(ctx context.Context, eventID uint64, tierName string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE waitlist_entries SET status = ?
		WHERE event_id = ? AND tier_name = ?
		AND ((status = ? AND expires_at <= ?) OR (status = ? AND response_deadline <= ?))`,
		model.WaitlistStatusExpired, eventID, tierName,
		model.WaitlistStatusActive, now, model.WaitlistStatusNotified, now)
	return err
}

// HasActiveEntry reports whether the user already waits on this tier.
func (r *WaitlistRepo) HasActiveEntry(ctx context.Context, userID, eventID uint64, tierName string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM waitlist_entries w
		WHERE w.user_id = ? AND w.event_id = ? AND w.tier_name = ? AND w.status = ?`,
		userID, eventID, tierName, model.WaitlistStatusActive).Scan(&n)
	return n > 0, err
}

// NextInLine selects the active entries eligible for notification: those
// whose requested quantity fits within the available count, ordered by
// priority descending then creation time ascending (FIFO within equal
// priority), capped at limit. User name and email are joined in for the
// notification send.
func (r *WaitlistRepo) NextInLine(ctx context.Context, eventID uint64, tierName string, available uint32, limit int) ([]model.WaitlistEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+waitlistColumns+`, u.name, u.email
		FROM waitlist_entries w JOIN users u ON u.id = w.user_id
		WHERE w.event_id = ? AND w.tier_name = ? AND w.status = ? AND w.quantity <= ?
		ORDER BY w.priority DESC, w.created_at ASC
		LIMIT ?`,
		eventID, tierName, model.WaitlistStatusActive, available, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.WaitlistEntry
	for rows.Next() {
		var w model.WaitlistEntry
		var sentAt sql.NullTime
		if err := rows.Scan(&w.ID, &w.UserID, &w.EventID, &w.TierName, &w.Quantity, &w.MaxPrice,
			&w.Status, &w.Priority, &w.NotificationSent, &sentAt,
			&w.ExpiresAt, &w.ResponseDeadline, &w.CreatedAt, &w.UserName, &w.UserEmail); err != nil {
			return nil, err
		}
		if sentAt.Valid {
			w.NotificationSentAt = &sentAt.Time
		}
		entries = append(entries, w)
	}
	return entries, rows.Err()
}

// MarkNotified transitions an entry to notified and refreshes its
// response deadline. The entry stays on the list: notification is
// advisory, no seats are held.
func (r *WaitlistRepo) MarkNotified(ctx context.Context, id uint64, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE waitlist_entries SET
		status = ?, notification_sent = 1, notification_sent_at = ?, response_deadline = ?
		WHERE id = ?`,
		model.WaitlistStatusNotified, now, now.Add(model.ResponseWindow), id)
	return err
}

// GetByID loads one entry.
func (r *WaitlistRepo) GetByID(ctx context.Context, id uint64) (model.WaitlistEntry, error) {
	return scanWaitlist(r.db.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries w WHERE w.id = ?`, id))
}

// Delete removes an entry. Ownership is checked by the handler.
func (r *WaitlistRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByUser returns a user's entries, newest first.
func (r *WaitlistRepo) ListByUser(ctx context.Context, userID uint64) ([]model.WaitlistEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries w WHERE w.user_id = ? ORDER BY w.created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWaitlist(rows)
}

// ListByEvent returns every entry for an event ordered by priority then
// age. Used by organizers to inspect demand.
func (r *WaitlistRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.WaitlistEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries w
		 WHERE w.event_id = ? ORDER BY w.priority DESC, w.created_at ASC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWaitlist(rows)
}

func collectWaitlist(rows *sql.Rows) ([]model.WaitlistEntry, error) {
	var entries []model.WaitlistEntry
	for rows.Next() {
		w, err := scanWaitlist(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, w)
	}
	return entries, rows.Err()
}
