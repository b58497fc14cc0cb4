package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/eventhorizon/eventhorizon/internal/model"
)

// BookingRepo provides CRUD operations for bookings and their ticket
// lines. Booking creation always happens inside the same transaction as
// the inventory decrement; cancellation uses a guarded status update so
// a booking can never be cancelled (and its seats restored) twice.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, reference, user_id, event_id, total_amount,
	discount_amount, COALESCE(discount_code,''), COALESCE(discount_type,''),
	payment_status, booking_status, COALESCE(qr_code,''),
	refund_requested, refund_requested_at, refund_processed, refund_processed_at,
	COALESCE(refund_amount,0), COALESCE(refund_reason,''), created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (model.Booking, error) {
	var b model.Booking
	var requestedAt, processedAt sql.NullTime
	err := row.Scan(&b.ID, &b.Reference, &b.UserID, &b.EventID, &b.TotalAmount,
		&b.Discount.Amount, &b.Discount.Code, &b.Discount.Type,
		&b.PaymentStatus, &b.Status, &b.QRCode,
		&b.Refund.Requested, &requestedAt, &b.Refund.Processed, &processedAt,
		&b.Refund.Amount, &b.Refund.Reason, &b.CreatedAt, &b.UpdatedAt)
	if requestedAt.Valid {
		b.Refund.RequestedAt = &requestedAt.Time
	}
	if processedAt.Valid {
		b.Refund.ProcessedAt = &processedAt.Time
	}
	return b, err
}

// CreateTx inserts a booking and its ticket lines within an existing
// transaction and populates the generated ID. The caller commits or
// rolls back together with the inventory decrement.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	var code, dtype any
	if b.Discount.Code != "" {
		code = b.Discount.Code
	}
	if b.Discount.Type != "" {
		dtype = b.Discount.Type
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO bookings
		(reference, user_id, event_id, total_amount, discount_amount, discount_code,
		 discount_type, payment_status, booking_status)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		b.Reference, b.UserID, b.EventID, b.TotalAmount, b.Discount.Amount,
		code, dtype, b.PaymentStatus, b.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)

	for _, line := range b.Tickets {
		if _, err := tx.ExecContext(ctx, `INSERT INTO booking_tickets
			(booking_id, tier_name, quantity, price_per_ticket) VALUES (?,?,?,?)`,
			b.ID, line.TierName, line.Quantity, line.PricePerTicket); err != nil {
			return err
		}
	}
	return nil
}

// GetByID loads a booking with its ticket lines. Returns sql.ErrNoRows
// when absent.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return model.Booking{}, err
	}
	b.Tickets, err = r.ticketsFor(ctx, id)
	return b, err
}

func (r *BookingRepo) ticketsFor(ctx context.Context, bookingID uint64) ([]model.TicketLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tier_name, quantity, price_per_ticket FROM booking_tickets WHERE booking_id = ? ORDER BY id`,
		bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []model.TicketLine
	for rows.Next() {
		var l model.TicketLine
		if err := rows.Scan(&l.TierName, &l.Quantity, &l.PricePerTicket); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ListByUser returns a user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return r.list(ctx, `user_id = ?`, userID)
}

// ListByEvent returns all bookings for an event, newest first. Used by
// organizers.
func (r *BookingRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Booking, error) {
	return r.list(ctx, `event_id = ?`, eventID)
}

func (r *BookingRepo) list(ctx context.Context, cond string, arg any) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE `+cond+` ORDER BY created_at DESC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range bookings {
		bookings[i].Tickets, err = r.ticketsFor(ctx, bookings[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return bookings, nil
}

// CountByEvent returns how many bookings reference the event, regardless
// of status. Deletion of an event is forbidden while this is non-zero.
func (r *BookingRepo) CountByEvent(ctx context.Context, eventID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE event_id = ?`, eventID).Scan(&n)
	return n, err
}

// CancelTx flips a confirmed booking to cancelled and records the refund
// request, all in one guarded update. Returns ErrConflict when the
// booking was not in the confirmed state, which also makes double
// cancellation (and double seat restoration) impossible.
func (r *BookingRepo) CancelTx(ctx context.Context, tx *sql.Tx, bookingID uint64, amount float64, reason string, now time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE bookings SET
		booking_status = ?, refund_requested = 1, refund_requested_at = ?,
		refund_amount = ?, refund_reason = ?
		WHERE id = ? AND booking_status = ?`,
		model.BookingStatusCancelled, now, amount, reason, bookingID, model.BookingStatusConfirmed)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// SetQRCode attaches the generated QR blob to a booking. Best-effort:
// called after the booking transaction committed.
func (r *BookingRepo) SetQRCode(ctx context.Context, bookingID uint64, blob string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET qr_code = ? WHERE id = ?`, blob, bookingID)
	return err
}

// UpdatePaymentStatus records the externally reported payment state.
// Existence and ownership are checked by the handler beforehand.
func (r *BookingRepo) UpdatePaymentStatus(ctx context.Context, bookingID uint64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET payment_status = ? WHERE id = ?`, status, bookingID)
	return err
}
