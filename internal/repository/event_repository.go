package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/eventhorizon/eventhorizon/internal/model"
)

// EventRepo provides persistence for events and their ticket tiers.
// Tier inventory mutations go through ReserveSeatsTx/ReleaseSeatsTx,
// which use conditional updates so that concurrent bookings can never
// both pass the availability check for the last remaining seats.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// spanning multiple repositories.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventColumns = `id, organizer_id, title, description, category, venue_name, venue_city,
	starts_at, ends_at, status, refund_deadline_hours, refund_percentage,
	pricing_enabled, price_increase_factor, demand_threshold, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.Category,
		&e.VenueName, &e.VenueCity, &e.StartsAt, &e.EndsAt, &e.Status,
		&e.CancellationPolicy.RefundDeadlineHours, &e.CancellationPolicy.RefundPercentage,
		&e.DynamicPricing.Enabled, &e.DynamicPricing.PriceIncreaseFactor,
		&e.DynamicPricing.DemandThreshold, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// Create inserts an event and its tiers in one transaction and populates
// the generated IDs on the passed model.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `INSERT INTO events
		(organizer_id, title, description, category, venue_name, venue_city,
		 starts_at, ends_at, status, refund_deadline_hours, refund_percentage,
		 pricing_enabled, price_increase_factor, demand_threshold)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.OrganizerID, e.Title, e.Description, e.Category, e.VenueName, e.VenueCity,
		e.StartsAt, e.EndsAt, e.Status,
		e.CancellationPolicy.RefundDeadlineHours, e.CancellationPolicy.RefundPercentage,
		e.DynamicPricing.Enabled, e.DynamicPricing.PriceIncreaseFactor,
		e.DynamicPricing.DemandThreshold)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)

	for i := range e.Tiers {
		tier := &e.Tiers[i]
		tier.EventID = e.ID
		perks, err := json.Marshal(tier.Perks)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO ticket_tiers
			(event_id, name, base_price, current_price, total_seats, available_seats, perks)
			VALUES (?,?,?,?,?,?,?)`,
			tier.EventID, tier.Name, tier.BasePrice, tier.CurrentPrice,
			tier.TotalSeats, tier.AvailableSeats, perks)
		if err != nil {
			return err
		}
		tid, err := res.LastInsertId()
		if err != nil {
			return err
		}
		tier.ID = uint64(tid)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID loads an event and its tiers. Returns ErrEventNotFound when the
// id does not exist.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	return r.getByID(ctx, r.db, id)
}

// GetByIDTx is GetByID inside an existing transaction, used by the
// booking and cancellation workflows so the event snapshot and the
// inventory mutation observe the same isolation.
func (r *EventRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Event, error) {
	return r.getByID(ctx, tx, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *EventRepo) getByID(ctx context.Context, q queryer, id uint64) (model.Event, error) {
	e, err := scanEvent(q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Event{}, ErrEventNotFound
		}
		return model.Event{}, err
	}
	e.Tiers, err = r.tiersFor(ctx, q, id)
	return e, err
}

func (r *EventRepo) tiersFor(ctx context.Context, q queryer, eventID uint64) ([]model.TicketTier, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, event_id, name, base_price, current_price,
		total_seats, available_seats, perks FROM ticket_tiers WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []model.TicketTier
	for rows.Next() {
		var t model.TicketTier
		var perks sql.NullString
		if err := rows.Scan(&t.ID, &t.EventID, &t.Name, &t.BasePrice, &t.CurrentPrice,
			&t.TotalSeats, &t.AvailableSeats, &perks); err != nil {
			return nil, err
		}
		if perks.Valid && perks.String != "" {
			if err := json.Unmarshal([]byte(perks.String), &t.Perks); err != nil {
				return nil, err
			}
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// ReserveItem names one tier decrement inside a reservation batch.
type ReserveItem struct {
	TierName string
	Quantity uint32
}

// ReserveSeatsTx atomically decrements available_seats for every item in
// the batch. Each decrement is a conditional update guarded by
// `available_seats >= quantity`; when any tier cannot satisfy its
// quantity the whole transaction must be rolled back by the caller, so
// the batch is all-or-nothing. The returned InsufficientSeatsError
// carries the availability actually observed.
func (r *EventRepo) ReserveSeatsTx(ctx context.Context, tx *sql.Tx, eventID uint64, items []ReserveItem) error {
	for _, item := range items {
		res, err := tx.ExecContext(ctx, `UPDATE ticket_tiers
			SET available_seats = available_seats - ?
			WHERE event_id = ? AND name = ? AND available_seats >= ?`,
			item.Quantity, eventID, item.TierName, item.Quantity)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var available uint32
			err := tx.QueryRowContext(ctx,
				`SELECT available_seats FROM ticket_tiers WHERE event_id = ? AND name = ?`,
				eventID, item.TierName).Scan(&available)
			if err == sql.ErrNoRows {
				return ErrTierNotFound
			}
			if err != nil {
				return err
			}
			return &InsufficientSeatsError{TierName: item.TierName, Requested: item.Quantity, Available: available}
		}
	}
	return nil
}

// ReleaseSeatsTx restores seats previously taken by a reservation. The
// increment is capped by total_seats as a safety net, although a release
// can only ever undo a prior validated decrement.
func (r *EventRepo) ReleaseSeatsTx(ctx context.Context, tx *sql.Tx, eventID uint64, items []ReserveItem) error {
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `UPDATE ticket_tiers
			SET available_seats = LEAST(total_seats, available_seats + ?)
			WHERE event_id = ? AND name = ?`,
			item.Quantity, eventID, item.TierName); err != nil {
			return err
		}
	}
	return nil
}

// UpdateCurrentPricesTx persists recomputed current prices keyed by tier
// name. Called after a reservation when dynamic pricing is enabled; it
// affects subsequent bookings, never the one that triggered it.
func (r *EventRepo) UpdateCurrentPricesTx(ctx context.Context, tx *sql.Tx, eventID uint64, prices map[string]float64) error {
	for name, price := range prices {
		if _, err := tx.ExecContext(ctx,
			`UPDATE ticket_tiers SET current_price = ? WHERE event_id = ? AND name = ?`,
			price, eventID, name); err != nil {
			return err
		}
	}
	return nil
}

// TierAvailability returns the live available seat count for one tier.
func (r *EventRepo) TierAvailability(ctx context.Context, eventID uint64, tierName string) (uint32, error) {
	var available uint32
	err := r.db.QueryRowContext(ctx,
		`SELECT available_seats FROM ticket_tiers WHERE event_id = ? AND name = ?`,
		eventID, tierName).Scan(&available)
	if err == sql.ErrNoRows {
		return 0, ErrTierNotFound
	}
	return available, err
}

// EventFilter narrows the public event listing.
type EventFilter struct {
	Category string
	City     string
	Query    string
	DateFrom *time.Time
	DateTo   *time.Time
	PriceMin *float64
	PriceMax *float64
	Page     int
	Limit    int
}

// ListPublished returns published events matching the filter, ordered by
// start time, along with the total match count for pagination.
func (r *EventRepo) ListPublished(ctx context.Context, f EventFilter) ([]model.Event, int, error) {
	where := []string{"status = ?"}
	args := []any{model.EventStatusPublished}

	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.City != "" {
		where = append(where, "venue_city LIKE ?")
		args = append(args, "%"+f.City+"%")
	}
	if f.Query != "" {
		where = append(where, "(title LIKE ? OR description LIKE ?)")
		args = append(args, "%"+f.Query+"%", "%"+f.Query+"%")
	}
	if f.DateFrom != nil {
		where = append(where, "starts_at >= ?")
		args = append(args, *f.DateFrom)
	}
	if f.DateTo != nil {
		where = append(where, "starts_at <= ?")
		args = append(args, *f.DateTo)
	}
	if f.PriceMin != nil {
		where = append(where, "id IN (SELECT event_id FROM ticket_tiers WHERE base_price >= ?)")
		args = append(args, *f.PriceMin)
	}
	if f.PriceMax != nil {
		where = append(where, "id IN (SELECT event_id FROM ticket_tiers WHERE base_price <= ?)")
		args = append(args, *f.PriceMax)
	}

	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE `+cond+` ORDER BY starts_at LIMIT ? OFFSET ?`,
		append(args, f.Limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range events {
		events[i].Tiers, err = r.tiersFor(ctx, r.db, events[i].ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return events, total, nil
}

// ListByOrganizer returns all events owned by a user, newest first.
func (r *EventRepo) ListByOrganizer(ctx context.Context, organizerID uint64) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE organizer_id = ? ORDER BY created_at DESC`, organizerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Tiers, err = r.tiersFor(ctx, r.db, events[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return events, nil
}

// Update rewrites the mutable event columns. Tier structure changes
// (adding tiers, resizing pools) go through the same statement set as
// Create and are intentionally limited to events without reservations at
// the handler level.
func (r *EventRepo) Update(ctx context.Context, e *model.Event) error {
	_, err := r.db.ExecContext(ctx, `UPDATE events SET
		title = ?, description = ?, category = ?, venue_name = ?, venue_city = ?,
		starts_at = ?, ends_at = ?, status = ?,
		refund_deadline_hours = ?, refund_percentage = ?,
		pricing_enabled = ?, price_increase_factor = ?, demand_threshold = ?
		WHERE id = ?`,
		e.Title, e.Description, e.Category, e.VenueName, e.VenueCity,
		e.StartsAt, e.EndsAt, e.Status,
		e.CancellationPolicy.RefundDeadlineHours, e.CancellationPolicy.RefundPercentage,
		e.DynamicPricing.Enabled, e.DynamicPricing.PriceIncreaseFactor,
		e.DynamicPricing.DemandThreshold, e.ID)
	return err
}

// Delete removes an event. The caller must have verified that no
// bookings reference it.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}
