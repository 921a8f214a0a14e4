// Package ledger is the authoritative booking engine: it validates booking
// candidates against the operating calendar and the current moment, appends
// accepted records through the store, computes confirmation serials, and
// serves role-scoped availability and listing reads.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/clinislot/clinislot/services/booking-service/internal/availability"
	"github.com/clinislot/clinislot/services/booking-service/internal/model"
	"github.com/clinislot/clinislot/services/booking-service/internal/schedule"
	"github.com/clinislot/clinislot/services/booking-service/internal/view"
)

// Store is the record store collaborator. Implementations must enforce
// uniqueness of (date, start minute) across active records atomically at
// insert time and report violations as ErrSlotConflict (ErrOwnerConflict for
// the one-active-booking-per-owner policy). Reads return active records only,
// except Get which also returns tombstones.
type Store interface {
	Insert(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	ListByDate(ctx context.Context, date string) ([]model.Appointment, error)
	ListActive(ctx context.Context) ([]model.Appointment, error)
	CountEarlier(ctx context.Context, date string, beforeMinute int) (int, error)
	CountActiveByOwner(ctx context.Context, ownerKey string) (int, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
	Cancel(ctx context.Context, id string) error
}

// Candidate is a booking submission before validation.
type Candidate struct {
	SubjectName string
	SubjectAge  int
	Date        string // YYYY-MM-DD
	StartMinute int
	OwnerKey    string
}

// Booking is an accepted record together with its confirmation serial: the
// 1-based rank among the day's active bookings ordered by start time.
type Booking struct {
	model.Appointment
	Serial int
}

type Options struct {
	// OnePerOwner enforces at most one active booking per owner key.
	OnePerOwner bool
	// StoreTimeout bounds every store call. Zero means 5 seconds.
	StoreTimeout time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

type Ledger struct {
	cfg     schedule.Config
	store   Store
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	// onePerOwner adds a pre-check against the owner's active bookings. The
	// store's owner-key constraint remains the atomic enforcement point; the
	// pre-check only produces a cleaner error outside the race window.
	onePerOwner bool
}

func New(cfg schedule.Config, store Store, logger *slog.Logger, opts Options) *Ledger {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{
		cfg:         cfg,
		store:       store,
		logger:      logger,
		timeout:     opts.StoreTimeout,
		now:         opts.Now,
		onePerOwner: opts.OnePerOwner,
	}
}

// Submit validates cand and appends it. Checks run in a fixed order and stop
// at the first failure: booking window, closed day, valid candidate start,
// not past, then the store's atomic uniqueness check on insert. A failed
// submit leaves no new records.
func (l *Ledger) Submit(ctx context.Context, cand Candidate) (Booking, error) {
	if strings.TrimSpace(cand.SubjectName) == "" {
		return Booking{}, failf(KindInvalidSubject, "subject name is required")
	}
	if cand.SubjectAge < 1 {
		return Booking{}, failf(KindInvalidSubject, "subject age must be a positive number")
	}
	if strings.TrimSpace(cand.OwnerKey) == "" {
		return Booking{}, failf(KindInvalidSubject, "owner key is required")
	}

	date, err := schedule.ParseDateKey(cand.Date)
	if err != nil {
		return Booking{}, failf(KindInvalidSlot, "date is not a valid calendar date")
	}

	now := l.now()
	if !l.cfg.WithinWindow(date, now) {
		return Booking{}, failf(KindOutOfWindow, "date is outside the booking window")
	}
	if l.cfg.Closed(date) {
		return Booking{}, failf(KindClosedDay, "the clinic is closed on that date")
	}
	if !l.cfg.ContainsStart(cand.StartMinute) {
		return Booking{}, failf(KindInvalidSlot, "time is not a bookable slot start")
	}
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()).
		Add(time.Duration(cand.StartMinute) * time.Minute)
	if !start.After(now) {
		return Booking{}, failf(KindPastSlot, "slot start is in the past")
	}

	if l.onePerOwner {
		ownerCtx, cancelOwner := context.WithTimeout(ctx, l.timeout)
		active, err := l.store.CountActiveByOwner(ownerCtx, cand.OwnerKey)
		cancelOwner()
		if err != nil {
			return Booking{}, l.storeErr("count owner bookings", err)
		}
		if active > 0 {
			return Booking{}, failf(KindDuplicateBooking, "an active booking already exists for this identity")
		}
	}

	appt := model.Appointment{
		SubjectName: strings.TrimSpace(cand.SubjectName),
		SubjectAge:  cand.SubjectAge,
		Date:        schedule.DateKey(date),
		StartMinute: cand.StartMinute,
		OwnerKey:    cand.OwnerKey,
	}

	storeCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	created, err := l.store.Insert(storeCtx, appt)
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotConflict):
			return Booking{}, wrap(KindSlotTaken, "slot was booked by another request", err)
		case errors.Is(err, ErrOwnerConflict):
			return Booking{}, wrap(KindDuplicateBooking, "an active booking already exists for this identity", err)
		default:
			return Booking{}, l.storeErr("insert booking", err)
		}
	}

	// The serial is derived from the committed record plus a fresh same-date
	// count, never computed speculatively before commit: concurrent commits
	// could reorder it. A failed count does not undo the booking; Serial 0
	// means "re-derive from listings".
	booking := Booking{Appointment: created}
	countCtx, cancelCount := context.WithTimeout(ctx, l.timeout)
	defer cancelCount()
	earlier, err := l.store.CountEarlier(countCtx, created.Date, created.StartMinute)
	if err != nil {
		l.logger.Warn("serial lookup failed after commit", "appointment_id", created.ID, "err", err)
		return booking, nil
	}
	booking.Serial = earlier + 1
	return booking, nil
}

// Cancel tombstones the record. Only the owner or an operator may cancel;
// cancelling an already-cancelled record is a no-op.
func (l *Ledger) Cancel(ctx context.Context, id string, requester model.Identity) error {
	getCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	rec, err := l.store.Get(getCtx, id)
	if err != nil {
		if errors.Is(err, ErrNoRecord) {
			return failf(KindNotFound, "appointment not found")
		}
		return l.storeErr("load appointment", err)
	}

	if !requester.Operator() && requester.OwnerKey != rec.OwnerKey {
		return failf(KindNotAuthorized, "only the booking owner or an operator may cancel")
	}
	if !rec.Active() {
		return nil
	}

	cancelCtx, cancelStore := context.WithTimeout(ctx, l.timeout)
	defer cancelStore()
	if err := l.store.Cancel(cancelCtx, id); err != nil {
		if errors.Is(err, ErrNoRecord) {
			return failf(KindNotFound, "appointment not found")
		}
		return l.storeErr("cancel appointment", err)
	}
	return nil
}

// Availability resolves the slot statuses for date. Closed days short-circuit
// before any store read; dates outside the booking window are rejected
// outright, uniformly with Submit.
func (l *Ledger) Availability(ctx context.Context, dateKey string) ([]availability.Slot, error) {
	date, err := schedule.ParseDateKey(dateKey)
	if err != nil {
		return nil, failf(KindInvalidSlot, "date is not a valid calendar date")
	}
	now := l.now()
	if !l.cfg.WithinWindow(date, now) {
		return nil, failf(KindOutOfWindow, "date is outside the booking window")
	}
	if l.cfg.Closed(date) {
		return availability.Resolve(l.cfg, date, nil, now), nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	records, err := l.store.ListByDate(storeCtx, schedule.DateKey(date))
	if err != nil {
		return nil, l.storeErr("list bookings", err)
	}
	starts := make([]int, 0, len(records))
	for _, r := range records {
		starts = append(starts, r.StartMinute)
	}
	return availability.Resolve(l.cfg, date, starts, now), nil
}

// Listings returns the date-grouped, serial-numbered booking listing scoped
// to the viewer's role.
func (l *Ledger) Listings(ctx context.Context, viewer model.Identity) ([]view.DayGroup, error) {
	storeCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	records, err := l.store.ListActive(storeCtx)
	if err != nil {
		return nil, l.storeErr("list bookings", err)
	}
	return view.Project(records, viewer), nil
}

func (l *Ledger) storeErr(op string, err error) *Error {
	if l.logger != nil {
		l.logger.Error("store call failed", "op", op, "err", err)
	}
	return wrap(KindStoreUnavailable, "record store unavailable", err)
}
