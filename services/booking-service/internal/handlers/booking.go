package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/clinislot/clinislot/libs/auth"
	"github.com/clinislot/clinislot/services/booking-service/internal/ledger"
	"github.com/clinislot/clinislot/services/booking-service/internal/model"
	"github.com/clinislot/clinislot/services/booking-service/internal/schedule"
)

type BookingHandler struct {
	ledger *ledger.Ledger
	logger *slog.Logger
	secret string
}

func NewBookingHandler(l *ledger.Ledger, logger *slog.Logger, tokenSecret string) *BookingHandler {
	return &BookingHandler{ledger: l, logger: logger, secret: tokenSecret}
}

type slotItem struct {
	Session string `json:"session"`
	Time    string `json:"time"`
	Label   string `json:"label"`
	Status  string `json:"status"`
}

type bookRequest struct {
	SubjectName string `json:"subject_name"`
	SubjectAge  int    `json:"subject_age"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

type bookResponse struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Serial        int    `json:"serial,omitempty"`
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type listEntry struct {
	AppointmentID string `json:"appointment_id"`
	Serial        int    `json:"serial"`
	SubjectName   string `json:"subject_name"`
	SubjectAge    int    `json:"subject_age"`
	Time          string `json:"time"`
	Label         string `json:"label"`
}

type listGroup struct {
	Date    string      `json:"date"`
	Label   string      `json:"label"`
	Entries []listEntry `json:"entries"`
}

// Slots serves GET /api/v1/slots?date=YYYY-MM-DD. Availability is public:
// slot statuses leak no identities.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}

	slots, err := h.ledger.Availability(r.Context(), date)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		clock, err := schedule.ClockLabel(s.StartMinute)
		if err != nil {
			http.Error(w, "failed to render slot", http.StatusInternalServerError)
			return
		}
		label, err := schedule.Label12(clock)
		if err != nil {
			http.Error(w, "failed to render slot", http.StatusInternalServerError)
			return
		}
		items = append(items, slotItem{
			Session: s.Session,
			Time:    clock,
			Label:   label,
			Status:  string(s.Status),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// Book serves POST /api/v1/book. The owner key comes from the verified
// identity token, never from the request body.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	identity, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	minute, err := schedule.ParseClock(strings.TrimSpace(req.Time))
	if err != nil {
		http.Error(w, "time must be HH:MM", http.StatusBadRequest)
		return
	}

	booking, err := h.ledger.Submit(r.Context(), ledger.Candidate{
		SubjectName: req.SubjectName,
		SubjectAge:  req.SubjectAge,
		Date:        strings.TrimSpace(req.Date),
		StartMinute: minute,
		OwnerKey:    identity.OwnerKey,
	})
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	clock, err := schedule.ClockLabel(booking.StartMinute)
	if err != nil {
		http.Error(w, "failed to render booking", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, bookResponse{
		AppointmentID: booking.ID,
		Date:          booking.Date,
		Time:          clock,
		Serial:        booking.Serial,
	})
}

// Cancel serves POST /api/v1/appointments/cancel.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	identity, ok := h.identify(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	if err := h.ledger.Cancel(r.Context(), req.AppointmentID, identity); err != nil {
		h.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"appointment_id": req.AppointmentID,
		"status":         "cancelled",
	})
}

// List serves GET /api/v1/appointments, scoped to the caller's role.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	identity, ok := h.identify(w, r)
	if !ok {
		return
	}

	groups, err := h.ledger.Listings(r.Context(), identity)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	out := make([]listGroup, 0, len(groups))
	for _, g := range groups {
		lg := listGroup{Date: g.Date, Label: g.Label, Entries: make([]listEntry, 0, len(g.Entries))}
		for _, e := range g.Entries {
			clock, err := schedule.ClockLabel(e.StartMinute)
			if err != nil {
				http.Error(w, "failed to render listing", http.StatusInternalServerError)
				return
			}
			label, err := schedule.Label12(clock)
			if err != nil {
				http.Error(w, "failed to render listing", http.StatusInternalServerError)
				return
			}
			lg.Entries = append(lg.Entries, listEntry{
				AppointmentID: e.ID,
				Serial:        e.Serial,
				SubjectName:   e.SubjectName,
				SubjectAge:    e.SubjectAge,
				Time:          clock,
				Label:         label,
			})
		}
		out = append(out, lg)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *BookingHandler) identify(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	claims, err := auth.FromRequest(r, h.secret)
	if err != nil {
		http.Error(w, "missing or invalid identity token", http.StatusUnauthorized)
		return model.Identity{}, false
	}
	role := claims.Role
	if role != model.RoleOperator {
		role = model.RolePatient
	}
	return model.Identity{OwnerKey: claims.Sub, Role: role}, true
}

func (h *BookingHandler) writeLedgerError(w http.ResponseWriter, err error) {
	kind := ledger.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case ledger.KindOutOfWindow, ledger.KindClosedDay, ledger.KindInvalidSlot,
		ledger.KindInvalidSubject, ledger.KindPastSlot:
		status = http.StatusUnprocessableEntity
	case ledger.KindSlotTaken, ledger.KindDuplicateBooking:
		status = http.StatusConflict
	case ledger.KindNotFound:
		status = http.StatusNotFound
	case ledger.KindNotAuthorized:
		status = http.StatusForbidden
	case ledger.KindStoreUnavailable:
		status = http.StatusServiceUnavailable
	default:
		h.logger.Error("unclassified booking error", "err", err)
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
