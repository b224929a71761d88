package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-access-scheduling/internal/slot"
	"github.com/hackgods/clinic-access-scheduling/internal/waitlist"
)

type WaitlistHandler struct {
	svc    *waitlist.Service
	logger zerolog.Logger
}

func NewWaitlistHandler(svc *waitlist.Service, logger zerolog.Logger) *WaitlistHandler {
	return &WaitlistHandler{svc: svc, logger: logger}
}

func (h *WaitlistHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/stats", h.Stats)
	r.Post("/expire", h.Expire)
	r.Get("/patient/{patientId}", h.PatientEntries)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Post("/cancel", h.Cancel)
		r.Post("/contacted", h.MarkContacted)
		r.Post("/convert", h.Convert)
		r.Get("/matching-slots", h.MatchingSlots)
	})
}

func (h *WaitlistHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	handleServiceError(w, r, h.logger, err)
}

func (h *WaitlistHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := waitlist.ListFilter{
		DepartmentID: q.optionalUUID("departmentId"),
		ProviderID:   q.optionalUUID("providerId"),
		PatientID:    q.optionalUUID("patientId"),
	}
	for _, s := range q.list("status") {
		f.Statuses = append(f.Statuses, waitlist.Status(s))
	}
	if p := q.raw("priority"); p != "" {
		priority := waitlist.Priority(p)
		f.Priority = &priority
	}
	if q.err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
		return
	}

	entries, err := h.svc.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *WaitlistHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in waitlist.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	entry, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *WaitlistHandler) Stats(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	departmentID := q.optionalUUID("departmentId")
	if q.err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
		return
	}

	stats, err := h.svc.Stats(r.Context(), departmentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Expire runs one expiry sweep on demand.
func (h *WaitlistHandler) Expire(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ExpireSweep(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExpireResponse{Expired: n})
}

func (h *WaitlistHandler) PatientEntries(w http.ResponseWriter, r *http.Request) {
	patientID, err := urlUUID(r, "patientId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", err.Error())
		return
	}

	entries, err := h.svc.PatientEntries(r.Context(), patientID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *WaitlistHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_entry_id", err.Error())
		return
	}

	entry, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *WaitlistHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_entry_id", err.Error())
		return
	}
	var in waitlist.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	entry, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *WaitlistHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_entry_id", err.Error())
		return
	}

	entry, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *WaitlistHandler) MarkContacted(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_entry_id", err.Error())
		return
	}

	entry, err := h.svc.MarkContacted(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *WaitlistHandler) Convert(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_entry_id", err.Error())
		return
	}
	var req convertEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	entry, err := h.svc.ConvertToAppointment(r.Context(), id, req.AppointmentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// MatchingSlots honours the entry's date and time-of-day preferences only
// when usePreferences=true.
func (h *WaitlistHandler) MatchingSlots(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_entry_id", err.Error())
		return
	}
	q := newQueryParams(r)
	limit := q.intOr("limit", waitlist.DefaultMatchLimit)
	usePrefs := q.optionalBool("usePreferences")
	if q.err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
		return
	}

	var slots []slot.SlotWithAvailability
	if usePrefs != nil && *usePrefs {
		slots, err = h.svc.FindMatchingSlotsWithPreferences(r.Context(), id, limit)
	} else {
		slots, err = h.svc.FindMatchingSlots(r.Context(), id, limit)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if slots == nil {
		slots = []slot.SlotWithAvailability{}
	}
	writeJSON(w, http.StatusOK, slots)
}
