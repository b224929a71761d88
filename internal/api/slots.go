package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-access-scheduling/internal/slot"
)

type SlotHandler struct {
	svc    *slot.Service
	logger zerolog.Logger
}

func NewSlotHandler(svc *slot.Service, logger zerolog.Logger) *SlotHandler {
	return &SlotHandler{svc: svc, logger: logger}
}

func (h *SlotHandler) Routes(r chi.Router) {
	r.Get("/available", h.Search)
	r.Get("/calendar", h.Calendar)
	r.Get("/next-available", h.NextAvailable)
	r.Get("/provider/{providerId}/schedule", h.ProviderSchedule)
	r.Post("/", h.Create)
	r.Post("/recurring", h.CreateRecurring)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/block", h.Block)
	})
}

func (h *SlotHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	handleServiceError(w, r, h.logger, err)
}

func searchFilter(q *queryParams) slot.SearchFilter {
	return slot.SearchFilter{
		StartDate:    q.requiredDate("startDate"),
		EndDate:      q.requiredDate("endDate"),
		DepartmentID: q.optionalUUID("departmentId"),
		ProviderID:   q.optionalUUID("providerId"),
		LocationID:   q.optionalUUID("locationId"),
	}
}

func (h *SlotHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := searchFilter(q)
	f.Availability = slot.AvailabilityFromFlag(q.optionalBool("isAvailable"))
	if q.err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
		return
	}

	slots, err := h.svc.Search(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *SlotHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := searchFilter(q)
	if q.err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
		return
	}

	cal, err := h.svc.Calendar(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

// NextAvailable responds with null when nothing is offerable.
func (h *SlotHandler) NextAvailable(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	departmentID := q.requiredUUID("departmentId")
	providerID := q.optionalUUID("providerId")
	if q.err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
		return
	}

	sl, err := h.svc.NextAvailable(r.Context(), departmentID, providerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sl)
}

func (h *SlotHandler) ProviderSchedule(w http.ResponseWriter, r *http.Request) {
	providerID, err := urlUUID(r, "providerId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", err.Error())
		return
	}
	q := newQueryParams(r)
	start, end := q.requiredDate("startDate"), q.requiredDate("endDate")
	if q.err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
		return
	}

	slots, err := h.svc.ProviderSchedule(r.Context(), providerID, start, end)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in slot.CreateSlotInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	sl, err := h.svc.CreateSlot(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sl)
}

func (h *SlotHandler) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringSlotsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	interval := time.Duration(req.IntervalDays) * 24 * time.Hour
	slots, err := h.svc.CreateRecurringSlots(r.Context(), req.CreateSlotInput, req.RecurrenceCount, interval)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, slots)
}

func (h *SlotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_id", err.Error())
		return
	}

	sl, err := h.svc.GetSlot(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sl)
}

func (h *SlotHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_id", err.Error())
		return
	}
	var in slot.UpdateSlotInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	sl, err := h.svc.UpdateSlot(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sl)
}

func (h *SlotHandler) Block(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_id", err.Error())
		return
	}
	var req blockSlotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	sl, err := h.svc.BlockSlot(r.Context(), id, req.IsBlocked)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sl)
}

func (h *SlotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_id", err.Error())
		return
	}

	if err := h.svc.DeleteSlot(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeletedResponse{ID: id, Deleted: true})
}
