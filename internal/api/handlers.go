package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-access-scheduling/internal/appointment"
)

type AppointmentHandler struct {
	svc    *appointment.Service
	logger zerolog.Logger
}

func NewAppointmentHandler(svc *appointment.Service, logger zerolog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, logger: logger}
}

func (h *AppointmentHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/book", h.Book)
	r.Get("/code/{code}", h.GetByCode)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Post("/cancel", h.Cancel)
		r.Post("/reschedule", h.Reschedule)
		r.Post("/check-in", h.transition(h.svc.CheckIn))
		r.Post("/start", h.transition(h.svc.Start))
		r.Post("/complete", h.Complete)
		r.Post("/no-show", h.transition(h.svc.MarkNoShow))
		r.Put("/no-show-risk", h.SetNoShowRisk)
		r.Get("/ics", h.ICS)
	})
}

// PatientRoutes serves the per-patient views under /patients/{patientId}.
func (h *AppointmentHandler) PatientRoutes(r chi.Router) {
	r.Get("/appointments/upcoming", h.Upcoming)
	r.Get("/appointments/history", h.History)
}

func (h *AppointmentHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	handleServiceError(w, r, h.logger, err)
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.svc.Create)
}

// Book creates the appointment only if the slot still has capacity.
func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.svc.Book)
}

func (h *AppointmentHandler) create(
	w http.ResponseWriter,
	r *http.Request,
	fn func(context.Context, appointment.CreateInput) (*appointment.AppointmentDetail, error),
) {
	var in appointment.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	appt, err := fn(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := newQueryParams(r)
	f := appointment.ListFilter{
		PatientID:    q.optionalUUID("patientId"),
		ProviderID:   q.optionalUUID("providerId"),
		DepartmentID: q.optionalUUID("departmentId"),
		StartDate:    q.optionalDate("startDate"),
		EndDate:      q.optionalDate("endDate"),
	}
	if s := q.raw("status"); s != "" {
		status := appointment.AppointmentStatus(s)
		f.Status = &status
	}
	page := q.intOr("page", 1)
	pageSize := q.intOr("pageSize", appointment.DefaultPageSize)
	if q.err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
		return
	}

	result, err := h.svc.List(r.Context(), f, page, pageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.transition(h.svc.GetByID)(w, r)
}

func (h *AppointmentHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.GetByConfirmationCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// transition adapts an id-only operation to a handler.
func (h *AppointmentHandler) transition(
	fn func(context.Context, uuid.UUID) (*appointment.AppointmentDetail, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlUUID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		appt, err := fn(r.Context(), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

// withBody decodes the request body into T before running fn.
func withBody[T any](
	h *AppointmentHandler,
	fn func(ctx context.Context, id uuid.UUID, body T) (*appointment.AppointmentDetail, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlUUID(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		var body T
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		appt, err := fn(r.Context(), id, body)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	withBody(h, h.svc.Update)(w, r)
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	withBody(h, func(ctx context.Context, id uuid.UUID, body cancelAppointmentRequest) (*appointment.AppointmentDetail, error) {
		return h.svc.Cancel(ctx, id, body.Reason)
	})(w, r)
}

func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	withBody(h, func(ctx context.Context, id uuid.UUID, body rescheduleRequest) (*appointment.AppointmentDetail, error) {
		return h.svc.Reschedule(ctx, id, body.input())
	})(w, r)
}

func (h *AppointmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	withBody(h, func(ctx context.Context, id uuid.UUID, body completeAppointmentRequest) (*appointment.AppointmentDetail, error) {
		return h.svc.Complete(ctx, id, body.ProviderNotes)
	})(w, r)
}

func (h *AppointmentHandler) SetNoShowRisk(w http.ResponseWriter, r *http.Request) {
	withBody(h, func(ctx context.Context, id uuid.UUID, body noShowRiskRequest) (*appointment.AppointmentDetail, error) {
		return h.svc.SetNoShowRisk(ctx, id, body.NoShowRisk)
	})(w, r)
}

func (h *AppointmentHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	h.patientList(w, r, appointment.DefaultUpcomingLimit, h.svc.Upcoming)
}

func (h *AppointmentHandler) History(w http.ResponseWriter, r *http.Request) {
	h.patientList(w, r, appointment.DefaultHistoryLimit, h.svc.History)
}

func (h *AppointmentHandler) patientList(
	w http.ResponseWriter,
	r *http.Request,
	defaultLimit int,
	fn func(context.Context, uuid.UUID, int) ([]appointment.AppointmentDetail, error),
) {
	patientID, err := urlUUID(r, "patientId")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", err.Error())
		return
	}
	q := newQueryParams(r)
	limit := q.intOr("limit", defaultLimit)
	if q.err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", q.err.Error())
		return
	}

	rows, err := fn(r.Context(), patientID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []appointment.AppointmentDetail{}
	}
	writeJSON(w, http.StatusOK, rows)
}
