package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-access-scheduling/internal/appointment"
	"github.com/hackgods/clinic-access-scheduling/internal/slot"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type DeletedResponse struct {
	ID      uuid.UUID `json:"id"`
	Deleted bool      `json:"deleted"`
}

type ExpireResponse struct {
	Expired int `json:"expired"`
}

type cancelAppointmentRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// rescheduleRequest accepts the newStart/newEnd/newTimeSlotId names used by
// existing clients.
type rescheduleRequest struct {
	NewStart      time.Time  `json:"newStart"`
	NewEnd        time.Time  `json:"newEnd"`
	NewTimeSlotID *uuid.UUID `json:"newTimeSlotId,omitempty"`
}

func (r rescheduleRequest) input() appointment.RescheduleInput {
	return appointment.RescheduleInput{
		ScheduledStart: r.NewStart,
		ScheduledEnd:   r.NewEnd,
		TimeSlotID:     r.NewTimeSlotID,
	}
}

type completeAppointmentRequest struct {
	ProviderNotes *string `json:"providerNotes,omitempty"`
}

type noShowRiskRequest struct {
	NoShowRisk appointment.NoShowRisk `json:"noShowRisk"`
}

type blockSlotRequest struct {
	IsBlocked bool `json:"isBlocked"`
}

type recurringSlotsRequest struct {
	slot.CreateSlotInput
	RecurrenceCount int `json:"recurrenceCount"`
	IntervalDays    int `json:"intervalDays,omitempty"`
}

type convertEntryRequest struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// decodeJSON reads a single JSON object into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("could not parse JSON: %w", err)
	}
	return nil
}
