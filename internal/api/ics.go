package api

import (
	"fmt"
	"net/http"
	"strings"

	ics "github.com/arran4/golang-ical"

	"github.com/hackgods/clinic-access-scheduling/internal/appointment"
)

const icsProductID = "-//clinic-access-scheduling//appointments//EN"

// ICS serves a single appointment as an iCalendar file for the patient's
// calendar app.
func (h *AppointmentHandler) ICS(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
		return
	}

	appt, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="appointment-%s.ics"`, appt.ConfirmationCode))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(appointmentCalendar(appt).Serialize()))
}

func appointmentCalendar(appt *appointment.AppointmentDetail) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)

	evt := cal.AddEvent(appt.ID.String() + "@clinic-access-scheduling")
	evt.SetDtStampTime(appt.UpdatedAt.UTC())
	evt.SetCreatedTime(appt.CreatedAt.UTC())
	evt.SetStartAt(appt.ScheduledStart.UTC())
	evt.SetEndAt(appt.ScheduledEnd.UTC())
	evt.SetSummary(fmt.Sprintf("%s with %s %s %s",
		appt.DepartmentName, appt.ProviderTitle, appt.ProviderFirstName, appt.ProviderLastName))
	evt.SetLocation(locationLine(appt))
	evt.SetDescription("Confirmation code: " + appt.ConfirmationCode)

	switch appt.Status {
	case appointment.StatusCancelled, appointment.StatusNoShow:
		evt.SetStatus(ics.ObjectStatusCancelled)
	default:
		evt.SetStatus(ics.ObjectStatusConfirmed)
	}
	return cal
}

func locationLine(appt *appointment.AppointmentDetail) string {
	parts := []string{appt.LocationName}
	if appt.LocationBuilding != "" {
		parts = append(parts, appt.LocationBuilding)
	}
	if appt.LocationFloor != "" {
		parts = append(parts, "Floor "+appt.LocationFloor)
	}
	if appt.LocationRoom != "" {
		parts = append(parts, "Room "+appt.LocationRoom)
	}
	return strings.Join(parts, ", ")
}
