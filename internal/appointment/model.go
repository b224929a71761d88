package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusScheduled   AppointmentStatus = "scheduled"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusCheckedIn   AppointmentStatus = "checked_in"
	StatusInProgress  AppointmentStatus = "in_progress"
	StatusCompleted   AppointmentStatus = "completed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusNoShow      AppointmentStatus = "no_show"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

var validStatuses = map[AppointmentStatus]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusCheckedIn: true,
	StatusInProgress: true, StatusCompleted: true, StatusCancelled: true,
	StatusNoShow: true, StatusRescheduled: true,
}

func (s AppointmentStatus) Valid() bool { return validStatuses[s] }

// ConsumesCapacity reports whether an appointment in this status holds a
// seat in its slot.
func (s AppointmentStatus) ConsumesCapacity() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// Closed reports whether the appointment has reached an end state.
func (s AppointmentStatus) Closed() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type NoShowRisk string

const (
	RiskLow    NoShowRisk = "low"
	RiskMedium NoShowRisk = "medium"
	RiskHigh   NoShowRisk = "high"
)

func (r NoShowRisk) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

type Appointment struct {
	ID                 uuid.UUID         `json:"id"`
	ConfirmationCode   string            `json:"confirmationCode"`
	PatientID          uuid.UUID         `json:"patientId"`
	ProviderID         uuid.UUID         `json:"providerId"`
	DepartmentID       uuid.UUID         `json:"departmentId"`
	TimeSlotID         *uuid.UUID        `json:"timeSlotId,omitempty"`
	LocationID         uuid.UUID         `json:"locationId"`
	ScheduledStart     time.Time         `json:"scheduledStart"`
	ScheduledEnd       time.Time         `json:"scheduledEnd"`
	ActualStart        *time.Time        `json:"actualStart,omitempty"`
	ActualEnd          *time.Time        `json:"actualEnd,omitempty"`
	Status             AppointmentStatus `json:"status"`
	AppointmentType    string            `json:"appointmentType"`
	Reason             *string           `json:"reason,omitempty"`
	Notes              *string           `json:"notes,omitempty"`
	ProviderNotes      *string           `json:"providerNotes,omitempty"`
	NoShowRisk         *NoShowRisk       `json:"noShowRisk,omitempty"`
	CancelledAt        *time.Time        `json:"cancelledAt,omitempty"`
	CancellationReason *string           `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// AppointmentDetail is an appointment joined with display names of the
// people and places it references.
type AppointmentDetail struct {
	Appointment

	PatientFirstName  string `json:"patientFirstName"`
	PatientLastName   string `json:"patientLastName"`
	PatientPhone      string `json:"patientPhone,omitempty"`
	PatientEmail      string `json:"patientEmail,omitempty"`
	ProviderFirstName string `json:"providerFirstName"`
	ProviderLastName  string `json:"providerLastName"`
	ProviderTitle     string `json:"providerTitle"`
	DepartmentName    string `json:"departmentName"`
	DepartmentCode    string `json:"departmentCode"`
	LocationName      string `json:"locationName"`
	LocationBuilding  string `json:"locationBuilding,omitempty"`
	LocationFloor     string `json:"locationFloor,omitempty"`
	LocationRoom      string `json:"locationRoom,omitempty"`
}

type CreateInput struct {
	PatientID       uuid.UUID `json:"patientId"`
	ProviderID      uuid.UUID `json:"providerId"`
	DepartmentID    uuid.UUID `json:"departmentId"`
	TimeSlotID      uuid.UUID `json:"timeSlotId"`
	LocationID      uuid.UUID `json:"locationId"`
	ScheduledStart  time.Time `json:"scheduledStart"`
	ScheduledEnd    time.Time `json:"scheduledEnd"`
	AppointmentType string    `json:"appointmentType"`
	Reason          *string   `json:"reason,omitempty"`
	Notes           *string   `json:"notes,omitempty"`
}

// UpdateInput carries a partial update; nil fields are left alone.
type UpdateInput struct {
	ScheduledStart *time.Time `json:"scheduledStart,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduledEnd,omitempty"`
	Reason         *string    `json:"reason,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	ProviderNotes  *string    `json:"providerNotes,omitempty"`
}

func (in UpdateInput) empty() bool {
	return in.ScheduledStart == nil && in.ScheduledEnd == nil &&
		in.Reason == nil && in.Notes == nil && in.ProviderNotes == nil
}

type ListFilter struct {
	PatientID    *uuid.UUID
	ProviderID   *uuid.UUID
	DepartmentID *uuid.UUID
	Status       *AppointmentStatus
	StartDate    *time.Time // scheduled_start >= StartDate
	EndDate      *time.Time // scheduled_end <= EndDate
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type Page struct {
	Data       []AppointmentDetail `json:"data"`
	Pagination Pagination          `json:"pagination"`
}
