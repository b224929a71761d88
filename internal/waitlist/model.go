package waitlist

import (
	"time"

	"github.com/google/uuid"
)

// EntryLifetime is how long an entry stays eligible before the expiry sweep
// may retire it.
const EntryLifetime = 30 * 24 * time.Hour

type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities lists every priority, most urgent first.
var Priorities = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}

// Rank orders priorities: urgent=1 through low=4. Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 1
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 3
	case PriorityLow:
		return 4
	}
	return 5
}

func (p Priority) Valid() bool { return p.Rank() < 5 }

type Status string

const (
	StatusActive    Status = "active"
	StatusContacted Status = "contacted"
	StatusConverted Status = "converted"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

var Statuses = []Status{StatusActive, StatusContacted, StatusConverted, StatusExpired, StatusCancelled}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Eligible reports whether the entry still represents pending demand.
func (s Status) Eligible() bool {
	return s == StatusActive || s == StatusContacted
}

type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
)

// TimeOfDayAt buckets a UTC hour: before 12:00 is morning, 12:00 to 17:00
// afternoon, later evening.
func TimeOfDayAt(t time.Time) TimeOfDay {
	h := t.UTC().Hour()
	switch {
	case h < 12:
		return Morning
	case h < 17:
		return Afternoon
	default:
		return Evening
	}
}

type Entry struct {
	ID                       uuid.UUID  `json:"id"`
	PatientID                uuid.UUID  `json:"patientId"`
	DepartmentID             uuid.UUID  `json:"departmentId"`
	ProviderID               *uuid.UUID `json:"providerId,omitempty"`
	PreferredDates           []string   `json:"preferredDates"`
	PreferredTimeOfDay       []string   `json:"preferredTimeOfDay"`
	Priority                 Priority   `json:"priority"`
	MedicalUrgency           *string    `json:"medicalUrgency,omitempty"`
	Status                   Status     `json:"status"`
	RequestedDate            time.Time  `json:"requestedDate"`
	ExpiresAt                time.Time  `json:"expiresAt"`
	NotificationsSent        int        `json:"notificationsSent"`
	LastNotificationSent     *time.Time `json:"lastNotificationSent,omitempty"`
	ConvertedToAppointmentID *uuid.UUID `json:"convertedToAppointmentId,omitempty"`
	Notes                    *string    `json:"notes,omitempty"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                time.Time  `json:"updatedAt"`
}

type EntryDetail struct {
	Entry

	PatientFirstName  string `json:"patientFirstName"`
	PatientLastName   string `json:"patientLastName"`
	PatientPhone      string `json:"patientPhone,omitempty"`
	PatientEmail      string `json:"patientEmail,omitempty"`
	DepartmentName    string `json:"departmentName"`
	DepartmentCode    string `json:"departmentCode"`
	ProviderFirstName string `json:"providerFirstName,omitempty"`
	ProviderLastName  string `json:"providerLastName,omitempty"`
	ProviderTitle     string `json:"providerTitle,omitempty"`
}

type CreateInput struct {
	PatientID          uuid.UUID  `json:"patientId"`
	DepartmentID       uuid.UUID  `json:"departmentId"`
	ProviderID         *uuid.UUID `json:"providerId,omitempty"`
	PreferredDates     []string   `json:"preferredDates,omitempty"`
	PreferredTimeOfDay []string   `json:"preferredTimeOfDay,omitempty"`
	Priority           Priority   `json:"priority"`
	MedicalUrgency     *string    `json:"medicalUrgency,omitempty"`
	Notes              *string    `json:"notes,omitempty"`
}

type UpdateInput struct {
	PreferredDates     *[]string `json:"preferredDates,omitempty"`
	PreferredTimeOfDay *[]string `json:"preferredTimeOfDay,omitempty"`
	Priority           *Priority `json:"priority,omitempty"`
	MedicalUrgency     *string   `json:"medicalUrgency,omitempty"`
	Notes              *string   `json:"notes,omitempty"`
}

func (in UpdateInput) empty() bool {
	return in.PreferredDates == nil && in.PreferredTimeOfDay == nil &&
		in.Priority == nil && in.MedicalUrgency == nil && in.Notes == nil
}

type ListFilter struct {
	DepartmentID *uuid.UUID
	ProviderID   *uuid.UUID
	PatientID    *uuid.UUID
	Statuses     []Status // any of
	Priority     *Priority
}

// GroupCount is the number of entries sharing a status and priority.
type GroupCount struct {
	Status   Status
	Priority Priority
	Count    int
}

type Stats struct {
	Total           int              `json:"total"`
	ByStatus        map[Status]int   `json:"byStatus"`
	ByPriority      map[Priority]int `json:"byPriority"`
	AverageWaitDays *float64         `json:"averageWaitDays"`
}
