package slot

import (
	"time"

	"github.com/google/uuid"
)

// TimeSlot is a bookable window of a provider's calendar.
type TimeSlot struct {
	ID               uuid.UUID `json:"id"`
	ProviderID       uuid.UUID `json:"providerId"`
	DepartmentID     uuid.UUID `json:"departmentId"`
	LocationID       uuid.UUID `json:"locationId"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	Duration         int       `json:"duration"`
	Capacity         int       `json:"capacity"`
	IsAvailable      bool      `json:"isAvailable"`
	IsRecurring      bool      `json:"isRecurring"`
	RecurringPattern *string   `json:"recurringPattern,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// SlotWithAvailability is a slot joined with its display data and the
// capacity figures derived from live appointment rows.
type SlotWithAvailability struct {
	TimeSlot

	ProviderFirstName string `json:"providerFirstName"`
	ProviderLastName  string `json:"providerLastName"`
	ProviderTitle     string `json:"providerTitle"`
	DepartmentName    string `json:"departmentName"`
	DepartmentCode    string `json:"departmentCode"`
	LocationName      string `json:"locationName"`
	LocationBuilding  string `json:"locationBuilding,omitempty"`
	LocationFloor     string `json:"locationFloor,omitempty"`
	LocationRoom      string `json:"locationRoom,omitempty"`

	BookedCount       int `json:"bookedCount"`
	AvailableCapacity int `json:"availableCapacity"`
}

// Availability selects how a search treats isAvailable and capacity.
type Availability int

const (
	// AvailabilityOpen returns unblocked slots with free capacity.
	AvailabilityOpen Availability = iota
	// AvailabilityBlocked returns blocked slots, without capacity filtering.
	AvailabilityBlocked
	// AvailabilityAny returns every slot in range, full or not.
	AvailabilityAny
)

// AvailabilityFromFlag maps the optional isAvailable request flag. A nil
// flag means the default of true.
func AvailabilityFromFlag(flag *bool) Availability {
	if flag != nil && !*flag {
		return AvailabilityBlocked
	}
	return AvailabilityOpen
}

type SearchFilter struct {
	StartDate    time.Time
	EndDate      time.Time
	DepartmentID *uuid.UUID
	ProviderID   *uuid.UUID
	LocationID   *uuid.UUID
	Availability Availability
}

// UpcomingFilter drives next-available and waitlist matching lookups.
type UpcomingFilter struct {
	DepartmentID uuid.UUID
	ProviderID   *uuid.UUID
}

type CreateSlotInput struct {
	ProviderID       uuid.UUID `json:"providerId"`
	DepartmentID     uuid.UUID `json:"departmentId"`
	LocationID       uuid.UUID `json:"locationId"`
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	Duration         int       `json:"duration"`
	Capacity         int       `json:"capacity"`
	IsRecurring      bool      `json:"isRecurring"`
	RecurringPattern *string   `json:"recurringPattern,omitempty"`
}

// UpdateSlotInput carries a partial update; nil fields are left alone.
type UpdateSlotInput struct {
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Duration  *int       `json:"duration,omitempty"`
	Capacity  *int       `json:"capacity,omitempty"`
}

func (in UpdateSlotInput) empty() bool {
	return in.StartTime == nil && in.EndTime == nil && in.Duration == nil && in.Capacity == nil
}
