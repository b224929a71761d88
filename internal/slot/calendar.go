package slot

import (
	"context"
	"sort"
)

const calendarDateLayout = "2006-01-02"

// Calendar maps a YYYY-MM-DD date to the slots starting that day, in start
// time order. Dates are taken from the stored instant in UTC; callers that
// need local-day grouping must normalise the instants first.
type Calendar map[string][]SlotWithAvailability

// Dates returns the calendar's keys in chronological order.
func (c Calendar) Dates() []string {
	dates := make([]string, 0, len(c))
	for d := range c {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// Calendar runs the search over every slot in range, booked or blocked, and
// groups the result by day.
func (s *Service) Calendar(ctx context.Context, f SearchFilter) (Calendar, error) {
	f.Availability = AvailabilityAny
	slots, err := s.Search(ctx, f)
	if err != nil {
		return nil, err
	}
	return groupByDay(slots), nil
}

func groupByDay(slots []SlotWithAvailability) Calendar {
	cal := make(Calendar)
	for _, sl := range slots {
		key := sl.StartTime.UTC().Format(calendarDateLayout)
		cal[key] = append(cal[key], sl)
	}
	return cal
}
