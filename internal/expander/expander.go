// Package expander implements the Calendar Expander (C1): given a calendar
// month and a set of services, it produces the ordered set of slot keys
// that must be filled, following the same week-grid rule the teacher's
// viewhelpers package uses to render a month for display.
package expander

import (
	"fmt"
	"sort"
	"time"

	"github.com/dutyroster/scheduler/internal/domain"
	"github.com/dutyroster/scheduler/internal/logging"
)

// Slot is an ephemeral (date, duty) pair that must be filled. Its identity
// is the concatenated Key; slots are never persisted.
type Slot struct {
	Year  int
	Month time.Month
	Day   int
	Duty  domain.DutyID
}

// Key returns the canonical "YYYY-M-D-DUTY_ID" slot key (§6: non-padded
// month and day).
func (s Slot) Key() string {
	return fmt.Sprintf("%d-%d-%d-%s", s.Year, int(s.Month), s.Day, s.Duty)
}

// Date returns the slot's calendar date at midnight UTC.
func (s Slot) Date() time.Time {
	return time.Date(s.Year, s.Month, s.Day, 0, 0, 0, 0, time.UTC)
}

// week is a 7-tuple indexed by weekday, Sunday=0. A value of 0 marks a day
// outside the target month.
type week [7]int

// monthWeeks computes the ordered list of weeks covering year/month, with
// Sunday-first weekday indexing and zero for out-of-month days — the same
// layout Python's calendar.monthcalendar(year, month) produces with
// setfirstweekday(SUNDAY).
func monthWeeks(year int, month time.Month) []week {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()

	var weeks []week
	var current week
	// int(time.Sunday) == 0, matching our Sunday=0 convention.
	startWeekday := int(first.Weekday())
	for i := 0; i < startWeekday; i++ {
		current[i] = 0
	}
	day := 1
	col := startWeekday
	for day <= daysInMonth {
		current[col] = day
		day++
		col++
		if col == 7 {
			weeks = append(weeks, current)
			current = week{}
			col = 0
		}
	}
	if col != 0 {
		for ; col < 7; col++ {
			current[col] = 0
		}
		weeks = append(weeks, current)
	}
	return weeks
}

// serviceDays returns the set of weekdays any service in the set runs on,
// where a weekly (nil-weekday) service contributes the sentinel -1.
func serviceDays(services []domain.Service) map[int]struct{} {
	days := make(map[int]struct{})
	for _, s := range services {
		if s.Weekday != nil {
			days[*s.Weekday] = struct{}{}
		} else {
			days[-1] = struct{}{}
		}
	}
	return days
}

// weekIsActive reports whether w has a non-empty day on any concrete
// (non-null) weekday present in days. A set containing only the nil/weekly
// sentinel has no non-null element to check, so — matching the original
// scheduler's has_services_this_week — it never activates a week on its
// own; weekly services only produce slots in weeks some weekday-bound
// service already activated.
func weekIsActive(w week, days map[int]struct{}) bool {
	for wd := range days {
		if wd == -1 {
			continue
		}
		if w[wd] != 0 {
			return true
		}
	}
	return false
}

// weeklyServiceDay returns the first non-empty day in w whose weekday index
// appears in days (service_days in the spec), mirroring get_service_day's
// None branch. Returns 0 if no such day exists.
func weeklyServiceDay(w week, days map[int]struct{}) int {
	for i, d := range w {
		if d == 0 {
			continue
		}
		if _, ok := days[i]; ok {
			return d
		}
	}
	return 0
}

// WeekIndex returns the 0-based index, within year/month's Sunday-first
// week grid, of the week containing day. Two slots sharing a WeekIndex are
// "in the same week" for the excluded-duty-pairing rule; this is the same
// grid Expand and monthWeeks use, so alignment is automatic instead of
// requiring separate sentinel bookkeeping per duty pair.
func WeekIndex(year int, month time.Month, day int) int {
	weeks := monthWeeks(year, month)
	for i, w := range weeks {
		for _, d := range w {
			if d == day {
				return i
			}
		}
	}
	return -1
}

// Expand produces the ordered list of slots for year/month given the
// services in play. The ordering is deterministic: weeks in calendar order,
// then services in the order given, then duties by their display Order.
func Expand(year int, month time.Month, services []domain.Service) []Slot {
	log := logging.GetLogger("expander")
	weeks := monthWeeks(year, month)
	days := serviceDays(services)

	seen := make(map[string]struct{})
	var slots []Slot
	for _, w := range weeks {
		if !weekIsActive(w, days) {
			continue
		}
		for _, svc := range services {
			var day int
			if svc.Weekday != nil {
				day = w[*svc.Weekday]
			} else {
				day = weeklyServiceDay(w, days)
			}
			if day == 0 {
				continue
			}
			duties := make([]domain.Duty, len(svc.Duties))
			copy(duties, svc.Duties)
			sort.Slice(duties, func(i, j int) bool { return duties[i].Order < duties[j].Order })
			for _, duty := range duties {
				s := Slot{Year: year, Month: month, Day: day, Duty: duty.ID}
				key := s.Key()
				if _, dup := seen[key]; dup {
					log.Warn().Str("slot", key).Msg("duplicate slot suppressed during expansion")
					continue
				}
				seen[key] = struct{}{}
				slots = append(slots, s)
			}
		}
	}
	log.Debug().Int("year", year).Int("month", int(month)).Int("slot_count", len(slots)).Msg("expanded month to slots")
	return slots
}

// ParseSlotKey splits a slot key on its last '-' into a date and a duty ID,
// per §6 ("Parsing splits on the last '-' only").
func ParseSlotKey(key string) (year int, month time.Month, day int, duty domain.DutyID, err error) {
	idx := -1
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '-' {
			idx = i
			break
		}
	}
	if idx <= 0 || idx == len(key)-1 {
		return 0, 0, 0, "", fmt.Errorf("invalid slot key %q: missing duty segment", key)
	}
	dateStr := key[:idx]
	dutyStr := key[idx+1:]
	var y, m, d int
	if _, scanErr := fmt.Sscanf(dateStr, "%d-%d-%d", &y, &m, &d); scanErr != nil {
		return 0, 0, 0, "", fmt.Errorf("invalid slot key %q: bad date segment: %w", key, scanErr)
	}
	for _, r := range dutyStr {
		if !isDutyIDRune(r) {
			return 0, 0, 0, "", fmt.Errorf("invalid slot key %q: duty id contains invalid character %q", key, r)
		}
	}
	return y, time.Month(m), d, domain.DutyID(dutyStr), nil
}

func isDutyIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return true
	default:
		return false
	}
}
