// Package derive computes the display values clients rely on: queue position,
// wait estimate and medication adherence. Everything here is pure.
package derive

import (
	"math"
	"sort"
	"strings"
	"time"

	"healthplus-server/internal/models"
)

// MinutesPerPatient is the fixed per-patient consultation estimate.
const MinutesPerPatient = 10

// SortActive returns the entries whose status is not done, ordered by ascending token.
func SortActive(entries []models.QueueEntry) []models.QueueEntry {
	active := make([]models.QueueEntry, 0, len(entries))
	for _, e := range entries {
		if e.Status != models.QueueDone {
			active = append(active, e)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].TokenNumber < active[j].TokenNumber
	})
	return active
}

// ServingToken returns the token currently being served by the entry's doctor, or 0.
func ServingToken(doctorID string, active []models.QueueEntry) int {
	for _, e := range active {
		if e.DoctorID == doctorID && e.Status == models.QueueServing {
			return e.TokenNumber
		}
	}
	return 0
}

// QueuePosition is the number of tokens between entry and the one being served.
// A result <= 0 means the entry is next or is being served.
func QueuePosition(entry models.QueueEntry, active []models.QueueEntry) int {
	return entry.TokenNumber - ServingToken(entry.DoctorID, active)
}

// EstimatedWaitMinutes converts a queue position into minutes.
func EstimatedWaitMinutes(position int) int {
	if position < 0 {
		position = 0
	}
	return position * MinutesPerPatient
}

// AdherenceRate returns the percentage of expected doses marked taken as of today.
// ok is false when the dosage is not daily or the duration is not expressed in days.
// The dosage match ignores case; the duration must contain lowercase "days".
// The rate is not clamped: extra doses push it above 100.
func AdherenceRate(p models.Prescription, today time.Time) (rate int, ok bool) {
	if !strings.Contains(strings.ToLower(p.Dosage), "daily") || !strings.Contains(p.Duration, "days") {
		return 0, false
	}
	durationDays, ok := leadingInt(p.Duration)
	if !ok {
		return 0, false
	}
	start, err := time.Parse(models.DateLayout, p.StartDate)
	if err != nil {
		return 0, false
	}

	elapsed := daysBetween(start, today) + 1
	expected := min(elapsed, durationDays)
	if expected <= 0 {
		return 100, true
	}
	return int(math.Floor(100*float64(len(p.DosesTaken))/float64(expected) + 0.5)), true
}

// ToggleDoseTaken adds date to doses, or removes it when already present.
// The input slice is not modified.
func ToggleDoseTaken(doses []string, date string) []string {
	out := make([]string, 0, len(doses)+1)
	found := false
	for _, d := range doses {
		if d == date {
			found = true
			continue
		}
		out = append(out, d)
	}
	if !found {
		out = append(out, date)
	}
	return out
}

// daysBetween counts calendar days from start's date to end's date. Each date
// is read in the value's own location: start dates are parsed as UTC, while
// end is usually the server's local clock. Near local midnight in a non-UTC
// zone the result can differ by one from a count of elapsed UTC days.
func daysBetween(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Floor(e.Sub(s).Hours() / 24))
}

// leadingInt parses the integer prefix of s after optional whitespace and sign, e.g. "10 days" -> 10.
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n, digits := 0, 0
	for ; digits < len(s) && s[digits] >= '0' && s[digits] <= '9'; digits++ {
		n = n*10 + int(s[digits]-'0')
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}
