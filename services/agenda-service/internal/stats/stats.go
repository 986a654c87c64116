package stats

import "github.com/avery-cole/frontdesk/libs/schedule"

// Read-only projections over an index snapshot. Each call walks the
// snapshot it was given; nothing here holds state.

func inRange(idx *schedule.Index, from, to schedule.DateKey, fn func(schedule.Appointment)) {
	for _, day := range idx.Days() {
		if day < from || day > to {
			continue
		}
		for _, a := range idx.Day(day) {
			fn(a)
		}
	}
}

// NoShowRate is the fraction of attended-or-missed appointments that
// were missed. Days with no completed or no-show appointments yield 0.
func NoShowRate(idx *schedule.Index, from, to schedule.DateKey) float64 {
	var noShows, settled int
	inRange(idx, from, to, func(a schedule.Appointment) {
		switch a.Status {
		case schedule.StatusNoShow:
			noShows++
			settled++
		case schedule.StatusCompleted:
			settled++
		}
	})
	if settled == 0 {
		return 0
	}
	return float64(noShows) / float64(settled)
}

// AverageDurationMinutes averages over non-cancelled appointments.
func AverageDurationMinutes(idx *schedule.Index, from, to schedule.DateKey) float64 {
	var total, count int
	inRange(idx, from, to, func(a schedule.Appointment) {
		if !a.Active() {
			return
		}
		d := a.DurationMinutes
		if d <= 0 {
			d = int(a.EndTime() - a.Start)
		}
		if d > 0 {
			total += d
			count++
		}
	})
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

// CountByStatus tallies every appointment in range, cancelled included.
func CountByStatus(idx *schedule.Index, from, to schedule.DateKey) map[schedule.Status]int {
	out := map[schedule.Status]int{}
	inRange(idx, from, to, func(a schedule.Appointment) {
		out[a.Status]++
	})
	return out
}
