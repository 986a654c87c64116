package schedule

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect: aStart < bEnd && bStart < aEnd. Touching
// endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

// Detect returns the existing appointments for the staff member on the
// given day whose interval intersects the proposed one. Cancelled
// appointments never conflict. The index is not mutated.
func Detect(idx *Index, staffID string, day DateKey, start TimeOfDay, durationMinutes int) []Appointment {
	proposedEnd := start + TimeOfDay(durationMinutes)
	var conflicts []Appointment
	for _, a := range idx.Day(day) {
		if a.StaffID != staffID || !a.Active() {
			continue
		}
		if Overlaps(a.Start, a.EndTime(), start, proposedEnd) {
			conflicts = append(conflicts, a)
		}
	}
	return conflicts
}
