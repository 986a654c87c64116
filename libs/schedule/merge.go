package schedule

// Merge folds a feed of appointments into the index and returns a new
// index; the input index is never mutated. The fold is idempotent and
// order-independent: merging the same feed twice, or two feeds in
// either order, yields the same result (up to natural-key ambiguity
// for records that carry no server ID).
//
// Matching is by server ID when the incoming record has one, otherwise
// by the natural key (start minute, staff, subject) within the target
// day. A match is replaced by the incoming record; everything else is
// inserted in sort position.
func Merge(idx *Index, incoming []Appointment) *Index {
	out := idx.Clone()
	for _, a := range incoming {
		key, err := NormalizeDate(string(a.Date))
		if err != nil {
			// Feed records are canonical by contract; anything else was
			// rejected at the boundary before reaching the merger.
			continue
		}
		a.Date = key

		if a.ID != "" {
			out.Remove(a.ID)
			// An authoritative record also claims any ID-less entry with
			// the same natural key, so a persisted proposal upgrades in
			// place instead of duplicating.
			if i, ok := findNaturalMatch(out.days[key], a); ok {
				out.replaceAt(key, i, a)
				continue
			}
			out.insertSorted(a)
			continue
		}

		if i, ok := findNaturalMatch(out.days[key], a); ok {
			out.replaceAt(key, i, a)
			continue
		}
		out.insertSorted(a)
	}
	return out
}

func findNaturalMatch(list []Appointment, a Appointment) (int, bool) {
	want := naturalKeyOf(a)
	for i, existing := range list {
		if existing.ID == "" && naturalKeyOf(existing) == want {
			return i, true
		}
	}
	return 0, false
}
