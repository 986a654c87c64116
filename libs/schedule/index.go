package schedule

import "sort"

// Index is the ordered-by-time mapping from DateKey to the appointments
// of that day. Day lists are always ascending by start minute; equal
// starts keep arrival order. The index never performs I/O.
//
// Index is not safe for concurrent mutation. Callers that share one
// across goroutines work on snapshots: Clone (or Merge, which clones
// internally) and swap the result in.
type Index struct {
	days map[DateKey][]Appointment
}

func NewIndex() *Index {
	return &Index{days: map[DateKey][]Appointment{}}
}

// Upsert inserts the appointment into its day list keeping the sort
// invariant. If an appointment with the same ID exists anywhere in the
// index it is replaced, never duplicated.
func (x *Index) Upsert(a Appointment) {
	if a.ID != "" {
		x.Remove(a.ID)
	}
	x.insertSorted(a)
}

// Day returns the day's appointments in start order. Unknown keys yield
// an empty slice, not an error. The result is a copy.
func (x *Index) Day(key DateKey) []Appointment {
	list := x.days[key]
	out := make([]Appointment, len(list))
	copy(out, list)
	return out
}

// Remove deletes the appointment with the given ID from whichever day
// holds it. Absent IDs are a no-op.
func (x *Index) Remove(id string) {
	if id == "" {
		return
	}
	for key, list := range x.days {
		for i, a := range list {
			if a.ID == id {
				list = append(list[:i:i], list[i+1:]...)
				if len(list) == 0 {
					delete(x.days, key)
				} else {
					x.days[key] = list
				}
				return
			}
		}
	}
}

// Days returns the populated day keys in calendar order.
func (x *Index) Days() []DateKey {
	keys := make([]DateKey, 0, len(x.days))
	for k := range x.days {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len is the total number of appointments across all days.
func (x *Index) Len() int {
	n := 0
	for _, list := range x.days {
		n += len(list)
	}
	return n
}

// Clone deep-copies the index. Appointment values are copied; the clone
// and the original never share day slices.
func (x *Index) Clone() *Index {
	out := NewIndex()
	for key, list := range x.days {
		dup := make([]Appointment, len(list))
		copy(dup, list)
		out.days[key] = dup
	}
	return out
}

// insertSorted places a at the upper bound of its start minute so that
// equal starts keep arrival order.
func (x *Index) insertSorted(a Appointment) {
	list := x.days[a.Date]
	i := sort.Search(len(list), func(i int) bool { return list[i].Start > a.Start })
	list = append(list, Appointment{})
	copy(list[i+1:], list[i:])
	list[i] = a
	x.days[a.Date] = list
}

// replaceAt swaps the entry at position i of a day list. The caller
// guarantees the replacement has the same start minute.
func (x *Index) replaceAt(key DateKey, i int, a Appointment) {
	x.days[key][i] = a
}
