package domain

import (
	"cmp"
	"slices"

	"github.com/google/uuid"
)

// Schedule is a stored recurring notification. NextFire and FireInterval
// are measured in notification slots.
type Schedule struct {
	ID           uuid.UUID
	Partition    string
	Entitlement  string
	NextFire     int64
	FireInterval int64
}

// Entry converts the stored row back to the client's view of it.
func (s Schedule) Entry() ScheduleEntry {
	return ScheduleEntry{LastFire: s.NextFire - s.FireInterval, FireInterval: s.FireInterval}
}

// ScheduleEntry is a schedule as submitted by a client.
type ScheduleEntry struct {
	LastFire     int64
	FireInterval int64
}

// NextFire is the first slot after LastFire the schedule is due in.
func (e ScheduleEntry) NextFire() int64 {
	return e.LastFire + e.FireInterval
}

// CompareScheduleEntries orders by LastFire then FireInterval.
func CompareScheduleEntries(a, b ScheduleEntry) int {
	if c := cmp.Compare(a.LastFire, b.LastFire); c != 0 {
		return c
	}
	return cmp.Compare(a.FireInterval, b.FireInterval)
}

// SameScheduleSet reports whether a and b hold the same entries in any order.
func SameScheduleSet(a, b []ScheduleEntry) bool {
	if len(a) != len(b) {
		return false
	}
	left := slices.Clone(a)
	right := slices.Clone(b)
	slices.SortFunc(left, CompareScheduleEntries)
	slices.SortFunc(right, CompareScheduleEntries)
	return slices.Equal(left, right)
}
