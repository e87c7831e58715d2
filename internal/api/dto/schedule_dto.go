package dto

import "github.com/spec-kit/entitlement-service/internal/domain"

// ScheduleEntry is one recurring notification, in slots.
type ScheduleEntry struct {
	LastFire     int64 `json:"last_fire"`
	FireInterval int64 `json:"fire_interval"`
}

// UpdateSchedulesRequest replaces the caller's schedule set.
type UpdateSchedulesRequest struct {
	Entries []ScheduleEntry `json:"entries"`
}

// ToDomain converts the payload entries.
func (r UpdateSchedulesRequest) ToDomain() []domain.ScheduleEntry {
	entries := make([]domain.ScheduleEntry, 0, len(r.Entries))
	for _, e := range r.Entries {
		entries = append(entries, domain.ScheduleEntry{LastFire: e.LastFire, FireInterval: e.FireInterval})
	}
	return entries
}

// RegisterPushRequest registers a device push token.
type RegisterPushRequest struct {
	PushToken string `json:"push_token"`
}
