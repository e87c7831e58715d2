package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventEntitlementGranted EventType = "entitlement_granted"
	EventSchedulesReplaced  EventType = "schedules_replaced"
	EventNotificationDue    EventType = "notification_due"
	EventEntitlementExpired EventType = "entitlement_expired"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Partition   string    `json:"partition"`
	Entitlement string    `json:"entitlement"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     any       `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, partition, entitlement string, payload any) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		Partition:   partition,
		Entitlement: entitlement,
		Timestamp:   time.Now().UTC(),
		Payload:     payload,
	}
}

// EntitlementGrantedPayload payload.
type EntitlementGrantedPayload struct {
	EndsMillis int64 `json:"ends_millis"`
}

// SchedulesReplacedPayload payload.
type SchedulesReplacedPayload struct {
	Count int `json:"count"`
}

// NotificationDuePayload identifies the schedule that fired and the slot it
// fired in.
type NotificationDuePayload struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
	Slot       int64     `json:"slot"`
}

// EntitlementExpiredPayload payload.
type EntitlementExpiredPayload struct {
	EndsMillis       int64 `json:"ends_millis"`
	SchedulesRemoved int64 `json:"schedules_removed"`
}
