package domain

import "time"

// PushEndpoint is the device token notifications for an entitlement go to.
type PushEndpoint struct {
	Partition   string
	Entitlement string
	PushToken   string
	UpdatedAt   time.Time
}
