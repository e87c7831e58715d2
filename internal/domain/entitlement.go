package domain

import "time"

// Entitlement records how long an identity may access the service within a
// partition.
type Entitlement struct {
	Partition  string
	Identity   string
	EndsMillis int64
	UpdatedAt  time.Time
}

// Expired reports whether the entitlement ended before now.
func (e Entitlement) Expired(now time.Time) bool {
	return e.EndsMillis < now.UnixMilli()
}
