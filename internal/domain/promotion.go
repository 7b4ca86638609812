package domain

import "time"

// Promotion is a storewide percentage campaign. At most one promotion is active
// at any instant; activation is an exclusive transition enforced by the
// promotion repository.
type Promotion struct {
	ID          string
	Title       string
	Percent     int64
	Description string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
