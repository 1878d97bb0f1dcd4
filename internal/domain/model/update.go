// Package model contains domain models passed between layers.
package model

import "time"

// PlatformUpdate is one rating snapshot for a platform, as supplied by an
// upstream collector. It is the unit that flows through the ingestion queue.
type PlatformUpdate struct {
	UpdateID      string             // unique id for idempotency
	Platform      string             // registered platform name
	Difficulty    float64            // raw difficulty, same units as the platform's max rating
	Participation float64            // participation fraction in [0,1]
	Ratings       map[string]float64 // user id -> raw rating on the platform's native scale
	TS            time.Time          // when the collector took the snapshot
}

// Users returns the number of users covered by the snapshot.
func (u PlatformUpdate) Users() int { //nolint:gocritic // hugeParam: value receiver keeps the update immutable
	return len(u.Ratings)
}
