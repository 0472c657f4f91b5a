package domain

import "time"

// Setting is a key/value configuration record. Public settings may be served
// to unauthenticated consumers; the rest are operator-only.
type Setting struct {
	Key       string
	Category  string
	Value     string
	Public    bool
	UpdatedAt time.Time
}
