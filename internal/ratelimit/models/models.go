package models

import "time"

// Policy bounds how many requests one key may make within Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) Enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

// Result is the outcome of one limiter check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the window frees a slot,
// never less than one.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// GuestKey scopes guest traffic by client address.
func GuestKey(clientIP string) string {
	return "guest:" + clientIP
}
