package validation

import (
	"fmt"
	"time"
)

// State is the lifecycle position of a validation request.
type State string

// Request states. Expired is never stored; a Pending request whose window
// has lapsed reads as Expired.
const (
	Pending    State = "pending"
	Authorized State = "authorized"
	Expired    State = "expired"
)

// messageSuffix ends every challenge message.
const messageSuffix = "starRegistry"

// Request is an in-flight identity proof for one address.
type Request struct {
	Address  string
	IssuedAt time.Time
	Window   time.Duration
	State    State
}

// Message is the text the address owner must sign.
func (r Request) Message() string {
	return fmt.Sprintf("%s:%d:%s", r.Address, r.IssuedAt.UnixMilli(), messageSuffix)
}

// Remaining returns the time left in the window at now, floored at zero.
func (r Request) Remaining(now time.Time) time.Duration {
	left := r.IssuedAt.Add(r.Window).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// StateAt reports the state as observed at now.
func (r Request) StateAt(now time.Time) State {
	if r.State == Pending && r.Remaining(now) == 0 {
		return Expired
	}
	return r.State
}

// Seconds renders a window as fractional seconds for display.
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}
