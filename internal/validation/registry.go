// Package validation tracks identity-proof challenges per wallet address.
//
// Each address has at most one live Request. A Request starts Pending, becomes
// Authorized when a valid signature arrives inside its window, and is removed
// when the authorization is consumed by a ledger append. Expiry is computed
// lazily from the issue time; there are no timers.
package validation

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultWindow is the validity period of a fresh challenge.
const DefaultWindow = 5 * time.Minute

// ErrNoRequest is returned when an address has no challenge on record.
var ErrNoRequest = errors.New("no validation request for address")

// Outcome is the result of recording a signature check. Superseded is set
// when the checked challenge is no longer the one on record.
type Outcome struct {
	Request    Request
	Remaining  time.Duration
	Authorized bool
	Superseded bool
}

// Registry is a mutex-guarded map of address to Request.
type Registry struct {
	window time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	requests map[string]*Request
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a Registry whose challenges last window. A non-positive window
// selects DefaultWindow.
func New(window time.Duration, logger *zap.Logger, opts ...Option) *Registry {
	if window <= 0 {
		window = DefaultWindow
	}
	r := &Registry{
		window:   window,
		now:      time.Now,
		logger:   logger,
		requests: make(map[string]*Request),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Window returns the configured validity period.
func (r *Registry) Window() time.Duration { return r.window }

// Now returns the registry's current time.
func (r *Registry) Now() time.Time { return r.now() }

// RequestChallenge returns the live request for address, or creates a new
// Pending one when there is none or the existing one has lapsed. created
// reports whether a new request was issued.
func (r *Registry) RequestChallenge(address string) (req Request, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if cur, ok := r.requests[address]; ok {
		if cur.StateAt(now) != Expired {
			return *cur, false
		}
		r.logger.Debug("replacing expired validation request", zap.String("address", address))
	}

	fresh := &Request{
		Address:  address,
		IssuedAt: now,
		Window:   r.window,
		State:    Pending,
	}
	r.requests[address] = fresh
	r.logger.Info("validation request issued",
		zap.String("address", address),
		zap.Duration("window", r.window),
	)
	return *fresh, true
}

// Lookup returns the request for address with its state evaluated now.
func (r *Registry) Lookup(address string) (Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.requests[address]
	if !ok {
		return Request{}, false
	}
	req := *cur
	req.State = req.StateAt(r.now())
	return req, true
}

// RemainingWindow returns the time left on the request for address.
func (r *Registry) RemainingWindow(address string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.requests[address]
	if !ok {
		return 0, false
	}
	return cur.Remaining(r.now()), true
}

// RecordSignatureResult applies a signature check over checked, the challenge
// the signature was verified against. A Pending request becomes Authorized
// only when success is true, the window is still open and checked is still
// the request on record for its address. An Authorized request is never
// demoted.
func (r *Registry) RecordSignatureResult(checked Request, success bool) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.requests[checked.Address]
	if !ok {
		return Outcome{}, ErrNoRequest
	}

	now := r.now()
	remaining := cur.Remaining(now)
	if !cur.IssuedAt.Equal(checked.IssuedAt) {
		r.logger.Info("signature checked against a superseded challenge",
			zap.String("address", checked.Address),
		)
		out := Outcome{Request: *cur, Remaining: remaining, Superseded: true}
		out.Request.State = cur.StateAt(now)
		return out, nil
	}

	authorized := success && remaining > 0
	if authorized && cur.State == Pending {
		cur.State = Authorized
		r.logger.Info("address authorized", zap.String("address", checked.Address))
	}

	out := Outcome{Request: *cur, Remaining: remaining, Authorized: authorized}
	out.Request.State = cur.StateAt(now)
	return out, nil
}

// IsAuthorized reports whether address holds an unconsumed authorization.
func (r *Registry) IsAuthorized(address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.requests[address]
	return ok && cur.State == Authorized
}

// ConsumeAuthorization removes the request for address if, and only if, it
// is Authorized. Exactly one of any set of concurrent callers sees true.
func (r *Registry) ConsumeAuthorization(address string) (Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.requests[address]
	if !ok || cur.State != Authorized {
		return Request{}, false
	}
	delete(r.requests, address)
	return *cur, true
}

// Reinstate restores an authorization consumed by a caller that then failed
// to append. It does nothing if the address has since started a new request.
func (r *Registry) Reinstate(req Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[req.Address]; exists {
		return
	}
	req.State = Authorized
	r.requests[req.Address] = &req
	r.logger.Info("authorization reinstated", zap.String("address", req.Address))
}

// Sweep removes Pending requests whose window closed more than grace ago and
// returns how many were removed. Authorized requests are kept.
func (r *Registry) Sweep(grace time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-grace)
	n := 0
	for addr, req := range r.requests {
		if req.State == Pending && req.IssuedAt.Add(req.Window).Before(cutoff) {
			delete(r.requests, addr)
			n++
		}
	}
	if n > 0 {
		r.logger.Info("pruned expired validation requests", zap.Int("count", n))
	}
	return n
}

// Len returns the number of tracked requests, expired ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}
