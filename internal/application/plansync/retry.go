package plansync

import "time"

// Retry defaults: 1s, 2s, 4s, then give up until the next trigger.
const (
	DefaultRetryBase     = time.Second
	DefaultRetryAttempts = 3
)

// RetryPolicy is exponential backoff for failed plan writes. It belongs to one
// engine and is reset whenever a fresh trigger (edit, reconnect, identity) arrives.
type RetryPolicy struct {
	base        time.Duration
	maxAttempts int
	attempt     int
	timer       Timer
}

// NewRetryPolicy returns a policy doubling from base for at most maxAttempts retries.
// PRE: base > 0, maxAttempts >= 0
func NewRetryPolicy(base time.Duration, maxAttempts int) *RetryPolicy {
	return &RetryPolicy{base: base, maxAttempts: maxAttempts}
}

// Attempt returns how many retries have been scheduled since the last reset.
func (r *RetryPolicy) Attempt() int {
	return r.attempt
}

// NextDelay returns the delay the next retry would use, or 0 when exhausted.
func (r *RetryPolicy) NextDelay() time.Duration {
	if r.attempt >= r.maxAttempts {
		return 0
	}
	return r.base * time.Duration(1<<r.attempt)
}

// Pending reports whether a retry timer is armed.
func (r *RetryPolicy) Pending() bool {
	return r.timer != nil
}

// schedule arms the next retry on clock. It returns false once attempts are exhausted.
func (r *RetryPolicy) schedule(clock Clock, fire func()) (time.Duration, bool) {
	delay := r.NextDelay()
	if delay == 0 {
		return 0, false
	}
	r.Cancel()
	r.attempt++
	r.timer = clock.AfterFunc(delay, fire)
	return delay, true
}

// fired clears the armed timer once its callback runs.
func (r *RetryPolicy) fired() {
	r.timer = nil
}

// Cancel stops an armed retry. The attempt count is kept.
func (r *RetryPolicy) Cancel() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Reset cancels any armed retry and starts counting from zero.
func (r *RetryPolicy) Reset() {
	r.Cancel()
	r.attempt = 0
}
