package token

import "crypto/subtle"

// Credential is a PIN or PUK: a fixed-length secret compared against
// caller-supplied input under a bounded retry counter. The comparison
// length is fixed at construction; callers pad shorter values with
// zeroes before storing or checking, so length never leaks through
// timing or the counter.
//
// A credential fails closed: every mismatch consumes a try, and at zero
// tries every further check is refused outright, correct value or not,
// until ResetAndUnblock.
type Credential struct {
	secret    []byte
	maxTries  int
	tries     int
	set       bool
	validated bool
}

// NewCredential allocates an unset credential with the given fixed
// comparison length. No tries can be consumed before the first Update.
func NewCredential(maxTries, length int) *Credential {
	return &Credential{
		secret:   make([]byte, length),
		maxTries: maxTries,
		tries:    maxTries,
	}
}

// Update stores a new secret value. The value must already be padded to
// the fixed comparison length. Updating clears the validated flag; the
// retry counter is left untouched so an unblock stays an explicit step.
func (c *Credential) Update(value []byte) {
	for i := range c.secret {
		c.secret[i] = 0
	}
	copy(c.secret, value)
	c.set = true
	c.validated = false
}

// Check compares candidate against the stored secret. A blocked or
// unset credential refuses without consuming a try. On mismatch the
// counter is decremented and the validated flag cleared; on match the
// counter resets and the flag is set.
func (c *Credential) Check(candidate []byte) bool {
	if !c.set || c.tries == 0 {
		c.validated = false
		return false
	}

	c.tries--
	if len(candidate) == len(c.secret) && subtle.ConstantTimeCompare(c.secret, candidate) == 1 {
		c.tries = c.maxTries
		c.validated = true
		return true
	}
	c.validated = false
	return false
}

// ResetAndUnblock restores the full retry budget. This is the
// administrative unblock step; it does not validate the session.
func (c *Credential) ResetAndUnblock() {
	c.tries = c.maxTries
}

func (c *Credential) TriesRemaining() int {
	return c.tries
}

func (c *Credential) IsValidated() bool {
	return c.validated
}

// Invalidate clears the validated flag, e.g. on deselection.
func (c *Credential) Invalidate() {
	c.validated = false
}

func (c *Credential) IsSet() bool {
	return c.set
}

// Destroy zeroizes the stored secret and blocks the credential.
func (c *Credential) Destroy() {
	for i := range c.secret {
		c.secret[i] = 0
	}
	c.set = false
	c.validated = false
	c.tries = 0
}
