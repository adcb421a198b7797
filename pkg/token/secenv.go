package token

// SecurityEnvironment is the transient (algorithm reference, key
// reference) pair a MANAGE SECURITY ENVIRONMENT configures and every
// cryptographic operation consumes. It is scoped to the session and
// reset on deselection. Both fields change together in a single
// assignment; a failed SET leaves the previous environment intact.
type SecurityEnvironment struct {
	Algorithm byte
	KeyRef    int
}

// Reset restores the unset environment.
func (e *SecurityEnvironment) Reset() {
	e.Algorithm = 0
	e.KeyRef = -1
}

// IsSet reports whether a key reference has been configured.
func (e SecurityEnvironment) IsSet() bool {
	return e.KeyRef >= 0
}
