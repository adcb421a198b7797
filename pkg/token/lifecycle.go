package token

import "fmt"

// LifecycleState is the durable phase of the token, encoded per ISO
// 7816-9. It only ever moves forward: CREATION until the PUK is set,
// INITIALISATION until the PIN is set, then OPERATIONAL_ACTIVATED for
// the rest of the token's life. The deactivated and terminated states
// exist in the encoding but no command here reaches them.
type LifecycleState byte

const (
	StateCreation               LifecycleState = 0x00
	StateInitialisation         LifecycleState = 0x01
	StateOperationalActivated   LifecycleState = 0x05
	StateOperationalDeactivated LifecycleState = 0x04
	StateTerminated             LifecycleState = 0x0C
)

func (s LifecycleState) String() string {
	switch s {
	case StateCreation:
		return "CREATION"
	case StateInitialisation:
		return "INITIALISATION"
	case StateOperationalActivated:
		return "OPERATIONAL_ACTIVATED"
	case StateOperationalDeactivated:
		return "OPERATIONAL_DEACTIVATED"
	case StateTerminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("LifecycleState(%#02x)", byte(s))
	}
}
