package iso7816

import (
	"github.com/gregLibert/pki-token/pkg/bits"
)

// Class Byte (CLA) structure according to ISO/IEC 7816-4.
//
// Bit 8: Proprietary (1) or Interindustry (0).
// Bit 7: Type of Interindustry (0=First, 1=Further).
// Bit 5: Command Chaining (0=Last/Only, 1=More follow).
//
// 1. First Interindustry Class (00xx xxxx):
//   - Bits 4-3: Secure Messaging indication (2 bits, 4 states).
//   - Bits 2-1: Logical Channel number (0-3).
//
// 2. Further Interindustry Class (01xx xxxx):
//   - Bit 6: Secure Messaging (no SM or SM active).
//   - Bits 4-1: Logical Channel number minus 4.
//
// The token rejects secure messaging and command chaining outright, so
// only the predicates needed for those checks are modelled here.

// SecureMessaging defines the security level applied to the APDU.
type SecureMessaging int

const (
	// SMNone indicates no secure messaging or no indication given.
	SMNone SecureMessaging = 0
	// SMProprietary indicates a proprietary secure messaging format.
	SMProprietary SecureMessaging = 1
	// SMHeaderNoProc indicates ISO secure messaging, header not processed.
	SMHeaderNoProc SecureMessaging = 2
	// SMHeaderAuth indicates ISO secure messaging, header authenticated.
	SMHeaderAuth SecureMessaging = 3
)

// Class is a raw ISO 7816-4 Class byte (CLA).
type Class byte

// IsProprietary reports whether the class is proprietary (bit 8 set).
func (c Class) IsProprietary() bool {
	return bits.IsSet(byte(c), 8)
}

// IsInterindustry reports whether the class is interindustry.
func (c Class) IsInterindustry() bool {
	return !c.IsProprietary()
}

// IsChained reports whether the command is part of a chain with more
// commands to follow (bit 5).
func (c Class) IsChained() bool {
	return c.IsInterindustry() && bits.IsSet(byte(c), 5)
}

// SecureMessaging returns the secure messaging indication of an
// interindustry class byte. Proprietary classes report SMNone.
func (c Class) SecureMessaging() SecureMessaging {
	if c.IsProprietary() {
		return SMNone
	}
	if !bits.IsSet(byte(c), 7) {
		// First interindustry: SM on bits 4-3.
		return SecureMessaging(bits.Extract(byte(c), 4, 3))
	}
	// Further interindustry: SM on bit 6.
	if bits.IsSet(byte(c), 6) {
		return SMHeaderNoProc
	}
	return SMNone
}

// IsSecureMessaging reports whether any secure messaging indication is
// present.
func (c Class) IsSecureMessaging() bool {
	return c.SecureMessaging() != SMNone
}

// Channel returns the logical channel number (0-19) of an interindustry
// class byte.
func (c Class) Channel() uint8 {
	if c.IsProprietary() {
		return 0
	}
	if !bits.IsSet(byte(c), 7) {
		return bits.Extract(byte(c), 2, 1)
	}
	return bits.Extract(byte(c), 4, 1) + 4
}
