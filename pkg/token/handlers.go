package token

import (
	"crypto/rand"

	"github.com/gregLibert/pki-token/pkg/iso7816"
	"github.com/gregLibert/pki-token/pkg/tlv"
)

// processVerify handles VERIFY (INS 20). P1P2 must be 0001, the PIN
// reference. An empty data field queries the remaining tries (or
// answers 9000 while no PIN exists to check); a non-empty field is a
// verification attempt against the zero-padded PIN.
func (t *Token) processVerify(cmd *iso7816.Command) error {
	if cmd.P1 != 0x00 || cmd.P2 != 0x01 {
		return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_P1P2)
	}

	lc := len(cmd.Data)
	if lc > 0 && (lc < t.policy.PINMinLength || lc > t.policy.PINMaxLength) {
		return swErr(iso7816.SW_ERR_WRONG_LENGTH)
	}

	if lc == 0 {
		if t.state == StateCreation || t.state == StateInitialisation {
			return nil
		}
		return swErr(iso7816.TriesRemaining(t.pin.TriesRemaining()))
	}

	candidate := t.padPIN(cmd.Data)
	if !t.pin.Check(candidate) {
		return swErr(iso7816.TriesRemaining(t.pin.TriesRemaining()))
	}
	return nil
}

// processChangeReferenceData handles CHANGE REFERENCE DATA (INS 24).
// The meaning is state-dependent: in CREATION it sets the PUK (or the
// PIN directly when policy allows skipping the PUK), in INITIALISATION
// it sets the PIN, and in OPERATIONAL_ACTIVATED it changes the PIN
// given the correct old one.
func (t *Token) processChangeReferenceData(cmd *iso7816.Command) error {
	lc := len(cmd.Data)

	switch t.state {
	case StateCreation:
		// Setting, not changing: P1 must be 01 as no verification data
		// can be present yet. P2 selects PUK (02) or PIN (01).
		if cmd.P1 != 0x01 || (cmd.P2 != 0x02 && cmd.P2 != 0x01) {
			return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_P1P2)
		}

		if cmd.P2 == 0x02 {
			if lc != t.policy.PUKLength {
				return swErr(iso7816.SW_ERR_WRONG_LENGTH)
			}
			puk := NewCredential(t.policy.PUKMaxTries, t.policy.PUKLength)
			puk.Update(cmd.Data)
			puk.ResetAndUnblock()
			t.puk = puk
			t.advance(StateInitialisation)
			return nil
		}

		// Setting the PIN right away means no PUK will exist, ever.
		if t.policy.PUKMustBeSet {
			return swErr(iso7816.SW_ERR_CMD_NOT_ALLOWED_NO_INFO)
		}
		if lc < t.policy.PINMinLength || lc > t.policy.PINMaxLength {
			return swErr(iso7816.SW_ERR_WRONG_LENGTH)
		}
		t.pin.Update(t.padPIN(cmd.Data))
		t.pin.ResetAndUnblock()
		t.advance(StateOperationalActivated)
		return nil

	case StateInitialisation:
		if cmd.P1 != 0x01 || cmd.P2 != 0x01 {
			return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_P1P2)
		}
		if lc < t.policy.PINMinLength || lc > t.policy.PINMaxLength {
			return swErr(iso7816.SW_ERR_WRONG_LENGTH)
		}
		t.pin.Update(t.padPIN(cmd.Data))
		t.pin.ResetAndUnblock()
		t.advance(StateOperationalActivated)
		return nil

	default:
		// Changing the PIN: old and new PIN concatenated, both already
		// padded to the fixed length (otherwise the boundary between
		// them would be ambiguous).
		if cmd.P1 != 0x00 || cmd.P2 != 0x01 {
			return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_P1P2)
		}
		if lc != 2*t.policy.PINMaxLength {
			return swErr(iso7816.SW_ERR_WRONG_LENGTH)
		}

		old := cmd.Data[:t.policy.PINMaxLength]
		if !t.pin.Check(old) {
			return swErr(iso7816.TriesRemaining(t.pin.TriesRemaining()))
		}
		t.pin.Update(cmd.Data[t.policy.PINMaxLength:])
		return nil
	}
}

// processResetRetryCounter handles RESET RETRY COUNTER (INS 2C): given
// the correct PUK, replace the PIN value and unblock its counter. Data
// is PUK followed by the new PIN, without delimitation.
func (t *Token) processResetRetryCounter(cmd *iso7816.Command) error {
	if t.state != StateOperationalActivated {
		return swErr(iso7816.SW_ERR_CMD_NOT_ALLOWED_NO_INFO)
	}

	lc := len(cmd.Data)
	if lc < t.policy.PUKLength+t.policy.PINMinLength ||
		lc > t.policy.PUKLength+t.policy.PINMaxLength {
		return swErr(iso7816.SW_ERR_WRONG_LENGTH)
	}
	if cmd.P1 != 0x00 || cmd.P2 != 0x01 {
		return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_P1P2)
	}

	if t.puk == nil {
		return swErr(iso7816.TriesRemaining(0))
	}
	if !t.puk.Check(cmd.Data[:t.policy.PUKLength]) {
		return swErr(iso7816.TriesRemaining(t.puk.TriesRemaining()))
	}

	t.pin.Update(t.padPIN(cmd.Data[t.policy.PUKLength:]))
	t.pin.ResetAndUnblock()
	return nil
}

// processManageSecurityEnvironment handles MANAGE SECURITY ENVIRONMENT
// (INS 22). Only SET (P1=41) and RESTORE (P1=F3) are supported; STORE,
// ERASE and SET-for-verification answer 6A81. A SET parses the
// algorithm reference (tag 80) and key reference (tag 84), validates
// the pair against the operation class in P2, and commits both
// references together. Nothing is updated until every check passed.
func (t *Token) processManageSecurityEnvironment(cmd *iso7816.Command) error {
	if !t.authenticated() {
		return swErr(iso7816.SW_ERR_SECURITY_STATUS_NOT_SAT)
	}

	data, err := t.readIncoming(cmd)
	if err != nil {
		return err
	}
	if !tlv.IsConsistent(data, 0, len(data)) {
		return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}

	var (
		algRef byte
		keyRef int
	)
	switch cmd.P1 {
	case 0x41:
		pos, err := tlv.FindTag(data, 0, len(data), 0x80)
		if err != nil || pos+2 >= len(data) || data[pos+1] != 0x01 {
			return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
		}
		algRef = data[pos+2]

		pos, err = tlv.FindTag(data, 0, len(data), 0x84)
		if err != nil || pos+2 >= len(data) || data[pos+1] != 0x01 {
			return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
		}
		if int(data[pos+2]) >= t.keys.Len() {
			return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
		}
		keyRef = int(data[pos+2])

	case 0xF3:
		t.env.Reset()
		return nil

	default:
		return swErr(iso7816.SW_ERR_FUNC_NOT_SUPPORTED)
	}

	switch cmd.P2 {
	case 0x00:
		// Key generation.
		if algRef != algGenEC && algRef != algGenRSA2048 && algRef != algGenRSA4096 {
			return swErr(iso7816.SW_ERR_FUNC_NOT_SUPPORTED)
		}
		if algRef == algGenEC && !t.features.Has(FeatureECC) {
			return swErr(iso7816.SW_ERR_FUNC_NOT_SUPPORTED)
		}
		if algRef == algGenRSA4096 && !t.features.Has(FeatureRSA4096) {
			return swErr(iso7816.SW_ERR_FUNC_NOT_SUPPORTED)
		}

	case 0xB6:
		// Signature: the referenced slot's variant must match the
		// algorithm family before anything is committed.
		slot, err := t.keys.Get(keyRef)
		if err != nil {
			return err
		}
		switch algRef {
		case algRSAPadPKCS1, algRSAPadPSS:
			if slot.Variant != KeyRSACRT {
				return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
			}
		case algECDSA:
			if slot.Variant != KeyEC {
				return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
			}
		default:
			return swErr(iso7816.SW_ERR_FUNC_NOT_SUPPORTED)
		}

	case 0xB8:
		// Decipherment: RSA with PKCS#1 padding only.
		if algRef != algRSAPadPKCS1 {
			return swErr(iso7816.SW_ERR_FUNC_NOT_SUPPORTED)
		}
		slot, err := t.keys.Get(keyRef)
		if err != nil {
			return err
		}
		if slot.Variant != KeyRSACRT {
			return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
		}

	default:
		return swErr(iso7816.SW_ERR_FUNC_NOT_SUPPORTED)
	}

	t.env = SecurityEnvironment{Algorithm: algRef, KeyRef: keyRef}
	t.logger.Debug("security environment set",
		"algorithm", algRef,
		"key_ref", keyRef)
	return nil
}

// processPerformSecurityOperation routes PERFORM SECURITY OPERATION
// (INS 2A) to signing (P1P2=9E9A) or decipherment (P1P2=8086).
func (t *Token) processPerformSecurityOperation(cmd *iso7816.Command) ([]byte, error) {
	if !t.authenticated() {
		return nil, swErr(iso7816.SW_ERR_SECURITY_STATUS_NOT_SAT)
	}

	switch {
	case cmd.P1 == 0x9E && cmd.P2 == 0x9A:
		return t.computeSignature(cmd)
	case cmd.P1 == 0x80 && cmd.P2 == 0x86:
		return t.decipher(cmd)
	default:
		return nil, swErr(iso7816.SW_ERR_INCORRECT_PARAMS_P1P2)
	}
}

// processPutData handles PUT DATA (INS DB). The only supported data
// object is 3FFF, private key import, which policy may forbid.
func (t *Token) processPutData(cmd *iso7816.Command) error {
	if !t.authenticated() {
		return swErr(iso7816.SW_ERR_SECURITY_STATUS_NOT_SAT)
	}
	if cmd.P1 != 0x3F || cmd.P2 != 0xFF {
		return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_P1P2)
	}
	if !t.policy.PrivateKeyImportAllowed {
		return swErr(iso7816.SW_ERR_CMD_NOT_ALLOWED_NO_INFO)
	}
	return t.importPrivateKey(cmd)
}

// processGetChallenge handles GET CHALLENGE (INS 84): Ne bytes from the
// secure random source, 1 to 256 at a time.
func (t *Token) processGetChallenge(cmd *iso7816.Command) ([]byte, error) {
	if !t.features.Has(FeatureSecureRandom) {
		return nil, swErr(iso7816.SW_ERR_FUNC_NOT_SUPPORTED)
	}
	if cmd.P1 != 0x00 || cmd.P2 != 0x00 {
		return nil, swErr(iso7816.SW_ERR_INCORRECT_PARAMS_P1P2)
	}
	if cmd.Ne < 1 || cmd.Ne > 256 {
		return nil, swErr(iso7816.SW_ERR_WRONG_LENGTH)
	}

	challenge := make([]byte, cmd.Ne)
	if _, err := rand.Read(challenge); err != nil {
		return nil, swErr(iso7816.SW_ERR_UNKNOWN)
	}
	return challenge, nil
}

// processGetData handles GET DATA (INS CA). P1P2=0101 is the capability
// query: major version, minor version, feature bitmask.
func (t *Token) processGetData(cmd *iso7816.Command) ([]byte, error) {
	if cmd.P1 != 0x01 || cmd.P2 != 0x01 {
		return nil, swErr(iso7816.SW_ERR_INCORRECT_PARAMS_P1P2)
	}
	return []byte{APIVersionMajor, APIVersionMinor, byte(t.features)}, nil
}

// padPIN copies a PIN candidate into a zero-filled buffer of the fixed
// comparison length, so APDU garbage beyond the supplied length never
// becomes part of the value.
func (t *Token) padPIN(value []byte) []byte {
	padded := make([]byte, t.policy.PINMaxLength)
	copy(padded, value)
	return padded
}

// advance moves the lifecycle state forward.
func (t *Token) advance(next LifecycleState) {
	t.logger.Info("lifecycle transition",
		"from", t.state.String(),
		"to", next.String())
	t.state = next
}
