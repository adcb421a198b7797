// Package token implements the command core of a PKI token: the
// lifecycle state machine, PIN/PUK credentials, the security
// environment protocol, a bounded private key store, and the ISO 7816
// command handlers that tie them together. A Token is driven one
// command at a time through Transmit, which satisfies the iso7816
// Transmitter interface so the same host client code can talk to a
// real card or an in-process token.
package token

import (
	"log/slog"

	"github.com/gregLibert/pki-token/pkg/iso7816"
)

// Algorithm references configured through MANAGE SECURITY ENVIRONMENT.
const (
	algGenRSA2048  byte = 0xF3
	algGenRSA4096  byte = 0xF5
	algGenEC       byte = 0xEC
	algRSAPadPKCS1 byte = 0x11
	algRSAPadPSS   byte = 0x12
	algECDSA       byte = 0x21
)

// scratchSize bounds a command's data field. The scratch buffer is the
// assembly area for incoming data and can hold private key fragments,
// so it is wiped on deselection and after secret imports.
const scratchSize = 660

// Token is the whole mutable controller state. There are no ambient
// globals; every handler reads and writes through this struct, and
// commands are processed strictly one at a time.
type Token struct {
	policy Policy
	logger *slog.Logger

	state    LifecycleState
	pin      *Credential
	puk      *Credential
	keys     *KeyStore
	env      SecurityEnvironment
	features Features

	scratch [scratchSize]byte
}

// New constructs a token in the CREATION state, runs the capability
// probe and allocates the credential and key table per policy.
func New(policy Policy, logger *slog.Logger) (*Token, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Token{
		policy:   policy,
		logger:   logger,
		state:    StateCreation,
		pin:      NewCredential(policy.PINMaxTries, policy.PINMaxLength),
		keys:     NewKeyStore(policy.KeySlots),
		features: Probe(policy),
	}
	t.env.Reset()

	logger.Info("token constructed",
		"state", t.state.String(),
		"features", uint8(t.features),
		"key_slots", policy.KeySlots)
	return t, nil
}

func (t *Token) State() LifecycleState { return t.state }
func (t *Token) Features() Features    { return t.features }

// Select starts a session. The lifecycle state is durable, the
// authentication status is not: every session begins unauthenticated
// unless no PIN exists yet to check.
func (t *Token) Select() {
	t.pin.Invalidate()
	if t.puk != nil {
		t.puk.Invalidate()
	}
	t.env.Reset()
	t.logger.Debug("selected", "state", t.state.String())
}

// Deselect ends a session: validation flags, the security environment
// and the scratch buffer are cleared, and the key table is wiped when
// policy demands it.
func (t *Token) Deselect() {
	t.pin.Invalidate()
	if t.puk != nil {
		t.puk.Invalidate()
	}
	t.env.Reset()
	for i := range t.scratch {
		t.scratch[i] = 0
	}
	if t.policy.WipeKeysOnDeselect {
		t.keys.WipeAll()
	}
	t.logger.Debug("deselected", "state", t.state.String())
}

// Transmit processes one raw command and returns the raw response. It
// implements iso7816.Transmitter; the error return is reserved for
// transport failures and is always nil here, protocol failures travel
// as status words.
func (t *Token) Transmit(raw []byte) ([]byte, error) {
	cmd, err := iso7816.ParseCommand(raw)
	if err != nil {
		return respond(nil, iso7816.SW_ERR_WRONG_LENGTH), nil
	}

	data, sw := t.process(cmd)
	t.logger.Debug("command processed",
		"ins", cmd.Ins.String(),
		"sw", sw.String(),
		"response_bytes", len(data))
	return respond(data, sw), nil
}

// process dispatches one parsed command. The class byte is screened
// first: secure messaging and command chaining are unsupported, and
// proprietary classes are rejected outright.
func (t *Token) process(cmd *iso7816.Command) ([]byte, iso7816.StatusWord) {
	switch {
	case cmd.Class.IsSecureMessaging():
		return nil, iso7816.SW_ERR_SECURE_MESSAGING_NOT_SUPP
	case cmd.Class.IsChained():
		return nil, iso7816.SW_ERR_CHAINING_NOT_SUPP
	case !cmd.Class.IsInterindustry():
		return nil, iso7816.SW_ERR_CLA_NOT_SUPPORTED
	}

	var (
		data []byte
		err  error
	)
	switch cmd.Ins {
	case iso7816.INS_VERIFY:
		err = t.processVerify(cmd)
	case iso7816.INS_CHANGE_REFERENCE_DATA:
		err = t.processChangeReferenceData(cmd)
	case iso7816.INS_RESET_RETRY_COUNTER:
		err = t.processResetRetryCounter(cmd)
	case iso7816.INS_MANAGE_SECURITY_ENVIRONMENT:
		err = t.processManageSecurityEnvironment(cmd)
	case iso7816.INS_PERFORM_SECURITY_OPERATION:
		data, err = t.processPerformSecurityOperation(cmd)
	case iso7816.INS_GENERATE_ASYMMETRIC_KEY_PAIR:
		data, err = t.processGenerateKeyPair(cmd)
	case iso7816.INS_PUT_DATA:
		err = t.processPutData(cmd)
	case iso7816.INS_GET_CHALLENGE:
		data, err = t.processGetChallenge(cmd)
	case iso7816.INS_GET_DATA:
		data, err = t.processGetData(cmd)
	default:
		// The file system surface (SELECT, CREATE/READ/UPDATE/DELETE)
		// lives in a separate collaborator; everything unrouted is an
		// invalid instruction here.
		return nil, iso7816.SW_ERR_INS_INVALID
	}

	if err != nil {
		return nil, statusOf(err)
	}
	return data, iso7816.SW_NO_ERROR
}

// readIncoming copies the command data field into the scratch buffer
// and returns the aliasing slice. Parsing never starts on data that
// did not fit.
func (t *Token) readIncoming(cmd *iso7816.Command) ([]byte, error) {
	if len(cmd.Data) > scratchSize {
		return nil, swErr(iso7816.SW_ERR_WRONG_LENGTH)
	}
	n := copy(t.scratch[:], cmd.Data)
	return t.scratch[:n], nil
}

// wipeScratch zeroizes the first n scratch bytes.
func (t *Token) wipeScratch(n int) {
	if n > scratchSize {
		n = scratchSize
	}
	for i := 0; i < n; i++ {
		t.scratch[i] = 0
	}
}

// authenticated reports whether the session may use protected
// commands. CREATION and INITIALISATION sessions are implicitly
// authenticated: no PIN exists yet to check.
func (t *Token) authenticated() bool {
	if t.state == StateCreation || t.state == StateInitialisation {
		return true
	}
	return t.pin.IsValidated()
}

func respond(data []byte, sw iso7816.StatusWord) []byte {
	r := iso7816.Response{Data: data, Status: sw}
	return r.Bytes()
}
