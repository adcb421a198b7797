package token

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gregLibert/pki-token/pkg/iso7816"
)

func TestMSESetForGeneration(t *testing.T) {
	tok := newTestToken(t, DefaultPolicy())

	resp := mseSet(t, tok, 0x00, algGenRSA2048, 0)
	requireSW(t, resp, iso7816.SW_NO_ERROR)
	require.Equal(t, algGenRSA2048, tok.env.Algorithm)
	require.Equal(t, 0, tok.env.KeyRef)

	// A non-generation algorithm cannot target the generation class.
	resp = mseSet(t, tok, 0x00, algRSAPadPKCS1, 0)
	requireSW(t, resp, iso7816.SW_ERR_FUNC_NOT_SUPPORTED)

	// A failed SET leaves the previous environment intact.
	require.Equal(t, algGenRSA2048, tok.env.Algorithm)
	require.Equal(t, 0, tok.env.KeyRef)
}

func TestMSETypeMismatchOnEmptySlot(t *testing.T) {
	tok := newTestToken(t, DefaultPolicy())

	// ECDSA signing with a key reference pointing at an empty slot
	// must fail before any cryptographic operation is attempted.
	resp := mseSet(t, tok, 0xB6, algECDSA, 5)
	requireSW(t, resp, iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	require.False(t, tok.env.IsSet())
}

func TestMSEVariantMismatch(t *testing.T) {
	tok := newTestToken(t, DefaultPolicy())
	key := testRSA(t)
	importRSAIntoSlot(t, tok, key, 0)

	// The slot holds RSA material; ECDSA signing cannot reference it.
	resp := mseSet(t, tok, 0xB6, algECDSA, 0)
	requireSW(t, resp, iso7816.SW_ERR_INCORRECT_PARAMS_DATA)

	// RSA signing can.
	resp = mseSet(t, tok, 0xB6, algRSAPadPSS, 0)
	requireSW(t, resp, iso7816.SW_NO_ERROR)

	// Decipherment is PKCS#1 only.
	resp = mseSet(t, tok, 0xB8, algRSAPadPSS, 0)
	requireSW(t, resp, iso7816.SW_ERR_FUNC_NOT_SUPPORTED)
}

func TestMSEKeyReferenceOutOfRange(t *testing.T) {
	policy := DefaultPolicy()
	tok := newTestToken(t, policy)

	data := []byte{0x80, 0x01, algGenRSA2048, 0x84, 0x01, byte(policy.KeySlots)}
	resp := exchange(t, tok, iso7816.INS_MANAGE_SECURITY_ENVIRONMENT, 0x41, 0x00, data, 0)
	requireSW(t, resp, iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
}

func TestMSEMalformedData(t *testing.T) {
	tok := newTestToken(t, DefaultPolicy())

	// Declared length overruns the buffer.
	resp := exchange(t, tok, iso7816.INS_MANAGE_SECURITY_ENVIRONMENT, 0x41, 0x00, []byte{0x80, 0x05, 0x01}, 0)
	requireSW(t, resp, iso7816.SW_ERR_INCORRECT_PARAMS_DATA)

	// Missing key reference entry.
	resp = exchange(t, tok, iso7816.INS_MANAGE_SECURITY_ENVIRONMENT, 0x41, 0x00, []byte{0x80, 0x01, algGenRSA2048}, 0)
	requireSW(t, resp, iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
}

func TestMSERestore(t *testing.T) {
	tok := newTestToken(t, DefaultPolicy())

	resp := mseSet(t, tok, 0x00, algGenRSA2048, 0)
	requireSW(t, resp, iso7816.SW_NO_ERROR)
	require.True(t, tok.env.IsSet())

	resp = exchange(t, tok, iso7816.INS_MANAGE_SECURITY_ENVIRONMENT, 0xF3, 0x00, nil, 0)
	requireSW(t, resp, iso7816.SW_NO_ERROR)
	require.False(t, tok.env.IsSet())

	// With the environment cleared, signing has nothing to work with.
	resp = exchange(t, tok, iso7816.INS_PERFORM_SECURITY_OPERATION, 0x9E, 0x9A, make([]byte, 32), 256)
	requireSW(t, resp, iso7816.SW_ERR_COND_OF_USE_NOT_SAT)
}

func TestMSEStoreAndEraseUnsupported(t *testing.T) {
	tok := newTestToken(t, DefaultPolicy())

	for _, p1 := range []byte{0x81, 0xF2, 0xF4} {
		resp := exchange(t, tok, iso7816.INS_MANAGE_SECURITY_ENVIRONMENT, p1, 0x00, nil, 0)
		requireSW(t, resp, iso7816.SW_ERR_FUNC_NOT_SUPPORTED)
	}
}

func TestEnvironmentClearedOnDeselect(t *testing.T) {
	tok := newTestToken(t, DefaultPolicy())

	resp := mseSet(t, tok, 0x00, algGenRSA2048, 0)
	requireSW(t, resp, iso7816.SW_NO_ERROR)

	tok.Deselect()
	require.False(t, tok.env.IsSet())
}

func TestWipeKeysOnDeselectPolicy(t *testing.T) {
	policy := DefaultPolicy()
	policy.WipeKeysOnDeselect = true
	tok := newTestToken(t, policy)
	key := testRSA(t)
	importRSAIntoSlot(t, tok, key, 0)

	tok.Deselect()
	slot, err := tok.keys.Get(0)
	require.NoError(t, err)
	require.Equal(t, KeyEmpty, slot.Variant)
}
