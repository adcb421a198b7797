package token

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gregLibert/pki-token/pkg/iso7816"
	"github.com/gregLibert/pki-token/pkg/tlv"
)

var (
	testRSAOnce sync.Once
	testRSAKey  *rsa.PrivateKey
)

// testRSA generates one shared RSA-2048 key for the import scenarios.
func testRSA(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testRSAOnce.Do(func() {
		var err error
		testRSAKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
	})
	return testRSAKey
}

// rsaImportBody builds the 7F48 import encoding from a key's CRT
// components, each padded to the prime length.
func rsaImportBody(key *rsa.PrivateKey) []byte {
	const half = 128
	var inner []byte
	inner = tlvEntry(inner, 0x92, key.Primes[0].FillBytes(make([]byte, half)))
	inner = tlvEntry(inner, 0x93, key.Primes[1].FillBytes(make([]byte, half)))
	inner = tlvEntry(inner, 0x94, key.Precomputed.Qinv.FillBytes(make([]byte, half)))
	inner = tlvEntry(inner, 0x95, key.Precomputed.Dp.FillBytes(make([]byte, half)))
	inner = tlvEntry(inner, 0x96, key.Precomputed.Dq.FillBytes(make([]byte, half)))

	out := tlv.AppendTagAndLength(nil, 0x7F48, len(inner))
	return append(out, inner...)
}

// importRSAIntoSlot drives MSE plus PUT DATA to install the test key.
func importRSAIntoSlot(t *testing.T, tok *Token, key *rsa.PrivateKey, slot byte) {
	t.Helper()
	resp := mseSet(t, tok, 0x00, algGenRSA2048, slot)
	requireSW(t, resp, iso7816.SW_NO_ERROR)

	resp = exchange(t, tok, iso7816.INS_PUT_DATA, 0x3F, 0xFF, rsaImportBody(key), 0)
	requireSW(t, resp, iso7816.SW_NO_ERROR)
}

func TestImportRSAThenDecipher(t *testing.T) {
	tok := newTestToken(t, DefaultPolicy())
	key := testRSA(t)
	importRSAIntoSlot(t, tok, key, 0)

	slot, err := tok.keys.Get(0)
	require.NoError(t, err)
	require.Equal(t, KeyRSACRT, slot.Variant)
	require.Equal(t, 2048, slot.Bits)
	require.Equal(t, 0, slot.RSA.N.Cmp(key.N))

	plaintext := []byte("attack at dawn")
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, &key.PublicKey, plaintext)
	require.NoError(t, err)

	resp := mseSet(t, tok, 0xB8, algRSAPadPKCS1, 0)
	requireSW(t, resp, iso7816.SW_NO_ERROR)

	body := append([]byte{0x00}, ciphertext...)
	resp = exchange(t, tok, iso7816.INS_PERFORM_SECURITY_OPERATION, 0x80, 0x86, body, 256)
	requireSW(t, resp, iso7816.SW_NO_ERROR)
	require.Equal(t, plaintext, resp.Data)
}

func TestDecipherRejections(t *testing.T) {
	tok := newTestToken(t, DefaultPolicy())
	key := testRSA(t)
	importRSAIntoSlot(t, tok, key, 0)

	resp := mseSet(t, tok, 0xB8, algRSAPadPKCS1, 0)
	requireSW(t, resp, iso7816.SW_NO_ERROR)

	// Padding indicator must be "no further indication".
	resp = exchange(t, tok, iso7816.INS_PERFORM_SECURITY_OPERATION, 0x80, 0x86, append([]byte{0x81}, make([]byte, 256)...), 256)
	requireSW(t, resp, iso7816.SW_ERR_INCORRECT_PARAMS_DATA)

	// Ciphertext must be exactly one modulus length.
	resp = exchange(t, tok, iso7816.INS_PERFORM_SECURITY_OPERATION, 0x80, 0x86, append([]byte{0x00}, make([]byte, 255)...), 256)
	requireSW(t, resp, iso7816.SW_ERR_WRONG_LENGTH)

	// Garbage of the right length fails padding, with no partial
	// plaintext in the response.
	resp = exchange(t, tok, iso7816.INS_PERFORM_SECURITY_OPERATION, 0x80, 0x86, append([]byte{0x00}, make([]byte, 256)...), 256)
	requireSW(t, resp, iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	require.Empty(t, resp.Data)
}

func TestImportRSASignPKCS1(t *testing.T) {
	tok := newTestToken(t, DefaultPolicy())
	key := testRSA(t)
	importRSAIntoSlot(t, tok, key, 1)

	resp := mseSet(t, tok, 0xB6, algRSAPadPKCS1, 1)
	requireSW(t, resp, iso7816.SW_NO_ERROR)

	message := []byte("data to be signed")
	resp = exchange(t, tok, iso7816.INS_PERFORM_SECURITY_OPERATION, 0x9E, 0x9A, message, 256)
	requireSW(t, resp, iso7816.SW_NO_ERROR)
	require.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, 0, message, resp.Data))

	// The payload may not exceed modulus bytes minus 11.
	resp = exchange(t, tok, iso7816.INS_PERFORM_SECURITY_OPERATION, 0x9E, 0x9A, make([]byte, 246), 256)
	requireSW(t, resp, iso7816.SW_ERR_WRONG_LENGTH)

	resp = exchange(t, tok, iso7816.INS_PERFORM_SECURITY_OPERATION, 0x9E, 0x9A, make([]byte, 245), 256)
	requireSW(t, resp, iso7816.SW_NO_ERROR)
}

func TestPSSDigestLengthDispatch(t *testing.T) {
	tok := newTestToken(t, DefaultPolicy())
	key := testRSA(t)
	importRSAIntoSlot(t, tok, key, 2)

	resp := mseSet(t, tok, 0xB6, algRSAPadPSS, 2)
	requireSW(t, resp, iso7816.SW_NO_ERROR)

	verify := func(digestLen int, hash crypto.Hash) {
		digest := make([]byte, digestLen)
		_, err := rand.Read(digest)
		require.NoError(t, err)

		resp := exchange(t, tok, iso7816.INS_PERFORM_SECURITY_OPERATION, 0x9E, 0x9A, digest, 256)
		requireSW(t, resp, iso7816.SW_NO_ERROR)

		opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: hash}
		require.NoError(t, rsa.VerifyPSS(&key.PublicKey, hash, digest, resp.Data, opts))
	}

	verify(32, crypto.SHA256)
	verify(20, crypto.SHA1)
	verify(64, crypto.SHA512)

	// Any other digest length is refused.
	resp = exchange(t, tok, iso7816.INS_PERFORM_SECURITY_OPERATION, 0x9E, 0x9A, make([]byte, 33), 256)
	requireSW(t, resp, iso7816.SW_ERR_WRONG_LENGTH)
}

func TestImportInconsistentComponents(t *testing.T) {
	tok := newTestToken(t, DefaultPolicy())
	key := testRSA(t)

	resp := mseSet(t, tok, 0x00, algGenRSA2048, 0)
	requireSW(t, resp, iso7816.SW_NO_ERROR)

	// Flip a byte inside q. The assembled key can no longer pass the
	// consistency check.
	body := rsaImportBody(key)
	body[200] ^= 0xFF
	resp = exchange(t, tok, iso7816.INS_PUT_DATA, 0x3F, 0xFF, body, 0)
	requireSW(t, resp, iso7816.SW_ERR_INCORRECT_PARAMS_DATA)

	slot, err := tok.keys.Get(0)
	require.NoError(t, err)
	require.Equal(t, KeyEmpty, slot.Variant)
}

func TestImportMissingComponent(t *testing.T) {
	tok := newTestToken(t, DefaultPolicy())
	key := testRSA(t)

	resp := mseSet(t, tok, 0x00, algGenRSA2048, 0)
	requireSW(t, resp, iso7816.SW_NO_ERROR)

	const half = 128
	var inner []byte
	inner = tlvEntry(inner, 0x92, key.Primes[0].FillBytes(make([]byte, half)))
	inner = tlvEntry(inner, 0x93, key.Primes[1].FillBytes(make([]byte, half)))
	// 94 and 95 missing.
	inner = tlvEntry(inner, 0x96, key.Precomputed.Dq.FillBytes(make([]byte, half)))
	body := tlv.AppendTagAndLength(nil, 0x7F48, len(inner))
	body = append(body, inner...)

	resp = exchange(t, tok, iso7816.INS_PUT_DATA, 0x3F, 0xFF, body, 0)
	requireSW(t, resp, iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
}

func TestImportWithoutMatchingAlgorithm(t *testing.T) {
	tok := newTestToken(t, DefaultPolicy())
	key := testRSA(t)

	// No MANAGE SECURITY ENVIRONMENT at all.
	resp := exchange(t, tok, iso7816.INS_PUT_DATA, 0x3F, 0xFF, rsaImportBody(key), 0)
	requireSW(t, resp, iso7816.SW_ERR_CMD_NOT_ALLOWED_NO_INFO)
}

func TestImportForbiddenByPolicy(t *testing.T) {
	policy := DefaultPolicy()
	policy.PrivateKeyImportAllowed = false
	tok := newTestToken(t, policy)
	key := testRSA(t)

	resp := exchange(t, tok, iso7816.INS_PUT_DATA, 0x3F, 0xFF, rsaImportBody(key), 0)
	requireSW(t, resp, iso7816.SW_ERR_CMD_NOT_ALLOWED_NO_INFO)
}

func TestImportECKey(t *testing.T) {
	tok := newTestToken(t, DefaultPolicy())

	resp := mseSet(t, tok, 0x00, algGenEC, 4)
	requireSW(t, resp, iso7816.SW_NO_ERROR)

	// d = 1 keeps the expected public point equal to the generator.
	scalar := make([]byte, 32)
	scalar[31] = 0x01
	inner := p256ParamsTLV()
	inner = tlvEntry(inner, 0x88, scalar)
	body := tlv.AppendTagAndLength(nil, 0xE0, len(inner))
	body = append(body, inner...)

	resp = exchange(t, tok, iso7816.INS_PUT_DATA, 0x3F, 0xFF, body, 0)
	requireSW(t, resp, iso7816.SW_NO_ERROR)

	slot, err := tok.keys.Get(4)
	require.NoError(t, err)
	require.Equal(t, KeyEC, slot.Variant)
	require.Equal(t, int64(1), slot.EC.D.Int64())
	require.Equal(t, p256.generator[1:33], slot.EC.X.FillBytes(make([]byte, 32)))
}
