package token

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"

	"github.com/gregLibert/pki-token/pkg/iso7816"
)

// pssHashForDigest selects the PSS hash function by the length of the
// precomputed digest the terminal submitted.
var pssHashForDigest = map[int]crypto.Hash{
	20: crypto.SHA1,
	28: crypto.SHA224,
	32: crypto.SHA256,
	48: crypto.SHA384,
	64: crypto.SHA512,
}

// computeSignature implements PSO:COMPUTE DIGITAL SIGNATURE. For RSA
// with PKCS#1 padding the data field is signed as-is (the terminal
// sends a DigestInfo or raw data, at most modulus bytes minus 11); for
// RSA-PSS it must be a precomputed digest whose length selects the
// hash; for ECDSA it is the raw digest.
func (t *Token) computeSignature(cmd *iso7816.Command) ([]byte, error) {
	data, err := t.readIncoming(cmd)
	if err != nil {
		return nil, err
	}

	switch t.env.Algorithm {
	case algRSAPadPKCS1, algRSAPadPSS:
		slot, err := t.signingSlot(KeyRSACRT)
		if err != nil {
			return nil, err
		}
		key := slot.RSA
		keyBytes := (key.N.BitLen() + 7) / 8

		if t.env.Algorithm == algRSAPadPKCS1 {
			// PKCS#1 v1.5 padding needs 11 bytes (RFC 8017, 7.2.1).
			if len(data) > keyBytes-11 {
				return nil, swErr(iso7816.SW_ERR_WRONG_LENGTH)
			}
			sig, err := rsa.SignPKCS1v15(rand.Reader, key, 0, data)
			if err != nil {
				return nil, swErr(iso7816.SW_ERR_UNKNOWN)
			}
			return sig, nil
		}

		hash, ok := pssHashForDigest[len(data)]
		if !ok {
			return nil, swErr(iso7816.SW_ERR_WRONG_LENGTH)
		}
		opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: hash}
		sig, err := rsa.SignPSS(rand.Reader, key, hash, data, opts)
		if err != nil {
			return nil, swErr(iso7816.SW_ERR_UNKNOWN)
		}
		return sig, nil

	case algECDSA:
		slot, err := t.signingSlot(KeyEC)
		if err != nil {
			return nil, err
		}
		sig, err := ecdsa.SignASN1(rand.Reader, slot.EC, data)
		if err != nil {
			return nil, swErr(iso7816.SW_ERR_UNKNOWN)
		}
		return sig, nil

	default:
		return nil, swErr(iso7816.SW_ERR_COND_OF_USE_NOT_SAT)
	}
}

// signingSlot resolves the security environment's key reference and
// checks the slot still holds a key of the wanted variant. The MSE
// validated this at SET time; the slot could have been cleared since.
func (t *Token) signingSlot(want KeyVariant) (*KeySlot, error) {
	if !t.env.IsSet() {
		return nil, swErr(iso7816.SW_ERR_COND_OF_USE_NOT_SAT)
	}
	slot, err := t.keys.Get(t.env.KeyRef)
	if err != nil {
		return nil, err
	}
	if slot.Variant != want {
		return nil, swErr(iso7816.SW_ERR_COND_OF_USE_NOT_SAT)
	}
	return slot, nil
}
