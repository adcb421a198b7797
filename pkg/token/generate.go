package token

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"math/big"

	"github.com/gregLibert/pki-token/pkg/iso7816"
	"github.com/gregLibert/pki-token/pkg/tlv"
)

// processGenerateKeyPair handles GENERATE ASYMMETRIC KEY PAIR (INS 46).
// A MANAGE SECURITY ENVIRONMENT must have configured a generation
// algorithm and target slot. The private half is installed into the
// slot, the public half returned as an ISO 7816-8 public key data
// object (tag 7F49).
func (t *Token) processGenerateKeyPair(cmd *iso7816.Command) ([]byte, error) {
	if !t.authenticated() {
		return nil, swErr(iso7816.SW_ERR_SECURITY_STATUS_NOT_SAT)
	}

	switch t.env.Algorithm {
	case algGenRSA2048, algGenRSA4096:
		if cmd.P1 != 0x42 || cmd.P2 != 0x00 {
			return nil, swErr(iso7816.SW_ERR_INCORRECT_PARAMS_P1P2)
		}

		bits := 2048
		if t.env.Algorithm == algGenRSA4096 {
			if !t.features.Has(FeatureRSA4096) {
				return nil, swErr(iso7816.SW_ERR_FUNC_NOT_SUPPORTED)
			}
			bits = 4096
		}

		key, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, swErr(iso7816.SW_ERR_UNKNOWN)
		}
		if err := t.keys.PutRSA(t.env.KeyRef, key); err != nil {
			return nil, err
		}
		t.logger.Info("key pair generated", "variant", "rsa", "bits", bits, "slot", t.env.KeyRef)
		return encodeRSAPublicKey(&key.PublicKey), nil

	case algGenEC:
		if cmd.P1 != 0x00 || cmd.P2 != 0x00 {
			return nil, swErr(iso7816.SW_ERR_INCORRECT_PARAMS_P1P2)
		}

		data, err := t.readIncoming(cmd)
		if err != nil {
			return nil, err
		}
		params, err := ParseDomainParameters(data)
		if err != nil {
			return nil, err
		}
		curve, err := params.Curve()
		if err != nil {
			return nil, err
		}

		key, err := ecdsa.GenerateKey(curve, rand.Reader)
		if err != nil {
			return nil, swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
		}
		if err := t.keys.PutEC(t.env.KeyRef, key); err != nil {
			return nil, err
		}
		t.logger.Info("key pair generated", "variant", "ec", "bits", curve.Params().BitSize, "slot", t.env.KeyRef)
		return encodeECPublicKey(params, &key.PublicKey)

	default:
		return nil, swErr(iso7816.SW_ERR_COND_OF_USE_NOT_SAT)
	}
}

// encodeRSAPublicKey builds the 7F49 response for an RSA public key:
// tag 81 modulus, tag 82 exponent (3 bytes).
func encodeRSAPublicKey(pub *rsa.PublicKey) []byte {
	keyBytes := (pub.N.BitLen() + 7) / 8
	modulus := pub.N.FillBytes(make([]byte, keyBytes))
	exponent := []byte{byte(pub.E >> 16), byte(pub.E >> 8), byte(pub.E)}

	inner := tlv.AppendTagAndLength(nil, 0x81, len(modulus))
	inner = append(inner, modulus...)
	inner = tlv.AppendTagAndLength(inner, 0x82, len(exponent))
	inner = append(inner, exponent...)

	out := tlv.AppendTagAndLength(nil, 0x7F49, len(inner))
	return append(out, inner...)
}

// encodeECPublicKey builds the 7F49 response for an EC public key: the
// full domain parameter set plus the public point under tag 86, every
// field-sized value left-zero-padded to the field byte length and the
// cofactor fixed at two bytes.
func encodeECPublicKey(params *DomainParameters, pub *ecdsa.PublicKey) ([]byte, error) {
	fb := params.FieldBytes()
	cofactor, err := params.CofactorValue()
	if err != nil {
		return nil, err
	}

	point := make([]byte, 1+2*fb)
	point[0] = 0x04
	pub.X.FillBytes(point[1 : 1+fb])
	pub.Y.FillBytes(point[1+fb:])

	type entry struct {
		tag   uint16
		value []byte
	}
	entries := []entry{
		{0x81, leftPad(params.Prime, fb)},
		{0x82, leftPad(params.A, fb)},
		{0x83, leftPad(params.B, fb)},
		{0x84, leftPad(params.Generator, 1+2*fb)},
		{0x85, leftPad(params.Order, fb)},
		{0x86, point},
		{0x87, []byte{byte(cofactor >> 8), byte(cofactor)}},
	}

	var inner []byte
	for _, e := range entries {
		inner = tlv.AppendTagAndLength(inner, e.tag, len(e.value))
		inner = append(inner, e.value...)
	}

	out := tlv.AppendTagAndLength(nil, 0x7F49, len(inner))
	return append(out, inner...), nil
}

// leftPad returns v left-zero-padded to n bytes. Values longer than n
// are reduced through a big integer, dropping leading zeroes only.
func leftPad(v []byte, n int) []byte {
	if len(v) == n {
		out := make([]byte, n)
		copy(out, v)
		return out
	}
	x := new(big.Int).SetBytes(v)
	if x.BitLen() > 8*n {
		out := make([]byte, len(v))
		copy(out, v)
		return out
	}
	return x.FillBytes(make([]byte, n))
}
