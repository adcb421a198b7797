package token

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"math/big"

	"github.com/gregLibert/pki-token/pkg/iso7816"
	"github.com/gregLibert/pki-token/pkg/tlv"
)

// importPrivateKey installs a terminal-supplied private key into the
// slot the security environment references. The outer tag selects the
// encoding: 7F48 for RSA CRT components, E0 for EC domain parameters
// plus the private scalar. The scratch window holding the raw secret
// components is zeroized before the handler returns, success or not.
func (t *Token) importPrivateKey(cmd *iso7816.Command) error {
	data, err := t.readIncoming(cmd)
	if err != nil {
		return err
	}
	defer t.wipeScratch(len(data))

	switch t.env.Algorithm {
	case algGenRSA2048, algGenRSA4096:
		bits := 2048
		if t.env.Algorithm == algGenRSA4096 {
			bits = 4096
		}

		if len(data) < 2 || data[0] != 0x7F || data[1] != 0x48 {
			return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
		}
		body, err := outerValue(data, 2)
		if err != nil {
			return err
		}
		return t.importRSAKey(body, bits)

	case algGenEC:
		if len(data) < 1 || data[0] != 0xE0 {
			return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
		}
		body, err := outerValue(data, 1)
		if err != nil {
			return err
		}
		return t.importECKey(body)

	default:
		// Import is only meaningful under one of the generation
		// algorithm references.
		return swErr(iso7816.SW_ERR_CMD_NOT_ALLOWED_NO_INFO)
	}
}

// outerValue decodes the length field following an outer tag of
// tagWidth bytes and returns the value span, which must fill the rest
// of the buffer exactly and be structurally consistent.
func outerValue(data []byte, tagWidth int) ([]byte, error) {
	length, err := tlv.DecodeLength(data, tagWidth)
	if err != nil {
		return nil, swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}
	offset := tagWidth + tlv.LengthFieldWidth(length)
	if length != len(data)-offset {
		return nil, swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}
	if !tlv.IsConsistent(data, offset, length) {
		return nil, swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}
	return data[offset : offset+length], nil
}

// rsaComponents are the five CRT values of the import encoding.
type rsaComponents struct {
	P    []byte `tlv:"92"`
	Q    []byte `tlv:"93"`
	Qinv []byte `tlv:"94"`
	Dp   []byte `tlv:"95"`
	Dq   []byte `tlv:"96"`
}

// importRSAKey rebuilds a full RSA private key from its CRT components.
// The public exponent is recovered as the inverse of dP modulo p-1; the
// supplied dQ and qInv then serve as a consistency check against the
// values recomputed from the assembled key, so an internally
// contradictory component set never reaches the slot.
func (t *Token) importRSAKey(body []byte, bits int) error {
	var c rsaComponents
	if err := tlv.Unmarshal(body, &c); err != nil {
		return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}
	if c.P == nil || c.Q == nil || c.Qinv == nil || c.Dp == nil || c.Dq == nil {
		return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}

	p := new(big.Int).SetBytes(c.P)
	q := new(big.Int).SetBytes(c.Q)
	qinv := new(big.Int).SetBytes(c.Qinv)
	dp := new(big.Int).SetBytes(c.Dp)
	dq := new(big.Int).SetBytes(c.Dq)

	one := big.NewInt(1)
	pm1 := new(big.Int).Sub(p, one)
	qm1 := new(big.Int).Sub(q, one)
	if pm1.Sign() <= 0 || qm1.Sign() <= 0 {
		return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}

	e := new(big.Int).ModInverse(dp, pm1)
	if e == nil || !e.IsInt64() || e.Int64() > int64(1)<<31-1 || e.Int64() < 3 {
		return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}

	check := new(big.Int).Mul(e, dq)
	check.Mod(check, qm1)
	if check.Cmp(one) != 0 {
		return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}

	gcd := new(big.Int).GCD(nil, nil, pm1, qm1)
	lambda := new(big.Int).Div(new(big.Int).Mul(pm1, qm1), gcd)
	d := new(big.Int).ModInverse(e, lambda)
	if d == nil {
		return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}

	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{
			N: new(big.Int).Mul(p, q),
			E: int(e.Int64()),
		},
		D:      d,
		Primes: []*big.Int{p, q},
	}
	if key.N.BitLen() != bits {
		return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}
	if err := key.Validate(); err != nil {
		return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}
	key.Precompute()

	if key.Precomputed.Dp.Cmp(dp) != 0 ||
		key.Precomputed.Dq.Cmp(dq) != 0 ||
		key.Precomputed.Qinv.Cmp(qinv) != 0 {
		return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}

	if err := t.keys.PutRSA(t.env.KeyRef, key); err != nil {
		return err
	}
	t.logger.Info("private key imported", "variant", "rsa", "bits", bits, "slot", t.env.KeyRef)
	return nil
}

// importECKey rebuilds an EC private key from domain parameters plus
// the private scalar under tag 88. The public point is derived from
// the scalar, so the stored pair is consistent by construction.
func (t *Token) importECKey(body []byte) error {
	params, err := ParseDomainParameters(body)
	if err != nil {
		return err
	}
	curve, err := params.Curve()
	if err != nil {
		return err
	}

	scalar, err := tlv.GetValue(body, 0x88)
	if err != nil {
		return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}
	d := new(big.Int).SetBytes(scalar)
	if d.Sign() <= 0 || d.Cmp(curve.Params().N) >= 0 {
		return swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}

	x, y := curve.ScalarBaseMult(d.Bytes())
	key := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}

	if err := t.keys.PutEC(t.env.KeyRef, key); err != nil {
		return err
	}
	t.logger.Info("private key imported", "variant", "ec", "bits", curve.Params().BitSize, "slot", t.env.KeyRef)
	return nil
}
