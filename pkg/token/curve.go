package token

import (
	"crypto/elliptic"
	"math/big"

	"github.com/gregLibert/pki-token/pkg/iso7816"
	"github.com/gregLibert/pki-token/pkg/tlv"
)

// DomainParameters is the TLV-encoded description of a prime-field
// elliptic curve as the terminal submits it for key generation and
// import: prime, both coefficients, the uncompressed generator point,
// the order of the generator and the cofactor.
type DomainParameters struct {
	Prime     []byte `tlv:"81"`
	A         []byte `tlv:"82"`
	B         []byte `tlv:"83"`
	Generator []byte `tlv:"84"`
	Order     []byte `tlv:"85"`
	Cofactor  []byte `tlv:"87"`
}

// fieldBitsForPrime maps the byte length of the submitted prime to the
// field size. Any other prime length is unsupported.
var fieldBitsForPrime = map[int]int{
	24: 192,
	28: 224,
	32: 256,
	40: 320,
	48: 384,
	64: 512,
	66: 521,
}

// ParseDomainParameters decodes the curve description from a TLV
// buffer. Missing components answer 6A80, a malformed buffer too.
func ParseDomainParameters(data []byte) (*DomainParameters, error) {
	var p DomainParameters
	if err := tlv.Unmarshal(data, &p); err != nil {
		return nil, swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}
	if p.Prime == nil || p.A == nil || p.B == nil || p.Generator == nil || p.Order == nil || p.Cofactor == nil {
		return nil, swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}
	return &p, nil
}

// FieldBits derives the field size from the prime's byte length,
// answering 6A81 for lengths outside the supported table.
func (p *DomainParameters) FieldBits() (int, error) {
	bits, ok := fieldBitsForPrime[len(p.Prime)]
	if !ok {
		return 0, swErr(iso7816.SW_ERR_FUNC_NOT_SUPPORTED)
	}
	return bits, nil
}

// FieldBytes is the field length in bytes, the padding width for all
// field-sized values in response encodings.
func (p *DomainParameters) FieldBytes() int {
	return len(p.Prime)
}

// CofactorValue decodes the one- or two-byte cofactor.
func (p *DomainParameters) CofactorValue() (int, error) {
	switch len(p.Cofactor) {
	case 1:
		return int(p.Cofactor[0]), nil
	case 2:
		return int(p.Cofactor[0])<<8 | int(p.Cofactor[1]), nil
	default:
		return 0, swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}
}

// Curve builds an elliptic.Curve over the described field. The curve
// arithmetic requires A == -3 mod p, which holds for all the standard
// prime curves in the supported size table; anything else answers
// 6A81. The generator must be an uncompressed point of the exact field
// width.
func (p *DomainParameters) Curve() (elliptic.Curve, error) {
	bits, err := p.FieldBits()
	if err != nil {
		return nil, err
	}

	prime := new(big.Int).SetBytes(p.Prime)
	a := new(big.Int).SetBytes(p.A)
	order := new(big.Int).SetBytes(p.Order)

	aPlus3 := new(big.Int).Add(a, big.NewInt(3))
	if aPlus3.Cmp(prime) != 0 {
		return nil, swErr(iso7816.SW_ERR_FUNC_NOT_SUPPORTED)
	}

	fieldBytes := p.FieldBytes()
	if len(p.Generator) != 1+2*fieldBytes || p.Generator[0] != 0x04 {
		return nil, swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}
	gx := new(big.Int).SetBytes(p.Generator[1 : 1+fieldBytes])
	gy := new(big.Int).SetBytes(p.Generator[1+fieldBytes:])

	if _, err := p.CofactorValue(); err != nil {
		return nil, err
	}

	return &elliptic.CurveParams{
		P:       prime,
		N:       order,
		B:       new(big.Int).SetBytes(p.B),
		Gx:      gx,
		Gy:      gy,
		BitSize: bits,
		Name:    "submitted",
	}, nil
}
