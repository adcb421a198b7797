package token

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"math/big"

	"github.com/gregLibert/pki-token/pkg/iso7816"
)

// KeyVariant tags what a key slot holds.
type KeyVariant byte

const (
	KeyEmpty KeyVariant = iota
	KeyRSACRT
	KeyEC
)

func (v KeyVariant) String() string {
	switch v {
	case KeyEmpty:
		return "empty"
	case KeyRSACRT:
		return "rsa-crt"
	case KeyEC:
		return "ec"
	default:
		return "unknown"
	}
}

// KeySlot is one addressable entry of the private key table. At most
// one of RSA/EC is populated, selected by Variant.
type KeySlot struct {
	Variant KeyVariant
	RSA     *rsa.PrivateKey
	EC      *ecdsa.PrivateKey
	Bits    int
}

// KeyStore is the fixed-size private key table. Installing into an
// occupied slot destroys the previous key's material before the new
// key becomes visible; there is never a state where a slot exposes a
// half-written key.
type KeyStore struct {
	slots []KeySlot
}

func NewKeyStore(n int) *KeyStore {
	return &KeyStore{slots: make([]KeySlot, n)}
}

func (s *KeyStore) Len() int {
	return len(s.slots)
}

// Get returns the slot for a key reference, answering 6A88 for a
// reference outside the table.
func (s *KeyStore) Get(ref int) (*KeySlot, error) {
	if ref < 0 || ref >= len(s.slots) {
		return nil, swErr(iso7816.SW_ERR_REF_DATA_NOT_FOUND)
	}
	return &s.slots[ref], nil
}

// PutRSA installs an RSA-CRT private key, replacing whatever the slot
// held. The new slot value is staged completely before the single
// assignment that publishes it.
func (s *KeyStore) PutRSA(ref int, key *rsa.PrivateKey) error {
	if ref < 0 || ref >= len(s.slots) {
		return swErr(iso7816.SW_ERR_REF_DATA_NOT_FOUND)
	}
	staged := KeySlot{
		Variant: KeyRSACRT,
		RSA:     key,
		Bits:    key.N.BitLen(),
	}
	wipeSlot(&s.slots[ref])
	s.slots[ref] = staged
	return nil
}

// PutEC installs an EC private key, replacing whatever the slot held.
func (s *KeyStore) PutEC(ref int, key *ecdsa.PrivateKey) error {
	if ref < 0 || ref >= len(s.slots) {
		return swErr(iso7816.SW_ERR_REF_DATA_NOT_FOUND)
	}
	staged := KeySlot{
		Variant: KeyEC,
		EC:      key,
		Bits:    key.Curve.Params().BitSize,
	}
	wipeSlot(&s.slots[ref])
	s.slots[ref] = staged
	return nil
}

// Clear destroys the key material in a slot and empties it.
func (s *KeyStore) Clear(ref int) error {
	if ref < 0 || ref >= len(s.slots) {
		return swErr(iso7816.SW_ERR_REF_DATA_NOT_FOUND)
	}
	wipeSlot(&s.slots[ref])
	s.slots[ref] = KeySlot{}
	return nil
}

// WipeAll destroys every populated slot.
func (s *KeyStore) WipeAll() {
	for i := range s.slots {
		wipeSlot(&s.slots[i])
		s.slots[i] = KeySlot{}
	}
}

// wipeSlot zeroizes the big integers behind a slot's key material.
// The structs still reference the zeroed integers until the slot is
// reassigned, which the callers do immediately.
func wipeSlot(slot *KeySlot) {
	switch slot.Variant {
	case KeyRSACRT:
		k := slot.RSA
		zeroBig(k.D)
		for _, p := range k.Primes {
			zeroBig(p)
		}
		zeroBig(k.Precomputed.Dp)
		zeroBig(k.Precomputed.Dq)
		zeroBig(k.Precomputed.Qinv)
	case KeyEC:
		zeroBig(slot.EC.D)
	}
}

// zeroBig overwrites a big integer's limbs in place.
func zeroBig(x *big.Int) {
	if x == nil {
		return
	}
	limbs := x.Bits()
	for i := range limbs {
		limbs[i] = 0
	}
	x.SetInt64(0)
}
