package token

import (
	"crypto/rand"
	"crypto/rsa"

	"github.com/gregLibert/pki-token/pkg/iso7816"
)

// decipher implements PSO:DECIPHER. Only RSA with PKCS#1 padding is
// supported. The first data byte is the padding indicator and must be
// 0x00 ("no further indication"); the remaining bytes must be exactly
// one modulus length of ciphertext. A padding mismatch answers 6A80
// with no data, never partial plaintext.
func (t *Token) decipher(cmd *iso7816.Command) ([]byte, error) {
	data, err := t.readIncoming(cmd)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || data[0] != 0x00 {
		return nil, swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}

	if t.env.Algorithm != algRSAPadPKCS1 {
		return nil, swErr(iso7816.SW_ERR_FUNC_NOT_SUPPORTED)
	}
	slot, err := t.signingSlot(KeyRSACRT)
	if err != nil {
		return nil, err
	}
	key := slot.RSA

	ciphertext := data[1:]
	if len(ciphertext) != (key.N.BitLen()+7)/8 {
		return nil, swErr(iso7816.SW_ERR_WRONG_LENGTH)
	}

	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, key, ciphertext)
	if err != nil {
		return nil, swErr(iso7816.SW_ERR_INCORRECT_PARAMS_DATA)
	}
	return plaintext, nil
}
