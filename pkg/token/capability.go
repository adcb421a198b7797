package token

import "crypto/rand"

// Features is the capability bitmask the token reports in its GET DATA
// descriptor. Each bit reflects a one-time probe at construction, not a
// static constant: the availability of a secure random source and the
// issuer's policy choices vary per token.
type Features byte

const (
	FeatureExtendedAPDU Features = 0x01
	FeatureSecureRandom Features = 0x02
	FeatureECC          Features = 0x04
	FeatureRSAPSS       Features = 0x08
	FeatureRSA4096      Features = 0x20
)

// Reported in the GET DATA capability descriptor.
const (
	APIVersionMajor = 1
	APIVersionMinor = 0
)

// Probe asks each capability provider once and records the answers.
// Handlers consult the resulting mask instead of re-attempting fallible
// construction per command.
func Probe(policy Policy) Features {
	f := FeatureExtendedAPDU | FeatureECC | FeatureRSAPSS

	var seed [8]byte
	if _, err := rand.Read(seed[:]); err == nil {
		f |= FeatureSecureRandom
	}

	if policy.AllowRSA4096 {
		f |= FeatureRSA4096
	}
	return f
}

func (f Features) Has(want Features) bool {
	return f&want == want
}
