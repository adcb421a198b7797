package token

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy collects the personalization choices that are fixed at
// token construction: credential length bounds and retry limits,
// whether a PUK is mandatory, and which optional capabilities the
// issuer wants enabled.
type Policy struct {
	PINMinLength int `yaml:"pin_min_length"`
	PINMaxLength int `yaml:"pin_max_length"`
	PINMaxTries  int `yaml:"pin_max_tries"`

	PUKLength    int  `yaml:"puk_length"`
	PUKMaxTries  int  `yaml:"puk_max_tries"`
	PUKMustBeSet bool `yaml:"puk_must_be_set"`

	PrivateKeyImportAllowed bool `yaml:"private_key_import_allowed"`
	KeySlots                int  `yaml:"key_slots"`
	AllowRSA4096            bool `yaml:"allow_rsa_4096"`
	WipeKeysOnDeselect      bool `yaml:"wipe_keys_on_deselect"`
}

// DefaultPolicy returns the issuance defaults.
func DefaultPolicy() Policy {
	return Policy{
		PINMinLength:            4,
		PINMaxLength:            16,
		PINMaxTries:             3,
		PUKLength:               16,
		PUKMaxTries:             5,
		PUKMustBeSet:            false,
		PrivateKeyImportAllowed: true,
		KeySlots:                16,
		AllowRSA4096:            true,
		WipeKeysOnDeselect:      false,
	}
}

// LoadPolicy reads a YAML policy file, overlaying the defaults so a
// partial file only overrides what it names.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()

	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("reading policy: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("parsing policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Validate rejects combinations no token could operate under.
func (p Policy) Validate() error {
	if p.PINMinLength < 1 || p.PINMinLength > p.PINMaxLength {
		return fmt.Errorf("policy: pin length bounds [%d, %d] are invalid", p.PINMinLength, p.PINMaxLength)
	}
	if p.PINMaxTries < 1 || p.PINMaxTries > 15 {
		return fmt.Errorf("policy: pin_max_tries %d outside [1, 15]", p.PINMaxTries)
	}
	if p.PUKLength < 1 {
		return fmt.Errorf("policy: puk_length %d is invalid", p.PUKLength)
	}
	if p.PUKMaxTries < 1 || p.PUKMaxTries > 15 {
		return fmt.Errorf("policy: puk_max_tries %d outside [1, 15]", p.PUKMaxTries)
	}
	if p.KeySlots < 1 || p.KeySlots > 127 {
		return fmt.Errorf("policy: key_slots %d outside [1, 127]", p.KeySlots)
	}
	return nil
}
