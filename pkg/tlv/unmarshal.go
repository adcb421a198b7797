package tlv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// Unmarshal parses raw BER-TLV data and maps the top-level entries into
// the []byte fields of a target struct, selected by `tlv:"<hex tag>"`
// struct tags. Fields whose tag is absent from the data stay nil, so
// callers can distinguish a missing component from an empty one.
//
// This is how the token picks apart key material encodings, e.g. the
// EC domain parameter sequence:
//
//	type DomainParameters struct {
//	    Prime []byte `tlv:"81"`
//	    A     []byte `tlv:"82"`
//	    ...
//	}
func Unmarshal(data []byte, target interface{}) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return unmarshalPackets(packets, target)
}

func unmarshalPackets(packets []bertlv.TLV, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("tlv: target must be a non-nil pointer")
	}
	v = v.Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tagConfig := t.Field(i).Tag.Get("tlv")
		if tagConfig == "" {
			continue
		}
		if !isByteSlice(field) {
			return fmt.Errorf("tlv: field %s must be a []byte", t.Field(i).Name)
		}

		tagHex := strings.ToUpper(tagConfig)
		for _, packet := range packets {
			if strings.ToUpper(packet.Tag) == tagHex {
				field.SetBytes(packetValue(packet))
				break
			}
		}
	}
	return nil
}

// GetValue scans data for a specific top-level tag and returns its raw
// payload. ErrTagNotFound is returned when the tag is absent.
func GetValue(data []byte, tag uint) ([]byte, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	targetTag := strings.ToUpper(fmt.Sprintf("%X", tag))
	for _, p := range packets {
		if strings.ToUpper(p.Tag) == targetTag {
			return packetValue(p), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTagNotFound, targetTag)
}

// packetValue returns the raw payload of a packet, re-encoding nested
// structures when the decoder has already descended into them.
func packetValue(p bertlv.TLV) []byte {
	if len(p.TLVs) > 0 {
		if enc, err := bertlv.Encode(p.TLVs); err == nil {
			return enc
		}
	}
	return p.Value
}

func isByteSlice(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}
