package iso7816

import (
	"bytes"
	"fmt"
)

// APDU (Application Protocol Data Unit) encodings according to ISO/IEC
// 7816-3 and 7816-4.
//
// COMMAND APDU (C-APDU):
// A command consists of a mandatory Header (4 bytes) and an optional Body.
//
// 1. Header: CLA, INS, P1, P2.
// 2. Body:
//   - Lc: Number of bytes in the data field.
//   - Data: The command payload.
//   - Le: Maximum number of bytes expected in the response.
//
// ENCODING CASES (ISO 7816-3):
// - Case 1: No Data, No Response (Header only).
// - Case 2: No Data, Response Expected (Header + Le).
// - Case 3: Data Present, No Response (Header + Lc + Data).
// - Case 4: Data Present, Response Expected (Header + Lc + Data + Le).
//
// LENGTH MODES:
//   - Short: Lc/Le encoded on 1 byte (max 255/256, Le 0x00 encodes 256).
//   - Extended: a leading 0x00 marker followed by 2-byte Lc/Le fields
//     (max 65535/65536, Le 0x0000 encodes 65536).
//
// RESPONSE APDU (R-APDU):
// An optional data field followed by the mandatory 2-byte Status Word.

// APDU limits according to ISO 7816-3.
const (
	// MaxShortLc is the maximum data length (Nc) encodable in short mode.
	MaxShortLc = 255

	// MaxShortLe is the maximum expected response length (Ne) encodable
	// in short mode. 0x00 encodes 256.
	MaxShortLe = 256

	// MaxExtendedLc is the limit for Lc in extended mode.
	MaxExtendedLc = 65535

	// MaxExtendedLe is the maximum Ne encodable in extended mode.
	// 0x0000 encodes 65536.
	MaxExtendedLe = 65536
)

// Command represents one command APDU.
type Command struct {
	Class  Class
	Ins    InsCode
	P1, P2 byte
	Data   []byte
	Ne     int // Expected response length (0 means none)
}

// NewCommand creates a basic command.
func NewCommand(cla Class, ins InsCode, p1, p2 byte, data []byte, ne int) *Command {
	return &Command{
		Class: cla,
		Ins:   ins,
		P1:    p1,
		P2:    p2,
		Data:  data,
		Ne:    ne,
	}
}

// ParseCommand decodes a raw command APDU as received by the token.
// It accepts all four ISO 7816-3 cases in both short and extended form.
func ParseCommand(raw []byte) (*Command, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("command too short: %d bytes", len(raw))
	}
	if raw[0] == 0xFF {
		return nil, fmt.Errorf("invalid CLA value: 0xFF is reserved")
	}

	cmd := &Command{
		Class: Class(raw[0]),
		Ins:   InsCode(raw[1]),
		P1:    raw[2],
		P2:    raw[3],
	}

	body := raw[4:]
	if len(body) == 0 {
		// Case 1.
		return cmd, nil
	}

	if body[0] != 0x00 || len(body) == 1 {
		return parseShortBody(cmd, body)
	}
	return parseExtendedBody(cmd, body[1:])
}

// parseShortBody handles cases 2, 3 and 4 in short form. The single-byte
// body is always a Le field (Case 2), even when it is 0x00 (Ne = 256).
func parseShortBody(cmd *Command, body []byte) (*Command, error) {
	if len(body) == 1 {
		cmd.Ne = int(body[0])
		if cmd.Ne == 0 {
			cmd.Ne = MaxShortLe
		}
		return cmd, nil
	}

	nc := int(body[0])
	switch len(body) {
	case 1 + nc:
		// Case 3.
		cmd.Data = body[1 : 1+nc]
		return cmd, nil
	case 2 + nc:
		// Case 4.
		cmd.Data = body[1 : 1+nc]
		cmd.Ne = int(body[1+nc])
		if cmd.Ne == 0 {
			cmd.Ne = MaxShortLe
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("inconsistent short body: Lc=%d, %d bytes remain", nc, len(body)-1)
	}
}

// parseExtendedBody handles cases 2, 3 and 4 in extended form. The
// leading 0x00 marker has already been consumed.
func parseExtendedBody(cmd *Command, body []byte) (*Command, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("truncated extended length field")
	}
	n := int(body[0])<<8 | int(body[1])

	if len(body) == 2 {
		// Case 2 extended.
		cmd.Ne = n
		if cmd.Ne == 0 {
			cmd.Ne = MaxExtendedLe
		}
		return cmd, nil
	}

	// Case 3/4 extended: n is Lc.
	if n == 0 || len(body) < 2+n {
		return nil, fmt.Errorf("inconsistent extended body: Lc=%d, %d bytes remain", n, len(body)-2)
	}
	cmd.Data = body[2 : 2+n]

	switch rest := body[2+n:]; len(rest) {
	case 0:
		return cmd, nil
	case 2:
		cmd.Ne = int(rest[0])<<8 | int(rest[1])
		if cmd.Ne == 0 {
			cmd.Ne = MaxExtendedLe
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("trailing garbage after extended data field: %d bytes", len(rest))
	}
}

// Bytes encodes the Command into its wire representation. It selects
// between short and extended encoding based on Nc and Ne.
func (c *Command) Bytes() ([]byte, error) {
	nc := len(c.Data)
	ne := c.Ne

	if nc > MaxExtendedLc {
		return nil, fmt.Errorf("data field too long: %d bytes", nc)
	}
	if ne > MaxExtendedLe {
		return nil, fmt.Errorf("expected length too large: %d", ne)
	}

	buf := new(bytes.Buffer)
	buf.WriteByte(byte(c.Class))
	buf.WriteByte(byte(c.Ins))
	buf.WriteByte(c.P1)
	buf.WriteByte(c.P2)

	isExtended := nc > MaxShortLc || ne > MaxShortLe

	if nc > 0 {
		if !isExtended {
			buf.WriteByte(byte(nc))
		} else {
			buf.WriteByte(0x00)
			buf.WriteByte(byte(nc >> 8))
			buf.WriteByte(byte(nc))
		}
		buf.Write(c.Data)
	}

	if ne > 0 {
		if !isExtended {
			if ne == MaxShortLe {
				buf.WriteByte(0x00) // 0x00 represents 256
			} else {
				buf.WriteByte(byte(ne))
			}
		} else {
			// Case 2 extended needs the leading 0x00 marker of its own.
			if nc == 0 {
				buf.WriteByte(0x00)
			}
			if ne == MaxExtendedLe {
				buf.WriteByte(0x00)
				buf.WriteByte(0x00)
			} else {
				buf.WriteByte(byte(ne >> 8))
				buf.WriteByte(byte(ne))
			}
		}
	}

	return buf.Bytes(), nil
}

// String returns a readable representation of the command meta-data.
func (c *Command) String() string {
	return fmt.Sprintf("%s | P1: %02X, P2: %02X | Lc: %d | Le: %d",
		c.Ins.String(), c.P1, c.P2, len(c.Data), c.Ne)
}

// Response represents one response APDU.
type Response struct {
	Data   []byte
	Status StatusWord
}

// Bytes encodes the Response into its wire representation.
func (r *Response) Bytes() []byte {
	out := make([]byte, 0, len(r.Data)+2)
	out = append(out, r.Data...)
	out = append(out, r.Status.SW1(), r.Status.SW2())
	return out
}

// ParseResponse parses raw bytes received from the token.
// The input must contain at least the 2-byte trailer (SW1, SW2).
func ParseResponse(raw []byte) (*Response, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}

	trailer := len(raw) - 2
	return &Response{
		Data:   raw[:trailer],
		Status: NewStatusWord(raw[trailer], raw[trailer+1]),
	}, nil
}

// String returns a readable representation of the response.
func (r *Response) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.String())
}
