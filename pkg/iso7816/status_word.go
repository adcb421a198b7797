package iso7816

import (
	"fmt"

	"github.com/gregLibert/pki-token/pkg/bits"
)

// Status Word logic according to ISO 7816-4.
//
// Most Status Words (SW) are static 2-byte values (e.g. 0x9000), but a
// few ranges are dynamic and carry contextual information:
//
// 1. '61XX' (SW1=0x61): Process completed, XX response bytes available.
// 2. '6CXX' (SW1=0x6C): Wrong length, the correct Le is XX.
// 3. '63CX': Warning with a counter in the low nibble. The token uses
//    this form to report remaining PIN/PUK tries after a failed check.

// StatusWord represents the two-byte status trailer (SW1-SW2).
type StatusWord uint16

// NewStatusWord creates a StatusWord instance from two separate bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// TriesRemaining builds the 63CX warning carrying a retry counter.
// Counters above 15 saturate at 15, the largest encodable value.
func TriesRemaining(n int) StatusWord {
	if n < 0 {
		n = 0
	}
	if n > 0x0F {
		n = 0x0F
	}
	return SW_WARN_COUNTER_0 | StatusWord(n)
}

// CorrectLength builds the 6CXX error naming the correct Le.
func CorrectLength(le byte) StatusWord {
	return StatusWord(0x6C00) | StatusWord(le)
}

// SW1 returns the first byte (high byte) of the status word.
func (sw StatusWord) SW1() byte {
	return byte(sw >> 8)
}

// SW2 returns the second byte (low byte) of the status word.
func (sw StatusWord) SW2() byte {
	return byte(sw)
}

// IsSuccess returns true if the command was processed successfully
// (9000) or if data is available (61XX).
func (sw StatusWord) IsSuccess() bool {
	return sw == SW_NO_ERROR || sw.SW1() == 0x61
}

// IsWarning returns true if the status indicates a warning (62XX/63XX).
func (sw StatusWord) IsWarning() bool {
	sw1 := sw.SW1()
	return sw1 == 0x62 || sw1 == 0x63
}

// IsError returns true if the status indicates an error (64XX to 6FXX).
func (sw StatusWord) IsError() bool {
	sw1 := sw.SW1()
	return sw1 >= 0x64 && sw1 <= 0x6F
}

// Counter extracts the retry counter from a 63CX status word.
// The second return value is false when the status carries no counter.
func (sw StatusWord) Counter() (int, bool) {
	if sw.SW1() != 0x63 || bits.Extract(sw.SW2(), 8, 5) != 0x0C {
		return 0, false
	}
	return int(bits.Extract(sw.SW2(), 4, 1)), true
}

// String returns a readable description of the status word.
func (sw StatusWord) String() string {
	if n, ok := sw.Counter(); ok {
		return fmt.Sprintf("[%04X] counter = %d", uint16(sw), n)
	}
	if sw.SW1() == 0x61 {
		return fmt.Sprintf("[%04X] %d bytes available", uint16(sw), sw.SW2())
	}
	if sw.SW1() == 0x6C {
		return fmt.Sprintf("[%04X] wrong length, correct Le is %d", uint16(sw), sw.SW2())
	}
	if desc, ok := swNames[sw]; ok {
		return fmt.Sprintf("[%04X] %s", uint16(sw), desc)
	}
	return fmt.Sprintf("[%04X] %s", uint16(sw), sw.categoryDescription())
}

// categoryDescription provides a fallback description based on SW1.
func (sw StatusWord) categoryDescription() string {
	switch sw.SW1() {
	case 0x62:
		return "Warning: NV memory unchanged"
	case 0x63:
		return "Warning: NV memory changed"
	case 0x64:
		return "Execution Error: NV memory unchanged"
	case 0x65:
		return "Execution Error: NV memory changed"
	case 0x66:
		return "Execution Error: Security issue"
	case 0x68:
		return "Checking Error: Function not supported"
	case 0x69:
		return "Checking Error: Command not allowed"
	case 0x6A:
		return "Checking Error: Wrong parameters"
	default:
		return "Unknown Status"
	}
}

// Status Word codes defined in ISO/IEC 7816-4 and used by the token.
const (
	SW_NO_ERROR StatusWord = 0x9000

	SW_WARN_COUNTER_0 StatusWord = 0x63C0

	SW_ERR_WRONG_LENGTH              StatusWord = 0x6700
	SW_ERR_SECURE_MESSAGING_NOT_SUPP StatusWord = 0x6882
	SW_ERR_CHAINING_NOT_SUPP         StatusWord = 0x6884

	SW_ERR_CMD_NOT_ALLOWED_NO_INFO StatusWord = 0x6900
	SW_ERR_SECURITY_STATUS_NOT_SAT StatusWord = 0x6982
	SW_ERR_AUTH_METHOD_BLOCKED     StatusWord = 0x6983
	SW_ERR_COND_OF_USE_NOT_SAT     StatusWord = 0x6985

	SW_ERR_WRONG_PARAMS_NO_INFO  StatusWord = 0x6A00
	SW_ERR_INCORRECT_PARAMS_DATA StatusWord = 0x6A80
	SW_ERR_FUNC_NOT_SUPPORTED    StatusWord = 0x6A81
	SW_ERR_INCORRECT_PARAMS_P1P2 StatusWord = 0x6A86
	SW_ERR_REF_DATA_NOT_FOUND    StatusWord = 0x6A88

	SW_ERR_WRONG_P1P2        StatusWord = 0x6B00
	SW_ERR_INS_INVALID       StatusWord = 0x6D00
	SW_ERR_CLA_NOT_SUPPORTED StatusWord = 0x6E00
	SW_ERR_UNKNOWN           StatusWord = 0x6F00
)

var swNames = map[StatusWord]string{
	SW_NO_ERROR:                      "SW_NO_ERROR",
	SW_ERR_WRONG_LENGTH:              "SW_ERR_WRONG_LENGTH",
	SW_ERR_SECURE_MESSAGING_NOT_SUPP: "SW_ERR_SECURE_MESSAGING_NOT_SUPP",
	SW_ERR_CHAINING_NOT_SUPP:         "SW_ERR_CHAINING_NOT_SUPP",
	SW_ERR_CMD_NOT_ALLOWED_NO_INFO:   "SW_ERR_CMD_NOT_ALLOWED_NO_INFO",
	SW_ERR_SECURITY_STATUS_NOT_SAT:   "SW_ERR_SECURITY_STATUS_NOT_SAT",
	SW_ERR_AUTH_METHOD_BLOCKED:       "SW_ERR_AUTH_METHOD_BLOCKED",
	SW_ERR_COND_OF_USE_NOT_SAT:       "SW_ERR_COND_OF_USE_NOT_SAT",
	SW_ERR_WRONG_PARAMS_NO_INFO:      "SW_ERR_WRONG_PARAMS_NO_INFO",
	SW_ERR_INCORRECT_PARAMS_DATA:     "SW_ERR_INCORRECT_PARAMS_DATA",
	SW_ERR_FUNC_NOT_SUPPORTED:        "SW_ERR_FUNC_NOT_SUPPORTED",
	SW_ERR_INCORRECT_PARAMS_P1P2:     "SW_ERR_INCORRECT_PARAMS_P1P2",
	SW_ERR_REF_DATA_NOT_FOUND:        "SW_ERR_REF_DATA_NOT_FOUND",
	SW_ERR_WRONG_P1P2:                "SW_ERR_WRONG_P1P2",
	SW_ERR_INS_INVALID:               "SW_ERR_INS_INVALID",
	SW_ERR_CLA_NOT_SUPPORTED:         "SW_ERR_CLA_NOT_SUPPORTED",
	SW_ERR_UNKNOWN:                   "SW_ERR_UNKNOWN",
}
