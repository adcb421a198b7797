package iso7816

import "fmt"

// Instruction Byte (INS) according to ISO/IEC 7816-4.
//
// INS values where the upper nibble is '6' or '9' (0x6X or 0x9X) are
// invalid: those ranges are reserved for Status Words (SW1) and
// transport layer control procedures (ISO/IEC 7816-3).

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Instruction (INS) codes relevant to the token. The file-system codes
// belong to the file-system collaborator and are listed so the
// dispatcher can name them when refusing.
const (
	INS_VERIFY                       InsCode = 0x20
	INS_MANAGE_SECURITY_ENVIRONMENT  InsCode = 0x22
	INS_CHANGE_REFERENCE_DATA        InsCode = 0x24
	INS_PERFORM_SECURITY_OPERATION   InsCode = 0x2A
	INS_RESET_RETRY_COUNTER          InsCode = 0x2C
	INS_GENERATE_ASYMMETRIC_KEY_PAIR InsCode = 0x46
	INS_GET_CHALLENGE                InsCode = 0x84
	INS_SELECT                       InsCode = 0xA4
	INS_READ_BINARY                  InsCode = 0xB0
	INS_GET_RESPONSE                 InsCode = 0xC0
	INS_GET_DATA                     InsCode = 0xCA
	INS_UPDATE_BINARY                InsCode = 0xD6
	INS_PUT_DATA                     InsCode = 0xDB
	INS_CREATE_FILE                  InsCode = 0xE0
	INS_DELETE_FILE                  InsCode = 0xE4
)

var insNames = map[InsCode]string{
	INS_VERIFY:                       "VERIFY",
	INS_MANAGE_SECURITY_ENVIRONMENT:  "MANAGE SECURITY ENVIRONMENT",
	INS_CHANGE_REFERENCE_DATA:        "CHANGE REFERENCE DATA",
	INS_PERFORM_SECURITY_OPERATION:   "PERFORM SECURITY OPERATION",
	INS_RESET_RETRY_COUNTER:          "RESET RETRY COUNTER",
	INS_GENERATE_ASYMMETRIC_KEY_PAIR: "GENERATE ASYMMETRIC KEY PAIR",
	INS_GET_CHALLENGE:                "GET CHALLENGE",
	INS_SELECT:                       "SELECT",
	INS_READ_BINARY:                  "READ BINARY",
	INS_GET_RESPONSE:                 "GET RESPONSE",
	INS_GET_DATA:                     "GET DATA",
	INS_UPDATE_BINARY:                "UPDATE BINARY",
	INS_PUT_DATA:                     "PUT DATA",
	INS_CREATE_FILE:                  "CREATE FILE",
	INS_DELETE_FILE:                  "DELETE FILE",
}

// IsValid reports whether the INS value is allowed by ISO 7816-3.
// Values in the 6X and 9X ranges are reserved.
func (i InsCode) IsValid() bool {
	highNibble := byte(i) & 0xF0
	return highNibble != 0x60 && highNibble != 0x90
}

// String returns the command name, or a hex fallback for codes the
// token does not know about.
func (i InsCode) String() string {
	if name, ok := insNames[i]; ok {
		return name
	}
	return fmt.Sprintf("INS(0x%02X)", byte(i))
}
