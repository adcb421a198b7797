package iso7816

import "testing"

func TestClassPredicates(t *testing.T) {
	tests := []struct {
		cla        Class
		prop       bool
		chained    bool
		sm         SecureMessaging
		channel    uint8
	}{
		{0x00, false, false, SMNone, 0},
		{0x10, false, true, SMNone, 0},           // chaining
		{0x0C, false, false, SMHeaderAuth, 0},    // SM bits 4-3 = 11
		{0x08, false, false, SMHeaderNoProc, 0},  // SM bits 4-3 = 10
		{0x03, false, false, SMNone, 3},          // channel 3
		{0x80, true, false, SMNone, 0},           // proprietary
		{0x60, false, false, SMHeaderNoProc, 4},  // further interindustry, SM bit 6
		{0x41, false, false, SMNone, 5},          // further interindustry, channel 5
	}

	for _, tt := range tests {
		if got := tt.cla.IsProprietary(); got != tt.prop {
			t.Errorf("CLA %02X IsProprietary = %v, want %v", byte(tt.cla), got, tt.prop)
		}
		if got := tt.cla.IsChained(); got != tt.chained {
			t.Errorf("CLA %02X IsChained = %v, want %v", byte(tt.cla), got, tt.chained)
		}
		if got := tt.cla.SecureMessaging(); got != tt.sm {
			t.Errorf("CLA %02X SecureMessaging = %v, want %v", byte(tt.cla), got, tt.sm)
		}
		if got := tt.cla.Channel(); got != tt.channel {
			t.Errorf("CLA %02X Channel = %d, want %d", byte(tt.cla), got, tt.channel)
		}
	}
}
