package iso7816

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want Command
	}{
		{
			name: "Case 1",
			raw:  []byte{0x00, 0x20, 0x00, 0x01},
			want: Command{Class: 0x00, Ins: INS_VERIFY, P1: 0x00, P2: 0x01},
		},
		{
			name: "Case 2 short",
			raw:  []byte{0x00, 0xCA, 0x01, 0x01, 0x03},
			want: Command{Ins: INS_GET_DATA, P1: 0x01, P2: 0x01, Ne: 3},
		},
		{
			name: "Case 2 short Le=0 means 256",
			raw:  []byte{0x00, 0x84, 0x00, 0x00, 0x00},
			want: Command{Ins: INS_GET_CHALLENGE, Ne: 256},
		},
		{
			name: "Case 3 short",
			raw:  []byte{0x00, 0x20, 0x00, 0x01, 0x04, 0x31, 0x32, 0x33, 0x34},
			want: Command{Ins: INS_VERIFY, P2: 0x01, Data: []byte("1234")},
		},
		{
			name: "Case 4 short",
			raw:  []byte{0x00, 0x2A, 0x9E, 0x9A, 0x02, 0xAA, 0xBB, 0x00},
			want: Command{Ins: INS_PERFORM_SECURITY_OPERATION, P1: 0x9E, P2: 0x9A, Data: []byte{0xAA, 0xBB}, Ne: 256},
		},
		{
			name: "Case 2 extended",
			raw:  []byte{0x00, 0x46, 0x42, 0x00, 0x00, 0x01, 0x0A},
			want: Command{Ins: INS_GENERATE_ASYMMETRIC_KEY_PAIR, P1: 0x42, Ne: 266},
		},
		{
			name: "Case 3 extended",
			raw:  []byte{0x00, 0xDB, 0x3F, 0xFF, 0x00, 0x00, 0x03, 0x01, 0x02, 0x03},
			want: Command{Ins: INS_PUT_DATA, P1: 0x3F, P2: 0xFF, Data: []byte{0x01, 0x02, 0x03}},
		},
		{
			name: "Case 4 extended",
			raw:  []byte{0x00, 0x2A, 0x80, 0x86, 0x00, 0x00, 0x02, 0x10, 0x20, 0x01, 0x00},
			want: Command{Ins: INS_PERFORM_SECURITY_OPERATION, P1: 0x80, P2: 0x86, Data: []byte{0x10, 0x20}, Ne: 256},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.raw)
			if err != nil {
				t.Fatalf("ParseCommand failed: %v", err)
			}
			if diff := cmp.Diff(&tt.want, got); diff != "" {
				t.Errorf("ParseCommand mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"Too short", []byte{0x00, 0x20}},
		{"Reserved CLA", []byte{0xFF, 0x20, 0x00, 0x01}},
		{"Truncated short data", []byte{0x00, 0x20, 0x00, 0x01, 0x04, 0x31}},
		{"Truncated extended length", []byte{0x00, 0x20, 0x00, 0x01, 0x00, 0x01}},
		{"Extended Lc zero", []byte{0x00, 0x20, 0x00, 0x01, 0x00, 0x00, 0x00, 0xAA}},
		{"Trailing garbage", []byte{0x00, 0x20, 0x00, 0x01, 0x00, 0x00, 0x01, 0xAA, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCommand(tt.raw); err == nil {
				t.Errorf("ParseCommand(% X) succeeded, want error", tt.raw)
			}
		})
	}
}

func TestCommandRoundTrip(t *testing.T) {
	cmds := []*Command{
		NewCommand(0x00, INS_VERIFY, 0x00, 0x01, nil, 0),
		NewCommand(0x00, INS_VERIFY, 0x00, 0x01, []byte("123456"), 0),
		NewCommand(0x00, INS_GET_CHALLENGE, 0x00, 0x00, nil, 256),
		NewCommand(0x00, INS_GET_CHALLENGE, 0x00, 0x00, nil, 8),
		NewCommand(0x00, INS_PUT_DATA, 0x3F, 0xFF, bytes.Repeat([]byte{0xA5}, 300), 0),
		NewCommand(0x00, INS_GENERATE_ASYMMETRIC_KEY_PAIR, 0x42, 0x00, nil, 65536),
		NewCommand(0x00, INS_PERFORM_SECURITY_OPERATION, 0x9E, 0x9A, bytes.Repeat([]byte{0x11}, 32), 512),
	}

	for _, cmd := range cmds {
		raw, err := cmd.Bytes()
		if err != nil {
			t.Fatalf("Bytes(%s) failed: %v", cmd, err)
		}
		got, err := ParseCommand(raw)
		if err != nil {
			t.Fatalf("ParseCommand(%s) failed: %v", cmd, err)
		}
		if diff := cmp.Diff(cmd, got); diff != "" {
			t.Errorf("round trip mismatch for %s (-want +got):\n%s", cmd, diff)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resp := &Response{Data: []byte{0x01, 0x00, 0x25}, Status: SW_NO_ERROR}
	raw := resp.Bytes()

	want := []byte{0x01, 0x00, 0x25, 0x90, 0x00}
	if !bytes.Equal(raw, want) {
		t.Fatalf("Bytes() = % X, want % X", raw, want)
	}

	got, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if diff := cmp.Diff(resp, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseResponseTooShort(t *testing.T) {
	if _, err := ParseResponse([]byte{0x90}); err == nil {
		t.Error("expected error for 1-byte response")
	}
}
