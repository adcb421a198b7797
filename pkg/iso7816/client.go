package iso7816

import (
	"fmt"
)

// CLIENT & PROTOCOL LOGIC:
// The Client acts as a high-level driver over a card connection. It
// implements the ISO 7816-3 transport behaviours that T=0 protocols
// expose to the application layer:
//
// 1. "61 XX" (Response Available):
//    The card indicates that XX bytes are waiting. The client
//    automatically issues a GET RESPONSE command to retrieve them.
//
// 2. "6C XX" (Wrong Length):
//    The card rejected the expected length (Le) and suggests XX. The
//    client re-sends the original command with Le = XX.
//
// Send() returns a Trace: the log of all atomic transactions that were
// needed to fulfil the logical request.

// Transmitter abstracts the card connection. It is satisfied by a PC/SC
// card handle as well as by the in-process token.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Client manages the high-level communication with a token.
type Client struct {
	Card Transmitter
}

// NewClient creates a new Client instance.
func NewClient(card Transmitter) *Client {
	return &Client{Card: card}
}

// Send transmits a command and handles protocol logic (61xx, 6Cxx).
func (c *Client) Send(cmd *Command) (Trace, error) {
	rawCmd, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}

	rawResp, err := c.Card.Transmit(rawCmd)
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}

	resp, err := ParseResponse(rawResp)
	if err != nil {
		return nil, err
	}

	trace := Trace{{Command: cmd, Response: resp}}

	sw1 := resp.Status.SW1()
	sw2 := resp.Status.SW2()

	// Case 61XX: More data available, issue GET RESPONSE on the same
	// logical channel.
	if sw1 == 0x61 {
		getResp := NewCommand(cmd.Class, INS_GET_RESPONSE, 0x00, 0x00, nil, int(sw2))

		subTrace, err := c.Send(getResp)
		if err != nil {
			return trace, err
		}
		return append(trace, subTrace...), nil
	}

	// Case 6CXX: Wrong length, re-issue the command with the correct Le.
	if sw1 == 0x6C {
		retry := *cmd
		retry.Ne = int(sw2)

		subTrace, err := c.Send(&retry)
		if err != nil {
			return trace, err
		}
		return append(trace, subTrace...), nil
	}

	return trace, nil
}
