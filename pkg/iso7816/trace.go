package iso7816

// A Transaction is the atomic unit of communication defined in ISO
// 7816-3: one Command APDU sent by the terminal, followed by one
// Response APDU sent back by the token.
//
// A Trace is a chronological sequence of Transactions. A single logical
// intent may expand into several physical transactions when the
// transport behaviours kick in (61XX GET RESPONSE rounds, 6CXX length
// retries); the trace captures the whole conversation and IsSuccess()
// evaluates the final outcome.

// Transaction represents a completed Command-Response pair.
type Transaction struct {
	Command  *Command
	Response *Response
}

// IsSuccess checks if the transaction ended with a successful status.
// It returns false if the response is missing.
func (t *Transaction) IsSuccess() bool {
	if t.Response == nil {
		return false
	}
	return t.Response.Status.IsSuccess()
}

// Trace is the full history of a logical exchange.
type Trace []Transaction

// Last returns the final transaction of the trace, or nil when empty.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess checks if the final transaction in the trace was successful.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	if last == nil {
		return false
	}
	return last.IsSuccess()
}

// Data concatenates the response data of every transaction in order.
// With GET RESPONSE rounds the payload of a logical exchange can be
// spread over several responses.
func (t Trace) Data() []byte {
	var out []byte
	for i := range t {
		if t[i].Response != nil {
			out = append(out, t[i].Response.Data...)
		}
	}
	return out
}
