package pressure

import "net/http"

// Handler decides how a request is answered while the service is under
// pressure. It may set headers or a status on w before returning Respond.
type Handler func(w http.ResponseWriter, r *http.Request, v Verdict) Outcome

type outcomeKind int

const (
	outcomeProceed outcomeKind = iota
	outcomeRespond
	outcomeFail
)

// Outcome is a pressure handler's decision. The zero value proceeds.
type Outcome struct {
	kind outcomeKind
	body []byte
	err  error
}

// Proceed lets the request continue as if no pressure had been detected.
func Proceed() Outcome {
	return Outcome{kind: outcomeProceed}
}

// Respond answers the request with body instead of calling the next handler.
func Respond(body []byte) Outcome {
	return Outcome{kind: outcomeRespond, body: body}
}

// Fail answers the request with an error response. A *StatusError controls
// the status and message; any other error is sent with the configured
// ErrorStatus and its own text.
func Fail(err error) Outcome {
	return Outcome{kind: outcomeFail, err: err}
}

// Err returns the error carried by a Fail outcome.
func (o Outcome) Err() error {
	return o.err
}

// Proceeds reports whether the outcome lets the request continue.
func (o Outcome) Proceeds() bool {
	return o.kind == outcomeProceed
}
