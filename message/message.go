// Package message defines the wire schema shared by the doordb client and server.
//
// A call carries exactly two values: the client sends a Query, the server answers
// with an Envelope. Both are closed unions; the codec package turns them into bytes.
//
//   - Query:    CounterQuery{Key, Method} | TextQuery{TextDelete | TextRead | TextWrite}
//   - Envelope: Ok(Counter | Text) | Fail(message)
//
// A Response carries no indication of the Query that produced it. The caller
// knows which variant to expect from the request it sent.
package message

import "fmt"

// Method is an operation on a counter identified by key.
type Method uint8

const (
	MethodCreate Method = iota
	MethodDelete
	MethodGet
	MethodIncrement
)

var methodNames = [...]string{
	MethodCreate:    "Create",
	MethodDelete:    "Delete",
	MethodGet:       "Get",
	MethodIncrement: "Increment",
}

// String returns the wire name of the method ("Create", "Delete", "Get", "Increment").
func (m Method) String() string {
	if m.Valid() {
		return methodNames[m]
	}
	return fmt.Sprintf("Method(%d)", uint8(m))
}

// Valid reports whether m is one of the four named methods.
func (m Method) Valid() bool {
	return int(m) < len(methodNames)
}

// ParseMethod maps a wire name back to its Method.
func ParseMethod(name string) (Method, bool) {
	for m, n := range methodNames {
		if n == name {
			return Method(m), true
		}
	}
	return 0, false
}

// Query is a request for one operation. Implemented by CounterQuery and TextQuery only.
type Query interface {
	isQuery()
}

// CounterQuery applies Method to the counter named Key.
type CounterQuery struct {
	Key    string
	Method Method
}

// TextQuery applies a text-store operation.
type TextQuery struct {
	Method TextMethod
}

func (CounterQuery) isQuery() {}
func (TextQuery) isQuery()    {}

// TextMethod is an operation on a text value. Implemented by TextDelete, TextRead and TextWrite.
type TextMethod interface {
	isTextMethod()
	// TextKey returns the key the operation addresses.
	TextKey() string
}

type TextDelete struct {
	Key string
}

type TextRead struct {
	Key string
}

type TextWrite struct {
	Key   string
	Value string
}

func (TextDelete) isTextMethod() {}
func (TextRead) isTextMethod()   {}
func (TextWrite) isTextMethod()  {}

func (m TextDelete) TextKey() string { return m.Key }
func (m TextRead) TextKey() string   { return m.Key }
func (m TextWrite) TextKey() string  { return m.Key }

// Response is the successful result of a call: Counter or Text.
type Response interface {
	isResponse()
}

// Counter is a counter value returned by the server.
type Counter uint64

// Text is a text value returned by the server.
type Text string

func (Counter) isResponse() {}
func (Text) isResponse()    {}

// VariantName names the union case held by v, for diagnostics.
// It returns "<nil>" for a nil value.
func VariantName(v any) string {
	switch v := v.(type) {
	case nil:
		return "<nil>"
	case CounterQuery:
		return "Counter"
	case TextQuery:
		return "Text(" + VariantName(v.Method) + ")"
	case TextDelete:
		return "Delete"
	case TextRead:
		return "Read"
	case TextWrite:
		return "Write"
	case Counter:
		return "Counter"
	case Text:
		return "Text"
	}
	return fmt.Sprintf("%T", v)
}

// ServerError is a failure the server chose to report instead of a value.
type ServerError struct {
	Message string
}

// Error returns the server's message verbatim.
func (e *ServerError) Error() string {
	return e.Message
}

// Envelope is the value carried back on every call.
//
//   - On success: Response is set, Err is nil.
//   - On failure: Err is set, Response is nil.
type Envelope struct {
	Response Response
	Err      *ServerError
}

// Ok wraps a successful response.
func Ok(r Response) Envelope {
	return Envelope{Response: r}
}

// Fail wraps a server-reported failure.
func Fail(msg string) Envelope {
	return Envelope{Err: &ServerError{Message: msg}}
}

// Valid reports whether exactly one side of the envelope is set.
func (e Envelope) Valid() bool {
	return (e.Response == nil) != (e.Err == nil)
}

func (e Envelope) String() string {
	if e.Err != nil {
		return fmt.Sprintf("Err(%q)", e.Err.Message)
	}
	switch r := e.Response.(type) {
	case Counter:
		return fmt.Sprintf("Ok(Counter(%d))", uint64(r))
	case Text:
		return fmt.Sprintf("Ok(Text(%q))", string(r))
	}
	return "Envelope(<invalid>)"
}
