package codec

import (
	"fmt"

	"doordb/message"

	"github.com/fxamacker/cbor/v2"
)

// CBORCodec encodes every union as a single-entry map from variant name to payload,
// the externally tagged layout the doordb service speaks:
//
//	CounterQuery  {"Counter": {"key": k, "method": "Increment"}}
//	TextQuery     {"Text": {"Write": {"key": k, "value": v}}}
//	Ok(Counter)   {"Ok": {"Counter": 5}}
//	Fail(msg)     {"Err": "no such key"}
//
// Unit variants (Method) are encoded as their name.
type CBORCodec struct{}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	if cborEnc, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	cborDec, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		FieldNameMatching: cbor.FieldNameMatchingCaseSensitive,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

type cborCounterQuery struct {
	Key    string `cbor:"key"`
	Method string `cbor:"method"`
}

type cborKey struct {
	Key string `cbor:"key"`
}

type cborWrite struct {
	Key   string `cbor:"key"`
	Value string `cbor:"value"`
}

// Decode-side payloads. Every field is required, so a nil pointer after decoding
// means the field was absent or null.
type (
	cborCounterQueryIn struct {
		Key    *string `cbor:"key"`
		Method *string `cbor:"method"`
	}
	cborKeyIn struct {
		Key *string `cbor:"key"`
	}
	cborWriteIn struct {
		Key   *string `cbor:"key"`
		Value *string `cbor:"value"`
	}
)

func (c *CBORCodec) Encode(v any) ([]byte, error) {
	var (
		wire any
		err  error
	)
	switch v := v.(type) {
	case message.Query:
		wire, err = cborQuery(v)
	case message.Envelope:
		wire, err = cborEnvelope(v)
	default:
		return nil, unsupported(v)
	}
	if err != nil {
		return nil, err
	}
	return cborEnc.Marshal(wire)
}

func (c *CBORCodec) Decode(data []byte, v any) error {
	switch v := v.(type) {
	case *message.Query:
		q, err := decodeCBORQuery(data)
		if err != nil {
			return err
		}
		*v = q
	case *message.Envelope:
		e, err := decodeCBOREnvelope(data)
		if err != nil {
			return err
		}
		*v = e
	default:
		return unsupported(v)
	}
	return nil
}

func (c *CBORCodec) Type() CodecType {
	return CodecTypeCBOR
}

func cborQuery(q message.Query) (any, error) {
	switch q := q.(type) {
	case message.CounterQuery:
		if !q.Method.Valid() {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, q.Method)
		}
		return map[string]any{"Counter": cborCounterQuery{Key: q.Key, Method: q.Method.String()}}, nil
	case message.TextQuery:
		var inner any
		switch m := q.Method.(type) {
		case message.TextDelete:
			inner = map[string]any{"Delete": cborKey{Key: m.Key}}
		case message.TextRead:
			inner = map[string]any{"Read": cborKey{Key: m.Key}}
		case message.TextWrite:
			inner = map[string]any{"Write": cborWrite{Key: m.Key, Value: m.Value}}
		default:
			return nil, unsupported(q.Method)
		}
		return map[string]any{"Text": inner}, nil
	}
	return nil, unsupported(q)
}

func cborEnvelope(e message.Envelope) (any, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("%w: envelope must hold exactly one of Ok or Err", ErrUnsupportedValue)
	}
	if e.Err != nil {
		return map[string]any{"Err": e.Err.Message}, nil
	}
	switch r := e.Response.(type) {
	case message.Counter:
		return map[string]any{"Ok": map[string]any{"Counter": uint64(r)}}, nil
	case message.Text:
		return map[string]any{"Ok": map[string]any{"Text": string(r)}}, nil
	}
	return nil, unsupported(e.Response)
}

// cborVariant splits a single-entry map into its tag and raw payload.
func cborVariant(data []byte) (string, cbor.RawMessage, error) {
	var m map[string]cbor.RawMessage
	if err := cborDec.Unmarshal(data, &m); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(m) != 1 {
		return "", nil, fmt.Errorf("%w: expect exactly one variant tag, got %d", ErrMalformed, len(m))
	}
	for tag, raw := range m {
		return tag, raw, nil
	}
	panic("unreachable")
}

// cborPayload decodes a variant payload. Null and undefined are rejected rather
// than left as zero values.
func cborPayload(raw cbor.RawMessage, v any) error {
	if len(raw) == 1 && (raw[0] == 0xf6 || raw[0] == 0xf7) {
		return fmt.Errorf("%w: null payload", ErrMalformed)
	}
	if err := cborDec.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}

func required(field string, v *string) (string, error) {
	if v == nil {
		return "", fmt.Errorf("%w: missing field %q", ErrMalformed, field)
	}
	return *v, nil
}

func decodeCBORQuery(data []byte) (message.Query, error) {
	tag, raw, err := cborVariant(data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "Counter":
		var p cborCounterQueryIn
		if err := cborPayload(raw, &p); err != nil {
			return nil, err
		}
		key, err := required("key", p.Key)
		if err != nil {
			return nil, err
		}
		name, err := required("method", p.Method)
		if err != nil {
			return nil, err
		}
		m, ok := message.ParseMethod(name)
		if !ok {
			return nil, fmt.Errorf("%w: counter method %q", ErrUnknownVariant, name)
		}
		return message.CounterQuery{Key: key, Method: m}, nil
	case "Text":
		m, err := decodeCBORTextMethod(raw)
		if err != nil {
			return nil, err
		}
		return message.TextQuery{Method: m}, nil
	}
	return nil, fmt.Errorf("%w: query %q", ErrUnknownVariant, tag)
}

func decodeCBORTextMethod(data []byte) (message.TextMethod, error) {
	tag, raw, err := cborVariant(data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "Delete", "Read":
		var p cborKeyIn
		if err := cborPayload(raw, &p); err != nil {
			return nil, err
		}
		key, err := required("key", p.Key)
		if err != nil {
			return nil, err
		}
		if tag == "Delete" {
			return message.TextDelete{Key: key}, nil
		}
		return message.TextRead{Key: key}, nil
	case "Write":
		var p cborWriteIn
		if err := cborPayload(raw, &p); err != nil {
			return nil, err
		}
		key, err := required("key", p.Key)
		if err != nil {
			return nil, err
		}
		value, err := required("value", p.Value)
		if err != nil {
			return nil, err
		}
		return message.TextWrite{Key: key, Value: value}, nil
	}
	return nil, fmt.Errorf("%w: text method %q", ErrUnknownVariant, tag)
}

func decodeCBOREnvelope(data []byte) (message.Envelope, error) {
	tag, raw, err := cborVariant(data)
	if err != nil {
		return message.Envelope{}, err
	}
	switch tag {
	case "Ok":
		r, err := decodeCBORResponse(raw)
		if err != nil {
			return message.Envelope{}, err
		}
		return message.Ok(r), nil
	case "Err":
		var msg string
		if err := cborPayload(raw, &msg); err != nil {
			return message.Envelope{}, err
		}
		return message.Fail(msg), nil
	}
	return message.Envelope{}, fmt.Errorf("%w: result %q", ErrUnknownVariant, tag)
}

func decodeCBORResponse(data []byte) (message.Response, error) {
	tag, raw, err := cborVariant(data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "Counter":
		var n uint64
		if err := cborPayload(raw, &n); err != nil {
			return nil, err
		}
		return message.Counter(n), nil
	case "Text":
		var s string
		if err := cborPayload(raw, &s); err != nil {
			return nil, err
		}
		return message.Text(s), nil
	}
	return nil, fmt.Errorf("%w: response %q", ErrUnknownVariant, tag)
}
