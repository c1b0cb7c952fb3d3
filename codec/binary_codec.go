package codec

import (
	"fmt"

	"doordb/message"

	"google.golang.org/protobuf/encoding/protowire"
)

// BinaryCodec is a compact tag/length-prefixed encoding in protobuf wire format.
// Every union is encoded as exactly one field whose number is the variant tag:
//
//	Query     1: Counter {1: key, 2: method (varint)}
//	          2: Text    {1: Delete {1: key} | 2: Read {1: key} | 3: Write {1: key, 2: value}}
//	Envelope  1: Ok      {1: Counter (varint) | 2: Text}
//	          2: Err     (string)
//
// Payload fields are always written, even when empty.
type BinaryCodec struct{}

const (
	queryCounter protowire.Number = 1
	queryText    protowire.Number = 2

	textDelete protowire.Number = 1
	textRead   protowire.Number = 2
	textWrite  protowire.Number = 3

	fieldKey    protowire.Number = 1
	fieldMethod protowire.Number = 2
	fieldValue  protowire.Number = 2

	envelopeOk  protowire.Number = 1
	envelopeErr protowire.Number = 2

	responseCounter protowire.Number = 1
	responseText    protowire.Number = 2
)

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	switch v := v.(type) {
	case message.Query:
		return appendQuery(nil, v)
	case message.Envelope:
		return appendEnvelope(nil, v)
	}
	return nil, unsupported(v)
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	switch v := v.(type) {
	case *message.Query:
		q, err := decodeBinaryQuery(data)
		if err != nil {
			return err
		}
		*v = q
	case *message.Envelope:
		e, err := decodeBinaryEnvelope(data)
		if err != nil {
			return err
		}
		*v = e
	default:
		return unsupported(v)
	}
	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, payload []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

func appendQuery(b []byte, q message.Query) ([]byte, error) {
	switch q := q.(type) {
	case message.CounterQuery:
		if !q.Method.Valid() {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, q.Method)
		}
		p := appendString(nil, fieldKey, q.Key)
		p = protowire.AppendTag(p, fieldMethod, protowire.VarintType)
		p = protowire.AppendVarint(p, uint64(q.Method))
		return appendMessage(b, queryCounter, p), nil
	case message.TextQuery:
		var p []byte
		switch m := q.Method.(type) {
		case message.TextDelete:
			p = appendMessage(nil, textDelete, appendString(nil, fieldKey, m.Key))
		case message.TextRead:
			p = appendMessage(nil, textRead, appendString(nil, fieldKey, m.Key))
		case message.TextWrite:
			w := appendString(nil, fieldKey, m.Key)
			w = appendString(w, fieldValue, m.Value)
			p = appendMessage(nil, textWrite, w)
		default:
			return nil, unsupported(q.Method)
		}
		return appendMessage(b, queryText, p), nil
	}
	return nil, unsupported(q)
}

func appendEnvelope(b []byte, e message.Envelope) ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("%w: envelope must hold exactly one of Ok or Err", ErrUnsupportedValue)
	}
	if e.Err != nil {
		return appendString(b, envelopeErr, e.Err.Message), nil
	}
	var p []byte
	switch r := e.Response.(type) {
	case message.Counter:
		p = protowire.AppendTag(nil, responseCounter, protowire.VarintType)
		p = protowire.AppendVarint(p, uint64(r))
	case message.Text:
		p = appendString(nil, responseText, string(r))
	default:
		return nil, unsupported(e.Response)
	}
	return appendMessage(b, envelopeOk, p), nil
}

type field struct {
	num    protowire.Number
	typ    protowire.Type
	bytes  []byte
	varint uint64
}

func parseFields(b []byte) ([]field, error) {
	var fields []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		default:
			return nil, fmt.Errorf("%w: field %d has unexpected wire type %d", ErrMalformed, num, typ)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(n))
		}
		b = b[n:]
		fields = append(fields, f)
	}
	return fields, nil
}

// variant parses a union: exactly one field, its number being the tag.
func variant(b []byte) (field, error) {
	fields, err := parseFields(b)
	if err != nil {
		return field{}, err
	}
	if len(fields) != 1 {
		return field{}, fmt.Errorf("%w: expect exactly one variant tag, got %d", ErrMalformed, len(fields))
	}
	return fields[0], nil
}

// record parses a payload whose fields must all be present exactly once with the given types.
func record(b []byte, types map[protowire.Number]protowire.Type) (map[protowire.Number]field, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, err
	}
	out := make(map[protowire.Number]field, len(fields))
	for _, f := range fields {
		typ, ok := types[f.num]
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %d", ErrMalformed, f.num)
		}
		if typ != f.typ {
			return nil, fmt.Errorf("%w: field %d has wire type %d, want %d", ErrMalformed, f.num, f.typ, typ)
		}
		if _, dup := out[f.num]; dup {
			return nil, fmt.Errorf("%w: duplicate field %d", ErrMalformed, f.num)
		}
		out[f.num] = f
	}
	if len(out) != len(types) {
		return nil, fmt.Errorf("%w: expect %d fields, got %d", ErrMalformed, len(types), len(out))
	}
	return out, nil
}

func expectType(f field, typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("%w: variant %d has wire type %d, want %d", ErrMalformed, f.num, f.typ, typ)
	}
	return nil
}

var keyOnly = map[protowire.Number]protowire.Type{fieldKey: protowire.BytesType}

func decodeBinaryQuery(data []byte) (message.Query, error) {
	v, err := variant(data)
	if err != nil {
		return nil, err
	}
	switch v.num {
	case queryCounter:
		if err := expectType(v, protowire.BytesType); err != nil {
			return nil, err
		}
		r, err := record(v.bytes, map[protowire.Number]protowire.Type{
			fieldKey:    protowire.BytesType,
			fieldMethod: protowire.VarintType,
		})
		if err != nil {
			return nil, err
		}
		m := r[fieldMethod].varint
		if m > uint64(message.MethodIncrement) {
			return nil, fmt.Errorf("%w: counter method %d", ErrUnknownVariant, m)
		}
		return message.CounterQuery{Key: string(r[fieldKey].bytes), Method: message.Method(m)}, nil
	case queryText:
		if err := expectType(v, protowire.BytesType); err != nil {
			return nil, err
		}
		m, err := decodeBinaryTextMethod(v.bytes)
		if err != nil {
			return nil, err
		}
		return message.TextQuery{Method: m}, nil
	}
	return nil, fmt.Errorf("%w: query %d", ErrUnknownVariant, v.num)
}

func decodeBinaryTextMethod(data []byte) (message.TextMethod, error) {
	v, err := variant(data)
	if err != nil {
		return nil, err
	}
	if v.num < textDelete || v.num > textWrite {
		return nil, fmt.Errorf("%w: text method %d", ErrUnknownVariant, v.num)
	}
	if err := expectType(v, protowire.BytesType); err != nil {
		return nil, err
	}
	if v.num == textWrite {
		r, err := record(v.bytes, map[protowire.Number]protowire.Type{
			fieldKey:   protowire.BytesType,
			fieldValue: protowire.BytesType,
		})
		if err != nil {
			return nil, err
		}
		return message.TextWrite{Key: string(r[fieldKey].bytes), Value: string(r[fieldValue].bytes)}, nil
	}
	r, err := record(v.bytes, keyOnly)
	if err != nil {
		return nil, err
	}
	key := string(r[fieldKey].bytes)
	if v.num == textDelete {
		return message.TextDelete{Key: key}, nil
	}
	return message.TextRead{Key: key}, nil
}

func decodeBinaryEnvelope(data []byte) (message.Envelope, error) {
	v, err := variant(data)
	if err != nil {
		return message.Envelope{}, err
	}
	switch v.num {
	case envelopeOk:
		if err := expectType(v, protowire.BytesType); err != nil {
			return message.Envelope{}, err
		}
		r, err := variant(v.bytes)
		if err != nil {
			return message.Envelope{}, err
		}
		switch r.num {
		case responseCounter:
			if err := expectType(r, protowire.VarintType); err != nil {
				return message.Envelope{}, err
			}
			return message.Ok(message.Counter(r.varint)), nil
		case responseText:
			if err := expectType(r, protowire.BytesType); err != nil {
				return message.Envelope{}, err
			}
			return message.Ok(message.Text(r.bytes)), nil
		}
		return message.Envelope{}, fmt.Errorf("%w: response %d", ErrUnknownVariant, r.num)
	case envelopeErr:
		if err := expectType(v, protowire.BytesType); err != nil {
			return message.Envelope{}, err
		}
		return message.Fail(string(v.bytes)), nil
	}
	return message.Envelope{}, fmt.Errorf("%w: result %d", ErrUnknownVariant, v.num)
}
