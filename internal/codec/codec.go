// Package codec converts between websocket frames and typed protocol values.
package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bonfire-gw/bonfire/internal/protocol"

	"github.com/segmentio/encoding/json"
	"github.com/tidwall/gjson"
	"github.com/vmihailenco/msgpack/v5"
)

// FrameKind is a frame discriminator.
type FrameKind uint8

const (
	FrameText FrameKind = iota + 1
	FrameBinary
)

func (k FrameKind) String() string {
	switch k {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Frame is one unit of wire data.
type Frame struct {
	Kind    FrameKind
	Payload []byte
}

var errUntagged = errors.New("value has no type tag")

// Codec encodes and decodes frames of one negotiated format. Decoding never
// panics on malformed input: every failure is an error wrapping
// protocol.ErrInternal.
type Codec struct {
	format    protocol.Format
	kind      FrameKind
	marshal   func(v any) ([]byte, error)
	unmarshal func(data []byte, v any) error
	peekKind  func(data []byte) (string, error)
}

// New creates Codec for format.
func New(format protocol.Format) *Codec {
	if format == protocol.FormatMsgpack {
		return &Codec{
			format:    format,
			kind:      FrameBinary,
			marshal:   marshalMsgpack,
			unmarshal: unmarshalMsgpack,
			peekKind:  peekKindMsgpack,
		}
	}
	return &Codec{
		format:    protocol.FormatJSON,
		kind:      FrameText,
		marshal:   json.Marshal,
		unmarshal: json.Unmarshal,
		peekKind:  peekKindJSON,
	}
}

func (c *Codec) Format() protocol.Format {
	return c.format
}

// FrameKind returns discriminator produced and accepted by Codec.
func (c *Codec) FrameKind() FrameKind {
	return c.kind
}

// DecodeMessage decodes client message.
func (c *Codec) DecodeMessage(frame Frame) (protocol.ClientMessage, error) {
	kind, err := c.checkFrame(frame)
	if err != nil {
		return nil, err
	}
	msg, ok := protocol.NewClientMessage(kind)
	if !ok {
		return nil, decodeError(fmt.Errorf("unknown message type %q", kind))
	}
	if err := c.unmarshal(frame.Payload, msg); err != nil {
		return nil, decodeError(err)
	}
	return msg, nil
}

// DecodeEvent decodes server event. Unknown event kinds are returned as
// protocol.GenericEvent.
func (c *Codec) DecodeEvent(frame Frame) (protocol.Event, error) {
	kind, err := c.checkFrame(frame)
	if err != nil {
		return nil, err
	}
	ev, ok := protocol.NewEvent(kind)
	if !ok {
		generic := protocol.GenericEvent{}
		if err := c.unmarshal(frame.Payload, &generic); err != nil {
			return nil, decodeError(err)
		}
		return generic, nil
	}
	if err := c.unmarshal(frame.Payload, ev); err != nil {
		return nil, decodeError(err)
	}
	return ev, nil
}

// EncodeEvent encodes server event. An error here means a bug in event
// construction, not bad client input.
func (c *Codec) EncodeEvent(ev protocol.Event) (Frame, error) {
	return c.encode(ev.Kind(), ev)
}

// EncodeMessage encodes client message.
func (c *Codec) EncodeMessage(msg protocol.ClientMessage) (Frame, error) {
	return c.encode(msg.Kind(), msg)
}

func (c *Codec) encode(kind string, v any) (Frame, error) {
	if kind == "" {
		return Frame{}, fmt.Errorf("encode %T: %w", v, errUntagged)
	}
	data, err := c.marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s: %w", kind, err)
	}
	return Frame{Kind: c.kind, Payload: data}, nil
}

func (c *Codec) checkFrame(frame Frame) (string, error) {
	if frame.Kind != c.kind {
		return "", decodeError(fmt.Errorf("%s frame not allowed for %s format", frame.Kind, c.format))
	}
	kind, err := c.peekKind(frame.Payload)
	if err != nil {
		return "", decodeError(err)
	}
	return kind, nil
}

func decodeError(err error) error {
	return fmt.Errorf("%w: %v", protocol.ErrInternal, err)
}

func peekKindJSON(data []byte) (string, error) {
	if !gjson.ValidBytes(data) {
		return "", errors.New("malformed JSON")
	}
	result := gjson.GetBytes(data, "type")
	if result.Type != gjson.String {
		return "", errors.New("missing type")
	}
	return result.Str, nil
}

func marshalMsgpack(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalMsgpack(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

func peekKindMsgpack(data []byte) (string, error) {
	var tag protocol.Tag
	if err := unmarshalMsgpack(data, &tag); err != nil {
		return "", err
	}
	if tag.Type == "" {
		return "", errors.New("missing type")
	}
	return tag.Type, nil
}
