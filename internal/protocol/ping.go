package protocol

import (
	"bytes"
	"fmt"

	"github.com/segmentio/encoding/json"
	"github.com/vmihailenco/msgpack/v5"
)

// PingData is an opaque heartbeat payload: either a byte array or a number.
// Server echoes it back unchanged in Pong.
type PingData struct {
	Binary   []byte
	Number   uint64
	IsNumber bool
}

func BinaryPing(b []byte) PingData {
	return PingData{Binary: b}
}

func NumberPing(n uint64) PingData {
	return PingData{Number: n, IsNumber: true}
}

// MarshalJSON encodes binary data as an array of numbers.
func (p PingData) MarshalJSON() ([]byte, error) {
	if p.IsNumber {
		return json.Marshal(p.Number)
	}
	values := make([]uint16, len(p.Binary))
	for i, b := range p.Binary {
		values[i] = uint16(b)
	}
	return json.Marshal(values)
}

func (p *PingData) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var values []int64
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		binary, err := toBytes(values)
		if err != nil {
			return err
		}
		*p = PingData{Binary: binary}
		return nil
	}
	var n uint64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("ping data must be an array of bytes or a number: %w", err)
	}
	*p = NumberPing(n)
	return nil
}

func (p PingData) EncodeMsgpack(enc *msgpack.Encoder) error {
	if p.IsNumber {
		return enc.EncodeUint(p.Number)
	}
	return enc.EncodeBytes(p.Binary)
}

func (p *PingData) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*p = PingData{}
	case []byte:
		*p = PingData{Binary: val}
	case uint64:
		*p = NumberPing(val)
	case int64:
		if val < 0 {
			return fmt.Errorf("negative ping number: %d", val)
		}
		*p = NumberPing(uint64(val))
	case []any:
		values := make([]int64, 0, len(val))
		for _, item := range val {
			switch n := item.(type) {
			case int64:
				values = append(values, n)
			case uint64:
				values = append(values, int64(n))
			default:
				return fmt.Errorf("unexpected ping array item %T", item)
			}
		}
		binary, err := toBytes(values)
		if err != nil {
			return err
		}
		*p = PingData{Binary: binary}
	default:
		return fmt.Errorf("unexpected ping data %T", v)
	}
	return nil
}

func toBytes(values []int64) ([]byte, error) {
	binary := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("ping byte out of range: %d", v)
		}
		binary[i] = byte(v)
	}
	return binary, nil
}
