package stream

import (
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"

	"github.com/aaanmmoool/finboard/internal/jsonvalue"
)

// Message is one frame received from a stream.
type Message struct {
	// Data is the decoded payload. Text frames that are not JSON are
	// delivered as a string value.
	Data jsonvalue.Value
	// Raw is the frame exactly as received.
	Raw []byte
	// Binary is set for binary frames.
	Binary bool
	// Parsed reports whether Data was decoded from JSON or MessagePack.
	Parsed bool
}

func decodeMessage(typ websocket.MessageType, raw []byte) Message {
	msg := Message{Raw: raw, Binary: typ == websocket.MessageBinary}

	if msg.Binary {
		var v any
		if err := msgpack.Unmarshal(raw, &v); err == nil {
			msg.Data = jsonvalue.FromAny(v)
			msg.Parsed = true
		}
		return msg
	}

	if v, err := jsonvalue.Parse(raw); err == nil {
		msg.Data = v
		msg.Parsed = true
		return msg
	}
	msg.Data = jsonvalue.NewString(string(raw))
	return msg
}
