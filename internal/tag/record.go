package tag

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Type name formats used by the protocol.
const (
	TNFEmpty     uint8 = 0x00
	TNFWellKnown uint8 = 0x01
)

// Record header flags.
const (
	flagMB  = 0x80
	flagME  = 0x40
	flagCF  = 0x20
	flagSR  = 0x10
	flagIL  = 0x08
	tnfMask = 0x07
)

// Well-known record type codes.
var (
	TypeURI  = []byte{0x55} // "U"
	TypeText = []byte{0x54} // "T"
)

// Record is one typed entry in a tag message.
type Record struct {
	TNF     uint8
	Type    []byte
	ID      []byte
	Payload []byte
}

// IsURI reports whether r is a well-known URI record.
func (r Record) IsURI() bool {
	return r.TNF == TNFWellKnown && len(r.Type) == 1 && r.Type[0] == TypeURI[0]
}

// IsText reports whether r is a well-known text record.
func (r Record) IsText() bool {
	return r.TNF == TNFWellKnown && len(r.Type) == 1 && r.Type[0] == TypeText[0]
}

// Message is the ordered record sequence stored on a tag.
type Message struct {
	Records []Record
}

// MarshalBinary encodes the message in NDEF wire form. Payloads up to 255
// bytes use the short record layout.
func (m Message) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, m.Len())
	for i, r := range m.Records {
		if len(r.Type) > math.MaxUint8 || len(r.ID) > math.MaxUint8 {
			return nil, fmt.Errorf("record %d: type or id too long", i)
		}
		if uint64(len(r.Payload)) > math.MaxUint32 {
			return nil, fmt.Errorf("record %d: payload too long", i)
		}

		header := r.TNF & tnfMask
		if i == 0 {
			header |= flagMB
		}
		if i == len(m.Records)-1 {
			header |= flagME
		}
		short := len(r.Payload) <= math.MaxUint8
		if short {
			header |= flagSR
		}
		if len(r.ID) > 0 {
			header |= flagIL
		}

		out = append(out, header, byte(len(r.Type)))
		if short {
			out = append(out, byte(len(r.Payload)))
		} else {
			out = binary.BigEndian.AppendUint32(out, uint32(len(r.Payload)))
		}
		if len(r.ID) > 0 {
			out = append(out, byte(len(r.ID)))
		}
		out = append(out, r.Type...)
		out = append(out, r.ID...)
		out = append(out, r.Payload...)
	}
	return out, nil
}

// Len returns the encoded size in bytes, used for tag capacity checks.
func (m Message) Len() int {
	n := 0
	for _, r := range m.Records {
		n += 2 + len(r.Type) + len(r.ID) + len(r.Payload)
		if len(r.Payload) <= math.MaxUint8 {
			n++
		} else {
			n += 4
		}
		if len(r.ID) > 0 {
			n++
		}
	}
	return n
}

// ParseMessage decodes raw tag bytes into records. Empty input is a message
// with no records. Chunked records and truncated data yield ErrMalformedMessage.
// Parsing stops after a record flagged as message end; trailing bytes (tag
// padding, terminator TLVs) are ignored.
func ParseMessage(raw []byte) (Message, error) {
	var msg Message
	for off := 0; off < len(raw); {
		header := raw[off]
		if header&flagCF != 0 {
			return Message{}, fmt.Errorf("%w: chunked record at offset %d", ErrMalformedMessage, off)
		}
		off++

		if off >= len(raw) {
			return Message{}, fmt.Errorf("%w: truncated header", ErrMalformedMessage)
		}
		typeLen := int(raw[off])
		off++

		var payloadLen int
		if header&flagSR != 0 {
			if off+1 > len(raw) {
				return Message{}, fmt.Errorf("%w: truncated length", ErrMalformedMessage)
			}
			payloadLen = int(raw[off])
			off++
		} else {
			if off+4 > len(raw) {
				return Message{}, fmt.Errorf("%w: truncated length", ErrMalformedMessage)
			}
			l := binary.BigEndian.Uint32(raw[off : off+4])
			if uint64(l) > uint64(len(raw)) {
				return Message{}, fmt.Errorf("%w: payload length %d exceeds data", ErrMalformedMessage, l)
			}
			payloadLen = int(l)
			off += 4
		}

		idLen := 0
		if header&flagIL != 0 {
			if off+1 > len(raw) {
				return Message{}, fmt.Errorf("%w: truncated id length", ErrMalformedMessage)
			}
			idLen = int(raw[off])
			off++
		}

		if typeLen+idLen+payloadLen > len(raw)-off {
			return Message{}, fmt.Errorf("%w: record body exceeds data", ErrMalformedMessage)
		}
		rec := Record{TNF: header & tnfMask}
		rec.Type = clone(raw[off : off+typeLen])
		off += typeLen
		rec.ID = clone(raw[off : off+idLen])
		off += idLen
		rec.Payload = clone(raw[off : off+payloadLen])
		off += payloadLen

		msg.Records = append(msg.Records, rec)
		if header&flagME != 0 {
			break
		}
	}
	return msg, nil
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
