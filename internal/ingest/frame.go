package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	domain "github.com/oshokin/home-alarm-central/internal/domain/alarm"
)

const (
	// LengthFieldSize is the size of the leading length byte.
	LengthFieldSize = 1
	// SequenceFieldSize is the size of the sequence counter.
	SequenceFieldSize = 4
	// CRCSize is the size of the CRC32 trailer.
	CRCSize = 4
	// TerminalSize is the size of the terminal byte.
	TerminalSize = 1

	// FrameHeaderSize is Length + MAC + Type + Seq.
	FrameHeaderSize = LengthFieldSize + domain.HardwareAddrLen + 1 + SequenceFieldSize

	// MaxFrameSize is the ESP-NOW payload limit.
	MaxFrameSize = 250

	// MinFrameSize is a frame without payload.
	MinFrameSize = FrameHeaderSize + CRCSize + TerminalSize

	// MaxPayloadSize is what is left for optional sensor data.
	MaxPayloadSize = MaxFrameSize - MinFrameSize

	// FrameTerminal closes every frame.
	FrameTerminal = 0x55

	// FrameTypeTriggered reports a detection.
	FrameTypeTriggered byte = 0x01
	// FrameTypeHeartbeat is a liveness ping.
	FrameTypeHeartbeat byte = 0x02
	// FrameTypeTamper reports an opened sensor case.
	FrameTypeTamper byte = 0x03
	// FrameTypeTamperRestored reports the case closed again.
	FrameTypeTamperRestored byte = 0x04
)

// ErrMalformedFrame is returned for frames that fail length, terminal, CRC or type checks.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is a decoded radio frame.
type Frame struct {
	Sender  domain.HardwareAddr
	Type    byte
	Seq     uint32
	Payload []byte
}

// Kind maps the frame type to a sensor event kind.
func (f *Frame) Kind() (domain.EventKind, bool) {
	switch f.Type {
	case FrameTypeTriggered:
		return domain.EventTriggered, true
	case FrameTypeHeartbeat:
		return domain.EventHeartbeat, true
	case FrameTypeTamper:
		return domain.EventTamper, true
	case FrameTypeTamperRestored:
		return domain.EventTamperRestored, true
	default:
		return 0, false
	}
}

// EncodeFrame serialises f. Payloads longer than MaxPayloadSize are truncated.
func EncodeFrame(f *Frame) []byte {
	if f == nil {
		return make([]byte, 0)
	}

	payload := f.Payload
	if len(payload) > MaxPayloadSize {
		payload = payload[:MaxPayloadSize]
	}

	total := MinFrameSize + len(payload)
	data := make([]byte, total)

	data[0] = byte(total - LengthFieldSize)
	copy(data[1:7], f.Sender[:])
	data[7] = f.Type
	binary.LittleEndian.PutUint32(data[8:12], f.Seq)
	copy(data[FrameHeaderSize:], payload)

	crcPos := FrameHeaderSize + len(payload)
	binary.LittleEndian.PutUint32(data[crcPos:crcPos+CRCSize], crc32.ChecksumIEEE(data[LengthFieldSize:crcPos]))

	data[total-1] = FrameTerminal

	return data
}

// DecodeFrame validates and parses a radio frame.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < MinFrameSize || len(data) > MaxFrameSize {
		return nil, fmt.Errorf("%w: length %d outside [%d, %d]", ErrMalformedFrame, len(data), MinFrameSize, MaxFrameSize)
	}

	bodyLen := int(data[0])
	if bodyLen+LengthFieldSize != len(data) {
		return nil, fmt.Errorf("%w: length byte %d does not match %d bytes", ErrMalformedFrame, bodyLen, len(data))
	}

	if data[len(data)-1] != FrameTerminal {
		return nil, fmt.Errorf("%w: bad terminal byte 0x%02x", ErrMalformedFrame, data[len(data)-1])
	}

	crcPos := len(data) - TerminalSize - CRCSize

	recvCRC := binary.LittleEndian.Uint32(data[crcPos : crcPos+CRCSize])
	if calcCRC := crc32.ChecksumIEEE(data[LengthFieldSize:crcPos]); recvCRC != calcCRC {
		return nil, fmt.Errorf("%w: crc 0x%08x, want 0x%08x", ErrMalformedFrame, recvCRC, calcCRC)
	}

	f := &Frame{
		Type:    data[7],
		Seq:     binary.LittleEndian.Uint32(data[8:12]),
		Payload: make([]byte, crcPos-FrameHeaderSize),
	}

	copy(f.Sender[:], data[1:7])
	copy(f.Payload, data[FrameHeaderSize:crcPos])

	if _, ok := f.Kind(); !ok {
		return nil, fmt.Errorf("%w: unknown frame type 0x%02x", ErrMalformedFrame, f.Type)
	}

	return f, nil
}
