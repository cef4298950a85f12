package live

import (
	"encoding/binary"
	"errors"
)

// Binary websocket frames carry an 8-byte header: frame type and payload
// length, both little-endian uint32. Audio payloads are s16le PCM; snapshot
// payloads are encoded images.
const (
	FrameAudio    uint32 = 1
	FrameSnapshot uint32 = 2

	headerSize = 8
)

var ErrBadFrame = errors.New("live: malformed binary frame")

type Frame struct {
	Type    uint32
	Payload []byte
}

func ParseFrame(data []byte) (Frame, error) {
	if len(data) < headerSize {
		return Frame{}, ErrBadFrame
	}
	typ := binary.LittleEndian.Uint32(data[0:])
	n := binary.LittleEndian.Uint32(data[4:])
	if typ != FrameAudio && typ != FrameSnapshot {
		return Frame{}, ErrBadFrame
	}
	if int(n) != len(data)-headerSize {
		return Frame{}, ErrBadFrame
	}
	return Frame{Type: typ, Payload: data[headerSize:]}, nil
}

func EncodeFrame(typ uint32, payload []byte) []byte {
	buf := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:], typ)
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(payload)))
	copy(buf[headerSize:], payload)
	return buf
}
