// Package audioring buffers timestamped microphone chunks between the
// websocket reader and turn assembly. The buffer is bounded; when it fills,
// the oldest chunks are evicted so a stalled consumer never blocks capture.
package audioring

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/smallnest/ringbuffer"
)

type Chunk struct {
	Data       []byte
	Timestamp  time.Time
	SampleRate int32
	Channels   int16
}

// MarshalBinary frames a chunk as
// timestamp(8) + sampleRate(4) + channels(2) + dataLen(4) + data.
func (c *Chunk) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 18+len(c.Data))
	binary.LittleEndian.PutUint64(buf[0:], uint64(c.Timestamp.UnixNano()))
	binary.LittleEndian.PutUint32(buf[8:], uint32(c.SampleRate))
	binary.LittleEndian.PutUint16(buf[12:], uint16(c.Channels))
	binary.LittleEndian.PutUint32(buf[14:], uint32(len(c.Data)))
	copy(buf[18:], c.Data)
	return buf, nil
}

func (c *Chunk) UnmarshalBinary(data []byte) error {
	if len(data) < 18 {
		return errors.New("audioring: truncated chunk header")
	}
	c.Timestamp = time.Unix(0, int64(binary.LittleEndian.Uint64(data[0:])))
	c.SampleRate = int32(binary.LittleEndian.Uint32(data[8:]))
	c.Channels = int16(binary.LittleEndian.Uint16(data[12:]))
	n := int(binary.LittleEndian.Uint32(data[14:]))
	if len(data[18:]) < n {
		return errors.New("audioring: truncated chunk payload")
	}
	c.Data = make([]byte, n)
	copy(c.Data, data[18:18+n])
	return nil
}

// Ring is a bounded FIFO of audio chunks.
type Ring interface {
	Enqueue(c Chunk) error
	Dequeue() (Chunk, bool)
	// Drain removes and returns every buffered chunk in order.
	Drain() []Chunk
	Len() int
	Capacity() int
}

type ring struct {
	size int
	rb   *ringbuffer.RingBuffer
}

func New(size int) Ring {
	return &ring{
		size: size,
		rb:   ringbuffer.New(size).SetBlocking(false),
	}
}

func (r *ring) Capacity() int { return r.size }
func (r *ring) Len() int      { return r.rb.Length() }

func (r *ring) Enqueue(c Chunk) error {
	data, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	need := len(data) + 4
	if need > r.rb.Capacity() {
		return errors.New("audioring: chunk larger than buffer")
	}

	for r.rb.Free() < need {
		if !r.skipOldest() {
			r.rb.Reset()
			break
		}
	}

	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(data)))
	if _, err := r.rb.Write(size[:]); err != nil {
		return err
	}
	_, err = r.rb.Write(data)
	return err
}

func (r *ring) Dequeue() (Chunk, bool) {
	if r.rb.IsEmpty() {
		return Chunk{}, false
	}
	var size [4]byte
	if n, err := r.rb.Read(size[:]); err != nil || n != 4 {
		return Chunk{}, false
	}
	data := make([]byte, binary.LittleEndian.Uint32(size[:]))
	if n, err := r.rb.Read(data); err != nil || n != len(data) {
		return Chunk{}, false
	}
	var c Chunk
	if err := c.UnmarshalBinary(data); err != nil {
		return Chunk{}, false
	}
	return c, true
}

func (r *ring) Drain() []Chunk {
	var out []Chunk
	for {
		c, ok := r.Dequeue()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

func (r *ring) skipOldest() bool {
	if r.rb.IsEmpty() {
		return false
	}
	var size [4]byte
	if n, err := r.rb.Read(size[:]); err != nil || n != 4 {
		return false
	}
	skip := make([]byte, binary.LittleEndian.Uint32(size[:]))
	if len(skip) == 0 {
		return true
	}
	n, err := r.rb.Read(skip)
	return err == nil && n == len(skip)
}
