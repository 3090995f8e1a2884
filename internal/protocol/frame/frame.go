// Package frame delimits encoded messages on a byte stream.
//
// The message encoding carries no length of its own, so a stream of
// messages is written as varint length prefix + message bytes, the same
// layout protobuf uses for delimited streams.
package frame

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/msgwire/internal/protocol/wire"
)

var (
	ErrShortFrame      = errors.New("frame: short frame")
	ErrMessageTooLarge = errors.New("frame: message too large")
	ErrBadPrefix       = errors.New("frame: malformed length prefix")
)

// maxPrefixLen is the longest varint that can encode a uint64.
const maxPrefixLen = 10

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxMessageBytes uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxMessageBytes: 64 * 1024 * 1024,
	}
}

// WriteDelimited writes msg preceded by its varint length.
func WriteDelimited(w io.Writer, msg []byte, limits Limits) error {
	if uint64(len(msg)) > limits.MaxMessageBytes {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(msg))
	}
	buf := make([]byte, 0, wire.SizeVarint(uint64(len(msg)))+len(msg))
	buf = wire.AppendVarint(buf, uint64(len(msg)))
	buf = append(buf, msg...)
	_, err := w.Write(buf)
	return err
}

// ReadDelimited reads one length-prefixed message. It returns io.EOF when r
// is exhausted on a frame boundary and ErrShortFrame when the stream ends
// inside a frame.
func ReadDelimited(r io.ByteReader, limits Limits) ([]byte, error) {
	size, err := readPrefix(r)
	if err != nil {
		return nil, err
	}
	if size > limits.MaxMessageBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}
	msg := make([]byte, size)
	if size == 0 {
		return msg, nil
	}
	if rr, ok := r.(io.Reader); ok {
		if _, err := io.ReadFull(rr, msg); err != nil {
			return nil, shortFrame(err)
		}
		return msg, nil
	}
	for i := range msg {
		c, err := r.ReadByte()
		if err != nil {
			return nil, shortFrame(err)
		}
		msg[i] = c
	}
	return msg, nil
}

func readPrefix(r io.ByteReader) (uint64, error) {
	var raw [maxPrefixLen]byte
	for i := 0; i < maxPrefixLen; i++ {
		c, err := r.ReadByte()
		if err != nil {
			if i == 0 && errors.Is(err, io.EOF) {
				return 0, io.EOF
			}
			return 0, shortFrame(err)
		}
		raw[i] = c
		if c < 0x80 {
			size, _, err := wire.ConsumeVarint(raw[:i+1])
			if err != nil {
				return 0, fmt.Errorf("%w: %v", ErrBadPrefix, err)
			}
			return size, nil
		}
	}
	return 0, ErrBadPrefix
}

func shortFrame(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrShortFrame
	}
	return err
}

// Reader iterates delimited messages from a stream.
type Reader struct {
	r      *bufio.Reader
	limits Limits
}

func NewReader(r io.Reader, limits Limits) *Reader {
	return &Reader{r: bufio.NewReader(r), limits: limits}
}

// Next returns the next message or io.EOF after the last one.
func (fr *Reader) Next() ([]byte, error) {
	return ReadDelimited(fr.r, fr.limits)
}

// ReadAll collects every remaining message.
func (fr *Reader) ReadAll() ([][]byte, error) {
	var out [][]byte
	for {
		msg, err := fr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, msg)
	}
}
