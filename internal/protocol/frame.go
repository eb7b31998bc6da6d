// internal/protocol/frame.go
package protocol

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Frame layout: header(2) | type(1) | length(2, big endian) | payload | crc16(2, big endian).
// The checksum covers type, length and payload.

var frameHeader = [2]byte{0xA5, 0x5A}

// ErrFrameChecksum is returned when a received frame fails its checksum
var ErrFrameChecksum = errors.New("frame checksum mismatch")

// MaxFramePayload is the largest payload a frame can carry
const MaxFramePayload = math.MaxUint16

// Frame is one typed message on a framed stream
type Frame struct {
	Type    byte
	Payload []byte
}

// EncodeFrame serialises a frame
func EncodeFrame(f Frame) ([]byte, error) {
	if len(f.Payload) > MaxFramePayload {
		return nil, fmt.Errorf("payload too large: %d", len(f.Payload))
	}

	out := make([]byte, 0, 7+len(f.Payload))
	out = append(out, frameHeader[0], frameHeader[1], f.Type)
	out = binary.BigEndian.AppendUint16(out, uint16(len(f.Payload)))
	out = append(out, f.Payload...)
	out = binary.BigEndian.AppendUint16(out, crc16CCITT(out[2:]))
	return out, nil
}

// WriteFrame encodes and writes a frame to the channel
func WriteFrame(ctx context.Context, ch Channel, f Frame) error {
	raw, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	return ch.Write(ctx, raw)
}

// ReadFrame reads the next frame, skipping any bytes before a frame header
func ReadFrame(ctx context.Context, ch Channel) (Frame, error) {
	readFull := func(buf []byte) error { return ReadFull(ctx, ch, buf) }

	if err := resyncToHeader(readFull); err != nil {
		return Frame{}, err
	}

	var head [3]byte
	if err := readFull(head[:]); err != nil {
		return Frame{}, fmt.Errorf("read frame head: %w", err)
	}
	length := int(binary.BigEndian.Uint16(head[1:3]))

	body := make([]byte, length+2)
	if err := readFull(body); err != nil {
		return Frame{}, fmt.Errorf("read frame payload: %w", err)
	}

	payload := body[:length]
	want := binary.BigEndian.Uint16(body[length:])
	got := crc16CCITT(append(head[:], payload...))
	if got != want {
		return Frame{}, fmt.Errorf("frame type 0x%02x: %w", head[0], ErrFrameChecksum)
	}

	return Frame{Type: head[0], Payload: payload}, nil
}

func resyncToHeader(readFull func([]byte) error) error {
	buf := make([]byte, 1)
	for {
		if err := readFull(buf); err != nil {
			return fmt.Errorf("read frame header: %w", err)
		}
		if buf[0] != frameHeader[0] {
			continue
		}
		if err := readFull(buf); err != nil {
			return fmt.Errorf("read frame header: %w", err)
		}
		if buf[0] == frameHeader[1] {
			return nil
		}
	}
}

// crc16CCITT computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF)
func crc16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
