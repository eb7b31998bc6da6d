// internal/driver/stream/messages.go
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame types. Requests flow host to instrument, the rest instrument to host.
const (
	TypeHello   byte = 0x01
	TypeDump    byte = 0x02
	TypeNext    byte = 0x03
	TypeAbort   byte = 0x04
	TypeBye     byte = 0x05
	TypeHelloOK byte = 0x81
	TypeWaiting byte = 0x90
	TypeDevInfo byte = 0x91
	TypeClock   byte = 0x92
	TypeVendor  byte = 0x93
	TypeProgres byte = 0x94
	TypeDive    byte = 0x95
	TypeEnd     byte = 0x96
	TypeError   byte = 0x9F
)

// ProtocolVersion is carried in the hello exchange
const ProtocolVersion byte = 1

// ErrDeviceReported wraps an error frame sent by the instrument
var ErrDeviceReported = errors.New("instrument reported error")

// DeviceInfo is the identity block sent before the records
type DeviceInfo struct {
	Model    uint32
	Firmware uint32
	Serial   uint32
}

func encodeDeviceInfo(info DeviceInfo) []byte {
	out := make([]byte, 0, 12)
	out = binary.BigEndian.AppendUint32(out, info.Model)
	out = binary.BigEndian.AppendUint32(out, info.Firmware)
	return binary.BigEndian.AppendUint32(out, info.Serial)
}

func decodeDeviceInfo(p []byte) (DeviceInfo, error) {
	if len(p) != 12 {
		return DeviceInfo{}, fmt.Errorf("devinfo: bad length %d", len(p))
	}
	return DeviceInfo{
		Model:    binary.BigEndian.Uint32(p[0:4]),
		Firmware: binary.BigEndian.Uint32(p[4:8]),
		Serial:   binary.BigEndian.Uint32(p[8:12]),
	}, nil
}

func encodeProgress(current, maximum uint32) []byte {
	out := binary.BigEndian.AppendUint32(make([]byte, 0, 8), current)
	return binary.BigEndian.AppendUint32(out, maximum)
}

func decodeProgress(p []byte) (uint32, uint32, error) {
	if len(p) != 8 {
		return 0, 0, fmt.Errorf("progress: bad length %d", len(p))
	}
	return binary.BigEndian.Uint32(p[0:4]), binary.BigEndian.Uint32(p[4:8]), nil
}

func decodeClock(p []byte) (uint32, error) {
	if len(p) != 4 {
		return 0, fmt.Errorf("clock: bad length %d", len(p))
	}
	return binary.BigEndian.Uint32(p), nil
}

// dive payload: fingerprint length (1) | fingerprint | data
func encodeDive(fingerprint, data []byte) ([]byte, error) {
	if len(fingerprint) > 0xFF {
		return nil, fmt.Errorf("dive: fingerprint too long: %d", len(fingerprint))
	}
	out := make([]byte, 0, 1+len(fingerprint)+len(data))
	out = append(out, byte(len(fingerprint)))
	out = append(out, fingerprint...)
	return append(out, data...), nil
}

func decodeDive(p []byte) (fingerprint, data []byte, err error) {
	if len(p) < 1 || len(p) < 1+int(p[0]) {
		return nil, nil, fmt.Errorf("dive: truncated payload")
	}
	n := int(p[0])
	return p[1 : 1+n], p[1+n:], nil
}
