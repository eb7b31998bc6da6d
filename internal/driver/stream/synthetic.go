// internal/driver/stream/synthetic.go
package stream

import (
	"encoding/binary"
	"time"
)

const sampleInterval = 10 * time.Second

// SyntheticInstrument builds an instrument holding count dives, one per day
// starting at first. The fingerprint of a dive is its start time in seconds.
func SyntheticInstrument(count int, first time.Time) Instrument {
	inst := Instrument{
		Info:       DeviceInfo{Model: 0x10, Firmware: 0x0102, Serial: 424242},
		DeviceTime: uint32(first.Add(time.Duration(count) * 24 * time.Hour).Unix()),
		Vendor:     []byte("SIM"),
	}

	for i := count - 1; i >= 0; i-- {
		start := first.Add(time.Duration(i) * 24 * time.Hour)
		inst.Dives = append(inst.Dives, SimulatedDive{
			Fingerprint: binary.BigEndian.AppendUint32(nil, uint32(start.Unix())),
			Data:        syntheticProfile(start, 30+i%20, 120+i*7),
		})
	}
	return inst
}

// syntheticProfile encodes a start time, sample interval and a depth profile in
// centimetres that descends, holds at maxDepth metres and ascends.
func syntheticProfile(start time.Time, minutes, maxDepthDecimetres int) []byte {
	samples := minutes * int(time.Minute/sampleInterval)
	data := binary.BigEndian.AppendUint32(nil, uint32(start.Unix()))
	data = binary.BigEndian.AppendUint16(data, uint16(sampleInterval/time.Second))
	data = binary.BigEndian.AppendUint16(data, uint16(samples))

	maxDepth := maxDepthDecimetres * 10
	ramp := samples / 5
	for s := 0; s < samples; s++ {
		depth := maxDepth
		switch {
		case s < ramp:
			depth = maxDepth * s / ramp
		case s >= samples-ramp:
			depth = maxDepth * (samples - s) / ramp
		}
		data = binary.BigEndian.AppendUint16(data, uint16(depth))
	}
	return data
}
