// internal/driver/stream/driver.go
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"dive-service/internal/model"
	"dive-service/internal/protocol"
	"dive-service/pkg/driver"
)

// Device speaks the framed stream protocol to an instrument bridge
type Device struct {
	channel     protocol.Channel
	profile     model.InstrumentProfile
	fingerprint []byte
	logger      *zap.Logger
	now         func() time.Time
	mutex       sync.Mutex
	closed      bool
}

// Open performs the hello exchange and returns a device bound to the channel
func Open(ctx context.Context, profile model.InstrumentProfile, channel protocol.Channel, logger *zap.Logger) (driver.Device, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !channel.IsOpen() {
		return nil, protocol.ErrChannelClosed
	}

	d := &Device{
		channel: channel,
		profile: profile,
		logger: logger.With(
			zap.String("driver", "stream"),
			zap.String("family", string(profile.Family)),
			zap.String("address", channel.Address()),
		),
		now: time.Now,
	}

	if err := protocol.WriteFrame(ctx, channel, protocol.Frame{Type: TypeHello, Payload: []byte{ProtocolVersion}}); err != nil {
		return nil, fmt.Errorf("hello: %w", err)
	}
	reply, err := protocol.ReadFrame(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("hello: %w", err)
	}
	if reply.Type != TypeHelloOK || len(reply.Payload) < 1 {
		return nil, fmt.Errorf("hello: unexpected frame type 0x%02x", reply.Type)
	}
	if reply.Payload[0] != ProtocolVersion {
		return nil, fmt.Errorf("hello: unsupported protocol version %d", reply.Payload[0])
	}

	d.logger.Debug("Device opened")
	return d, nil
}

// SetFingerprint installs the resume fingerprint. An empty value clears it.
func (d *Device) SetFingerprint(fingerprint []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return protocol.ErrChannelClosed
	}
	if len(fingerprint) > 0xFF {
		return fmt.Errorf("fingerprint too long: %d bytes", len(fingerprint))
	}
	d.fingerprint = bytes.Clone(fingerprint)
	return nil
}

// ClearFingerprint drops the installed resume fingerprint
func (d *Device) ClearFingerprint() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return protocol.ErrChannelClosed
	}
	d.fingerprint = nil
	return nil
}

// Foreach requests a dump and relays events and records until the instrument
// ends the stream, the installed fingerprint is reached or onDive asks to stop.
func (d *Device) Foreach(ctx context.Context, onEvent driver.EventFunc, onDive driver.DiveFunc) error {
	d.mutex.Lock()
	if d.closed {
		d.mutex.Unlock()
		return protocol.ErrChannelClosed
	}
	fingerprint := d.fingerprint
	d.mutex.Unlock()

	if onEvent == nil {
		onEvent = func(model.SessionEvent) {}
	}

	if err := protocol.WriteFrame(ctx, d.channel, protocol.Frame{Type: TypeDump, Payload: fingerprint}); err != nil {
		return fmt.Errorf("dump request: %w", err)
	}

	dives := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		f, err := protocol.ReadFrame(ctx, d.channel)
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		switch f.Type {
		case TypeWaiting:
			onEvent(model.WaitingEvent{})

		case TypeDevInfo:
			info, err := decodeDeviceInfo(f.Payload)
			if err != nil {
				return err
			}
			onEvent(model.DeviceInfoEvent{Model: info.Model, Firmware: info.Firmware, Serial: info.Serial})

		case TypeClock:
			devtime, err := decodeClock(f.Payload)
			if err != nil {
				return err
			}
			onEvent(model.ClockSkewEvent{DeviceTime: devtime, SystemTime: d.now().Unix()})

		case TypeVendor:
			onEvent(model.VendorBlobEvent{Data: bytes.Clone(f.Payload)})

		case TypeProgres:
			current, maximum, err := decodeProgress(f.Payload)
			if err != nil {
				return err
			}
			onEvent(model.NewProgressEvent(current, maximum))

		case TypeDive:
			fp, data, err := decodeDive(f.Payload)
			if err != nil {
				return err
			}
			if len(fingerprint) > 0 && bytes.Equal(fp, fingerprint) {
				d.logger.Debug("Fingerprint reached", zap.Int("dives", dives))
				return d.abort(ctx)
			}
			dives++
			if onDive(bytes.Clone(data), bytes.Clone(fp)) != driver.Continue {
				d.logger.Debug("Enumeration stopped by caller", zap.Int("dives", dives))
				return d.abort(ctx)
			}
			if err := protocol.WriteFrame(ctx, d.channel, protocol.Frame{Type: TypeNext}); err != nil {
				return fmt.Errorf("next request: %w", err)
			}

		case TypeEnd:
			d.logger.Debug("Enumeration complete", zap.Int("dives", dives))
			return nil

		case TypeError:
			return fmt.Errorf("%w: %s", ErrDeviceReported, string(f.Payload))

		default:
			d.logger.Warn("Ignoring unknown frame", zap.Uint8("type", f.Type))
		}
	}
}

func (d *Device) abort(ctx context.Context) error {
	if err := protocol.WriteFrame(ctx, d.channel, protocol.Frame{Type: TypeAbort}); err != nil {
		return fmt.Errorf("abort request: %w", err)
	}
	return nil
}

// Close says goodbye to the instrument. The channel stays open; it is owned by the caller.
func (d *Device) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if !d.channel.IsOpen() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := protocol.WriteFrame(ctx, d.channel, protocol.Frame{Type: TypeBye}); err != nil && !errors.Is(err, protocol.ErrChannelClosed) {
		return fmt.Errorf("bye: %w", err)
	}
	return nil
}
