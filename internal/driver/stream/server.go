// internal/driver/stream/server.go
package stream

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dive-service/internal/protocol"
)

// SimulatedDive is one stored record of a simulated instrument
type SimulatedDive struct {
	Fingerprint []byte
	Data        []byte
}

// Instrument describes what a simulated instrument reports
type Instrument struct {
	Info       DeviceInfo
	DeviceTime uint32
	Vendor     []byte
	// Dives are stored newest first
	Dives []SimulatedDive
	// FailAfter sends an error frame instead of the dive at this index when > 0
	FailAfter int
}

// Serve answers host requests on ch until the host says goodbye, the channel
// fails or ctx is cancelled.
func Serve(ctx context.Context, ch protocol.Channel, inst Instrument, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "simulator"), zap.String("peer", ch.Address()))

	for {
		f, err := protocol.ReadFrame(ctx, ch)
		if err != nil {
			if errors.Is(err, protocol.ErrTimeout) {
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		switch f.Type {
		case TypeHello:
			logger.Debug("Hello received")
			if err := protocol.WriteFrame(ctx, ch, protocol.Frame{Type: TypeHelloOK, Payload: []byte{ProtocolVersion}}); err != nil {
				return err
			}
		case TypeDump:
			if err := dump(ctx, ch, inst, logger); err != nil {
				return err
			}
		case TypeBye:
			logger.Debug("Host said goodbye")
			return nil
		default:
			logger.Debug("Ignoring request", zap.Uint8("type", f.Type))
		}
	}
}

func dump(ctx context.Context, ch protocol.Channel, inst Instrument, logger *zap.Logger) error {
	send := func(t byte, payload []byte) error {
		return protocol.WriteFrame(ctx, ch, protocol.Frame{Type: t, Payload: payload})
	}

	if err := send(TypeWaiting, nil); err != nil {
		return err
	}
	if err := send(TypeDevInfo, encodeDeviceInfo(inst.Info)); err != nil {
		return err
	}
	clock := []byte{byte(inst.DeviceTime >> 24), byte(inst.DeviceTime >> 16), byte(inst.DeviceTime >> 8), byte(inst.DeviceTime)}
	if err := send(TypeClock, clock); err != nil {
		return err
	}
	if len(inst.Vendor) > 0 {
		if err := send(TypeVendor, inst.Vendor); err != nil {
			return err
		}
	}

	total := uint32(len(inst.Dives))
	for i, dive := range inst.Dives {
		if err := send(TypeProgres, encodeProgress(uint32(i), total)); err != nil {
			return err
		}
		if inst.FailAfter > 0 && i == inst.FailAfter {
			logger.Debug("Injecting failure", zap.Int("index", i))
			return send(TypeError, []byte("simulated failure"))
		}

		payload, err := encodeDive(dive.Fingerprint, dive.Data)
		if err != nil {
			return err
		}
		if err := send(TypeDive, payload); err != nil {
			return err
		}

		reply, err := protocol.ReadFrame(ctx, ch)
		if err != nil {
			return fmt.Errorf("await host reply: %w", err)
		}
		switch reply.Type {
		case TypeNext:
		case TypeAbort:
			logger.Debug("Host aborted dump", zap.Int("sent", i+1))
			return nil
		default:
			return fmt.Errorf("unexpected host frame 0x%02x during dump", reply.Type)
		}
	}

	if err := send(TypeProgres, encodeProgress(total, total)); err != nil {
		return err
	}
	return send(TypeEnd, nil)
}
