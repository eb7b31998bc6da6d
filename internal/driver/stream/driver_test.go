package stream

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dive-service/internal/model"
	"dive-service/internal/protocol"
	"dive-service/pkg/driver"
)

type received struct {
	data        []byte
	fingerprint []byte
}

func testInstrument() Instrument {
	return Instrument{
		Info:       DeviceInfo{Model: 7, Firmware: 12, Serial: 123456},
		DeviceTime: 1000,
		Vendor:     []byte{0xDE, 0xAD},
		Dives: []SimulatedDive{
			{Fingerprint: []byte{0x03}, Data: []byte("dive-3")},
			{Fingerprint: []byte{0x02}, Data: []byte("dive-2")},
			{Fingerprint: []byte{0x01}, Data: []byte("dive-1")},
		},
	}
}

// startSimulator opens a device against a simulated instrument over an in-memory pipe
func startSimulator(t *testing.T, inst Instrument) (*Device, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	a, b := net.Pipe()
	host := protocol.NewConnChannel(a, "pipe://host")
	instrument := protocol.NewConnChannel(b, "pipe://instrument")
	t.Cleanup(func() {
		host.Close()
		instrument.Close()
	})
	require.NoError(t, host.SetTimeout(2*time.Second))

	served := make(chan error, 1)
	go func() { served <- Serve(ctx, instrument, inst, nil) }()

	dev, err := Open(ctx, model.InstrumentProfile{Family: model.FamilyGeneric}, host, nil)
	require.NoError(t, err)
	return dev.(*Device), served
}

func collect(t *testing.T, dev *Device, stopAfter int) ([]received, []model.SessionEvent, error) {
	t.Helper()
	var dives []received
	var events []model.SessionEvent
	err := dev.Foreach(context.Background(),
		func(e model.SessionEvent) { events = append(events, e) },
		func(data, fp []byte) driver.Continuation {
			dives = append(dives, received{data: data, fingerprint: fp})
			if stopAfter > 0 && len(dives) >= stopAfter {
				return driver.Stop
			}
			return driver.Continue
		})
	return dives, events, err
}

func TestForeachRelaysEventsAndDivesInOrder(t *testing.T) {
	dev, served := startSimulator(t, testInstrument())

	dives, events, err := collect(t, dev, 0)
	require.NoError(t, err)

	require.Len(t, dives, 3)
	assert.Equal(t, []byte("dive-3"), dives[0].data)
	assert.Equal(t, []byte{0x03}, dives[0].fingerprint)
	assert.Equal(t, []byte("dive-1"), dives[2].data)

	require.GreaterOrEqual(t, len(events), 4)
	assert.Equal(t, model.WaitingEvent{}, events[0])
	assert.Equal(t, model.DeviceInfoEvent{Model: 7, Firmware: 12, Serial: 123456}, events[1])
	assert.Equal(t, model.EventClockSkew, events[2].Kind())
	assert.Equal(t, model.VendorBlobEvent{Data: []byte{0xDE, 0xAD}}, events[3])
	assert.Equal(t, model.NewProgressEvent(3, 3), events[len(events)-1])

	require.NoError(t, dev.Close())
	require.NoError(t, <-served)
}

func TestForeachStopsAtInstalledFingerprint(t *testing.T) {
	dev, served := startSimulator(t, testInstrument())
	require.NoError(t, dev.SetFingerprint([]byte{0x02}))

	dives, _, err := collect(t, dev, 0)
	require.NoError(t, err)
	require.Len(t, dives, 1)
	assert.Equal(t, []byte("dive-3"), dives[0].data)

	require.NoError(t, dev.ClearFingerprint())
	dives, _, err = collect(t, dev, 0)
	require.NoError(t, err)
	assert.Len(t, dives, 3)

	require.NoError(t, dev.Close())
	require.NoError(t, <-served)
}

func TestForeachStopsWhenCallbackAsks(t *testing.T) {
	dev, served := startSimulator(t, testInstrument())

	dives, _, err := collect(t, dev, 1)
	require.NoError(t, err)
	assert.Len(t, dives, 1)

	// the session stays usable after an early stop
	dives, _, err = collect(t, dev, 0)
	require.NoError(t, err)
	assert.Len(t, dives, 3)

	require.NoError(t, dev.Close())
	require.NoError(t, <-served)
}

func TestForeachFailsOnInstrumentError(t *testing.T) {
	inst := testInstrument()
	inst.Dives = inst.Dives[:2]
	inst.FailAfter = 1
	dev, _ := startSimulator(t, inst)

	dives, events, err := collect(t, dev, 0)
	require.ErrorIs(t, err, ErrDeviceReported)
	assert.Len(t, dives, 1)
	assert.Equal(t, model.NewProgressEvent(1, 2), events[len(events)-1])
}

func TestForeachAfterCloseFails(t *testing.T) {
	dev, served := startSimulator(t, testInstrument())
	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())
	require.NoError(t, <-served)

	_, _, err := collect(t, dev, 0)
	require.ErrorIs(t, err, protocol.ErrChannelClosed)
	require.ErrorIs(t, dev.SetFingerprint([]byte{1}), protocol.ErrChannelClosed)
	require.ErrorIs(t, dev.ClearFingerprint(), protocol.ErrChannelClosed)
}

func TestOpenRejectsUnexpectedHello(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	a, b := net.Pipe()
	host := protocol.NewConnChannel(a, "pipe://host")
	instrument := protocol.NewConnChannel(b, "pipe://instrument")
	defer host.Close()
	defer instrument.Close()

	go func() {
		if _, err := protocol.ReadFrame(ctx, instrument); err == nil {
			_ = protocol.WriteFrame(ctx, instrument, protocol.Frame{Type: TypeEnd})
		}
	}()

	_, err := Open(ctx, model.InstrumentProfile{}, host, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected frame type")
}

func TestDivePayloadCodec(t *testing.T) {
	payload, err := encodeDive([]byte{1, 2}, []byte("abc"))
	require.NoError(t, err)

	fp, data, err := decodeDive(payload)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, fp)
	assert.Equal(t, []byte("abc"), data)

	_, _, err = decodeDive([]byte{5, 1})
	require.Error(t, err)
}

func TestSyntheticInstrumentStoresNewestFirst(t *testing.T) {
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	inst := SyntheticInstrument(3, first)

	require.Len(t, inst.Dives, 3)

	newest := binary.BigEndian.Uint32(inst.Dives[0].Fingerprint)
	oldest := binary.BigEndian.Uint32(inst.Dives[2].Fingerprint)
	assert.Equal(t, uint32(first.Add(48*time.Hour).Unix()), newest)
	assert.Equal(t, uint32(first.Unix()), oldest)

	data := inst.Dives[2].Data
	assert.Equal(t, oldest, binary.BigEndian.Uint32(data[0:4]))
	assert.Equal(t, uint16(10), binary.BigEndian.Uint16(data[4:6]))
	samples := int(binary.BigEndian.Uint16(data[6:8]))
	assert.Equal(t, 30*6, samples)
	assert.Len(t, data, 8+2*samples)
	assert.Zero(t, binary.BigEndian.Uint16(data[8:10]))
}
