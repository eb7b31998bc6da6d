package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dive-service/internal/model"
)

func connected(t *testing.T, script ...step) (*harness, *fakeDevice) {
	t.Helper()
	h := newHarness()
	h.devices.device.script = script
	_, err := h.manager.Connect(context.Background(), ConnectRequest{Address: "AA:BB:CC:DD:EE:FF"})
	require.NoError(t, err)
	return h, h.devices.device
}

func recordingSink() (*[]model.SessionEvent, EventSink) {
	var events []model.SessionEvent
	return &events, EventSinkFunc(func(e model.SessionEvent) { events = append(events, e) })
}

func TestDownloadWithoutSessionFails(t *testing.T) {
	h := newHarness()
	_, err := h.manager.Download(context.Background(), DownloadOptions{})
	require.ErrorIs(t, err, ErrNoActiveSession)

	_, err = h.manager.Connect(context.Background(), ConnectRequest{Address: "x"})
	require.NoError(t, err)
	require.NoError(t, h.manager.Disconnect())

	_, err = h.manager.Download(context.Background(), DownloadOptions{})
	require.ErrorIs(t, err, ErrNoActiveSession)
}

func TestDownloadForceAllNeverSetsWatermark(t *testing.T) {
	h, dev := connected(t)

	_, err := h.manager.Download(context.Background(), DownloadOptions{ForceAll: true, Watermark: strPtr("AQID")})
	require.NoError(t, err)
	_, err = h.manager.Download(context.Background(), DownloadOptions{ForceAll: true})
	require.NoError(t, err)
	_, err = h.manager.Download(context.Background(), DownloadOptions{ForceAll: true, Watermark: strPtr("%%%")})
	require.NoError(t, err)

	assert.Empty(t, dev.fingerprints)
	assert.Zero(t, dev.clears)
	assert.Equal(t, 3, dev.foreachCalls)
}

func TestDownloadMalformedWatermarkSkipsEnumeration(t *testing.T) {
	h, dev := connected(t)

	records, err := h.manager.Download(context.Background(), DownloadOptions{Watermark: strPtr("not base64!")})
	require.ErrorIs(t, err, ErrInvalidWatermark)
	assert.Nil(t, records)
	assert.Zero(t, dev.foreachCalls)
	assert.Empty(t, dev.fingerprints)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "not base64!", se.Watermark)
}

func TestDownloadInstallsDecodedWatermark(t *testing.T) {
	h, dev := connected(t)

	_, err := h.manager.Download(context.Background(), DownloadOptions{Watermark: strPtr("AQID")})
	require.NoError(t, err)
	require.Len(t, dev.fingerprints, 1)
	assert.Equal(t, []byte{1, 2, 3}, dev.fingerprints[0])

	// a later full download clears the fingerprint left on the device
	_, err = h.manager.Download(context.Background(), DownloadOptions{})
	require.NoError(t, err)
	assert.Len(t, dev.fingerprints, 1)
	assert.Equal(t, 1, dev.clears)
}

func TestDownloadForceAllAfterWatermarkClearsWithoutSetting(t *testing.T) {
	h, dev := connected(t)

	_, err := h.manager.Download(context.Background(), DownloadOptions{Watermark: strPtr("AQID")})
	require.NoError(t, err)

	_, err = h.manager.Download(context.Background(), DownloadOptions{ForceAll: true, Watermark: strPtr("AQID")})
	require.NoError(t, err)
	_, err = h.manager.Download(context.Background(), DownloadOptions{ForceAll: true})
	require.NoError(t, err)

	require.Len(t, dev.fingerprints, 1)
	assert.Equal(t, 1, dev.clears)
	assert.Equal(t, 3, dev.foreachCalls)
}

func TestDownloadReturnsRecordsInReceiptOrder(t *testing.T) {
	raw := [][2][]byte{
		{[]byte("payload-1"), {0x01, 0x01}},
		{[]byte("payload-2"), {0x02, 0x02}},
		{[]byte("payload-3"), {0x03, 0x03}},
	}
	var script []step
	for _, r := range raw {
		script = append(script, step{data: r[0], fingerprint: r[1]})
	}
	h, _ := connected(t, script...)

	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	h.manager.downloads.now = func() time.Time { return fixed }

	records, err := h.manager.Download(context.Background(), DownloadOptions{})
	require.NoError(t, err)
	require.Len(t, records, 3)

	ids := map[uuid.UUID]bool{}
	for i, rec := range records {
		ids[rec.ID] = true

		payload, err := rec.Payload()
		require.NoError(t, err)
		assert.Equal(t, raw[i][0], payload)

		wm, err := rec.Watermark()
		require.NoError(t, err)
		assert.Equal(t, raw[i][1], []byte(wm))

		assert.Equal(t, len(raw[i][0]), rec.SizeBytes)
		assert.Equal(t, fixed.UTC(), rec.CapturedAt)
		assert.False(t, rec.MaxDepth.Valid)
		assert.Nil(t, rec.DurationSeconds)
	}
	assert.Len(t, ids, 3)
}

func TestDownloadFailureDiscardsPartialRecords(t *testing.T) {
	h, _ := connected(t,
		step{data: []byte("r1"), fingerprint: []byte{1}},
		step{event: model.ProgressEvent{Percent: 50}},
		step{err: errBoom},
	)
	events, sink := recordingSink()

	records, err := h.manager.Download(context.Background(), DownloadOptions{Sink: sink})
	require.ErrorIs(t, err, ErrDownloadFailed)
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, records)
	assert.Equal(t, []model.SessionEvent{model.ProgressEvent{Percent: 50}}, *events)

	// the session survives a failed download
	assert.True(t, h.manager.Session().Connected())
}

func TestDownloadDeliversEventsBeforeFirstRecord(t *testing.T) {
	h, _ := connected(t,
		step{event: model.WaitingEvent{}},
		step{event: model.DeviceInfoEvent{Model: 1, Firmware: 2, Serial: 3}},
		step{data: []byte("r1"), fingerprint: []byte{1}},
		step{event: model.ProgressEvent{Percent: 100}},
	)
	events, sink := recordingSink()

	records, err := h.manager.Download(context.Background(), DownloadOptions{Sink: MultiSink{sink, NewLoggingSink(nil)}})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, []model.SessionEvent{
		model.WaitingEvent{},
		model.DeviceInfoEvent{Model: 1, Firmware: 2, Serial: 3},
		model.ProgressEvent{Percent: 100},
	}, *events)
}

func TestDownloadLimitStopsEarlyWithoutError(t *testing.T) {
	h, _ := connected(t,
		step{data: []byte("r1"), fingerprint: []byte{1}},
		step{data: []byte("r2"), fingerprint: []byte{2}},
		step{data: []byte("r3"), fingerprint: []byte{3}},
	)

	records, err := h.manager.Download(context.Background(), DownloadOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDownloadEmptyResultIsNotNil(t *testing.T) {
	h, _ := connected(t)
	records, err := h.manager.Download(context.Background(), DownloadOptions{})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestConcurrentDownloadIsRejected(t *testing.T) {
	h, dev := connected(t, step{data: []byte("r1"), fingerprint: []byte{1}})
	dev.started = make(chan struct{})
	dev.release = make(chan struct{})

	var (
		wg      sync.WaitGroup
		records []model.DiveRecord
		err     error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		records, err = h.manager.Download(context.Background(), DownloadOptions{})
	}()

	<-dev.started
	assert.True(t, h.manager.Session().Busy())
	_, busyErr := h.manager.Download(context.Background(), DownloadOptions{})
	require.ErrorIs(t, busyErr, ErrSessionBusy)

	close(dev.release)
	wg.Wait()
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.False(t, h.manager.Session().Busy())
}

func TestDownloadCancelledContextFails(t *testing.T) {
	h, _ := connected(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.manager.Download(ctx, DownloadOptions{})
	require.ErrorIs(t, err, ErrDownloadFailed)
	require.ErrorIs(t, err, context.Canceled)
}
