package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"dive-service/internal/discovery"
	"dive-service/internal/model"
	"dive-service/internal/protocol"
)

func TestDiscoverClassifiesInEnumerationOrder(t *testing.T) {
	h := newHarness()
	h.enum.endpoints = []discovery.KnownEndpoint{
		{Name: strPtr("Shearwater Perdix"), Address: "00:00:00:00:00:02"},
		{Name: nil, Address: "00:00:00:00:00:01"},
		{Name: strPtr("Kitchen speaker"), Address: "00:00:00:00:00:03"},
	}

	got, err := h.manager.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "00:00:00:00:00:02", got[0].Address)
	require.NotNil(t, got[0].Family)
	assert.Equal(t, model.FamilyShearwaterPetrel, *got[0].Family)
	assert.Nil(t, got[0].SignalStrength)

	assert.Nil(t, got[1].DisplayName)
	assert.Nil(t, got[1].Family)
	assert.Nil(t, got[2].Family)
}

func TestDiscoverDistinguishesAbsentFromDisabled(t *testing.T) {
	h := newHarness()

	h.enum.err = fmt.Errorf("adapter off: %w", discovery.ErrSubsystemDisabled)
	_, err := h.manager.Discover(context.Background())
	require.ErrorIs(t, err, ErrTransportDisabled)

	h.enum.err = fmt.Errorf("no bluez: %w", discovery.ErrSubsystemUnavailable)
	_, err = h.manager.Discover(context.Background())
	require.ErrorIs(t, err, ErrTransportUnavailable)
	require.ErrorIs(t, err, discovery.ErrSubsystemUnavailable)
}

func TestConnectThenDisconnectLeavesNothingLive(t *testing.T) {
	h := newHarness()
	family := model.FamilyHWOstc3

	s, err := h.manager.Connect(context.Background(), ConnectRequest{Address: "AA:BB:CC:DD:EE:FF", Family: &family})
	require.NoError(t, err)
	assert.True(t, s.Connected())
	assert.Equal(t, model.FamilyHWOstc3, s.Profile().Family)
	assert.Equal(t, 3, h.t.live())

	require.NoError(t, h.manager.Disconnect())
	assert.Zero(t, h.t.live())
	assert.False(t, s.Connected())
	assert.Nil(t, h.manager.Session())
	assert.Equal(t, []string{"device", "channel", "descriptor"}, h.t.order)
}

func TestConnectWithoutFamilyUsesGenericProfile(t *testing.T) {
	h := newHarness()

	s, err := h.manager.Connect(context.Background(), ConnectRequest{Address: "AA:BB:CC:DD:EE:FF"})
	require.NoError(t, err)
	assert.True(t, s.Profile().Generic)
	assert.Nil(t, s.Family())
	require.Len(t, h.resolver.requests, 1)
	assert.Nil(t, h.resolver.requests[0])
}

func TestConnectAppliesTimeout(t *testing.T) {
	h := newHarness()

	_, err := h.manager.Connect(context.Background(), ConnectRequest{Address: "a", TimeoutMillis: intPtr(2500)})
	require.NoError(t, err)
	require.Len(t, h.channels.opened, 1)
	assert.Equal(t, []time.Duration{2500 * time.Millisecond}, h.channels.opened[0].timeouts)

	_, err = h.manager.Connect(context.Background(), ConnectRequest{Address: "b"})
	require.NoError(t, err)
	assert.Empty(t, h.channels.opened[1].timeouts)
}

func TestConnectDeviceOpenFailureClosesChannelOnce(t *testing.T) {
	h := newHarness()
	h.devices.err = errBoom

	s, err := h.manager.Connect(context.Background(), ConnectRequest{Address: "AA:BB:CC:DD:EE:FF"})
	require.Nil(t, s)
	require.ErrorIs(t, err, ErrConnectFailed)
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, 1, h.t.closes["channel"])
	assert.Equal(t, 1, h.t.closes["descriptor"])
	assert.Zero(t, h.t.live())
	assert.Nil(t, h.manager.Session())
}

func TestConnectUnwindDoesNotMaskCause(t *testing.T) {
	h := newHarness()
	h.devices.err = errBoom
	h.channels.closeErr = errors.New("close failed")

	_, err := h.manager.Connect(context.Background(), ConnectRequest{Address: "x"})
	require.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, ErrResourceReleaseFailed)
}

func TestConnectMapsTransportErrors(t *testing.T) {
	h := newHarness()

	h.channels.err = fmt.Errorf("serial port /dev/none: %w", protocol.ErrEndpointNotFound)
	_, err := h.manager.Connect(context.Background(), ConnectRequest{Address: "/dev/none"})
	require.ErrorIs(t, err, ErrEndpointNotFound)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "/dev/none", se.Address)
	assert.Equal(t, 1, h.t.closes["descriptor"])

	h.channels.err = errBoom
	_, err = h.manager.Connect(context.Background(), ConnectRequest{Address: "/dev/ttyUSB0"})
	require.ErrorIs(t, err, ErrConnectFailed)
	require.ErrorIs(t, err, errBoom)
	assert.Zero(t, h.t.live())
}

func TestConnectRejectsNegativeTimeout(t *testing.T) {
	h := newHarness()
	_, err := h.manager.Connect(context.Background(), ConnectRequest{Address: "x", TimeoutMillis: intPtr(-1)})
	require.ErrorIs(t, err, ErrConnectFailed)
	assert.Zero(t, h.t.live())
}

func TestConnectReplacesExistingSession(t *testing.T) {
	h := newHarness()

	first, err := h.manager.Connect(context.Background(), ConnectRequest{Address: "first"})
	require.NoError(t, err)

	h.devices.device = &fakeDevice{t: h.t}
	second, err := h.manager.Connect(context.Background(), ConnectRequest{Address: "second"})
	require.NoError(t, err)

	assert.False(t, first.Connected())
	assert.True(t, second.Connected())
	assert.Equal(t, second, h.manager.Session())
	assert.Equal(t, 3, h.t.live())
}

func TestDisconnectTwiceIsIdempotent(t *testing.T) {
	h := newHarness()

	require.NoError(t, h.manager.Disconnect())

	_, err := h.manager.Connect(context.Background(), ConnectRequest{Address: "x"})
	require.NoError(t, err)

	require.NoError(t, h.manager.Disconnect())
	require.NoError(t, h.manager.Disconnect())
	assert.Equal(t, 1, h.t.closes["device"])
	assert.Equal(t, 1, h.t.closes["channel"])
	assert.Equal(t, 1, h.t.closes["descriptor"])
}

func TestDisconnectAttemptsEveryReleaseAndAggregates(t *testing.T) {
	h := newHarness()
	h.devices.device.closeErr = errors.New("device close failed")
	h.resolver.closeErr = errors.New("descriptor close failed")

	_, err := h.manager.Connect(context.Background(), ConnectRequest{Address: "x"})
	require.NoError(t, err)

	err = h.manager.Disconnect()
	require.ErrorIs(t, err, ErrResourceReleaseFailed)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Len(t, multierr.Errors(se.Err), 2)
	assert.Equal(t, []string{"device", "channel", "descriptor"}, h.t.order)

	require.NoError(t, h.manager.Disconnect())
	assert.Equal(t, 1, h.t.closes["device"])
}

func TestCloseReleasesAndRejectsConnect(t *testing.T) {
	h := newHarness()
	_, err := h.manager.Connect(context.Background(), ConnectRequest{Address: "x"})
	require.NoError(t, err)

	require.NoError(t, h.manager.Close())
	assert.Zero(t, h.t.live())

	_, err = h.manager.Connect(context.Background(), ConnectRequest{Address: "x"})
	require.ErrorIs(t, err, ErrConnectFailed)
	require.NoError(t, h.manager.Close())
}

func TestErrorMessageCarriesContext(t *testing.T) {
	err := &Error{Op: "download", Address: "AA", Family: "hwOstc3", Watermark: "!!", Kind: ErrInvalidWatermark, Err: errBoom}
	assert.Equal(t, "download AA: invalid watermark (family=hwOstc3) (watermark=!!): boom", err.Error())
	assert.Equal(t, ErrInvalidWatermark, KindOf(fmt.Errorf("wrapped: %w", err)))
	assert.Nil(t, KindOf(errBoom))
}
