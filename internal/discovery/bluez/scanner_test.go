package bluez

import (
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dive-service/internal/discovery"
)

func adapterObject(powered bool) map[string]map[string]dbus.Variant {
	return map[string]map[string]dbus.Variant{
		adapterIface: {"Powered": dbus.MakeVariant(powered)},
	}
}

func deviceObject(adapter dbus.ObjectPath, address string, name *string, paired bool) map[string]map[string]dbus.Variant {
	props := map[string]dbus.Variant{
		"Adapter": dbus.MakeVariant(adapter),
		"Address": dbus.MakeVariant(address),
		"Paired":  dbus.MakeVariant(paired),
	}
	if name != nil {
		props["Name"] = dbus.MakeVariant(*name)
	}
	return map[string]map[string]dbus.Variant{deviceIface: props}
}

func strPtr(s string) *string { return &s }

func TestBondedEndpointsSortedAndFiltered(t *testing.T) {
	objects := ManagedObjects{
		"/org/bluez/hci0": adapterObject(true),
		"/org/bluez/hci0/dev_00_11_22_33_44_66": deviceObject("/org/bluez/hci0", "00:11:22:33:44:66", nil, true),
		"/org/bluez/hci0/dev_00_11_22_33_44_55": deviceObject("/org/bluez/hci0", "00:11:22:33:44:55", strPtr("Suunto EON Steel"), true),
		"/org/bluez/hci0/dev_00_11_22_33_44_77": deviceObject("/org/bluez/hci0", "00:11:22:33:44:77", strPtr("Headset"), false),
	}

	got, err := BondedEndpoints(objects, "")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "00:11:22:33:44:55", got[0].Address)
	require.NotNil(t, got[0].Name)
	assert.Equal(t, "Suunto EON Steel", *got[0].Name)

	assert.Equal(t, "00:11:22:33:44:66", got[1].Address)
	assert.Nil(t, got[1].Name)
}

func TestBondedEndpointsSelectsConfiguredAdapter(t *testing.T) {
	objects := ManagedObjects{
		"/org/bluez/hci0": adapterObject(true),
		"/org/bluez/hci1": adapterObject(true),
		"/org/bluez/hci0/dev_A": deviceObject("/org/bluez/hci0", "00:00:00:00:00:0A", nil, true),
		"/org/bluez/hci1/dev_B": deviceObject("/org/bluez/hci1", "00:00:00:00:00:0B", nil, true),
	}

	got, err := BondedEndpoints(objects, "hci1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "00:00:00:00:00:0B", got[0].Address)
}

func TestBondedEndpointsDistinguishesAbsentFromDisabled(t *testing.T) {
	_, err := BondedEndpoints(ManagedObjects{}, "")
	require.ErrorIs(t, err, discovery.ErrSubsystemUnavailable)

	_, err = BondedEndpoints(ManagedObjects{"/org/bluez/hci0": adapterObject(false)}, "")
	require.ErrorIs(t, err, discovery.ErrSubsystemDisabled)
}

func TestScannerWithoutSystemBusIsUnavailable(t *testing.T) {
	s := NewScanner("", nil)
	s.connect = func() (*dbus.Conn, error) { return nil, errors.New("no bus") }

	_, err := s.ListKnownEndpoints(context.Background())
	require.ErrorIs(t, err, discovery.ErrSubsystemUnavailable)
	require.ErrorIs(t, s.CheckAdapter(context.Background()), discovery.ErrSubsystemUnavailable)
}
