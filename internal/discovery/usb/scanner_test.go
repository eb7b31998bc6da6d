package usb

import (
	"context"
	"errors"
	"testing"

	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dive-service/internal/discovery"
)

func TestListKnownEndpointsMatchesDatabase(t *testing.T) {
	s := NewScanner(nil)
	s.listDescs = func() ([]*gousb.DeviceDesc, error) {
		return []*gousb.DeviceDesc{
			{Bus: 2, Address: 4, Vendor: 0x1493, Product: 0x0033},
			{Bus: 1, Address: 7, Vendor: 0x046d, Product: 0xc52b},
			{Bus: 1, Address: 3, Vendor: 0x1493, Product: 0x0030},
		}, nil
	}

	got, err := s.ListKnownEndpoints(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "usb://1493:0030", got[0].Address)
	assert.Equal(t, "Suunto EON Steel", *got[0].Name)
	assert.Equal(t, "usb://1493:0033", got[1].Address)
}

func TestListKnownEndpointsUnavailable(t *testing.T) {
	s := NewScanner(nil)
	s.listDescs = func() ([]*gousb.DeviceDesc, error) { return nil, errors.New("libusb: access denied") }

	_, err := s.ListKnownEndpoints(context.Background())
	require.ErrorIs(t, err, discovery.ErrSubsystemUnavailable)
}

func TestDeviceDatabase(t *testing.T) {
	db := NewDeviceDatabase()
	assert.True(t, db.IsKnownVendor(0x1493))
	assert.False(t, db.IsKnownVendor(0x04b8))
	assert.Equal(t, 6, db.GetTotalProductCount())

	_, ok := db.Lookup(0x1493, 0xffff)
	assert.False(t, ok)
}
