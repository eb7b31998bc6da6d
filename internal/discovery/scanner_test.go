package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScanner struct {
	kind      string
	endpoints []KnownEndpoint
	err       error
}

func (f *fakeScanner) GetScannerType() string { return f.kind }

func (f *fakeScanner) ListKnownEndpoints(context.Context) ([]KnownEndpoint, error) {
	return f.endpoints, f.err
}

func strPtr(s string) *string { return &s }

func TestScannerManagerKeepsRegistrationOrder(t *testing.T) {
	sm := NewScannerManager(nil)
	sm.RegisterScanner(&fakeScanner{kind: "bluetooth", endpoints: []KnownEndpoint{
		{Name: strPtr("Suunto EON Core"), Address: "00:11:22:33:44:55"},
		{Address: "00:11:22:33:44:66"},
	}})
	sm.RegisterScanner(&fakeScanner{kind: "serial", endpoints: []KnownEndpoint{
		{Address: "/dev/ttyUSB0"},
	}})

	got, err := sm.ListKnownEndpoints(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "00:11:22:33:44:55", got[0].Address)
	assert.Equal(t, "bluetooth", got[0].Source)
	assert.Equal(t, "/dev/ttyUSB0", got[2].Address)
	assert.Equal(t, "serial", got[2].Source)
	assert.Equal(t, []string{"bluetooth", "serial"}, sm.GetScannerTypes())
}

func TestScannerManagerToleratesPartialFailure(t *testing.T) {
	sm := NewScannerManager(nil)
	sm.RegisterScanner(&fakeScanner{kind: "bluetooth", err: ErrSubsystemDisabled})
	sm.RegisterScanner(&fakeScanner{kind: "serial", endpoints: []KnownEndpoint{{Address: "COM3"}}})

	got, err := sm.ListKnownEndpoints(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestScannerManagerReturnsFirstFailureWhenAllFail(t *testing.T) {
	sm := NewScannerManager(nil)
	sm.RegisterScanner(&fakeScanner{kind: "bluetooth", err: ErrSubsystemDisabled})
	sm.RegisterScanner(&fakeScanner{kind: "serial", err: errors.New("boom")})

	_, err := sm.ListKnownEndpoints(context.Background())
	require.ErrorIs(t, err, ErrSubsystemDisabled)
}

func TestScannerManagerWithoutScannersIsUnavailable(t *testing.T) {
	_, err := NewScannerManager(nil).ListKnownEndpoints(context.Background())
	require.ErrorIs(t, err, ErrSubsystemUnavailable)
}
