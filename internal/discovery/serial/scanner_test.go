package serial

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"

	"dive-service/internal/discovery"
)

func TestListKnownEndpointsFiltersByPattern(t *testing.T) {
	s := NewScanner(nil, "/dev/rfcomm*", "/dev/ttyUSB*")
	s.listPorts = func() ([]*enumerator.PortDetails, error) {
		return []*enumerator.PortDetails{
			{Name: "/dev/ttyS0"},
			{Name: "/dev/rfcomm0"},
			{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", Product: "HW OSTC cable"},
		}, nil
	}

	got, err := s.ListKnownEndpoints(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/dev/rfcomm0", got[0].Address)
	assert.Nil(t, got[0].Name)
	require.NotNil(t, got[1].Name)
	assert.Equal(t, "HW OSTC cable", *got[1].Name)
}

func TestListKnownEndpointsEnumeratorFailure(t *testing.T) {
	s := NewScanner(nil)
	s.listPorts = func() ([]*enumerator.PortDetails, error) { return nil, errors.New("no sysfs") }

	_, err := s.ListKnownEndpoints(context.Background())
	require.ErrorIs(t, err, discovery.ErrSubsystemUnavailable)
}
