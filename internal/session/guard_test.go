package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestResourceGuardReleasesInReverseOrderOnce(t *testing.T) {
	var order []string
	var observed []string
	g := NewResourceGuard(func(name string, err error) { observed = append(observed, name) })

	for _, name := range []string{"a", "b", "c"} {
		name := name
		g.Acquire(name, func() error {
			order = append(order, name)
			return nil
		})
	}
	assert.Equal(t, 3, g.Held())

	require.NoError(t, g.Release())
	require.NoError(t, g.Release())
	assert.Equal(t, []string{"c", "b", "a"}, order)
	assert.Equal(t, order, observed)
	assert.Zero(t, g.Held())
}

func TestResourceGuardCollectsEveryFailure(t *testing.T) {
	g := NewResourceGuard(nil)
	calls := 0
	g.Acquire("first", func() error { calls++; return errors.New("first failed") })
	g.Acquire("second", func() error { calls++; return nil })
	g.Acquire("third", func() error { calls++; return errors.New("third failed") })

	err := g.Release()
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.EqualError(t, errs[0], "release third: third failed")
	assert.EqualError(t, errs[1], "release first: first failed")
}
