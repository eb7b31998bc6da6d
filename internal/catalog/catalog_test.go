package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dive-service/internal/model"
)

func TestClassifyVendorNames(t *testing.T) {
	cases := map[string]model.FamilyTag{
		"Suunto EON Steel":  model.FamilySuuntoEonSteel,
		"Suunto D5":         model.FamilySuuntoEonSteel,
		"Shearwater Perdix": model.FamilyShearwaterPetrel,
		"OSTC 3":            model.FamilyHWOstc3,
		"OSTC s#1234":       model.FamilyHWOstc3,
		"Petrel 3":          model.FamilyShearwaterPetrel,
		"CARESIO_0001":      model.FamilyCressiLeonardo,
		"Cressi Leonardo 2": model.FamilyCressiLeonardo,
		"COSMIQ 1A2B":       model.FamilyDeepbluCosmiq,
		"S1 ocean computer": model.FamilyOceansS1,
	}

	for name, want := range cases {
		got, ok := Classify(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		got, ok := Classify("Shearwater Teric")
		require.True(t, ok)
		assert.Equal(t, model.FamilyShearwaterPetrel, got)
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	// Vendor rules outrank product rules
	got, ok := Classify("Suunto Vyper Novo")
	require.True(t, ok)
	assert.Equal(t, model.FamilySuuntoEonSteel, got)

	got, ok = Classify("Shearwater OSTC clone")
	require.True(t, ok)
	assert.Equal(t, model.FamilyShearwaterPetrel, got)
}

func TestClassifyNoMatch(t *testing.T) {
	for _, name := range []string{"", "My Headphones", "suunto eon", "ostc", "XS1"} {
		_, ok := Classify(name)
		assert.False(t, ok, name)
	}
	assert.Nil(t, ClassifyEndpoint(nil))
}

func TestClassifyEndpoint(t *testing.T) {
	name := "Suunto EON Core"
	family := ClassifyEndpoint(&name)
	require.NotNil(t, family)
	assert.Equal(t, model.FamilySuuntoEonSteel, *family)
}

func TestProfileFallsBackToGeneric(t *testing.T) {
	c := New(nil)

	assert.True(t, c.Profile(nil).Generic)

	unknown := model.FamilyTag("someFutureFamily")
	assert.Equal(t, model.FamilyGeneric, c.Profile(&unknown).Family)

	known := model.FamilyHWOstc3
	p := c.Profile(&known)
	assert.False(t, p.Generic)
	assert.Equal(t, "Heinrichs Weikamp", p.Vendor)
	assert.True(t, p.Supports(model.TransportBluetooth))
}

func TestResolveReturnsReleasableDescriptor(t *testing.T) {
	c := New(nil)
	family := model.FamilyMaresNemo

	d, err := c.Resolve(&family)
	require.NoError(t, err)
	assert.Equal(t, 9600, d.Profile().BaudRate)
	assert.Equal(t, 1, c.Live())

	other, err := c.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Live())

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.Equal(t, 1, c.Live())

	require.NoError(t, other.Close())
	assert.Zero(t, c.Live())
}

func TestFamiliesListsEveryProfile(t *testing.T) {
	c := New(nil)
	families := c.Families()
	assert.Len(t, families, len(builtinProfiles))
	assert.Equal(t, model.FamilySuuntoEonSteel, families[0])
}
