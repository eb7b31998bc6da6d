// internal/catalog/catalog.go
package catalog

import (
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dive-service/internal/model"
	"dive-service/pkg/driver"
)

type matchType int

const (
	matchContains matchType = iota
	matchPrefix
)

// rule maps a name pattern to a family. Rules are evaluated in slice order.
type rule struct {
	pattern string
	match   matchType
	family  model.FamilyTag
}

func (r rule) matches(name string) bool {
	if r.match == matchPrefix {
		return strings.HasPrefix(name, r.pattern)
	}
	return strings.Contains(name, r.pattern)
}

// classificationRules is the fixed priority order used by Classify.
// Vendor names come first, then product names advertised without a vendor.
var classificationRules = []rule{
	{"Suunto", matchContains, model.FamilySuuntoEonSteel},
	{"Shearwater", matchContains, model.FamilyShearwaterPetrel},
	{"OSTC", matchContains, model.FamilyHWOstc3},

	{"Predator", matchContains, model.FamilyShearwaterPetrel},
	{"Perdix", matchContains, model.FamilyShearwaterPetrel},
	{"Petrel", matchContains, model.FamilyShearwaterPetrel},
	{"Teric", matchContains, model.FamilyShearwaterPetrel},
	{"Peregrine", matchContains, model.FamilyShearwaterPetrel},
	{"NERD", matchContains, model.FamilyShearwaterPetrel},
	{"EON Steel", matchContains, model.FamilySuuntoEonSteel},
	{"EON Core", matchContains, model.FamilySuuntoEonSteel},
	{"Vyper", matchContains, model.FamilySuuntoVyper2},
	{"COSMIQ", matchContains, model.FamilyDeepbluCosmiq},
	{"Leonardo", matchContains, model.FamilyCressiLeonardo},
	{"CARESIO_", matchPrefix, model.FamilyCressiLeonardo},
	{"GOA_", matchPrefix, model.FamilyCressiLeonardo},
	{"Lynx", matchContains, model.FamilyLiquivisionLynx},
	{"SP2", matchContains, model.FamilySporasubSP2},
	{"i330R", matchContains, model.FamilyPelagicI330R},
	{"Nemo", matchContains, model.FamilyMaresNemo},
	{"VT Pro", matchContains, model.FamilyOceanicVTPro},
	{"S1", matchPrefix, model.FamilyOceansS1},
}

// Classify maps an advertised display name to a family tag. It is pure,
// case-sensitive and returns false for an empty or unrecognised name.
func Classify(displayName string) (model.FamilyTag, bool) {
	if displayName == "" {
		return "", false
	}
	for _, r := range classificationRules {
		if r.matches(displayName) {
			return r.family, true
		}
	}
	return "", false
}

// ClassifyEndpoint classifies an optional display name and returns a pointer
// suitable for InstrumentEndpoint.Family
func ClassifyEndpoint(displayName *string) *model.FamilyTag {
	if displayName == nil {
		return nil
	}
	family, ok := Classify(*displayName)
	if !ok {
		return nil
	}
	return &family
}

// Catalog resolves family tags into instrument profiles
type Catalog struct {
	profiles map[model.FamilyTag]model.InstrumentProfile
	generic  model.InstrumentProfile
	logger   *zap.Logger
	live     atomic.Int64
}

// New creates a catalog populated with the built-in profile table
func New(logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{
		profiles: make(map[model.FamilyTag]model.InstrumentProfile),
		generic:  genericProfile,
		logger:   logger.With(zap.String("component", "catalog")),
	}
	for _, p := range builtinProfiles {
		c.profiles[p.Family] = p
	}
	return c
}

// Profile returns the profile for a family, falling back to the generic
// profile when the family is absent or unknown
func (c *Catalog) Profile(family *model.FamilyTag) model.InstrumentProfile {
	if family == nil {
		return c.generic
	}
	if p, ok := c.profiles[*family]; ok {
		return p
	}
	c.logger.Debug("Unknown family, using generic profile", zap.String("family", string(*family)))
	return c.generic
}

// Resolve acquires a descriptor for the family
func (c *Catalog) Resolve(family *model.FamilyTag) (driver.Descriptor, error) {
	c.live.Add(1)
	return &descriptor{profile: c.Profile(family), catalog: c}, nil
}

// Live returns the number of resolved descriptors not yet closed
func (c *Catalog) Live() int {
	return int(c.live.Load())
}

// Families lists the families with a dedicated profile
func (c *Catalog) Families() []model.FamilyTag {
	families := make([]model.FamilyTag, 0, len(builtinProfiles))
	for _, p := range builtinProfiles {
		families = append(families, p.Family)
	}
	return families
}

type descriptor struct {
	profile  model.InstrumentProfile
	catalog  *Catalog
	released atomic.Bool
}

func (d *descriptor) Profile() model.InstrumentProfile {
	return d.profile
}

func (d *descriptor) Close() error {
	if d.released.CompareAndSwap(false, true) {
		d.catalog.live.Add(-1)
	}
	return nil
}

var genericProfile = model.InstrumentProfile{
	Family:          model.FamilyGeneric,
	Vendor:          "Generic",
	Product:         "Serial bridge",
	Transports:      []model.TransportKind{model.TransportBluetooth, model.TransportSerial, model.TransportTCP, model.TransportUSB},
	BaudRate:        115200,
	DataBits:        8,
	StopBits:        1,
	Parity:          "none",
	Timeout:         3 * time.Second,
	FingerprintSize: 4,
	Generic:         true,
}

var builtinProfiles = []model.InstrumentProfile{
	{
		Family:          model.FamilySuuntoEonSteel,
		Vendor:          "Suunto",
		Product:         "EON Steel",
		Model:           0,
		Transports:      []model.TransportKind{model.TransportBLE, model.TransportUSB},
		Timeout:         5 * time.Second,
		FingerprintSize: 4,
	},
	{
		Family:          model.FamilyShearwaterPetrel,
		Vendor:          "Shearwater",
		Product:         "Petrel",
		Model:           3,
		Transports:      []model.TransportKind{model.TransportBluetooth, model.TransportBLE},
		Timeout:         3 * time.Second,
		FingerprintSize: 4,
	},
	{
		Family:          model.FamilyHWOstc3,
		Vendor:          "Heinrichs Weikamp",
		Product:         "OSTC 3",
		Model:           0x0A,
		Transports:      []model.TransportKind{model.TransportBluetooth, model.TransportBLE, model.TransportSerial},
		BaudRate:        115200,
		DataBits:        8,
		StopBits:        1,
		Parity:          "none",
		Timeout:         3 * time.Second,
		FingerprintSize: 5,
	},
	{
		Family:          model.FamilyCressiLeonardo,
		Vendor:          "Cressi",
		Product:         "Leonardo",
		Transports:      []model.TransportKind{model.TransportSerial, model.TransportBLE},
		BaudRate:        115200,
		DataBits:        8,
		StopBits:        1,
		Parity:          "none",
		Timeout:         time.Second,
		FingerprintSize: 5,
	},
	{
		Family:          model.FamilyDeepbluCosmiq,
		Vendor:          "Deepblu",
		Product:         "Cosmiq+",
		Transports:      []model.TransportKind{model.TransportBLE},
		Timeout:         time.Second,
		FingerprintSize: 6,
	},
	{
		Family:          model.FamilyOceansS1,
		Vendor:          "Oceans",
		Product:         "S1",
		Transports:      []model.TransportKind{model.TransportBLE},
		Timeout:         4 * time.Second,
		FingerprintSize: 8,
	},
	{
		Family:          model.FamilyLiquivisionLynx,
		Vendor:          "Liquivision",
		Product:         "Lynx",
		Transports:      []model.TransportKind{model.TransportSerial},
		BaudRate:        9600,
		DataBits:        8,
		StopBits:        1,
		Parity:          "none",
		Timeout:         3 * time.Second,
		FingerprintSize: 4,
	},
	{
		Family:          model.FamilySporasubSP2,
		Vendor:          "Sporasub",
		Product:         "SP2",
		Transports:      []model.TransportKind{model.TransportSerial},
		BaudRate:        460800,
		DataBits:        8,
		StopBits:        1,
		Parity:          "none",
		Timeout:         time.Second,
		FingerprintSize: 6,
	},
	{
		Family:          model.FamilyPelagicI330R,
		Vendor:          "Aqualung",
		Product:         "i330R",
		Transports:      []model.TransportKind{model.TransportBLE},
		Timeout:         3 * time.Second,
		FingerprintSize: 16,
	},
	{
		Family:          model.FamilyMaresNemo,
		Vendor:          "Mares",
		Product:         "Nemo",
		Transports:      []model.TransportKind{model.TransportSerial},
		BaudRate:        9600,
		DataBits:        8,
		StopBits:        1,
		Parity:          "none",
		Timeout:         time.Second,
		FingerprintSize: 5,
	},
	{
		Family:          model.FamilyOceanicVTPro,
		Vendor:          "Oceanic",
		Product:         "VT Pro",
		Transports:      []model.TransportKind{model.TransportSerial},
		BaudRate:        9600,
		DataBits:        8,
		StopBits:        1,
		Parity:          "none",
		Timeout:         3 * time.Second,
		FingerprintSize: 5,
	},
	{
		Family:          model.FamilySuuntoVyper2,
		Vendor:          "Suunto",
		Product:         "Vyper 2",
		Transports:      []model.TransportKind{model.TransportSerial},
		BaudRate:        9600,
		DataBits:        8,
		StopBits:        1,
		Parity:          "none",
		Timeout:         3 * time.Second,
		FingerprintSize: 7,
	},
}
