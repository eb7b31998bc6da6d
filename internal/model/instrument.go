// internal/model/instrument.go
package model

import "time"

// FamilyTag identifies an instrument protocol family
type FamilyTag string

const (
	FamilySuuntoEonSteel   FamilyTag = "suuntoEonSteel"
	FamilyShearwaterPetrel FamilyTag = "shearwaterPetrel"
	FamilyHWOstc3          FamilyTag = "hwOstc3"
	FamilyCressiLeonardo   FamilyTag = "cressiLeonardo"
	FamilyDeepbluCosmiq    FamilyTag = "deepbluCosmiq"
	FamilyOceansS1         FamilyTag = "oceansS1"
	FamilyLiquivisionLynx  FamilyTag = "liquivisionLynx"
	FamilySporasubSP2      FamilyTag = "sporasubSp2"
	FamilyPelagicI330R     FamilyTag = "pelagicI330R"
	FamilyMaresNemo        FamilyTag = "maresNemo"
	FamilyOceanicVTPro     FamilyTag = "oceanicVtpro"
	FamilySuuntoVyper2     FamilyTag = "suuntoVyper2"

	// FamilyGeneric is the fallback used when no family is known
	FamilyGeneric FamilyTag = "generic"
)

// TransportKind names the physical link an instrument is reached over
type TransportKind string

const (
	TransportBluetooth TransportKind = "bluetooth"
	TransportBLE       TransportKind = "ble"
	TransportSerial    TransportKind = "serial"
	TransportUSB       TransportKind = "usb"
	TransportTCP       TransportKind = "tcp"
)

// InstrumentEndpoint describes one candidate instrument found by a scan
type InstrumentEndpoint struct {
	DisplayName    *string    `json:"name"`
	Address        string     `json:"address"`
	Family         *FamilyTag `json:"family,omitempty"`
	SignalStrength *int       `json:"rssi,omitempty"`
}

// Name returns the display name or an empty string when the instrument reported none
func (e InstrumentEndpoint) Name() string {
	if e.DisplayName == nil {
		return ""
	}
	return *e.DisplayName
}

// InstrumentProfile is the resolved descriptor for a family: the parameters
// the transport and device protocol need for a session.
type InstrumentProfile struct {
	Family          FamilyTag       `json:"family"`
	Vendor          string          `json:"vendor"`
	Product         string          `json:"product"`
	Model           uint32          `json:"model"`
	Transports      []TransportKind `json:"transports"`
	BaudRate        int             `json:"baud_rate,omitempty"`
	DataBits        int             `json:"data_bits,omitempty"`
	StopBits        int             `json:"stop_bits,omitempty"`
	Parity          string          `json:"parity,omitempty"`
	Timeout         time.Duration   `json:"timeout"`
	FingerprintSize int             `json:"fingerprint_size"`
	Generic         bool            `json:"generic"`
}

// Supports reports whether the profile lists the given transport
func (p InstrumentProfile) Supports(kind TransportKind) bool {
	for _, t := range p.Transports {
		if t == kind {
			return true
		}
	}
	return false
}
