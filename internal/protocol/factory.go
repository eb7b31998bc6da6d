// internal/protocol/factory.go
package protocol

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"dive-service/internal/config"
	"dive-service/internal/model"
)

var (
	bluetoothAddressPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)
	windowsPortPattern      = regexp.MustCompile(`^COM[0-9]+$`)
)

// Endpoint is a parsed instrument address
type Endpoint struct {
	Kind      model.TransportKind
	Target    string
	Port      int
	Channel   int
	VendorID  string
	ProductID string
}

// ParseAddress interprets the address forms accepted by the factory:
//
//	AA:BB:CC:DD:EE:FF, rfcomm://AA:BB:CC:DD:EE:FF[/channel]
//	/dev/ttyUSB0, COM3, serial:///dev/rfcomm0
//	tcp://host:port
//	usb://VID:PID
func ParseAddress(address string) (Endpoint, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Endpoint{}, fmt.Errorf("empty address: %w", ErrEndpointNotFound)
	}

	scheme, rest, hasScheme := strings.Cut(address, "://")
	if !hasScheme {
		switch {
		case bluetoothAddressPattern.MatchString(address):
			return Endpoint{Kind: model.TransportBluetooth, Target: strings.ToUpper(address)}, nil
		case strings.HasPrefix(address, "/dev/"), windowsPortPattern.MatchString(address):
			return Endpoint{Kind: model.TransportSerial, Target: address}, nil
		}
		return Endpoint{}, fmt.Errorf("unrecognised address %q: %w", address, ErrEndpointNotFound)
	}

	switch scheme {
	case "rfcomm", "bt":
		mac, channel, hasChannel := strings.Cut(rest, "/")
		if !bluetoothAddressPattern.MatchString(mac) {
			return Endpoint{}, fmt.Errorf("invalid bluetooth address %q: %w", mac, ErrEndpointNotFound)
		}
		ep := Endpoint{Kind: model.TransportBluetooth, Target: strings.ToUpper(mac)}
		if hasChannel {
			ch, err := strconv.Atoi(channel)
			if err != nil || ch < 1 || ch > 30 {
				return Endpoint{}, fmt.Errorf("invalid rfcomm channel %q: %w", channel, ErrEndpointNotFound)
			}
			ep.Channel = ch
		}
		return ep, nil

	case "serial":
		if rest == "" {
			return Endpoint{}, fmt.Errorf("empty serial port: %w", ErrEndpointNotFound)
		}
		return Endpoint{Kind: model.TransportSerial, Target: rest}, nil

	case "tcp":
		host, port, err := net.SplitHostPort(rest)
		if err != nil {
			return Endpoint{}, fmt.Errorf("invalid tcp address %q: %w", rest, ErrEndpointNotFound)
		}
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return Endpoint{}, fmt.Errorf("invalid tcp port %q: %w", port, ErrEndpointNotFound)
		}
		return Endpoint{Kind: model.TransportTCP, Target: host, Port: p}, nil

	case "usb":
		vid, pid, ok := strings.Cut(rest, ":")
		if !ok {
			return Endpoint{}, fmt.Errorf("invalid usb address %q: %w", rest, ErrEndpointNotFound)
		}
		if _, err := ParseHexID(vid); err != nil {
			return Endpoint{}, fmt.Errorf("invalid usb vendor id %q: %w", vid, ErrEndpointNotFound)
		}
		if _, err := ParseHexID(pid); err != nil {
			return Endpoint{}, fmt.Errorf("invalid usb product id %q: %w", pid, ErrEndpointNotFound)
		}
		return Endpoint{Kind: model.TransportUSB, Target: rest, VendorID: vid, ProductID: pid}, nil
	}

	return Endpoint{}, fmt.Errorf("unsupported address scheme %q: %w", scheme, ErrEndpointNotFound)
}

// ParseBluetoothAddress converts AA:BB:CC:DD:EE:FF into its six bytes, most significant first
func ParseBluetoothAddress(address string) ([6]byte, error) {
	var out [6]byte
	if !bluetoothAddressPattern.MatchString(address) {
		return out, fmt.Errorf("invalid bluetooth address: %s", address)
	}
	for i, part := range strings.Split(address, ":") {
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return out, err
		}
		out[i] = byte(b)
	}
	return out, nil
}

// Factory opens transport channels from instrument addresses
type Factory struct {
	transport config.TransportConfig
	bluetooth config.BluetoothConfig
	logger    *zap.Logger
}

// NewFactory creates a channel factory with the configured transport defaults
func NewFactory(transport config.TransportConfig, bluetooth config.BluetoothConfig, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		transport: transport,
		bluetooth: bluetooth,
		logger:    logger,
	}
}

// Open resolves the address and opens a channel using the profile's line settings
func (f *Factory) Open(ctx context.Context, address string, profile model.InstrumentProfile) (Channel, error) {
	ep, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	var ch interface {
		Channel
		Open(ctx context.Context) error
	}

	switch ep.Kind {
	case model.TransportBluetooth:
		ch = f.createRFCOMMChannel(ep, profile)
	case model.TransportSerial:
		ch = f.createSerialChannel(ep, profile)
	case model.TransportTCP:
		ch = f.createTCPChannel(ep, profile)
	case model.TransportUSB:
		ch = f.createUSBChannel(ep, profile)
	default:
		return nil, fmt.Errorf("unsupported transport %s: %w", ep.Kind, ErrEndpointNotFound)
	}

	if err := ch.Open(ctx); err != nil {
		return nil, err
	}
	return ch, nil
}

func (f *Factory) createSerialChannel(ep Endpoint, profile model.InstrumentProfile) *SerialConnection {
	cfg := &SerialConfig{
		Port:     ep.Target,
		BaudRate: f.transport.Serial.BaudRate,
		DataBits: f.transport.Serial.DataBits,
		StopBits: f.transport.Serial.StopBits,
		Parity:   f.transport.Serial.Parity,
		Timeout:  f.transport.Serial.Timeout,
	}
	if profile.BaudRate > 0 {
		cfg.BaudRate = profile.BaudRate
	}
	if profile.DataBits > 0 {
		cfg.DataBits = profile.DataBits
	}
	if profile.StopBits > 0 {
		cfg.StopBits = profile.StopBits
	}
	if profile.Parity != "" {
		cfg.Parity = profile.Parity
	}
	if profile.Timeout > 0 {
		cfg.Timeout = profile.Timeout
	}
	return NewSerialConnection(cfg, f.logger)
}

func (f *Factory) createTCPChannel(ep Endpoint, profile model.InstrumentProfile) *TCPConnection {
	return NewTCPConnection(&TCPConfig{
		Host:           ep.Target,
		Port:           ep.Port,
		KeepAlive:      f.transport.TCP.KeepAlive,
		ConnectTimeout: f.transport.TCP.ConnectTimeout,
		Timeout:        profile.Timeout,
	}, f.logger)
}

func (f *Factory) createUSBChannel(ep Endpoint, profile model.InstrumentProfile) *USBConnection {
	timeout := f.transport.USB.Timeout
	if profile.Timeout > 0 {
		timeout = profile.Timeout
	}
	return NewUSBConnection(&USBConfig{
		VendorID:  ep.VendorID,
		ProductID: ep.ProductID,
		Endpoint:  f.transport.USB.Endpoint,
		ReadSize:  f.transport.USB.BulkTransferSize,
		Timeout:   timeout,
	}, f.logger)
}

func (f *Factory) createRFCOMMChannel(ep Endpoint, profile model.InstrumentProfile) *RFCOMMConnection {
	channel := ep.Channel
	if channel == 0 {
		channel = f.bluetooth.RFCOMMChannel
	}
	if channel == 0 {
		channel = 1
	}
	return NewRFCOMMConnection(&RFCOMMConfig{
		Address: ep.Target,
		Channel: channel,
		Timeout: profile.Timeout,
	}, f.logger)
}
