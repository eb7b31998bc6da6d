// internal/protocol/connection.go
package protocol

import "time"

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port     string        `json:"port"`
	BaudRate int           `json:"baud_rate"`
	DataBits int           `json:"data_bits"`
	StopBits int           `json:"stop_bits"`
	Parity   string        `json:"parity"`
	Timeout  time.Duration `json:"timeout"`
}

// USBConfig represents USB connection configuration
type USBConfig struct {
	VendorID  string        `json:"vendor_id"`
	ProductID string        `json:"product_id"`
	Endpoint  int           `json:"endpoint"`
	ReadSize  int           `json:"read_size"`
	Timeout   time.Duration `json:"timeout"`
}

// TCPConfig represents a serial-over-TCP bridge connection
type TCPConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	KeepAlive      bool          `json:"keep_alive"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	Timeout        time.Duration `json:"timeout"`
}

// RFCOMMConfig represents a Bluetooth serial port profile connection
type RFCOMMConfig struct {
	Address string        `json:"address"`
	Channel int           `json:"channel"`
	Timeout time.Duration `json:"timeout"`
}
