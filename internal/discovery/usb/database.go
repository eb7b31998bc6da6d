// internal/discovery/usb/database.go
package usb

import (
	"github.com/google/gousb"
)

// DeviceDatabase maps USB vendor/product ids to known dive instruments
type DeviceDatabase struct {
	vendors map[gousb.ID]*VendorInfo
}

// VendorInfo contains vendor-specific information
type VendorInfo struct {
	Name     string
	products map[gousb.ID]*ProductInfo
}

// ProductInfo names one instrument. The display name is chosen so that the
// instrument catalog can classify it.
type ProductInfo struct {
	DisplayName string
}

// NewDeviceDatabase creates and initializes the device database
func NewDeviceDatabase() *DeviceDatabase {
	db := &DeviceDatabase{
		vendors: make(map[gousb.ID]*VendorInfo),
	}
	db.initializeDatabase()
	return db
}

func (db *DeviceDatabase) initializeDatabase() {
	db.AddVendor(0x1493, &VendorInfo{Name: "Suunto"})
	db.AddProduct(0x1493, 0x0030, &ProductInfo{DisplayName: "Suunto EON Steel"})
	db.AddProduct(0x1493, 0x0033, &ProductInfo{DisplayName: "Suunto EON Core"})
	db.AddProduct(0x1493, 0x0035, &ProductInfo{DisplayName: "Suunto D5"})

	db.AddVendor(0x2e6c, &VendorInfo{Name: "Scubapro"})
	db.AddProduct(0x2e6c, 0x3201, &ProductInfo{DisplayName: "Scubapro G2"})
	db.AddProduct(0x2e6c, 0x3211, &ProductInfo{DisplayName: "Scubapro G2 Console"})

	db.AddVendor(0x0471, &VendorInfo{Name: "Atomic Aquatics"})
	db.AddProduct(0x0471, 0x0888, &ProductInfo{DisplayName: "Atomic Aquatics Cobalt"})
}

// IsKnownVendor checks if a vendor ID is in the database
func (db *DeviceDatabase) IsKnownVendor(vendorID gousb.ID) bool {
	_, exists := db.vendors[vendorID]
	return exists
}

// Lookup returns the product entry for a vendor/product pair
func (db *DeviceDatabase) Lookup(vendorID, productID gousb.ID) (*ProductInfo, bool) {
	vendor, ok := db.vendors[vendorID]
	if !ok {
		return nil, false
	}
	product, ok := vendor.products[productID]
	return product, ok
}

// GetTotalProductCount returns total number of known products
func (db *DeviceDatabase) GetTotalProductCount() int {
	total := 0
	for _, vendor := range db.vendors {
		total += len(vendor.products)
	}
	return total
}

// AddVendor adds a new vendor to the database
func (db *DeviceDatabase) AddVendor(vendorID gousb.ID, info *VendorInfo) {
	if info.products == nil {
		info.products = make(map[gousb.ID]*ProductInfo)
	}
	db.vendors[vendorID] = info
}

// AddProduct adds a new product to an existing vendor
func (db *DeviceDatabase) AddProduct(vendorID, productID gousb.ID, info *ProductInfo) {
	if vendor, exists := db.vendors[vendorID]; exists {
		vendor.products[productID] = info
	}
}
