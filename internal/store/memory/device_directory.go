package memory

import (
	"context"
	"sync"

	"lifebox-go/internal/domain"
)

// DeviceDirectory is an in-memory implementation of store.DeviceDirectory.
// Devices and their owning clients are registered with Put helpers, which
// the memory deployment mode and tests use as seed data.
type DeviceDirectory struct {
	mu      sync.RWMutex
	devices map[string]*domain.Device
	clients map[string]*domain.Client
}

// NewDeviceDirectory creates a new in-memory device directory.
func NewDeviceDirectory() *DeviceDirectory {
	return &DeviceDirectory{
		devices: make(map[string]*domain.Device),
		clients: make(map[string]*domain.Client),
	}
}

// PutDevice registers a device.
func (d *DeviceDirectory) PutDevice(device *domain.Device) {
	d.mu.Lock()
	defer d.mu.Unlock()

	deviceCopy := *device
	d.devices[device.ID] = &deviceCopy
}

// PutClient registers a client.
func (d *DeviceDirectory) PutClient(client *domain.Client) {
	d.mu.Lock()
	defer d.mu.Unlock()

	clientCopy := *client
	if client.PhoneNumbers != nil {
		clientCopy.PhoneNumbers = make([]string, len(client.PhoneNumbers))
		copy(clientCopy.PhoneNumbers, client.PhoneNumbers)
	}
	d.clients[client.ID] = &clientCopy
}

// GetDeviceContext resolves a device and its owning client. The client half
// is optional: a device without a registered client resolves with a nil
// Client.
func (d *DeviceDirectory) GetDeviceContext(ctx context.Context, deviceID string) (*domain.DeviceContext, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	device, exists := d.devices[deviceID]
	if !exists {
		return nil, domain.ErrDeviceNotFound
	}

	deviceCopy := *device
	result := &domain.DeviceContext{Device: &deviceCopy}

	if client, ok := d.clients[device.ClientID]; ok {
		clientCopy := *client
		if client.PhoneNumbers != nil {
			clientCopy.PhoneNumbers = make([]string, len(client.PhoneNumbers))
			copy(clientCopy.PhoneNumbers, client.PhoneNumbers)
		}
		result.Client = &clientCopy
	}

	return result, nil
}

// Clear removes all data from the directory. Useful for test cleanup.
func (d *DeviceDirectory) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.devices = make(map[string]*domain.Device)
	d.clients = make(map[string]*domain.Client)
}
