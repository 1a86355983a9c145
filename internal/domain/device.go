package domain

import "errors"

// ErrDeviceNotFound is returned when a device cannot be resolved.
var ErrDeviceNotFound = errors.New("device not found")

// Device is a registered telemetry-reporting unit owned by a client.
type Device struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ClientID string `json:"client_id"`
}

// Client is the tenant that owns devices. Its contact details are the
// implicit recipients for sms and email reactions.
type Client struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	PhoneNumbers []string `json:"phone_numbers,omitempty"`
	PrimaryEmail string   `json:"primary_email,omitempty"`
}

// DeviceContext is a device joined with its owning client, resolved once at
// event creation time and handed to the dispatcher and renderer.
type DeviceContext struct {
	Device *Device `json:"device"`
	Client *Client `json:"client,omitempty"`
}
