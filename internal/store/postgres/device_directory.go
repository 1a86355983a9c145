package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"lifebox-go/internal/domain"
)

// DeviceDirectory implements store.DeviceDirectory using PostgreSQL.
type DeviceDirectory struct {
	db *DB
}

// NewDeviceDirectory creates a new PostgreSQL-backed device directory.
func NewDeviceDirectory(db *DB) *DeviceDirectory {
	return &DeviceDirectory{db: db}
}

// GetDeviceContext resolves a device and its owning client in one query.
// A device without a client resolves with a nil Client.
func (d *DeviceDirectory) GetDeviceContext(ctx context.Context, deviceID string) (*domain.DeviceContext, error) {
	query := `
		SELECT d.id, d.name, d.client_id,
			   c.id, c.name, c.phone_numbers, c.primary_email
		FROM devices d
		LEFT JOIN clients c ON c.id = d.client_id
		WHERE d.id = $1
	`

	var device domain.Device
	var deviceClientID *string
	var clientID, clientName, primaryEmail *string
	var phoneNumbers []string

	err := d.db.pool.QueryRow(ctx, query, deviceID).Scan(
		&device.ID,
		&device.Name,
		&deviceClientID,
		&clientID,
		&clientName,
		&phoneNumbers,
		&primaryEmail,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device context: %w", err)
	}

	if deviceClientID != nil {
		device.ClientID = *deviceClientID
	}

	result := &domain.DeviceContext{Device: &device}

	if clientID != nil {
		client := &domain.Client{
			ID:           *clientID,
			PhoneNumbers: phoneNumbers,
		}
		if clientName != nil {
			client.Name = *clientName
		}
		if primaryEmail != nil {
			client.PrimaryEmail = *primaryEmail
		}
		result.Client = client
	}

	return result, nil
}
