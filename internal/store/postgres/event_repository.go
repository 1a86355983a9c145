package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"lifebox-go/internal/domain"
)

// AlarmEventRepository implements store.AlarmEventRepository using PostgreSQL.
type AlarmEventRepository struct {
	db *DB
}

// NewAlarmEventRepository creates a new PostgreSQL-backed event repository.
func NewAlarmEventRepository(db *DB) *AlarmEventRepository {
	return &AlarmEventRepository{db: db}
}

// Create stores a new event.
func (r *AlarmEventRepository) Create(ctx context.Context, event *domain.AlarmEvent) error {
	query := `
		INSERT INTO alarm_events (
			id, rule_id, device_id, severity, triggered_value, message,
			triggered_at, acknowledged, acknowledged_by, acknowledged_at,
			resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.pool.Exec(ctx, query,
		event.ID,
		event.RuleID,
		event.DeviceID,
		event.Severity,
		event.TriggeredValue,
		event.Message,
		event.TriggeredAt,
		event.Acknowledged,
		nullableString(event.AcknowledgedBy),
		event.AcknowledgedAt,
		event.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alarm event: %w", err)
	}

	return nil
}

// Update modifies an existing event.
func (r *AlarmEventRepository) Update(ctx context.Context, event *domain.AlarmEvent) error {
	query := `
		UPDATE alarm_events SET
			severity = $2,
			triggered_value = $3,
			message = $4,
			acknowledged = $5,
			acknowledged_by = $6,
			acknowledged_at = $7,
			resolved_at = $8
		WHERE id = $1
	`

	result, err := r.db.pool.Exec(ctx, query,
		event.ID,
		event.Severity,
		event.TriggeredValue,
		event.Message,
		event.Acknowledged,
		nullableString(event.AcknowledgedBy),
		event.AcknowledgedAt,
		event.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update alarm event: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrAlarmEventNotFound
	}

	return nil
}

// GetByID retrieves an event by its ID.
func (r *AlarmEventRepository) GetByID(ctx context.Context, id string) (*domain.AlarmEvent, error) {
	query := eventSelect + ` WHERE id = $1`

	row := r.db.pool.QueryRow(ctx, query, id)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAlarmEventNotFound
		}
		return nil, fmt.Errorf("failed to get alarm event: %w", err)
	}

	return event, nil
}

// FindOpenEvent returns the most recent unresolved event for a rule/device
// pair triggered at or after since, or nil when none exists.
func (r *AlarmEventRepository) FindOpenEvent(ctx context.Context, ruleID, deviceID string, since time.Time) (*domain.AlarmEvent, error) {
	query := eventSelect + `
		WHERE rule_id = $1 AND device_id = $2
		  AND resolved_at IS NULL
		  AND triggered_at >= $3
		ORDER BY triggered_at DESC
		LIMIT 1
	`

	row := r.db.pool.QueryRow(ctx, query, ruleID, deviceID, since)

	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open event: %w", err)
	}

	return event, nil
}

// AppendToMessage appends a suffix to an event's message.
func (r *AlarmEventRepository) AppendToMessage(ctx context.Context, eventID, suffix string) error {
	query := `UPDATE alarm_events SET message = message || $2 WHERE id = $1`

	result, err := r.db.pool.Exec(ctx, query, eventID, suffix)
	if err != nil {
		return fmt.Errorf("failed to append to event message: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrAlarmEventNotFound
	}

	return nil
}

// List retrieves events matching the filter criteria, newest first.
func (r *AlarmEventRepository) List(ctx context.Context, filter domain.AlarmEventFilter) ([]*domain.AlarmEvent, error) {
	query := eventSelect + ` WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if filter.RuleID != "" {
		query += fmt.Sprintf(" AND rule_id = $%d", argNum)
		args = append(args, filter.RuleID)
		argNum++
	}

	if filter.DeviceID != "" {
		query += fmt.Sprintf(" AND device_id = $%d", argNum)
		args = append(args, filter.DeviceID)
		argNum++
	}

	if filter.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argNum)
		args = append(args, filter.Severity)
		argNum++
	}

	if filter.OpenOnly {
		query += " AND resolved_at IS NULL"
	}

	query += " ORDER BY triggered_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
		argNum++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alarm events: %w", err)
	}
	defer rows.Close()

	var events []*domain.AlarmEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alarm event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alarm events: %w", err)
	}

	return events, nil
}

const eventSelect = `
	SELECT id, rule_id, device_id, severity, triggered_value, message,
		   triggered_at, acknowledged, acknowledged_by, acknowledged_at,
		   resolved_at
	FROM alarm_events
`

// scanEvent scans a single row into an AlarmEvent.
func scanEvent(row pgx.Row) (*domain.AlarmEvent, error) {
	var event domain.AlarmEvent
	var acknowledgedBy *string

	err := row.Scan(
		&event.ID,
		&event.RuleID,
		&event.DeviceID,
		&event.Severity,
		&event.TriggeredValue,
		&event.Message,
		&event.TriggeredAt,
		&event.Acknowledged,
		&acknowledgedBy,
		&event.AcknowledgedAt,
		&event.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if acknowledgedBy != nil {
		event.AcknowledgedBy = *acknowledgedBy
	}

	return &event, nil
}
