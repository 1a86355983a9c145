package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"lifebox-go/internal/domain"
)

// AlarmRuleRepository implements store.AlarmRuleRepository using PostgreSQL.
type AlarmRuleRepository struct {
	db *DB
}

// NewAlarmRuleRepository creates a new PostgreSQL-backed rule repository.
func NewAlarmRuleRepository(db *DB) *AlarmRuleRepository {
	return &AlarmRuleRepository{db: db}
}

// Create stores a new rule and its reactions.
func (r *AlarmRuleRepository) Create(ctx context.Context, rule *domain.AlarmRule) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO alarm_rules (
			id, name, device_id, metric_name, operator, threshold,
			threshold_duration_seconds, severity, enabled,
			dashboard_message, sms_message, email_message,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = tx.Exec(ctx, query,
		rule.ID,
		rule.Name,
		nullableString(rule.DeviceID),
		rule.MetricName,
		rule.Operator,
		rule.Threshold,
		rule.ThresholdDurationSeconds,
		rule.Severity,
		rule.Enabled,
		rule.DashboardMessage,
		rule.SmsMessage,
		rule.EmailMessage,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alarm rule: %w", err)
	}

	if err := insertReactions(ctx, tx, rule); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit alarm rule: %w", err)
	}

	return nil
}

// Update modifies an existing rule. Reactions are replaced wholesale.
func (r *AlarmRuleRepository) Update(ctx context.Context, rule *domain.AlarmRule) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE alarm_rules SET
			name = $2,
			device_id = $3,
			metric_name = $4,
			operator = $5,
			threshold = $6,
			threshold_duration_seconds = $7,
			severity = $8,
			enabled = $9,
			dashboard_message = $10,
			sms_message = $11,
			email_message = $12,
			updated_at = $13
		WHERE id = $1
	`

	result, err := tx.Exec(ctx, query,
		rule.ID,
		rule.Name,
		nullableString(rule.DeviceID),
		rule.MetricName,
		rule.Operator,
		rule.Threshold,
		rule.ThresholdDurationSeconds,
		rule.Severity,
		rule.Enabled,
		rule.DashboardMessage,
		rule.SmsMessage,
		rule.EmailMessage,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update alarm rule: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrAlarmRuleNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM alarm_reactions WHERE rule_id = $1`, rule.ID); err != nil {
		return fmt.Errorf("failed to clear reactions: %w", err)
	}

	if err := insertReactions(ctx, tx, rule); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit alarm rule: %w", err)
	}

	return nil
}

// Delete removes a rule. Reactions cascade.
func (r *AlarmRuleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM alarm_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alarm rule: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrAlarmRuleNotFound
	}

	return nil
}

// GetByID retrieves a rule by its ID, with reactions attached.
func (r *AlarmRuleRepository) GetByID(ctx context.Context, id string) (*domain.AlarmRule, error) {
	query := ruleSelect + ` WHERE id = $1`

	row := r.db.pool.QueryRow(ctx, query, id)

	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAlarmRuleNotFound
		}
		return nil, fmt.Errorf("failed to get alarm rule: %w", err)
	}

	if err := r.attachReactions(ctx, []*domain.AlarmRule{rule}); err != nil {
		return nil, err
	}

	return rule, nil
}

// List retrieves rules matching the filter criteria.
func (r *AlarmRuleRepository) List(ctx context.Context, filter domain.AlarmRuleFilter) ([]*domain.AlarmRule, error) {
	query := ruleSelect + ` WHERE 1=1`
	args := []interface{}{}
	argNum := 1

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

	if filter.Enabled != nil {
		query += fmt.Sprintf(" AND enabled = $%d", argNum)
		args = append(args, *filter.Enabled)
		argNum++
	}

	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("failed to list alarm rules: %w", err)
	}
	defer rows.Close()

	rules, err := scanRules(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachReactions(ctx, rules); err != nil {
		return nil, err
	}

	return rules, nil
}

// FindActiveRules retrieves every enabled rule applicable to a device:
// rules scoped to that device plus global rules.
func (r *AlarmRuleRepository) FindActiveRules(ctx context.Context, deviceID string) ([]*domain.AlarmRule, error) {
	query := ruleSelect + ` WHERE enabled = TRUE AND (device_id IS NULL OR device_id = $1)`

	rows, err := r.db.pool.Query(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find active rules: %w", err)
	}
	defer rows.Close()

	rules, err := scanRules(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachReactions(ctx, rules); err != nil {
		return nil, err
	}

	return rules, nil
}

const ruleSelect = `
	SELECT id, name, device_id, metric_name, operator, threshold,
		   threshold_duration_seconds, severity, enabled,
		   dashboard_message, sms_message, email_message,
		   created_at, updated_at
	FROM alarm_rules
`

// attachReactions loads reactions for the given rules in one query.
func (r *AlarmRuleRepository) attachReactions(ctx context.Context, rules []*domain.AlarmRule) error {
	if len(rules) == 0 {
		return nil
	}

	byID := make(map[string]*domain.AlarmRule, len(rules))
	ids := make([]string, 0, len(rules))
	for _, rule := range rules {
		byID[rule.ID] = rule
		ids = append(ids, rule.ID)
	}

	// Reactions dispatch in configured order, so the load must preserve it.
	query := `
		SELECT id, rule_id, type, enabled, config
		FROM alarm_reactions
		WHERE rule_id = ANY($1)
		ORDER BY rule_id, position
	`

	rows, err := r.db.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to load reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reaction domain.AlarmReaction
		var configData []byte

		if err := rows.Scan(&reaction.ID, &reaction.RuleID, &reaction.Type, &reaction.Enabled, &configData); err != nil {
			return fmt.Errorf("failed to scan reaction: %w", err)
		}

		if len(configData) > 0 {
			if err := json.Unmarshal(configData, &reaction.Config); err != nil {
				return fmt.Errorf("failed to unmarshal reaction config: %w", err)
			}
		}

		if rule, ok := byID[reaction.RuleID]; ok {
			rule.Reactions = append(rule.Reactions, reaction)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating reactions: %w", err)
	}

	return nil
}

func insertReactions(ctx context.Context, tx pgx.Tx, rule *domain.AlarmRule) error {
	query := `
		INSERT INTO alarm_reactions (id, rule_id, type, enabled, config, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for i, reaction := range rule.Reactions {
		var configData []byte
		if reaction.Config != nil {
			data, err := json.Marshal(reaction.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal reaction config: %w", err)
			}
			configData = data
		}

		if _, err := tx.Exec(ctx, query, reaction.ID, rule.ID, reaction.Type, reaction.Enabled, configData, i); err != nil {
			return fmt.Errorf("failed to create reaction: %w", err)
		}
	}

	return nil
}

// scanRule scans a single row into an AlarmRule.
func scanRule(row pgx.Row) (*domain.AlarmRule, error) {
	var rule domain.AlarmRule
	var deviceID *string

	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&deviceID,
		&rule.MetricName,
		&rule.Operator,
		&rule.Threshold,
		&rule.ThresholdDurationSeconds,
		&rule.Severity,
		&rule.Enabled,
		&rule.DashboardMessage,
		&rule.SmsMessage,
		&rule.EmailMessage,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if deviceID != nil {
		rule.DeviceID = *deviceID
	}

	return &rule, nil
}

// scanRules scans multiple rows into a slice of AlarmRules.
func scanRules(rows pgx.Rows) ([]*domain.AlarmRule, error) {
	var rules []*domain.AlarmRule

	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alarm rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alarm rules: %w", err)
	}

	return rules, nil
}

// nullableString returns nil if the string is empty, otherwise returns a pointer to it.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
