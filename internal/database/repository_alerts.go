package database

import (
	"context"

	"github.com/google/uuid"
)

// RecordWebhookAlert persists a normalized TradingView alert
func (r *Repository) RecordWebhookAlert(ctx context.Context, alert *WebhookAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	query := `
		INSERT INTO polybot_webhook_alerts (id, strategy, symbol, action, price, raw_payload, forwarded, forward_error)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, NULLIF($8, ''))
		RETURNING received_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		alert.ID, alert.Strategy, alert.Symbol, alert.Action, alert.Price,
		alert.RawPayload, alert.Forwarded, alert.ForwardError,
	).Scan(&alert.ReceivedAt)
}

// GetRecentWebhookAlerts returns the latest alerts, newest first
func (r *Repository) GetRecentWebhookAlerts(ctx context.Context, limit int) ([]*WebhookAlert, error) {
	query := `
		SELECT id, COALESCE(strategy, ''), symbol, action, price, forwarded, COALESCE(forward_error, ''), received_at
		FROM polybot_webhook_alerts
		ORDER BY received_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*WebhookAlert
	for rows.Next() {
		a := &WebhookAlert{}
		if err := rows.Scan(&a.ID, &a.Strategy, &a.Symbol, &a.Action, &a.Price, &a.Forwarded, &a.ForwardError, &a.ReceivedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// MarkAlertForwarded records the forwarding outcome for an alert
func (r *Repository) MarkAlertForwarded(ctx context.Context, alertID string, forwarded bool, forwardError string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE polybot_webhook_alerts SET forwarded = $2, forward_error = NULLIF($3, '') WHERE id = $1`,
		alertID, forwarded, forwardError)
	return err
}
