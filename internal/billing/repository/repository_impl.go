package repository

import (
	"context"

	"github.com/smallbiznis/fintrack/internal/billing/domain"
	"github.com/smallbiznis/fintrack/pkg/db"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEvent(ctx context.Context, gw db.Gateway, event *domain.EventRecord) error {
	_, err := gw.Run(ctx,
		`INSERT INTO billing_events (id, provider, provider_event_id, event_type, payload, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Provider,
		event.ProviderEventID,
		event.EventType,
		string(event.Payload),
		event.ProcessedAt,
	)
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateEvent
	}
	return err
}

func (r *repo) FindEvent(ctx context.Context, gw db.Gateway, provider, providerEventID string) (*domain.EventRecord, error) {
	var item domain.EventRecord
	found, err := gw.Get(ctx, &item,
		`SELECT id, provider, provider_event_id, event_type, payload, processed_at
		 FROM billing_events
		 WHERE provider = ? AND provider_event_id = ?
		 LIMIT 1`,
		provider,
		providerEventID,
	)
	if err != nil {
		return nil, err
	}
	if !found || item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
