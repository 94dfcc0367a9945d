package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fintrack/internal/clock"
	"github.com/smallbiznis/fintrack/internal/finance/domain"
	"github.com/smallbiznis/fintrack/pkg/db"
)

// hooks run inside the mutation's transaction, before the row is written.
type hooks[T any] struct {
	create func(ctx context.Context, tx db.Gateway, rec *T) error
	update func(ctx context.Context, tx db.Gateway, old, rec *T) error
	delete func(ctx context.Context, tx db.Gateway, old *T) error
	// list decorates rows after they are read.
	list func(ctx context.Context, userID snowflake.ID, filter domain.Filter, rows []T) error
	// filter completes a list filter before the query runs.
	filter func(filter domain.Filter) domain.Filter
}

type resource[T any, P interface {
	*T
	domain.Record
}] struct {
	db    db.Gateway
	clock clock.Clock
	genID *snowflake.Node
	store domain.Store[T]
	hooks hooks[T]
}

func (r *resource[T, P]) today() string {
	return r.clock.Now().UTC().Format(domain.DateLayout)
}

func (r *resource[T, P]) List(ctx context.Context, userID snowflake.ID, filter domain.Filter) ([]T, error) {
	if r.hooks.filter != nil {
		filter = r.hooks.filter(filter)
	}
	rows, err := r.store.List(ctx, r.db, userID, filter)
	if err != nil {
		return nil, err
	}
	if r.hooks.list != nil {
		if err := r.hooks.list(ctx, userID, filter, rows); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (r *resource[T, P]) Get(ctx context.Context, userID, id snowflake.ID) (*T, error) {
	rec, err := r.store.Get(ctx, r.db, userID, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (r *resource[T, P]) Create(ctx context.Context, userID snowflake.ID, rec *T) (*T, error) {
	now := r.clock.Now()
	p := P(rec)
	meta := p.Meta()
	meta.ID = 0
	p.Normalize(r.today())
	if err := p.Validate(); err != nil {
		return nil, err
	}

	meta.ID = r.genID.Generate()
	meta.UserID = userID
	meta.CreatedAt = now
	meta.UpdatedAt = now

	err := r.db.Transaction(ctx, func(tx db.Gateway) error {
		if r.hooks.create != nil {
			if err := r.hooks.create(ctx, tx, rec); err != nil {
				return err
			}
		}
		return r.store.Insert(ctx, tx, rec)
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, userID, meta.ID)
}

// Update replaces every writable column of the row with rec.
func (r *resource[T, P]) Update(ctx context.Context, userID, id snowflake.ID, rec *T) (*T, error) {
	err := r.db.Transaction(ctx, func(tx db.Gateway) error {
		old, err := r.store.Get(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if old == nil {
			return domain.ErrNotFound
		}

		p := P(rec)
		meta := p.Meta()
		meta.ID = id
		meta.UserID = userID
		meta.CreatedAt = P(old).Meta().CreatedAt
		meta.UpdatedAt = r.clock.Now()
		p.Normalize(r.today())
		if err := p.Validate(); err != nil {
			return err
		}

		if r.hooks.update != nil {
			if err := r.hooks.update(ctx, tx, old, rec); err != nil {
				return err
			}
		}
		ok, err := r.store.Update(ctx, tx, rec)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, userID, id)
}

func (r *resource[T, P]) Delete(ctx context.Context, userID, id snowflake.ID) error {
	return r.db.Transaction(ctx, func(tx db.Gateway) error {
		old, err := r.store.Get(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if old == nil {
			return domain.ErrNotFound
		}
		if r.hooks.delete != nil {
			if err := r.hooks.delete(ctx, tx, old); err != nil {
				return err
			}
		}
		ok, err := r.store.Delete(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound
		}
		return nil
	})
}
