package engine

import (
	"context"
	"errors"
)

// withTransaction runs fn inside the ambient transaction when one is
// open. Otherwise it opens one and owns the boundary: commit on success,
// rollback on error or panic. A rollback failure is joined to the
// original error.
func (m *Mapper) withTransaction(ctx context.Context, fn func() error) (err error) {
	if m.db.InTransaction() {
		return fn()
	}

	if err := m.db.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = m.db.Rollback()
			panic(p)
		}
	}()

	if err := fn(); err != nil {
		if rbErr := m.db.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return m.db.Commit()
}
