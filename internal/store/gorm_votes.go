package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CastVote records one vote and bumps the target counter in a single transaction.
// Either both writes commit or neither does. The counter is incremented by the
// database (counter = counter + 1), never from a value read earlier.
func (s *GormStore) CastVote(ctx context.Context, l Ledger, userID, targetID uint) (int, error) {
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 预检查只是为了少触发一次唯一索引冲突，并发下以唯一索引为准
		var existing int64
		if err := tx.Table(l.Table).
			Where("user_id = ? AND "+l.TargetColumn+" = ?", userID, targetID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicate
		}

		if err := tx.Omit(clause.Associations).Create(l.NewRow(userID, targetID)).Error; err != nil {
			return translateError(err)
		}

		res := tx.Table(l.TargetTable).
			Where("id = ?", targetID).
			UpdateColumn(l.Counter, gorm.Expr(l.Counter+" + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		var counts []int
		if err := tx.Table(l.TargetTable).Where("id = ?", targetID).Pluck(l.Counter, &counts).Error; err != nil {
			return err
		}
		if len(counts) == 0 {
			return ErrNotFound
		}
		count = counts[0]
		return nil
	})
	if err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

func (s *GormStore) CountVotes(ctx context.Context, l Ledger, targetID uint) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Table(l.Table).Where(l.TargetColumn+" = ?", targetID).Count(&n).Error
	return int(n), err
}

// ReconcileCounter rewrites the counter from the ledger row count.
// The target row is locked first so concurrent votes serialize behind it.
func (s *GormStore) ReconcileCounter(ctx context.Context, l Ledger, targetID uint) (int, int, error) {
	var before, after int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var counters []int
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Table(l.TargetTable).
			Where("id = ?", targetID).
			Pluck(l.Counter, &counters).Error; err != nil {
			return err
		}
		if len(counters) == 0 {
			return ErrNotFound
		}
		before = counters[0]

		var rows int64
		if err := tx.Table(l.Table).Where(l.TargetColumn+" = ?", targetID).Count(&rows).Error; err != nil {
			return err
		}
		after = int(rows)
		if before == after {
			return nil
		}
		return tx.Table(l.TargetTable).Where("id = ?", targetID).UpdateColumn(l.Counter, after).Error
	})
	if err != nil {
		return 0, 0, translateError(err)
	}
	return before, after, nil
}
