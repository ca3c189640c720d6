package postersync

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"gorm.io/gorm"
)

const createBatchSize = 200

// SyncRecord is any POS entity the batch reconciler can land: it carries its
// source primary key and, when the API provides one, a source-side modified
// timestamp used for the strictly-newer update rule.
type SyncRecord interface {
	ExternalId() int64
	SourceTime() *time.Time
	Validate() error
}

type ReconcileStats struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

func (s *ReconcileStats) add(other ReconcileStats) {
	s.Processed += other.Processed
	s.Created += other.Created
	s.Updated += other.Updated
	s.Skipped += other.Skipped
	s.Errors += other.Errors
}

func (s ReconcileStats) total() int {
	return s.Created + s.Updated
}

// partitionBatch splits a batch into creates and updates against the stored
// source times. A record already present is updated only when its source
// time is strictly newer than the stored one; a record without a source time
// on either side is always accepted, since there is nothing to compare.
func partitionBatch[T SyncRecord](batch []T, stored map[int64]*time.Time) (creates []T, updates []T, stats ReconcileStats) {
	seen := make(map[int64]struct{}, len(batch))
	for _, rec := range batch {
		stats.Processed++
		if err := rec.Validate(); err != nil {
			stats.Errors++
			continue
		}
		id := rec.ExternalId()
		if _, dup := seen[id]; dup {
			stats.Skipped++
			continue
		}
		seen[id] = struct{}{}

		storedTime, exists := stored[id]
		if !exists {
			creates = append(creates, rec)
			stats.Created++
			continue
		}
		if skipStale(rec.SourceTime(), storedTime) {
			stats.Skipped++
			continue
		}
		updates = append(updates, rec)
		stats.Updated++
	}
	return creates, updates, stats
}

// skipStale implements the strictly-newer rule: when both sides carry a
// source time, an incoming record at or before the stored time is a no-op.
func skipStale(incoming, stored *time.Time) bool {
	if incoming == nil || stored == nil {
		return false
	}
	return !incoming.After(*stored)
}

// reconcileEntities lands one batch: a single IN lookup of external ids and
// stored source times, partition, bulk insert of the new rows and a per-row
// update of the accepted candidates. A failing update is counted against the
// batch instead of aborting it.
func reconcileEntities[T SyncRecord](ctx context.Context, db *gorm.DB, idColumn string, batch []T, applyUpdate func(tx *gorm.DB, rec T) error) (ReconcileStats, error) {
	if len(batch) == 0 {
		return ReconcileStats{}, nil
	}

	ids := make([]int64, 0, len(batch))
	for _, rec := range batch {
		ids = append(ids, rec.ExternalId())
	}

	stored, err := storedSourceTimes[T](ctx, db, idColumn, ids)
	if err != nil {
		return ReconcileStats{}, err
	}

	creates, updates, stats := partitionBatch(batch, stored)

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(creates) > 0 {
			if err := tx.CreateInBatches(creates, createBatchSize).Error; err != nil {
				return err
			}
		}
		for _, rec := range updates {
			if err := applyUpdate(tx, rec); err != nil {
				stats.Updated--
				stats.Errors++
			}
		}
		return nil
	})
	if err != nil {
		return ReconcileStats{}, err
	}
	return stats, nil
}

type storedRow struct {
	ExternalId      int64
	SourceUpdatedAt *time.Time
}

func storedSourceTimes[T SyncRecord](ctx context.Context, db *gorm.DB, idColumn string, ids []int64) (map[int64]*time.Time, error) {
	var rows []storedRow
	if err := db.WithContext(ctx).Model(newModel[T]()).
		Select(fmt.Sprintf("%s AS external_id, source_updated_at", idColumn)).
		Where(fmt.Sprintf("%s IN ?", idColumn), ids).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	stored := make(map[int64]*time.Time, len(rows))
	for _, row := range rows {
		stored[row.ExternalId] = row.SourceUpdatedAt
	}
	return stored, nil
}

func newModel[T any]() T {
	var zero T
	return reflect.New(reflect.TypeOf(zero).Elem()).Interface().(T)
}
