package postersync

import (
	"errors"
	"testing"
	"time"
)

type fakeRecord struct {
	id         int64
	sourceTime *time.Time
	invalid    bool
}

func (r fakeRecord) ExternalId() int64      { return r.id }
func (r fakeRecord) SourceTime() *time.Time { return r.sourceTime }
func (r fakeRecord) Validate() error {
	if r.invalid {
		return errors.New("invalid record")
	}
	return nil
}

func ts(s string) *time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestPartitionBatchSplitsCreatesAndUpdates(t *testing.T) {
	stored := map[int64]*time.Time{
		2: ts("2026-08-01 10:00:00"),
		3: ts("2026-08-01 10:00:00"),
	}
	batch := []fakeRecord{
		{id: 1, sourceTime: ts("2026-08-02 09:00:00")},
		{id: 2, sourceTime: ts("2026-08-02 09:00:00")},
		{id: 3, sourceTime: ts("2026-07-20 09:00:00")},
	}

	creates, updates, stats := partitionBatch(batch, stored)

	if len(creates) != 1 || creates[0].id != 1 {
		t.Fatalf("expected create of id 1, got %+v", creates)
	}
	if len(updates) != 1 || updates[0].id != 2 {
		t.Fatalf("expected update of id 2, got %+v", updates)
	}
	if stats.Processed != 3 || stats.Created != 1 || stats.Updated != 1 || stats.Skipped != 1 || stats.Errors != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestPartitionBatchStrictlyNewerRule(t *testing.T) {
	storedAt := ts("2026-08-01 10:00:00")
	stored := map[int64]*time.Time{1: storedAt}

	// Same timestamp is not newer: skip.
	_, updates, stats := partitionBatch([]fakeRecord{{id: 1, sourceTime: storedAt}}, stored)
	if len(updates) != 0 || stats.Skipped != 1 {
		t.Fatalf("equal source time should skip, got updates=%d stats=%+v", len(updates), stats)
	}

	// No source time on either side: nothing to compare, accept.
	_, updates, stats = partitionBatch([]fakeRecord{{id: 1}}, stored)
	if len(updates) != 1 || stats.Updated != 1 {
		t.Fatalf("missing source time should update, got updates=%d stats=%+v", len(updates), stats)
	}
}

func TestPartitionBatchCountsInvalidAndDuplicate(t *testing.T) {
	batch := []fakeRecord{
		{id: 1, invalid: true},
		{id: 2},
		{id: 2},
	}
	creates, updates, stats := partitionBatch(batch, map[int64]*time.Time{})

	if len(creates) != 1 || creates[0].id != 2 {
		t.Fatalf("expected single create of id 2, got %+v", creates)
	}
	if len(updates) != 0 {
		t.Fatalf("expected no updates, got %+v", updates)
	}
	if stats.Errors != 1 || stats.Skipped != 1 || stats.Created != 1 || stats.Processed != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSkipStale(t *testing.T) {
	older := ts("2026-08-01 10:00:00")
	newer := ts("2026-08-02 10:00:00")

	if skipStale(newer, older) {
		t.Fatal("newer incoming must not be skipped")
	}
	if !skipStale(older, newer) {
		t.Fatal("older incoming must be skipped")
	}
	if !skipStale(older, older) {
		t.Fatal("equal incoming must be skipped")
	}
	if skipStale(nil, older) || skipStale(newer, nil) {
		t.Fatal("missing source time on either side must not skip")
	}
}

func TestNormalizeModulesEnforcesDependencies(t *testing.T) {
	modules := NormalizeModules(SyncModules{Transactions: true})
	if !modules.Spots || !modules.Products || !modules.Clients {
		t.Fatalf("transactions sync must pull in its dependencies, got %+v", modules)
	}

	modules = NormalizeModules(SyncModules{Clients: true})
	if modules.Spots || modules.Products || modules.Transactions {
		t.Fatalf("clients-only sync must stay clients-only, got %+v", modules)
	}
}
