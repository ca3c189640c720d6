package postersync

import (
	"context"

	"gorm.io/gorm"
)

// existingIdSet answers one bulk existence question: which of the referenced
// external ids are already in the given table. Weak links for everything
// else stay nil and heal on a later run once the referenced entity lands.
func existingIdSet(ctx context.Context, db *gorm.DB, model interface{}, idColumn string, ids []int64) (map[int64]struct{}, error) {
	set := make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return set, nil
	}
	var found []int64
	if err := db.WithContext(ctx).Model(model).
		Where(idColumn+" IN ?", ids).
		Pluck(idColumn, &found).Error; err != nil {
		return nil, err
	}
	for _, id := range found {
		set[id] = struct{}{}
	}
	return set, nil
}

// refOrNil turns a raw external id into a weak FK value: the id itself when
// the target exists, nil otherwise. Zero ids (the API's "no client") are
// always nil.
func refOrNil(id int64, existing map[int64]struct{}) *int64 {
	if id == 0 {
		return nil
	}
	if _, ok := existing[id]; !ok {
		return nil
	}
	ref := id
	return &ref
}

func collectRefIds(add func(collect func(int64))) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	add(func(id int64) {
		if id == 0 {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	})
	return ids
}
