package repo

import (
	"context"

	"github.com/manav03panchal/taskmap/internal/logging"
	"github.com/manav03panchal/taskmap/internal/model"
)

// CategoryRepo provides operations for Category entities.
type CategoryRepo struct {
	*Repo[*model.Category]
}

// Update merges patch into the category and stamps updatedAt.
func (r *CategoryRepo) Update(ctx context.Context, id string, patch model.Record) (bool, error) {
	return r.Repo.Update(ctx, id, stamp(patch))
}

// GetByType returns categories of the given type.
func (r *CategoryRepo) GetByType(ctx context.Context, categoryType string) ([]*model.Category, error) {
	return r.ByIndex(ctx, "type", categoryType)
}

// TagRepo provides operations for Tag entities.
type TagRepo struct {
	*Repo[*model.Tag]
}

// GetByColor returns tags with the given color.
func (r *TagRepo) GetByColor(ctx context.Context, color string) ([]*model.Tag, error) {
	return r.ByIndex(ctx, "color", color)
}

// GetByName returns tags with the given name.
func (r *TagRepo) GetByName(ctx context.Context, name string) ([]*model.Tag, error) {
	return r.ByIndex(ctx, "name", name)
}

// SettingsRepo is a key/value view of the settings store. Settings are
// addressed by their key directly; no id is generated.
type SettingsRepo struct {
	db *DB
}

func (r *SettingsRepo) decode(rec model.Record) (*model.Setting, error) {
	return model.FromRecord[model.Setting](rec)
}

// Get returns the setting stored under key, or nil.
func (r *SettingsRepo) Get(ctx context.Context, key string) (*model.Setting, error) {
	rec, err := r.db.backend.Get(ctx, model.StoreSettings, key)
	if err != nil || rec == nil {
		return nil, err
	}
	return r.decode(rec)
}

// Value returns the value stored under key and whether it exists.
func (r *SettingsRepo) Value(ctx context.Context, key string) (any, bool, error) {
	s, err := r.Get(ctx, key)
	if err != nil || s == nil {
		return nil, false, err
	}
	return s.Value, true, nil
}

// Set creates or replaces the setting under key.
func (r *SettingsRepo) Set(ctx context.Context, key string, value any, category string) (*model.Setting, error) {
	s := &model.Setting{Key: key, Value: value, Category: category, UpdatedAt: model.NowMillis()}
	rec, err := model.ToRecord(s)
	if err != nil {
		return nil, err
	}

	ok, err := r.db.backend.Update(ctx, model.StoreSettings, key, rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := r.db.backend.Create(ctx, model.StoreSettings, rec); err != nil {
			return nil, err
		}
	}
	logging.DebugContext(ctx, "setting stored",
		logging.KeyID, key,
		"value", logging.MaskValue(key, value))
	return s, nil
}

// Update changes the value of an existing setting. It reports false when
// the key is not set.
func (r *SettingsRepo) Update(ctx context.Context, key string, value any) (bool, error) {
	return r.db.backend.Update(ctx, model.StoreSettings, key, model.Record{
		"value":     value,
		"updatedAt": model.NowMillis(),
	})
}

// Delete removes the setting under key.
func (r *SettingsRepo) Delete(ctx context.Context, key string) (bool, error) {
	return r.db.backend.Delete(ctx, model.StoreSettings, key)
}

// GetAll returns every setting.
func (r *SettingsRepo) GetAll(ctx context.Context) ([]*model.Setting, error) {
	recs, err := r.db.backend.GetAll(ctx, model.StoreSettings)
	if err != nil {
		return nil, err
	}
	return r.decodeAll(recs)
}

// GetByCategory returns the settings in category.
func (r *SettingsRepo) GetByCategory(ctx context.Context, category string) ([]*model.Setting, error) {
	recs, err := r.db.backend.QueryByIndex(ctx, model.StoreSettings, "category", category)
	if err != nil {
		return nil, err
	}
	return r.decodeAll(recs)
}

func (r *SettingsRepo) decodeAll(recs []model.Record) ([]*model.Setting, error) {
	out := make([]*model.Setting, 0, len(recs))
	for _, rec := range recs {
		s, err := r.decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
