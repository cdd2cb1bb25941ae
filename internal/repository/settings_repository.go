package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ideasystemx-go/internal/model"
	"ideasystemx-go/pkg/errs"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository 接口定义了单行设置的读写方法。
type SettingsRepository interface {
	// Get 返回已保存的设置，从未保存过时返回默认值。
	Get(ctx context.Context) (*model.Settings, error)
	// Save 整体替换已保存的设置。
	Save(ctx context.Context, s *model.Settings) error
}

type settingsRepository struct {
	db       *gorm.DB
	defaults model.Settings
}

// NewSettingsRepository 创建一个新的 SettingsRepository 实例，defaults 在没有记录时返回。
func NewSettingsRepository(db *gorm.DB, defaults model.Settings) SettingsRepository {
	return &settingsRepository{db: db, defaults: defaults}
}

func (r *settingsRepository) Get(ctx context.Context) (*model.Settings, error) {
	var record model.SettingsRecord
	err := r.db.WithContext(ctx).First(&record, model.SettingsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s := r.defaults
		return &s, nil
	}
	if err != nil {
		return nil, err
	}

	var s model.Settings
	if err := json.Unmarshal(record.Settings, &s); err != nil {
		return nil, fmt.Errorf("decode settings: %v: %w", err, errs.ErrPersistence)
	}
	return &s, nil
}

func (r *settingsRepository) Save(ctx context.Context, s *model.Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	record := model.SettingsRecord{ID: model.SettingsRowID, Settings: data}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"settings_json", "updated_at"}),
	}).Create(&record).Error
}
