package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simp-lee/rentadmin/internal/domain"
)

// PagePreference is one persisted pagination state.
type PagePreference struct {
	SessionID string `gorm:"primaryKey;size:64"`
	Resource  string `gorm:"primaryKey;size:64"`
	Page      int    `gorm:"not null"`
	PageSize  int    `gorm:"not null"`
	Filter    string `gorm:"size:64;not null;default:''"`
	UpdatedAt time.Time
}

// GormStore keeps preferences in a SQL database (sqlite or postgres).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the preference table and returns a store on db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("state: database is nil")
	}
	if err := db.AutoMigrate(&PagePreference{}); err != nil {
		return nil, fmt.Errorf("migrate page preferences: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Load(ctx context.Context, sessionID, resource string) (domain.PageRequest, bool, error) {
	var pref PagePreference
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND resource = ?", sessionID, resource).
		First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PageRequest{}, false, nil
	}
	if err != nil {
		return domain.PageRequest{}, false, domain.NewAppError(domain.CodeInternal, "failed to load page preference", err)
	}
	return domain.PageRequest{Page: pref.Page, PageSize: pref.PageSize, Filter: pref.Filter}, true, nil
}

func (s *GormStore) Save(ctx context.Context, sessionID, resource string, req domain.PageRequest) error {
	if err := validate(sessionID, resource, req); err != nil {
		return err
	}
	pref := PagePreference{
		SessionID: sessionID,
		Resource:  resource,
		Page:      req.Page,
		PageSize:  req.PageSize,
		Filter:    req.Filter,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "resource"}},
		DoUpdates: clause.AssignmentColumns([]string{"page", "page_size", "filter", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		return domain.NewAppError(domain.CodeInternal, "failed to save page preference", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
