package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/resume-screener/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserDataStore holds one UserRecord per user. Mutate is an atomic
// read-modify-write: concurrent mutations of the same user are serialized
// and none is lost. A missing user is created empty before fn runs.
type UserDataStore interface {
	Find(ctx context.Context, userID string) (*models.UserRecord, error)
	Mutate(ctx context.Context, userID string, fn func(*models.UserRecord) error) error
}

type postgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) UserDataStore {
	return &postgresStore{db: db}
}

func (s *postgresStore) Find(ctx context.Context, userID string) (*models.UserRecord, error) {
	var row models.UserData
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user data: %w", err)
	}
	return models.DecodeUserRecord(row.Data)
}

func (s *postgresStore) Mutate(ctx context.Context, userID string, fn func(*models.UserRecord) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.UserData{UserID: userID, Data: datatypes.JSON("{}")}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return fmt.Errorf("failed to create user data: %w", err)
		}

		var row models.UserData
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&row).Error; err != nil {
			return fmt.Errorf("failed to lock user data: %w", err)
		}

		rec, err := models.DecodeUserRecord(row.Data)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}

		data, err := rec.Encode()
		if err != nil {
			return err
		}

		if err := tx.Model(&models.UserData{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"data":       datatypes.JSON(data),
				"updated_at": time.Now(),
			}).Error; err != nil {
			return fmt.Errorf("failed to update user data: %w", err)
		}
		return nil
	})
}
