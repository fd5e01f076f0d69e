// User and profile apply rules: idempotent upserts keyed by user id and the
// full-replace semantics of the viewable-user set.
package cache

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tidewatch/tidesync/domain"
)

// UpsertProfile writes p keyed by its user id and guarantees a User row
// exists for it, creating a bare one if needed, in one transaction.
func UpsertProfile(db *gorm.DB, p *domain.Profile) error {
	return db.Transaction(func(tx *gorm.DB) error {
		// The user row must exist first: profiles reference users and the
		// cache runs with foreign keys enforced.
		var u domain.User
		err := tx.Where("user_id = ?", p.UserID).First(&u).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = tx.Create(&domain.User{UserID: p.UserID}).Error
		}
		if err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(p).Error
	})
}

// UpsertUser writes user (and its email rows) keyed by user id.
func UpsertUser(db *gorm.DB, user *domain.User) error {
	return db.Transaction(func(tx *gorm.DB) error {
		return upsertUser(tx, user)
	})
}

// GetUser fetches a user by id with profile, emails and viewable ids
// loaded. Returns gorm.ErrRecordNotFound if absent.
func GetUser(db *gorm.DB, userID string) (*domain.User, error) {
	var u domain.User
	err := db.
		Preload("Profile").
		Preload("Emails").
		Preload("ViewableUserIDs", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") }).
		Where("user_id = ?", userID).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserExists reports whether a User row with the given id is cached.
func UserExists(db *gorm.DB, userID string) (bool, error) {
	var n int64
	err := db.Model(&domain.User{}).Where("user_id = ?", userID).Count(&n).Error
	return n > 0, err
}

// ReplaceViewableUserIDs replaces the viewable-user set of userID with ids,
// preserving order. The old set is fully discarded, never merged.
func ReplaceViewableUserIDs(db *gorm.DB, userID string, ids []string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&domain.SharedUserID{}).Error; err != nil {
			return err
		}
		for i, id := range ids {
			row := domain.SharedUserID{UserID: userID, Value: id, Position: i}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
