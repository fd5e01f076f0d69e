// Session store: the cache holds zero or one Session row, keyed by the
// constant domain.SessionKey.
package cache

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tidewatch/tidesync/domain"
)

// ErrNoSession is returned when an operation requires an active session and
// the cache holds none.
var ErrNoSession = errors.New("no active session")

// ErrEmptySessionID rejects an attempt to persist a session without a token.
var ErrEmptySessionID = errors.New("session id must not be empty")

// CurrentSessionID returns the token of the sole session row, or "" if the
// cache is unauthenticated.
func CurrentSessionID(db *gorm.DB) (string, error) {
	var s domain.Session
	err := db.Where("key = ?", domain.SessionKey).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return s.SessionID, nil
}

// CurrentUser returns the owner of the sole session row with its profile,
// emails and viewable-user set loaded, or nil if unauthenticated (or the
// session has not been bound to a user yet).
func CurrentUser(db *gorm.DB) (*domain.User, error) {
	var s domain.Session
	err := db.Where("key = ?", domain.SessionKey).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.UserID == "" {
		return nil, nil
	}
	var u domain.User
	err = db.
		Preload("Profile").
		Preload("Emails").
		Preload("ViewableUserIDs", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") }).
		Where("user_id = ?", s.UserID).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// BeginSession atomically deletes any prior session and writes a new one
// holding sessionID. When user is non-nil it is upserted and bound as the
// session owner in the same transaction; pass nil when the owner is not
// known yet (the token arrives in headers before the body is parsed) and
// bind it later with BindSessionUser.
func BeginSession(db *gorm.DB, sessionID string, user *domain.User) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.Session{}).Error; err != nil {
			return err
		}
		s := domain.Session{Key: domain.SessionKey, SessionID: sessionID}
		if user != nil {
			if err := upsertUser(tx, user); err != nil {
				return err
			}
			s.UserID = user.UserID
		}
		return tx.Create(&s).Error
	})
}

// BindSessionUser upserts user and makes it the owner of the existing
// session. Returns ErrNoSession if no session row exists.
func BindSessionUser(db *gorm.DB, user *domain.User) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var s domain.Session
		if err := tx.Where("key = ?", domain.SessionKey).First(&s).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoSession
			}
			return err
		}
		if err := upsertUser(tx, user); err != nil {
			return err
		}
		return tx.Model(&domain.Session{}).
			Where("key = ?", domain.SessionKey).
			Update("user_id", user.UserID).Error
	})
}

// UpdateSessionID mutates the existing session's token in place. It never
// creates a session; with no session present it returns ErrNoSession.
func UpdateSessionID(db *gorm.DB, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	res := db.Model(&domain.Session{}).
		Where("key = ?", domain.SessionKey).
		Update("session_id", sessionID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoSession
	}
	return nil
}

// EndSession deletes the session row, leaving all other entities intact.
func EndSession(db *gorm.DB) error {
	return db.Where("1 = 1").Delete(&domain.Session{}).Error
}

// upsertUser writes user and its owned email rows keyed by user id. Emails
// are replaced wholesale, matching how the server reports them.
func upsertUser(tx *gorm.DB, user *domain.User) error {
	emails := user.Emails
	user.Emails = nil
	defer func() { user.Emails = emails }()

	if err := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(user).Error; err != nil {
		return err
	}
	if err := tx.Where("user_id = ?", user.UserID).Delete(&domain.EmailAddress{}).Error; err != nil {
		return err
	}
	for i := range emails {
		e := domain.EmailAddress{UserID: user.UserID, Address: emails[i].Address}
		if err := tx.Create(&e).Error; err != nil {
			return err
		}
	}
	return nil
}
