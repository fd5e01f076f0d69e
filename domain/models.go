// Package domain defines the persistence models for the local sync cache:
// the single authenticated session, users and their profiles, notes with
// their derived hashtags, and the viewable-user grants. These types are
// mapped with GORM and form the core data layer of the SDK.
package domain

import (
	"time"
)

// SessionKey is the fixed primary key of the sole Session row. The cache
// holds at most one session at any time; using a constant key makes the
// singleton constraint a database fact rather than a convention.
const SessionKey = "session"

// Session represents the single active authenticated context: the server
// token plus the user it belongs to.
//
// Fields:
//   - Key: constant primary key (always SessionKey).
//   - SessionID: server-issued token, delivered via response header. A
//     session without a token is invalid and is never persisted.
//   - UserID: owner reference, set once the sign-in body has been parsed.
type Session struct {
	Key       string    `json:"-"          gorm:"type:varchar(16);primaryKey"`
	SessionID string    `json:"-"          gorm:"type:varchar(256);not null"`
	UserID    string    `json:"userid"     gorm:"type:varchar(64);index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// User is a person known to the cache, keyed by the server-assigned user id.
// Rows are upserted idempotently by UserID; the viewable-user set is fully
// replaced (never merged) on each successful group fetch.
type User struct {
	UserID   string `json:"userid"   gorm:"type:varchar(64);primaryKey"`
	Username string `json:"username" gorm:"type:varchar(255)"`

	// Emails holds the addresses reported by the server for this account.
	Emails []EmailAddress `json:"emails" gorm:"foreignKey:UserID;references:UserID;constraint:OnDelete:CASCADE"`

	// Profile is the one-to-one metadata record, linked by UserID.
	Profile *Profile `json:"profile,omitempty" gorm:"foreignKey:UserID;references:UserID;constraint:OnDelete:CASCADE"`

	// ViewableUserIDs lists the ids this user is allowed to view, in the
	// order the server reported them.
	ViewableUserIDs []SharedUserID `json:"viewable_user_ids" gorm:"foreignKey:UserID;references:UserID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// EmailAddress is a single address owned by a user.
type EmailAddress struct {
	ID      uint   `json:"-"       gorm:"primaryKey;autoIncrement"`
	UserID  string `json:"-"       gorm:"type:varchar(64);not null;index"`
	Address string `json:"address" gorm:"type:varchar(255);not null"`
}

// TableName returns the database table name for EmailAddress.
func (EmailAddress) TableName() string { return "email_addresses" }

// Profile carries the display metadata for a user, upserted keyed on UserID.
// The patient sub-object of the wire format is flattened into columns here.
type Profile struct {
	UserID        string `json:"userid"         gorm:"type:varchar(64);primaryKey"`
	FullName      string `json:"fullName"       gorm:"type:varchar(255)"`
	Birthday      string `json:"birthday,omitempty"      gorm:"type:varchar(32)"`
	DiagnosisDate string `json:"diagnosisDate,omitempty" gorm:"type:varchar(32)"`
	About         string `json:"about,omitempty"         gorm:"type:text"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// Note is a short text message posted to a group. The ID is server-assigned;
// a note is never persisted before its id is known. Rows are upserted keyed
// on ID, and the owned hashtag set is recomputed from MessageText every time
// the text is written from network data.
//
// AuthorFullName is denormalized from the nested user object of the listing
// response so the cache stays useful offline.
type Note struct {
	ID             string    `json:"id"          gorm:"type:varchar(64);primaryKey"`
	GroupID        string    `json:"groupid"     gorm:"type:varchar(64);not null;index:idx_group_notes,priority:1"`
	UserID         string    `json:"userid"      gorm:"type:varchar(64);not null;index"`
	MessageText    string    `json:"messagetext" gorm:"type:text;not null"`
	Timestamp      time.Time `json:"timestamp"   gorm:"index:idx_group_notes,priority:2"`
	AuthorFullName string    `json:"author_full_name" gorm:"type:varchar(255)"`

	// Hashtags are derived purely from MessageText. They are replaced, not
	// merged, whenever the note text arrives from the network.
	Hashtags []Hashtag `json:"hashtags" gorm:"foreignKey:NoteID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for Note.
func (Note) TableName() string { return "notes" }

// Hashtag is a single "#token" extracted from a note's text. OwnerID is the
// user id whose listing produced the tag, which lets a re-list evict all of
// that user's tags in one sweep before recomputing.
type Hashtag struct {
	ID      uint   `json:"-"        gorm:"primaryKey;autoIncrement"`
	NoteID  string `json:"-"        gorm:"type:varchar(64);not null;index"`
	OwnerID string `json:"owner_id" gorm:"type:varchar(64);not null;index"`
	Tag     string `json:"tag"      gorm:"type:varchar(255);not null"`
}

// TableName returns the database table name for Hashtag.
func (Hashtag) TableName() string { return "hashtags" }

// SharedUserID is one member of a user's viewable-user set. Position
// preserves the server's reported order.
type SharedUserID struct {
	ID       uint   `json:"-"     gorm:"primaryKey;autoIncrement"`
	UserID   string `json:"-"     gorm:"type:varchar(64);not null;index"`
	Value    string `json:"value" gorm:"type:varchar(64);not null"`
	Position int    `json:"-"     gorm:"not null"`
}

// TableName returns the database table name for SharedUserID.
func (SharedUserID) TableName() string { return "shared_user_ids" }

// DeviceData is one record of an upload batch. It is sent to the upload
// host and never cached locally; the server answers with the indices of
// duplicates it already held.
type DeviceData struct {
	UploadID string    `json:"uploadId,omitempty"`
	DeviceID string    `json:"deviceId,omitempty"`
	Type     string    `json:"type"`
	Time     time.Time `json:"time"`
	Value    float64   `json:"value,omitempty"`
	Units    string    `json:"units,omitempty"`
}
