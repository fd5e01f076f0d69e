// Note apply rules: upsert-by-id with full hashtag recompute, delete-by-id,
// and the atomic range swap used by listing.
package cache

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tidewatch/tidesync/domain"
	"github.com/tidewatch/tidesync/hashtag"
)

// UpsertNote writes n keyed by its id and replaces its hashtag set with the
// tags extracted from the current message text, all in one transaction.
// tagOwnerID stamps the recomputed tags (the note author on post, the
// listing target on fetch). The note's Hashtags field is updated to the
// stored set.
func UpsertNote(db *gorm.DB, n *domain.Note, tagOwnerID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		return upsertNote(tx, n, tagOwnerID)
	})
}

// DeleteNote removes exactly the note matching id and its owned hashtags.
// Deleting an id the cache never held is not an error.
func DeleteNote(db *gorm.DB, id string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("note_id = ?", id).Delete(&domain.Hashtag{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Note{}).Error
	})
}

// ReplaceNotesInRange applies one listing response as a single atomic swap:
// within one transaction it deletes every hashtag owned by tagOwnerID,
// evicts the group's notes with timestamp in (from, to], then upserts each
// parsed note and recomputes its tags. Callers parse the full response
// before calling, so a malformed fragment leaves the cache untouched.
func ReplaceNotesInRange(db *gorm.DB, groupID string, from, to time.Time, notes []domain.Note, tagOwnerID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		// Full recompute policy: the owner's tags are rebuilt from scratch.
		if err := tx.Where("owner_id = ?", tagOwnerID).Delete(&domain.Hashtag{}).Error; err != nil {
			return err
		}
		// Stale-range eviction, in case notes were deleted server-side.
		if err := tx.
			Where("group_id = ? AND timestamp > ? AND timestamp <= ?", groupID, from, to).
			Delete(&domain.Note{}).Error; err != nil {
			return err
		}
		for i := range notes {
			if err := upsertNote(tx, &notes[i], tagOwnerID); err != nil {
				return err
			}
		}
		return nil
	})
}

// NotesInRange returns the cached notes of a group with timestamp in
// (from, to], hashtags loaded, ordered by timestamp then id.
func NotesInRange(db *gorm.DB, groupID string, from, to time.Time) ([]domain.Note, error) {
	var out []domain.Note
	err := db.
		Preload("Hashtags").
		Where("group_id = ? AND timestamp > ? AND timestamp <= ?", groupID, from, to).
		Order("timestamp ASC, id ASC").
		Find(&out).Error
	return out, err
}

func upsertNote(tx *gorm.DB, n *domain.Note, tagOwnerID string) error {
	n.Hashtags = nil
	if err := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(n).Error; err != nil {
		return err
	}
	if err := tx.Where("note_id = ?", n.ID).Delete(&domain.Hashtag{}).Error; err != nil {
		return err
	}
	for _, tag := range hashtag.Extract(n.MessageText) {
		h := domain.Hashtag{NoteID: n.ID, OwnerID: tagOwnerID, Tag: tag}
		if err := tx.Create(&h).Error; err != nil {
			return err
		}
		n.Hashtags = append(n.Hashtags, h)
	}
	return nil
}
