// Wire codec: the JSON shapes the server speaks and the two date layouts it
// uses. The general layout (millisecond precision) applies to user and
// profile payloads; the message layout (second precision) applies to notes
// and device data. The two must never be conflated.
package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidewatch/tidesync/domain"
)

const (
	// defaultDateLayout is the general server date format.
	defaultDateLayout = "2006-01-02 15:04:05.000-07:00"

	// messageDateLayout is the distinct format used by the message and
	// upload endpoints.
	messageDateLayout = "2006-01-02T15:04:05-07:00"
)

// wireUser is the sign-in response body.
type wireUser struct {
	UserID   string   `json:"userid"`
	Username string   `json:"username"`
	Emails   []string `json:"emails"`
}

func (w wireUser) toDomain() *domain.User {
	u := &domain.User{UserID: w.UserID, Username: w.Username}
	for _, addr := range w.Emails {
		u.Emails = append(u.Emails, domain.EmailAddress{UserID: w.UserID, Address: addr})
	}
	return u
}

// wireProfile is the metadata response body. The patient sub-object is
// flattened into the domain Profile.
type wireProfile struct {
	FullName string `json:"fullName"`
	Patient  struct {
		Birthday      string `json:"birthday"`
		DiagnosisDate string `json:"diagnosisDate"`
		About         string `json:"about"`
	} `json:"patient"`
}

func (w wireProfile) toDomain(userID string) *domain.Profile {
	return &domain.Profile{
		UserID:        userID,
		FullName:      w.FullName,
		Birthday:      w.Patient.Birthday,
		DiagnosisDate: w.Patient.DiagnosisDate,
		About:         w.Patient.About,
	}
}

// wireNote is one note as it travels on the wire. The author's full name
// lives in a nested user object on listing responses.
type wireNote struct {
	ID          string `json:"id,omitempty"`
	GroupID     string `json:"groupid"`
	UserID      string `json:"userid"`
	MessageText string `json:"messagetext"`
	Timestamp   string `json:"timestamp"`
	User        *struct {
		FullName string `json:"fullName"`
	} `json:"user,omitempty"`
}

// encodeNote renders a note in the message date format, ready to wrap in a
// {"message": ...} envelope. The id is omitted when the server has not
// assigned one yet.
func encodeNote(n *domain.Note) ([]byte, error) {
	w := wireNote{
		ID:          n.ID,
		GroupID:     n.GroupID,
		UserID:      n.UserID,
		MessageText: n.MessageText,
		Timestamp:   n.Timestamp.Format(messageDateLayout),
	}
	return json.Marshal(w)
}

// decodeNote parses one message fragment of a listing response into a
// domain note, stamping the denormalized author name from the nested user
// object when present. A fragment without an id is rejected: a note is
// never persisted before its id is known.
func decodeNote(fragment string) (domain.Note, error) {
	var w wireNote
	if err := json.Unmarshal([]byte(fragment), &w); err != nil {
		return domain.Note{}, err
	}
	if w.ID == "" {
		return domain.Note{}, ErrMissingNoteID
	}
	ts, err := time.Parse(messageDateLayout, w.Timestamp)
	if err != nil {
		return domain.Note{}, fmt.Errorf("note %s: %w", w.ID, err)
	}
	n := domain.Note{
		ID:          w.ID,
		GroupID:     w.GroupID,
		UserID:      w.UserID,
		MessageText: w.MessageText,
		Timestamp:   ts,
	}
	if w.User != nil {
		n.AuthorFullName = w.User.FullName
	}
	return n, nil
}

// messageEnvelope wraps note payloads the way the send and edit endpoints
// expect them.
type messageEnvelope struct {
	Message json.RawMessage `json:"message"`
}

func wrapMessage(payload []byte) ([]byte, error) {
	return json.Marshal(messageEnvelope{Message: payload})
}

// wireDeviceData is one upload record in the message date format.
type wireDeviceData struct {
	UploadID string  `json:"uploadId,omitempty"`
	DeviceID string  `json:"deviceId,omitempty"`
	Type     string  `json:"type"`
	Time     string  `json:"time"`
	Value    float64 `json:"value,omitempty"`
	Units    string  `json:"units,omitempty"`
}

func encodeDeviceData(batch []domain.DeviceData) ([]byte, error) {
	out := make([]wireDeviceData, 0, len(batch))
	for _, d := range batch {
		out = append(out, wireDeviceData{
			UploadID: d.UploadID,
			DeviceID: d.DeviceID,
			Type:     d.Type,
			Time:     d.Time.Format(messageDateLayout),
			Value:    d.Value,
			Units:    d.Units,
		})
	}
	return json.Marshal(out)
}
