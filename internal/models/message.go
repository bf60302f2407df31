package models

// MessageStatus is the delivery lifecycle of a message: sent -> delivered -> seen.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusSeen      MessageStatus = "seen"
)

var statusOrder = []MessageStatus{StatusSent, StatusDelivered, StatusSeen}

// Rank orders statuses; unknown values rank below sent.
func (s MessageStatus) Rank() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s MessageStatus) Valid() bool {
	return s.Rank() >= 0
}

// CanAdvanceTo reports whether moving from s to next is a forward transition.
// Skipping delivered (sent -> seen) is allowed.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	return next.Valid() && next.Rank() > s.Rank()
}

// Below returns every status that may be advanced to s.
func (s MessageStatus) Below() []MessageStatus {
	r := s.Rank()
	if r <= 0 {
		return nil
	}
	out := make([]MessageStatus, r)
	copy(out, statusOrder[:r])
	return out
}

// Message is one entry of a thread's append-only log.
// Text and ImageURL are immutable; Status only moves forward and Deleted is a
// one-way tombstone.
type Message struct {
	ID          string        `gorm:"primaryKey" json:"id"`
	ThreadID    string        `gorm:"not null;index:idx_thread_created,priority:1" json:"threadId"`
	SenderID    string        `gorm:"not null" json:"senderId"`
	RecipientID string        `gorm:"not null;index" json:"recipientId"`
	Text        *string       `gorm:"type:text" json:"text"`
	ImageURL    *string       `gorm:"type:text" json:"image"`
	Status      MessageStatus `gorm:"type:varchar(16);not null;default:sent" json:"status"`
	Deleted     bool          `gorm:"not null;default:false" json:"deleted"`
	// CreatedAt is unix milliseconds and fixes insertion order inside the thread.
	CreatedAt int64 `gorm:"autoCreateTime:milli;not null;index:idx_thread_created,priority:2" json:"createdAt"`
}

// Visible returns a copy safe to hand to clients: tombstoned messages lose
// their content but keep their identity and position.
func (m Message) Visible() Message {
	if m.Deleted {
		m.Text = nil
		m.ImageURL = nil
	}
	return m
}
