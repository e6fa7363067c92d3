package models

import "time"

// Conversation is the metadata for a direct thread between exactly two
// participants. ParticipantA/ParticipantB are always stored in sorted order
// (see services.ParticipantKey); the sorted pair is the dedup key, so at most
// one conversation exists per unordered pair.
type Conversation struct {
	ConversationID     string    `gorm:"primaryKey;type:varchar(36)" json:"conversation_id"`
	ParticipantA       string    `gorm:"type:varchar(64);index:idx_participant_pair" json:"participant_a"`
	ParticipantB       string    `gorm:"type:varchar(64);index:idx_participant_pair" json:"participant_b"`
	CreatedAt          time.Time `json:"created_at"`
	LastMessageAt      time.Time `gorm:"index" json:"last_message_at"`
	LastMessagePreview string    `json:"last_message_preview"`
	// UnreadBy holds the participants with at least one unread message.
	// A subset of {ParticipantA, ParticipantB}, persisted as JSON.
	UnreadBy []string `gorm:"serializer:json;type:json" json:"unread_by"`
}

// Participants returns the pair in stored (canonical) order.
func (c *Conversation) Participants() []string {
	return []string{c.ParticipantA, c.ParticipantB}
}

// HasParticipant reports whether id is one of the two participants.
func (c *Conversation) HasParticipant(id string) bool {
	return id == c.ParticipantA || id == c.ParticipantB
}

// OtherParticipant returns the counterpart of id, or id itself if id is not
// a participant.
func (c *Conversation) OtherParticipant(id string) string {
	if id == c.ParticipantA {
		return c.ParticipantB
	}
	if id == c.ParticipantB {
		return c.ParticipantA
	}
	return id
}

// IsUnreadBy reports whether id currently has unread messages here.
func (c *Conversation) IsUnreadBy(id string) bool {
	for _, u := range c.UnreadBy {
		if u == id {
			return true
		}
	}
	return false
}

// MarkUnreadFor adds id to the unread set if not already present.
func (c *Conversation) MarkUnreadFor(id string) {
	if c.IsUnreadBy(id) {
		return
	}
	c.UnreadBy = append(c.UnreadBy, id)
}

// ClearUnreadFor removes id from the unread set.
func (c *Conversation) ClearUnreadFor(id string) {
	kept := c.UnreadBy[:0]
	for _, u := range c.UnreadBy {
		if u != id {
			kept = append(kept, u)
		}
	}
	c.UnreadBy = kept
}
