package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationUnreadSet(t *testing.T) {
	convo := Conversation{ParticipantA: "alice-9f2c", ParticipantB: "bob-11aa"}

	assert.False(t, convo.IsUnreadBy("bob-11aa"))

	convo.MarkUnreadFor("bob-11aa")
	convo.MarkUnreadFor("bob-11aa")
	assert.Equal(t, []string{"bob-11aa"}, convo.UnreadBy)

	convo.ClearUnreadFor("bob-11aa")
	assert.Empty(t, convo.UnreadBy)

	// clearing an absent entry is a no-op
	convo.ClearUnreadFor("bob-11aa")
	assert.Empty(t, convo.UnreadBy)
}

func TestConversationParticipants(t *testing.T) {
	convo := Conversation{ParticipantA: "alice-9f2c", ParticipantB: "bob-11aa"}

	assert.True(t, convo.HasParticipant("alice-9f2c"))
	assert.False(t, convo.HasParticipant("carol-77aa"))
	assert.Equal(t, "bob-11aa", convo.OtherParticipant("alice-9f2c"))
	assert.Equal(t, "alice-9f2c", convo.OtherParticipant("bob-11aa"))
	assert.Equal(t, "carol-77aa", convo.OtherParticipant("carol-77aa"))
}

func TestUserDisplayName(t *testing.T) {
	var missing *User
	assert.Equal(t, "Unknown", missing.DisplayName())
	assert.Equal(t, "", missing.ProfilePhotoURL())

	assert.Equal(t, "Unknown", (&User{}).DisplayName())
	assert.Equal(t, "Alice", (&User{FirstName: " Alice "}).DisplayName())
	assert.Equal(t, "Alice Smith", (&User{FirstName: "Alice", LastName: "Smith"}).DisplayName())
}
