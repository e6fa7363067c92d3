package services

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/models"
	"messenger-service/repositories"
)

type recordedEvent struct {
	UserID  string
	Name    string
	Payload interface{}
}

// recordingHub captures publishes so tests can assert on fan-out without a
// live stream.
type recordingHub struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (h *recordingHub) Publish(userID, event string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, recordedEvent{UserID: userID, Name: event, Payload: payload})
}

func (h *recordingHub) recorded() []recordedEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]recordedEvent(nil), h.events...)
}

type fixture struct {
	svc    *ConversationService
	users  *repositories.MemoryUserRepository
	convos *repositories.MemoryConversationRepository
	msgs   *repositories.MemoryMessageRepository
	hub    *recordingHub
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:  repositories.NewMemoryUserRepository(),
		convos: repositories.NewMemoryConversationRepository(),
		msgs:   repositories.NewMemoryMessageRepository(),
		hub:    &recordingHub{},
		clock:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	ids := NewMessengerIDService(f.users)
	f.svc = NewConversationService(f.convos, f.msgs, f.users, ids, f.hub)
	f.svc.now = func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}

	for _, u := range []models.User{
		{ID: "u1", MessengerID: "alice-9f2c", FirstName: "Alice", LastName: "Smith", PhotoURL: "https://cdn.example/alice.jpg"},
		{ID: "u2", MessengerID: "bob-11aa", FirstName: "Bob", LastName: "Jones"},
		{ID: "u3", MessengerID: "carol-77aa", FirstName: "Carol", LastName: "King"},
	} {
		user := u
		require.NoError(t, f.users.Save(&user))
	}
	return f
}

func TestParticipantKey(t *testing.T) {
	a1, b1 := ParticipantKey("alice-9f2c", "bob-11aa")
	a2, b2 := ParticipantKey("bob-11aa", "alice-9f2c")
	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
	assert.Equal(t, "alice-9f2c", a1)
	assert.Equal(t, "bob-11aa", b1)

	// equal inputs stay equal
	a3, b3 := ParticipantKey("x", "x")
	assert.Equal(t, "x", a3)
	assert.Equal(t, "x", b3)
}

func TestOpenConversationCreatesOnce(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.OpenConversation("alice-9f2c", "bob-11aa")
	require.NoError(t, err)
	assert.Equal(t, "Say hello", first.LastMessagePreview)
	assert.Equal(t, "bob-11aa", first.OtherUserID)
	assert.Equal(t, "Bob Jones", first.OtherUserName)
	assert.False(t, first.HasUnread)

	// same pair, either order, any identifier scheme
	second, err := f.svc.OpenConversation("bob-11aa", "alice-9f2c")
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	third, err := f.svc.OpenConversation("u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, third.ConversationID)

	assert.Equal(t, 1, f.convos.Count())

	stored, err := f.convos.FindByID(first.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "alice-9f2c", stored.ParticipantA)
	assert.Equal(t, "bob-11aa", stored.ParticipantB)
	assert.Empty(t, stored.UnreadBy)
}

func TestOpenConversationRejectsSelfAndUnknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.OpenConversation("alice-9f2c", "u1")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.OpenConversation("alice-9f2c", "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendMessageCreatesConversationAndNotifies(t *testing.T) {
	f := newFixture(t)

	msg, err := f.svc.SendMessage("alice-9f2c", "", "bob-11aa", "hello")
	require.NoError(t, err)
	assert.Equal(t, "alice-9f2c", msg.SenderID)
	assert.Equal(t, "Alice Smith", msg.SenderName)
	assert.Equal(t, "https://cdn.example/alice.jpg", msg.SenderPhotoURL)
	assert.Equal(t, "bob-11aa", msg.RecipientID)
	assert.Equal(t, "hello", msg.Body)
	assert.Nil(t, msg.ReadAt)

	convo, err := f.convos.FindByID(msg.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "hello", convo.LastMessagePreview)
	assert.Equal(t, []string{"bob-11aa"}, convo.UnreadBy)
	assert.Equal(t, msg.SentAt, convo.LastMessageAt)

	events := f.hub.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, "bob-11aa", events[0].UserID)
	assert.Equal(t, EventNewMessage, events[0].Name)
	payload, ok := events[0].Payload.(MessageResponse)
	require.True(t, ok)
	assert.Equal(t, msg.ID, payload.ID)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SendMessage("alice-9f2c", "", "bob-11aa", "   ")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.SendMessage("alice-9f2c", "", "u1", "hi")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.SendMessage("alice-9f2c", "missing-convo", "bob-11aa", "hi")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.SendMessage("nobody", "", "bob-11aa", "hi")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendMessageGuardsParticipants(t *testing.T) {
	f := newFixture(t)

	opened, err := f.svc.OpenConversation("alice-9f2c", "bob-11aa")
	require.NoError(t, err)

	// outsider trying to write into the thread
	_, err = f.svc.SendMessage("carol-77aa", opened.ConversationID, "alice-9f2c", "let me in")
	assert.ErrorIs(t, err, ErrForbidden)

	// spoofed recipient on an existing conversation
	_, err = f.svc.SendMessage("alice-9f2c", opened.ConversationID, "carol-77aa", "redirect")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestUnreadStateAlternatesWithSends(t *testing.T) {
	f := newFixture(t)

	msg, err := f.svc.SendMessage("alice-9f2c", "", "bob-11aa", "ping")
	require.NoError(t, err)

	// bob replies: bob leaves the unread set, alice enters it
	_, err = f.svc.SendMessage("bob-11aa", msg.ConversationID, "alice-9f2c", "pong")
	require.NoError(t, err)

	convo, err := f.convos.FindByID(msg.ConversationID)
	require.NoError(t, err)
	assert.True(t, convo.IsUnreadBy("alice-9f2c"))
	assert.False(t, convo.IsUnreadBy("bob-11aa"))

	// alice sends again without having read: she still leaves the set
	_, err = f.svc.SendMessage("alice-9f2c", msg.ConversationID, "bob-11aa", "ping again")
	require.NoError(t, err)

	convo, err = f.convos.FindByID(msg.ConversationID)
	require.NoError(t, err)
	assert.False(t, convo.IsUnreadBy("alice-9f2c"))
	assert.True(t, convo.IsUnreadBy("bob-11aa"))
}

func TestPreviewTruncation(t *testing.T) {
	f := newFixture(t)

	body := strings.Repeat("a", 90)
	msg, err := f.svc.SendMessage("alice-9f2c", "", "bob-11aa", body)
	require.NoError(t, err)
	assert.Equal(t, body, msg.Body)

	convo, err := f.convos.FindByID(msg.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 80)+"…", convo.LastMessagePreview)

	// exactly the limit keeps the body verbatim
	exact := strings.Repeat("b", 80)
	_, err = f.svc.SendMessage("alice-9f2c", msg.ConversationID, "bob-11aa", exact)
	require.NoError(t, err)
	convo, err = f.convos.FindByID(msg.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, exact, convo.LastMessagePreview)
}

func TestMarkReadStampsOnlyCallerMessages(t *testing.T) {
	f := newFixture(t)

	msg, err := f.svc.SendMessage("alice-9f2c", "", "bob-11aa", "one")
	require.NoError(t, err)
	_, err = f.svc.SendMessage("alice-9f2c", msg.ConversationID, "bob-11aa", "two")
	require.NoError(t, err)
	_, err = f.svc.SendMessage("bob-11aa", msg.ConversationID, "alice-9f2c", "three")
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkRead("bob-11aa", msg.ConversationID))

	convo, err := f.convos.FindByID(msg.ConversationID)
	require.NoError(t, err)
	assert.False(t, convo.IsUnreadBy("bob-11aa"))
	// alice still has bob's reply unread
	assert.True(t, convo.IsUnreadBy("alice-9f2c"))

	messages, err := f.msgs.FindByConversationID(msg.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for _, m := range messages {
		if m.RecipientID == "bob-11aa" {
			assert.NotNil(t, m.ReadAt, "message %q to bob should be read", m.Body)
		} else {
			assert.Nil(t, m.ReadAt, "message %q to alice must be untouched", m.Body)
		}
	}
}

func TestMarkReadGuards(t *testing.T) {
	f := newFixture(t)

	msg, err := f.svc.SendMessage("alice-9f2c", "", "bob-11aa", "hi")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.MarkRead("carol-77aa", msg.ConversationID), ErrForbidden)
	assert.ErrorIs(t, f.svc.MarkRead("bob-11aa", "missing"), ErrNotFound)
}

func TestGetMessagesOrderedBySentAt(t *testing.T) {
	f := newFixture(t)

	msg, err := f.svc.SendMessage("alice-9f2c", "", "bob-11aa", "first")
	require.NoError(t, err)
	_, err = f.svc.SendMessage("bob-11aa", msg.ConversationID, "alice-9f2c", "second")
	require.NoError(t, err)
	_, err = f.svc.SendMessage("alice-9f2c", msg.ConversationID, "bob-11aa", "third")
	require.NoError(t, err)

	messages, err := f.svc.GetMessages("bob-11aa", msg.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Body)
	assert.Equal(t, "second", messages[1].Body)
	assert.Equal(t, "third", messages[2].Body)
	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].SentAt.Before(messages[i-1].SentAt))
	}

	_, err = f.svc.GetMessages("carol-77aa", msg.ConversationID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.GetMessages("alice-9f2c", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListConversationsSortedByRecency(t *testing.T) {
	f := newFixture(t)

	older, err := f.svc.SendMessage("alice-9f2c", "", "bob-11aa", "to bob")
	require.NoError(t, err)
	newer, err := f.svc.SendMessage("alice-9f2c", "", "carol-77aa", "to carol")
	require.NoError(t, err)

	list, err := f.svc.ListConversations("alice-9f2c")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ConversationID, list[0].ConversationID)
	assert.Equal(t, older.ConversationID, list[1].ConversationID)
	assert.False(t, list[0].HasUnread)

	// the counterpart sees the unread flag and count
	bobList, err := f.svc.ListConversations("u2")
	require.NoError(t, err)
	require.Len(t, bobList, 1)
	assert.True(t, bobList[0].HasUnread)
	assert.Equal(t, int64(1), bobList[0].UnreadCount)
	assert.Equal(t, "Alice Smith", bobList[0].OtherUserName)
}

func seedLegacyConversation(t *testing.T, f *fixture, id string) *models.Conversation {
	t.Helper()
	a, b := ParticipantKey("u1", "u2")
	convo := &models.Conversation{
		ConversationID:     id,
		ParticipantA:       a,
		ParticipantB:       b,
		CreatedAt:          time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		LastMessageAt:      time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		LastMessagePreview: "old times",
		UnreadBy:           []string{"u2"},
	}
	require.NoError(t, f.convos.Save(convo))
	return convo
}

func TestLegacyConversationIsMigratedOnRead(t *testing.T) {
	f := newFixture(t)
	legacy := seedLegacyConversation(t, f, "legacy-1")

	list, err := f.svc.ListConversations("u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "legacy-1", list[0].ConversationID)
	assert.Equal(t, "bob-11aa", list[0].OtherUserID)

	// the record was rewritten to the canonical scheme
	stored, err := f.convos.FindByID(legacy.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "alice-9f2c", stored.ParticipantA)
	assert.Equal(t, "bob-11aa", stored.ParticipantB)
	assert.Equal(t, []string{"bob-11aa"}, stored.UnreadBy)

	// migration is idempotent
	_, err = f.svc.ListConversations("alice-9f2c")
	require.NoError(t, err)
	assert.Equal(t, 1, f.convos.Count())
}

func TestFindOrCreateReusesLegacyKeyedConversation(t *testing.T) {
	f := newFixture(t)
	seedLegacyConversation(t, f, "legacy-1")

	opened, err := f.svc.OpenConversation("alice-9f2c", "bob-11aa")
	require.NoError(t, err)
	assert.Equal(t, "legacy-1", opened.ConversationID)
	assert.Equal(t, 1, f.convos.Count())
}

func TestLegacyMessagesNormalizedOnRead(t *testing.T) {
	f := newFixture(t)
	seedLegacyConversation(t, f, "legacy-1")

	sent := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.msgs.Save(&models.Message{
		MessageID:      "m1",
		ConversationID: "legacy-1",
		SenderID:       "u1",
		RecipientID:    "u2",
		Body:           "old times",
		SentAt:         sent,
	}))

	messages, err := f.svc.GetMessages("u2", "legacy-1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "alice-9f2c", messages[0].SenderID)
	assert.Equal(t, "bob-11aa", messages[0].RecipientID)

	// rewrite persisted
	stored, err := f.msgs.FindByConversationID("legacy-1")
	require.NoError(t, err)
	assert.Equal(t, "alice-9f2c", stored[0].SenderID)
}

func TestMarkReadCoversLegacyAddressedMessages(t *testing.T) {
	f := newFixture(t)
	seedLegacyConversation(t, f, "legacy-1")

	require.NoError(t, f.msgs.Save(&models.Message{
		MessageID:      "m1",
		ConversationID: "legacy-1",
		SenderID:       "u1",
		RecipientID:    "u2",
		Body:           "old unread",
		SentAt:         time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
	}))

	require.NoError(t, f.svc.MarkRead("bob-11aa", "legacy-1"))

	stored, err := f.msgs.FindByConversationID("legacy-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotNil(t, stored[0].ReadAt)
	assert.Equal(t, "bob-11aa", stored[0].RecipientID)

	convo, err := f.convos.FindByID("legacy-1")
	require.NoError(t, err)
	assert.Empty(t, convo.UnreadBy)
}

func TestUnreadCountIncludesLegacyAddressedMessages(t *testing.T) {
	f := newFixture(t)
	seedLegacyConversation(t, f, "legacy-1")

	// still addressed to the internal id; nothing has normalized it yet
	require.NoError(t, f.msgs.Save(&models.Message{
		MessageID:      "m1",
		ConversationID: "legacy-1",
		SenderID:       "u1",
		RecipientID:    "u2",
		Body:           "old unread",
		SentAt:         time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
	}))

	list, err := f.svc.ListConversations("u2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].HasUnread)
	assert.Equal(t, int64(1), list[0].UnreadCount)
}

// faultyCountMessageRepository fails the count query only; everything else
// behaves.
type faultyCountMessageRepository struct {
	*repositories.MemoryMessageRepository
}

func (r *faultyCountMessageRepository) CountUnread(conversationID, recipientID string) (int64, error) {
	return 0, errors.New("count query failed")
}

func TestUnreadCountFaultDegradesToZero(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SendMessage("alice-9f2c", "", "bob-11aa", "hello")
	require.NoError(t, err)

	f.svc.messages = &faultyCountMessageRepository{MemoryMessageRepository: f.msgs}

	list, err := f.svc.ListConversations("bob-11aa")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].HasUnread)
	assert.Equal(t, int64(0), list[0].UnreadCount)
}

func TestCollidingLegacyConversationIsMerged(t *testing.T) {
	f := newFixture(t)

	// a canonical conversation already exists for the pair
	canonical, err := f.svc.SendMessage("alice-9f2c", "", "bob-11aa", "new thread")
	require.NoError(t, err)

	// and a legacy-keyed duplicate still lingers, with its own history
	seedLegacyConversation(t, f, "legacy-1")
	require.NoError(t, f.msgs.Save(&models.Message{
		MessageID:      "m-legacy",
		ConversationID: "legacy-1",
		SenderID:       "u2",
		RecipientID:    "u1",
		Body:           "from before",
		SentAt:         time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
	}))

	list, err := f.svc.ListConversations("u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, canonical.ConversationID, list[0].ConversationID)
	assert.Equal(t, 1, f.convos.Count())

	// the duplicate's history now lives under the survivor
	messages, err := f.svc.GetMessages("alice-9f2c", canonical.ConversationID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "from before", messages[0].Body)
	assert.Equal(t, "new thread", messages[1].Body)

	// unread state unioned across both records
	convo, err := f.convos.FindByID(canonical.ConversationID)
	require.NoError(t, err)
	assert.True(t, convo.IsUnreadBy("bob-11aa"))
}
