package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"messenger-service/models"
	"messenger-service/repositories"
)

const (
	previewMaxLen   = 80
	initialPreview  = "Say hello"
	EventNewMessage = "new_message"
)

// EventPublisher is the slice of the push hub the conversation service
// needs. Delivery is fire-and-forget; the store is the source of truth.
type EventPublisher interface {
	Publish(userID, event string, payload interface{})
}

// ConversationResponse is the inbox projection of a conversation from one
// participant's point of view.
type ConversationResponse struct {
	ConversationID     string    `json:"conversation_id"`
	OtherUserID        string    `json:"other_user_id"`
	OtherUserName      string    `json:"other_user_name"`
	OtherUserPhotoURL  string    `json:"other_user_photo_url"`
	LastMessagePreview string    `json:"last_message_preview"`
	LastMessageAt      time.Time `json:"last_message_at"`
	HasUnread          bool      `json:"has_unread"`
	UnreadCount        int64     `json:"unread_count"`
}

// MessageResponse decorates a message with the sender's display fields.
type MessageResponse struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	SenderName     string     `json:"sender_name"`
	SenderPhotoURL string     `json:"sender_photo_url"`
	RecipientID    string     `json:"recipient_id"`
	Body           string     `json:"body"`
	SentAt         time.Time  `json:"sent_at"`
	ReadAt         *time.Time `json:"read_at"`
}

// ConversationService owns the conversation lifecycle: pair canonicalization,
// metadata maintenance, read-state transitions, and the lazy identifier
// migration. Two concurrent sends into the same conversation may interleave
// their metadata writes (last write wins on the summary fields); each message
// write itself is independent and never lost.
type ConversationService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
	ids           *MessengerIDService
	hub           EventPublisher
	now           func() time.Time
}

func NewConversationService(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	ids *MessengerIDService,
	hub EventPublisher,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		ids:           ids,
		hub:           hub,
		now:           time.Now,
	}
}

// CanonicalCaller resolves a request identifier to the caller's messenger
// id. The stream endpoints use it to key hub subscriptions the same way
// publishes are keyed.
func (s *ConversationService) CanonicalCaller(identifier string) (string, error) {
	return s.ids.Canonicalize(identifier)
}

// pairLookups is the ordered lookup chain for a participant pair: the
// current canonical messenger ids first, then the pre-migration internal
// ids. Older rows keyed by internal ids are found by the second probe and
// migrated on load instead of being shadowed by a duplicate.
func pairLookups(a, b *models.User) [][2]string {
	keyOf := func(x, y string) [2]string {
		x, y = ParticipantKey(x, y)
		return [2]string{x, y}
	}
	chain := [][2]string{keyOf(a.MessengerID, b.MessengerID)}
	if a.ID != "" && b.ID != "" {
		chain = append(chain, keyOf(a.ID, b.ID))
	}
	return chain
}

// findOrCreate walks the pair lookup chain and lazily creates the
// conversation when no strategy matches. Both users must already carry
// messenger ids.
func (s *ConversationService) findOrCreate(a, b *models.User) (*models.Conversation, error) {
	for _, key := range pairLookups(a, b) {
		convo, err := s.conversations.FindByParticipantPair(key[0], key[1])
		if err != nil {
			return nil, err
		}
		if convo != nil {
			return s.loadNormalized(convo)
		}
	}

	pa, pb := ParticipantKey(a.MessengerID, b.MessengerID)
	now := s.now()
	convo := &models.Conversation{
		ConversationID:     uuid.NewString(),
		ParticipantA:       pa,
		ParticipantB:       pb,
		CreatedAt:          now,
		LastMessageAt:      now,
		LastMessagePreview: initialPreview,
		UnreadBy:           []string{},
	}
	if err := s.conversations.Save(convo); err != nil {
		return nil, err
	}
	return convo, nil
}

// ListConversations returns the caller's inbox, most recent thread first.
// Conversations are looked up under both the caller's messenger id and the
// legacy internal id so pre-migration rows keep showing up.
func (s *ConversationService) ListConversations(callerIdentifier string) ([]ConversationResponse, error) {
	caller, err := s.ids.Resolve(callerIdentifier)
	if err != nil {
		return nil, err
	}
	handle, err := s.ids.EnsureMessengerID(caller)
	if err != nil {
		return nil, err
	}

	byHandle, err := s.conversations.FindByParticipant(handle)
	if err != nil {
		return nil, err
	}
	byLegacy, err := s.conversations.FindByParticipant(caller.ID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var normalized []*models.Conversation
	for _, list := range [][]models.Conversation{byHandle, byLegacy} {
		for i := range list {
			convo := &list[i]
			if seen[convo.ConversationID] {
				continue
			}
			seen[convo.ConversationID] = true

			convo, err = s.loadNormalized(convo)
			if err != nil {
				return nil, err
			}
			// a merge may have collapsed this row into one we already hold
			duplicate := false
			for _, existing := range normalized {
				if existing.ConversationID == convo.ConversationID {
					duplicate = true
					break
				}
			}
			if !duplicate {
				normalized = append(normalized, convo)
			}
		}
	}

	sort.SliceStable(normalized, func(i, j int) bool {
		return normalized[i].LastMessageAt.After(normalized[j].LastMessageAt)
	})

	responses := make([]ConversationResponse, 0, len(normalized))
	for _, convo := range normalized {
		responses = append(responses, s.toConversationResponse(convo, caller))
	}
	return responses, nil
}

// OpenConversation resolves both identities and returns the existing
// conversation for the pair, creating it if this is the first interaction.
func (s *ConversationService) OpenConversation(callerIdentifier, otherIdentifier string) (*ConversationResponse, error) {
	caller, err := s.ids.Resolve(callerIdentifier)
	if err != nil {
		return nil, err
	}
	other, err := s.ids.Resolve(otherIdentifier)
	if err != nil {
		return nil, err
	}
	if caller.ID == other.ID {
		return nil, fmt.Errorf("%w: cannot open a conversation with yourself", ErrInvalidArgument)
	}
	if _, err := s.ids.EnsureMessengerID(caller); err != nil {
		return nil, err
	}
	if _, err := s.ids.EnsureMessengerID(other); err != nil {
		return nil, err
	}

	convo, err := s.findOrCreate(caller, other)
	if err != nil {
		return nil, err
	}
	resp := s.toConversationResponse(convo, caller)
	return &resp, nil
}

// GetConversation projects a single conversation for the caller.
func (s *ConversationService) GetConversation(callerIdentifier, conversationID string) (*ConversationResponse, error) {
	convo, caller, err := s.loadForParticipant(callerIdentifier, conversationID)
	if err != nil {
		return nil, err
	}
	resp := s.toConversationResponse(convo, caller)
	return &resp, nil
}

// GetMessages returns every message in the conversation, ordered by sentAt
// ascending (message id breaks timestamp ties, arbitrarily but stably).
// Sender and recipient identifiers are upgraded to messenger ids on the way
// out; rewritten messages are persisted.
func (s *ConversationService) GetMessages(callerIdentifier, conversationID string) ([]MessageResponse, error) {
	convo, _, err := s.loadForParticipant(callerIdentifier, conversationID)
	if err != nil {
		return nil, err
	}

	messages, err := s.messages.FindByConversationID(convo.ConversationID)
	if err != nil {
		return nil, err
	}

	var rewritten []models.Message
	for i := range messages {
		if s.normalizeMessage(&messages[i]) {
			rewritten = append(rewritten, messages[i])
		}
	}
	if len(rewritten) > 0 {
		if err := s.messages.SaveAll(rewritten); err != nil {
			return nil, err
		}
	}

	responses := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		responses = append(responses, s.toMessageResponse(&messages[i]))
	}
	return responses, nil
}

// SendMessage persists a message from the caller to the recipient, updates
// the conversation summary, and notifies the recipient's live streams.
// When conversationID is empty the conversation is found or created from the
// pair.
func (s *ConversationService) SendMessage(callerIdentifier, conversationID, recipientIdentifier, body string) (*MessageResponse, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: message body must not be empty", ErrInvalidArgument)
	}

	sender, err := s.ids.Resolve(callerIdentifier)
	if err != nil {
		return nil, err
	}
	recipient, err := s.ids.Resolve(recipientIdentifier)
	if err != nil {
		return nil, err
	}
	if sender.ID == recipient.ID {
		return nil, fmt.Errorf("%w: cannot message yourself", ErrInvalidArgument)
	}
	senderHandle, err := s.ids.EnsureMessengerID(sender)
	if err != nil {
		return nil, err
	}
	recipientHandle, err := s.ids.EnsureMessengerID(recipient)
	if err != nil {
		return nil, err
	}

	var convo *models.Conversation
	if conversationID != "" {
		convo, err = s.conversations.FindByID(conversationID)
		if err != nil {
			return nil, err
		}
		if convo == nil {
			return nil, fmt.Errorf("%w: conversation %q", ErrNotFound, conversationID)
		}
		convo, err = s.loadNormalized(convo)
		if err != nil {
			return nil, err
		}
	} else {
		convo, err = s.findOrCreate(sender, recipient)
		if err != nil {
			return nil, err
		}
	}

	if !convo.HasParticipant(senderHandle) {
		return nil, fmt.Errorf("%w: sender is not part of this conversation", ErrForbidden)
	}
	// guards against a spoofed recipient on an existing conversation
	if !convo.HasParticipant(recipientHandle) {
		return nil, fmt.Errorf("%w: recipient is not part of this conversation", ErrInvalidArgument)
	}

	message := &models.Message{
		MessageID:      uuid.NewString(),
		ConversationID: convo.ConversationID,
		SenderID:       senderHandle,
		RecipientID:    recipientHandle,
		Body:           body,
		SentAt:         s.now(),
	}
	if err := s.messages.Save(message); err != nil {
		return nil, err
	}

	convo.LastMessageAt = message.SentAt
	convo.LastMessagePreview = truncatePreview(body)
	convo.ClearUnreadFor(senderHandle)
	convo.MarkUnreadFor(recipientHandle)
	if err := s.conversations.Save(convo); err != nil {
		return nil, err
	}

	response := s.toMessageResponse(message)
	s.hub.Publish(recipientHandle, EventNewMessage, response)
	return &response, nil
}

// MarkRead stamps every unread message addressed to the caller in the
// conversation and clears the caller from the unread set. Messages addressed
// to the other participant are untouched.
func (s *ConversationService) MarkRead(callerIdentifier, conversationID string) error {
	caller, err := s.ids.Resolve(callerIdentifier)
	if err != nil {
		return err
	}
	handle, err := s.ids.EnsureMessengerID(caller)
	if err != nil {
		return err
	}

	convo, err := s.conversations.FindByID(conversationID)
	if err != nil {
		return err
	}
	if convo == nil {
		return fmt.Errorf("%w: conversation %q", ErrNotFound, conversationID)
	}
	convo, err = s.loadNormalized(convo)
	if err != nil {
		return err
	}
	if !convo.HasParticipant(handle) {
		return fmt.Errorf("%w: caller is not part of this conversation", ErrForbidden)
	}

	// pre-migration messages may still carry the legacy recipient id
	unread, err := s.messages.FindUnreadFor(convo.ConversationID, handle)
	if err != nil {
		return err
	}
	if caller.ID != handle {
		legacy, err := s.messages.FindUnreadFor(convo.ConversationID, caller.ID)
		if err != nil {
			return err
		}
		unread = append(unread, legacy...)
	}

	now := s.now()
	for i := range unread {
		unread[i].ReadAt = &now
		s.normalizeMessage(&unread[i])
	}
	if err := s.messages.SaveAll(unread); err != nil {
		return err
	}

	convo.ClearUnreadFor(handle)
	convo.ClearUnreadFor(caller.ID)
	return s.conversations.Save(convo)
}

// loadForParticipant loads a conversation, runs the lazy migration, and
// verifies the caller is a participant. Returns the resolved caller record
// alongside the conversation.
func (s *ConversationService) loadForParticipant(callerIdentifier, conversationID string) (*models.Conversation, *models.User, error) {
	caller, err := s.ids.Resolve(callerIdentifier)
	if err != nil {
		return nil, nil, err
	}
	handle, err := s.ids.EnsureMessengerID(caller)
	if err != nil {
		return nil, nil, err
	}

	convo, err := s.conversations.FindByID(conversationID)
	if err != nil {
		return nil, nil, err
	}
	if convo == nil {
		return nil, nil, fmt.Errorf("%w: conversation %q", ErrNotFound, conversationID)
	}
	convo, err = s.loadNormalized(convo)
	if err != nil {
		return nil, nil, err
	}
	if !convo.HasParticipant(handle) {
		return nil, nil, fmt.Errorf("%w: caller is not part of this conversation", ErrForbidden)
	}
	return convo, caller, nil
}

func (s *ConversationService) toConversationResponse(convo *models.Conversation, caller *models.User) ConversationResponse {
	handle := caller.MessengerID
	otherID := convo.OtherParticipant(handle)
	other := s.lookupUser(otherID)

	return ConversationResponse{
		ConversationID:     convo.ConversationID,
		OtherUserID:        otherID,
		OtherUserName:      other.DisplayName(),
		OtherUserPhotoURL:  other.ProfilePhotoURL(),
		LastMessagePreview: convo.LastMessagePreview,
		LastMessageAt:      convo.LastMessageAt,
		HasUnread:          convo.IsUnreadBy(handle),
		UnreadCount:        s.countUnread(convo, caller),
	}
}

// countUnread tallies unread messages addressed to the caller under the
// messenger id and, for pre-migration rows, the legacy internal id. Counting
// is response decoration, so a store fault degrades to the partial count and
// is logged rather than failing the request.
func (s *ConversationService) countUnread(convo *models.Conversation, caller *models.User) int64 {
	count, err := s.messages.CountUnread(convo.ConversationID, caller.MessengerID)
	if err != nil {
		logrus.WithError(err).WithField("conversation_id", convo.ConversationID).Warn("unread count unavailable")
		return 0
	}
	if caller.ID != "" && caller.ID != caller.MessengerID {
		legacy, err := s.messages.CountUnread(convo.ConversationID, caller.ID)
		if err != nil {
			logrus.WithError(err).WithField("conversation_id", convo.ConversationID).Warn("legacy unread count unavailable")
			return count
		}
		count += legacy
	}
	return count
}

func (s *ConversationService) toMessageResponse(msg *models.Message) MessageResponse {
	sender := s.lookupUser(msg.SenderID)
	return MessageResponse{
		ID:             msg.MessageID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderName:     sender.DisplayName(),
		SenderPhotoURL: sender.ProfilePhotoURL(),
		RecipientID:    msg.RecipientID,
		Body:           msg.Body,
		SentAt:         msg.SentAt,
		ReadAt:         msg.ReadAt,
	}
}

// lookupUser fetches a user for response decoration; a nil result renders as
// "Unknown" rather than failing the request.
func (s *ConversationService) lookupUser(identifier string) *models.User {
	user, err := s.ids.Resolve(identifier)
	if err != nil {
		return nil
	}
	return user
}

// truncatePreview caps the inbox preview at 80 characters, marking longer
// bodies with an ellipsis. The full body is untouched on the message itself.
func truncatePreview(body string) string {
	runes := []rune(body)
	if len(runes) <= previewMaxLen {
		return body
	}
	return string(runes[:previewMaxLen]) + "…"
}
