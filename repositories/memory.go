package repositories

import (
	"sort"
	"sync"

	"messenger-service/models"
)

// In-memory implementations of the store interfaces. They back the test
// suites and double as a throwaway store for local development without
// MySQL. All of them copy records on the way in and out so callers never
// share memory with the store.

type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]models.User)}
}

func (r *MemoryUserRepository) FindByID(id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		return &user, nil
	}
	return nil, nil
}

func (r *MemoryUserRepository) FindByMessengerID(messengerID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.MessengerID == messengerID && messengerID != "" {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) MessengerIDExists(messengerID string) (bool, error) {
	user, err := r.FindByMessengerID(messengerID)
	return user != nil, err
}

func (r *MemoryUserRepository) FindWithoutMessengerID() ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []models.User
	for _, user := range r.users {
		if user.MessengerID == "" {
			users = append(users, user)
		}
	}
	return users, nil
}

func (r *MemoryUserRepository) Save(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

type MemoryConversationRepository struct {
	mu     sync.Mutex
	convos map[string]models.Conversation
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{convos: make(map[string]models.Conversation)}
}

func (r *MemoryConversationRepository) FindByID(id string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if convo, ok := r.convos[id]; ok {
		c := cloneConversation(convo)
		return &c, nil
	}
	return nil, nil
}

func (r *MemoryConversationRepository) FindByParticipantPair(a, b string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, convo := range r.convos {
		if convo.ParticipantA == a && convo.ParticipantB == b {
			c := cloneConversation(convo)
			return &c, nil
		}
	}
	return nil, nil
}

func (r *MemoryConversationRepository) FindByParticipant(id string) ([]models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var convos []models.Conversation
	for _, convo := range r.convos {
		if convo.ParticipantA == id || convo.ParticipantB == id {
			convos = append(convos, cloneConversation(convo))
		}
	}
	return convos, nil
}

func (r *MemoryConversationRepository) Save(convo *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.convos[convo.ConversationID] = cloneConversation(*convo)
	return nil
}

func (r *MemoryConversationRepository) Delete(convo *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.convos, convo.ConversationID)
	return nil
}

// Count reports how many conversations the store holds.
func (r *MemoryConversationRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.convos)
}

func cloneConversation(convo models.Conversation) models.Conversation {
	convo.UnreadBy = append([]string(nil), convo.UnreadBy...)
	return convo
}

type MemoryMessageRepository struct {
	mu       sync.Mutex
	messages map[string]models.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{messages: make(map[string]models.Message)}
}

func (r *MemoryMessageRepository) FindByConversationID(conversationID string) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var messages []models.Message
	for _, msg := range r.messages {
		if msg.ConversationID == conversationID {
			messages = append(messages, msg)
		}
	}
	sortMessages(messages)
	return messages, nil
}

func (r *MemoryMessageRepository) FindUnreadFor(conversationID, recipientID string) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var messages []models.Message
	for _, msg := range r.messages {
		if msg.ConversationID == conversationID && msg.RecipientID == recipientID && msg.ReadAt == nil {
			messages = append(messages, msg)
		}
	}
	sortMessages(messages)
	return messages, nil
}

func (r *MemoryMessageRepository) CountUnread(conversationID, recipientID string) (int64, error) {
	unread, err := r.FindUnreadFor(conversationID, recipientID)
	return int64(len(unread)), err
}

func (r *MemoryMessageRepository) Save(message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[message.MessageID] = *message
	return nil
}

func (r *MemoryMessageRepository) SaveAll(messages []models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range messages {
		r.messages[msg.MessageID] = msg
	}
	return nil
}

func (r *MemoryMessageRepository) RepointConversation(fromID, toID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, msg := range r.messages {
		if msg.ConversationID == fromID {
			msg.ConversationID = toID
			r.messages[id] = msg
		}
	}
	return nil
}

func sortMessages(messages []models.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].SentAt.Equal(messages[j].SentAt) {
			return messages[i].MessageID < messages[j].MessageID
		}
		return messages[i].SentAt.Before(messages[j].SentAt)
	})
}
