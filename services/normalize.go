package services

import (
	"github.com/sirupsen/logrus"

	"messenger-service/models"
)

// ParticipantKey orders a pair of identifiers canonically, lexicographically
// smaller first. The sorted pair is the sole conversation dedup key, so the
// ordering must be total and stable.
func ParticipantKey(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// normalizeIdentifier maps a stored identifier to the user's current
// messenger id. Identifiers that no longer resolve (deleted accounts, stray
// legacy values) are kept as stored; store faults are logged rather than
// surfaced because normalization is a best-effort repair on the read path.
func (s *ConversationService) normalizeIdentifier(identifier string) string {
	canonical, err := s.ids.Canonicalize(identifier)
	if err != nil {
		logrus.WithError(err).WithField("identifier", identifier).Debug("identifier left unnormalized")
		return identifier
	}
	return canonical
}

// NormalizeConversation rewrites every identifier on the conversation to its
// canonical messenger id and re-sorts the pair. It only mutates the record in
// memory; the caller is responsible for the conditional write. Returns
// whether anything changed.
func (s *ConversationService) NormalizeConversation(convo *models.Conversation) bool {
	a := s.normalizeIdentifier(convo.ParticipantA)
	b := s.normalizeIdentifier(convo.ParticipantB)
	a, b = ParticipantKey(a, b)

	changed := a != convo.ParticipantA || b != convo.ParticipantB
	convo.ParticipantA = a
	convo.ParticipantB = b

	// unreadBy entries migrate with their participants
	normalized := make([]string, 0, len(convo.UnreadBy))
	for _, id := range convo.UnreadBy {
		mapped := s.normalizeIdentifier(id)
		if mapped != id {
			changed = true
		}
		duplicate := false
		for _, seen := range normalized {
			if seen == mapped {
				duplicate = true
				break
			}
		}
		if !duplicate {
			normalized = append(normalized, mapped)
		}
	}
	if len(normalized) != len(convo.UnreadBy) {
		changed = true
	}
	convo.UnreadBy = normalized

	return changed
}

// normalizeMessage upgrades the sender and recipient identifiers in place.
func (s *ConversationService) normalizeMessage(msg *models.Message) bool {
	sender := s.normalizeIdentifier(msg.SenderID)
	recipient := s.normalizeIdentifier(msg.RecipientID)
	changed := sender != msg.SenderID || recipient != msg.RecipientID
	msg.SenderID = sender
	msg.RecipientID = recipient
	return changed
}

// loadNormalized applies the lazy identifier migration to a freshly loaded
// conversation: normalize, and if anything changed persist the rewrite. A
// rewrite can collide with a conversation already keyed by the canonical
// pair; in that case the canonical record wins and the legacy duplicate is
// merged into it.
func (s *ConversationService) loadNormalized(convo *models.Conversation) (*models.Conversation, error) {
	if !s.NormalizeConversation(convo) {
		return convo, nil
	}

	existing, err := s.conversations.FindByParticipantPair(convo.ParticipantA, convo.ParticipantB)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ConversationID != convo.ConversationID {
		return s.mergeConversations(existing, convo)
	}

	if err := s.conversations.Save(convo); err != nil {
		return nil, err
	}
	return convo, nil
}

// mergeConversations folds a normalized legacy duplicate into the surviving
// canonical conversation: messages are repointed, the unread sets are
// unioned, and the summary fields follow whichever record saw traffic last.
// The duplicate is then deleted; this is the only deletion in the messenger.
func (s *ConversationService) mergeConversations(survivor, duplicate *models.Conversation) (*models.Conversation, error) {
	if err := s.messages.RepointConversation(duplicate.ConversationID, survivor.ConversationID); err != nil {
		return nil, err
	}

	for _, id := range duplicate.UnreadBy {
		if survivor.HasParticipant(id) {
			survivor.MarkUnreadFor(id)
		}
	}
	if duplicate.LastMessageAt.After(survivor.LastMessageAt) {
		survivor.LastMessageAt = duplicate.LastMessageAt
		survivor.LastMessagePreview = duplicate.LastMessagePreview
	}
	if duplicate.CreatedAt.Before(survivor.CreatedAt) {
		survivor.CreatedAt = duplicate.CreatedAt
	}

	if err := s.conversations.Save(survivor); err != nil {
		return nil, err
	}
	if err := s.conversations.Delete(duplicate); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"survivor":  survivor.ConversationID,
		"duplicate": duplicate.ConversationID,
	}).Info("Merged colliding legacy conversation")

	return survivor, nil
}
