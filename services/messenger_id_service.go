package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"messenger-service/models"
	"messenger-service/repositories"
)

const (
	messengerIDBaseMaxLen  = 20
	messengerIDMaxAttempts = 12
)

// MessengerIDService resolves user identifiers and guarantees every user has
// a stable public messenger id, generating one on first use. It accepts both
// the public messenger id and the legacy internal id on lookup.
type MessengerIDService struct {
	users repositories.UserRepository
}

func NewMessengerIDService(users repositories.UserRepository) *MessengerIDService {
	return &MessengerIDService{users: users}
}

// Resolve maps an arbitrary identifier to a user record. The messenger id is
// tried first, then the legacy internal id.
func (s *MessengerIDService) Resolve(identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("%w: missing user identifier", ErrInvalidArgument)
	}

	user, err := s.users.FindByMessengerID(identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user, err = s.users.FindByID(identifier)
		if err != nil {
			return nil, err
		}
	}
	if user == nil {
		return nil, fmt.Errorf("%w: no user matches %q", ErrNotFound, identifier)
	}
	return user, nil
}

// EnsureMessengerID returns the user's messenger id, generating and
// persisting one if the record predates messenger ids.
func (s *MessengerIDService) EnsureMessengerID(user *models.User) (string, error) {
	if user.MessengerID != "" {
		return user.MessengerID, nil
	}

	base := messengerIDBase(user.FirstName, user.LastName)
	for attempt := 0; attempt < messengerIDMaxAttempts; attempt++ {
		candidate := base + "-" + randomSuffix()
		exists, err := s.users.MessengerIDExists(candidate)
		if err != nil {
			return "", err
		}
		if exists {
			continue
		}
		user.MessengerID = candidate
		if err := s.users.Save(user); err != nil {
			return "", err
		}
		return candidate, nil
	}

	// 16 bits of suffix per attempt makes this effectively unreachable;
	// when it happens the operator needs to look at the user table.
	return "", fmt.Errorf("%w: exhausted %d attempts for base %q", ErrMessengerIDExhausted, messengerIDMaxAttempts, base)
}

// Canonicalize resolves an identifier and returns the user's current
// messenger id. Used to normalize stored participant and sender fields.
func (s *MessengerIDService) Canonicalize(identifier string) (string, error) {
	user, err := s.Resolve(identifier)
	if err != nil {
		return "", err
	}
	return s.EnsureMessengerID(user)
}

// EnsureAll backfills messenger ids for legacy users that have none and
// returns how many records were updated. Run once at startup.
func (s *MessengerIDService) EnsureAll() (int, error) {
	users, err := s.users.FindWithoutMessengerID()
	if err != nil {
		return 0, err
	}
	updated := 0
	for i := range users {
		if _, err := s.EnsureMessengerID(&users[i]); err != nil {
			return updated, err
		}
		updated++
	}
	if updated > 0 {
		logrus.WithField("count", updated).Info("Backfilled messenger ids for legacy users")
	}
	return updated, nil
}

// messengerIDBase derives the readable prefix of a messenger id: the name is
// ASCII-folded, stripped to lowercase alphanumerics, and truncated.
func messengerIDBase(firstName, lastName string) string {
	folded := asciiFold(firstName + lastName)

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	base := b.String()
	if base == "" {
		base = "user"
	}
	if len(base) > messengerIDBaseMaxLen {
		base = base[:messengerIDBaseMaxLen]
	}
	return base
}

// asciiFold decomposes accented characters and drops the combining marks,
// so "José Müller" folds to "Jose Muller".
func asciiFold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

func randomSuffix() string {
	buf := make([]byte, 2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken
		logrus.WithError(err).Error("random suffix generation failed")
	}
	return hex.EncodeToString(buf)
}
