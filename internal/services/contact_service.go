package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/repo"
	"github.com/tbourn/go-sos-backend/internal/validate"
)

// ContactStore reads and replaces a user's ordered contact list.
type ContactStore interface {
	ContactSource
	SaveContacts(ctx context.Context, uid string, list []domain.EmergencyContact) error
}

// ContactService manages the emergency contact list. The first entry is the
// emergency contact used by DispatchService. Edits of one user's list run
// one at a time, since a store save replaces the whole list.
type ContactService struct {
	Store ContactStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// lock serializes read-modify-write cycles on userID's list.
func (s *ContactService) lock(userID string) func() {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// ContactAddedMessage is the confirmation shown after Add.
func ContactAddedMessage(name string) string { return name + " adicionado com sucesso" }

// ContactExistsMessage is shown when Add finds a duplicate.
func ContactExistsMessage(name string) string { return name + " já está na lista de contatos" }

// List returns the list in stored order.
func (s *ContactService) List(ctx context.Context, userID string) ([]domain.EmergencyContact, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	return s.Store.Contacts(ctx, userID)
}

// Add appends c. A contact with the same id or the same primary number is
// a duplicate. Contacts without an id get a fresh one.
func (s *ContactService) Add(ctx context.Context, userID string, c domain.EmergencyContact) ([]domain.EmergencyContact, error) {
	defer s.lock(userID)()
	list, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.Name = strings.TrimSpace(c.Name)
	num, ok := c.PrimaryNumber()
	if !ok || !listable(c.Name) {
		return list, ErrInvalidContact
	}
	for _, e := range list {
		if (c.ID != "" && e.ID == c.ID) || samePhone(e, num) {
			return list, ErrContactExists
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	list = append(list, c)
	if err := s.Store.SaveContacts(ctx, userID, list); err != nil {
		return nil, err
	}
	return list, nil
}

// Remove deletes the entry at index.
func (s *ContactService) Remove(ctx context.Context, userID string, index int) ([]domain.EmergencyContact, error) {
	defer s.lock(userID)()
	list, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(list) {
		return list, ErrContactIndex
	}
	list = append(list[:index], list[index+1:]...)
	if err := s.Store.SaveContacts(ctx, userID, list); err != nil {
		return nil, err
	}
	return list, nil
}

// Clear empties the list.
func (s *ContactService) Clear(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUnauthenticated
	}
	defer s.lock(userID)()
	return s.Store.SaveContacts(ctx, userID, []domain.EmergencyContact{})
}

// Search filters all by term on name or number, ignoring case and accents.
// A numeric term orders the result by number, any other term by name.
// Entries without a usable name are dropped.
func Search(all []domain.EmergencyContact, term string) []domain.EmergencyContact {
	t := fold(strings.TrimSpace(term))
	digits := validate.Digits(t)
	numeric := t != "" && digits == strings.ReplaceAll(t, " ", "")

	out := make([]domain.EmergencyContact, 0, len(all))
	for _, c := range all {
		if !listable(c.Name) {
			continue
		}
		if t == "" || strings.Contains(fold(c.Name), t) || matchesNumber(c, t, digits) {
			out = append(out, c)
		}
	}
	if numeric {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := out[i].PrimaryNumber()
			b, _ := out[j].PrimaryNumber()
			return validate.Digits(a) < validate.Digits(b)
		})
	} else {
		sort.SliceStable(out, func(i, j int) bool { return fold(out[i].Name) < fold(out[j].Name) })
	}
	return out
}

func matchesNumber(c domain.EmergencyContact, t, digits string) bool {
	for _, p := range c.PhoneNumbers {
		if strings.Contains(strings.ToLower(p.Number), t) {
			return true
		}
		if digits != "" && strings.Contains(validate.Digits(p.Number), digits) {
			return true
		}
	}
	return false
}

func samePhone(c domain.EmergencyContact, number string) bool {
	n, ok := c.PrimaryNumber()
	return ok && validate.Digits(n) != "" && validate.Digits(n) == validate.Digits(number)
}

// listable rejects the placeholder names some address books produce.
func listable(name string) bool {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "", "null", "null null":
		return false
	}
	return true
}

// fold lowercases s and strips combining marks ("Mãe" -> "mae").
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// LocalContacts keeps a device-local contact list in the local persistent
// cache under one key, JSON-serialized. The list belongs to the device, so
// the user id is ignored.
type LocalContacts struct {
	DB  *gorm.DB
	Key string
}

// LocalContactsKey is the cache key of the device contact list.
const LocalContactsKey = "addedContacts"

// NewLocalContacts returns a store over db using LocalContactsKey.
func NewLocalContacts(db *gorm.DB) *LocalContacts {
	return &LocalContacts{DB: db, Key: LocalContactsKey}
}

// Contacts loads the cached list; a missing entry is an empty list.
func (l *LocalContacts) Contacts(ctx context.Context, _ string) ([]domain.EmergencyContact, error) {
	raw, err := repo.GetLocal(ctx, l.DB, l.Key)
	if errors.Is(err, repo.ErrNotFound) {
		return []domain.EmergencyContact{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := []domain.EmergencyContact{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveContacts replaces the cached list.
func (l *LocalContacts) SaveContacts(ctx context.Context, _ string, list []domain.EmergencyContact) error {
	if list == nil {
		list = []domain.EmergencyContact{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return repo.PutLocal(ctx, l.DB, l.Key, string(b))
}
