// Package realtime is the adapter for the realtime key-value store: JSON
// documents read and written at string paths ("users/{uid}",
// "Contatos/{uid}"). Documents live in Redis, one string key per path.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"

	"github.com/tbourn/go-sos-backend/internal/config"
	"github.com/tbourn/go-sos-backend/internal/domain"
)

// ErrNotFound is returned when no document exists at a path.
var ErrNotFound = errors.New("realtime: no document at path")

// ProfilePath is where a user's registration data lives.
func ProfilePath(uid string) string { return "users/" + uid }

// ContactsPath is where a user's ordered contact list lives.
func ContactsPath(uid string) string { return "Contatos/" + uid }

// Store reads and writes JSON documents by path.
type Store struct {
	Client redis.Cmdable
	Prefix string
}

// New returns a Store over client. prefix namespaces every key.
func New(client redis.Cmdable, prefix string) *Store {
	return &Store{Client: client, Prefix: prefix}
}

// Open dials Redis with cfg and pings it once.
func Open(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return cli, nil
}

func (s *Store) key(path string) string {
	return s.Prefix + strings.Trim(path, "/")
}

// Get decodes the document at path into a generic JSON value.
func (s *Store) Get(ctx context.Context, path string) (any, error) {
	raw, err := s.Client.Get(ctx, s.key(path)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

// Set replaces the document at path with v encoded as JSON.
func (s *Store) Set(ctx context.Context, path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return s.Client.Set(ctx, s.key(path), string(b), 0).Err()
}

// Delete removes the document at path. Missing paths are not an error.
func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Client.Del(ctx, s.key(path)).Err()
}

// Profile returns the snapshot at users/{uid}.
func (s *Store) Profile(ctx context.Context, uid string) (domain.UserProfile, error) {
	var p domain.UserProfile
	v, err := s.Get(ctx, ProfilePath(uid))
	if err != nil {
		return p, err
	}
	if err := decode(v, &p); err != nil {
		return p, fmt.Errorf("profile %s: %w", uid, err)
	}
	return p, nil
}

// SaveProfile replaces users/{uid}.
func (s *Store) SaveProfile(ctx context.Context, uid string, p domain.UserProfile) error {
	return s.Set(ctx, ProfilePath(uid), p)
}

// Contacts returns the list at Contatos/{uid}; a missing list is empty.
func (s *Store) Contacts(ctx context.Context, uid string) ([]domain.EmergencyContact, error) {
	v, err := s.Get(ctx, ContactsPath(uid))
	if errors.Is(err, ErrNotFound) {
		return []domain.EmergencyContact{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := []domain.EmergencyContact{}
	if err := decode(asList(v), &out); err != nil {
		return nil, fmt.Errorf("contacts %s: %w", uid, err)
	}
	return out, nil
}

// SaveContacts replaces Contatos/{uid}.
func (s *Store) SaveContacts(ctx context.Context, uid string, list []domain.EmergencyContact) error {
	if list == nil {
		list = []domain.EmergencyContact{}
	}
	return s.Set(ctx, ContactsPath(uid), list)
}

// decode maps a generic JSON value onto out. Numbers written by other
// clients (a numeric CEP or phone) are accepted for string fields.
func decode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// asList turns a sparse array written as an object ({"0":{..},"2":{..}})
// back into a list ordered by index. Other values pass through.
func asList(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	type entry struct {
		idx int
		val any
	}
	entries := make([]entry, 0, len(m))
	for k, val := range m {
		i, err := cast.ToIntE(k)
		if err != nil {
			return v
		}
		entries = append(entries, entry{i, val})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].idx < entries[b].idx })
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		if e.val != nil {
			out = append(out, e.val)
		}
	}
	return out
}
