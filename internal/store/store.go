// Package store keeps encoded messages in memory, sealed at rest.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNotFound   = errors.New("store: not found")
	ErrInvalidKey = errors.New("store: invalid key")
)

// Key addresses one stored message.
type Key struct {
	Schema string
	ID     string
}

func (k Key) String() string {
	return k.Schema + "/" + k.ID
}

func (k Key) validate() error {
	if strings.TrimSpace(k.Schema) == "" || strings.TrimSpace(k.ID) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
	}
	return nil
}

// Store is a concurrency-safe map of sealed encoded messages.
type Store struct {
	mu     sync.RWMutex
	sealer *Sealer
	items  map[Key][]byte
}

func New(sealer *Sealer) *Store {
	return &Store{
		sealer: sealer,
		items:  make(map[Key][]byte),
	}
}

// Put seals encoded and stores it under k, replacing any previous value.
func (s *Store) Put(k Key, encoded []byte) error {
	if err := k.validate(); err != nil {
		return err
	}
	sealed, err := s.sealer.Seal(encoded, []byte(k.String()))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items[k] = sealed
	s.mu.Unlock()
	return nil
}

// Get returns the opened encoded bytes stored under k.
func (s *Store) Get(k Key) ([]byte, error) {
	s.mu.RLock()
	sealed, ok := s.items[k]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	return s.sealer.Open(sealed, []byte(k.String()))
}

func (s *Store) Delete(k Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[k]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	delete(s.items, k)
	return nil
}

// Keys lists the stored keys of schema, or every key when schema is empty,
// sorted.
func (s *Store) Keys(schema string) []Key {
	s.mu.RLock()
	keys := make([]Key, 0, len(s.items))
	for k := range s.items {
		if schema == "" || k.Schema == schema {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
