// Package image holds small image helpers: placeholder PNG rendering, inline
// data-URL decoding and an in-memory store for serving generated images by ID.
package image

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hurricanerix/signchat/internal/logging"
)

const (
	// MaxImages is the maximum number of images kept across all owners
	MaxImages = 100
	// MaxAge is how long an image is kept after it was stored
	MaxAge = 1 * time.Hour
	// CleanupInterval is how often cleanup runs
	CleanupInterval = 10 * time.Minute
	// MaxImageSize is the maximum size of a single image (10MB)
	MaxImageSize = 10 * 1024 * 1024
)

var (
	// ErrNotFound indicates the requested image does not exist
	ErrNotFound = errors.New("image not found")
	// ErrInvalidID indicates the provided image ID is invalid
	ErrInvalidID = errors.New("invalid image ID")
	// ErrImageTooLarge indicates the image exceeds the maximum allowed size
	ErrImageTooLarge = errors.New("image exceeds maximum size")
	// ErrEmptyImage indicates no image bytes were given
	ErrEmptyImage = errors.New("empty image data")
)

type entry struct {
	owner       string
	data        []byte
	contentType string
	storedAt    time.Time
	accessedAt  time.Time
}

// Storage is a thread-safe in-memory image store. Every image has an
// owner (a session ID) so all of a conversation's images can be dropped
// together.
type Storage struct {
	mu      sync.RWMutex
	images  map[string]*entry
	byOwner map[string]map[string]struct{}
	now     func() time.Time
}

// NewStorage creates an empty image store.
func NewStorage() *Storage {
	return &Storage{
		images:  make(map[string]*entry),
		byOwner: make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

// Put stores image bytes under id for owner, replacing any previous entry.
// id must be a UUID; message IDs qualify.
func (s *Storage) Put(owner, id string, data []byte, contentType string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	switch {
	case len(data) == 0:
		return ErrEmptyImage
	case len(data) > MaxImageSize:
		return ErrImageTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(id)
	now := s.now()
	s.images[id] = &entry{
		owner:       owner,
		data:        data,
		contentType: contentType,
		storedAt:    now,
		accessedAt:  now,
	}
	ids, ok := s.byOwner[owner]
	if !ok {
		ids = make(map[string]struct{})
		s.byOwner[owner] = ids
	}
	ids[id] = struct{}{}
	return nil
}

// Has reports whether an image is stored under id.
func (s *Storage) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.images[id]
	return ok
}

// Get returns a copy of the image bytes and their content type.
func (s *Storage) Get(id string) ([]byte, string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, "", ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	img, ok := s.images[id]
	if !ok {
		return nil, "", ErrNotFound
	}
	img.accessedAt = s.now()
	return slices.Clone(img.data), img.contentType, nil
}

// Count returns number of stored images
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

// Delete removes an image by ID. Returns true if image was deleted.
func (s *Storage) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

// DeleteOwner removes every image stored for owner and returns how many
// were removed.
func (s *Storage) DeleteOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byOwner[owner]
	for id := range ids {
		delete(s.images, id)
	}
	delete(s.byOwner, owner)
	return len(ids)
}

// removeLocked drops id from both indexes. s.mu must be held.
func (s *Storage) removeLocked(id string) bool {
	img, ok := s.images[id]
	if !ok {
		return false
	}
	delete(s.images, id)
	if ids := s.byOwner[img.owner]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byOwner, img.owner)
		}
	}
	return true
}

// StartCleanup removes expired images every CleanupInterval until ctx is
// cancelled.
func (s *Storage) StartCleanup(ctx context.Context, logger *logging.Logger) {
	ticker := time.NewTicker(CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Debug("Image cleanup goroutine stopping")
				return
			case <-ticker.C:
				s.cleanup(logger)
			}
		}
	}()
}

// cleanup drops images older than MaxAge, then the least recently served
// ones until at most MaxImages remain.
func (s *Storage) cleanup(logger *logging.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expired := 0
	for id, img := range s.images {
		if now.Sub(img.storedAt) > MaxAge {
			s.removeLocked(id)
			expired++
		}
	}
	if expired > 0 {
		logger.Debug("Removed %d images older than %v", expired, MaxAge)
	}

	excess := len(s.images) - MaxImages
	if excess <= 0 {
		return
	}

	ids := make([]string, 0, len(s.images))
	for id := range s.images {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return s.images[a].accessedAt.Compare(s.images[b].accessedAt)
	})
	for _, id := range ids[:excess] {
		s.removeLocked(id)
	}
	logger.Debug("LRU eviction removed %d images (limit: %d)", excess, MaxImages)
}
