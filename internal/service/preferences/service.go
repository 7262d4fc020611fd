package preferences

import (
	"context"
	"fmt"
	"sync"

	model "github.com/zhouzirui/voicelink/internal/model/preferences"
	"github.com/zhouzirui/voicelink/internal/store"
)

// Service persists the user preference record.
type Service struct {
	kv store.KV

	mu     sync.RWMutex
	cached *model.Preferences
}

// NewService creates a preference store backed by kv.
func NewService(kv store.KV) *Service {
	return &Service{kv: kv}
}

// Load returns the stored preferences, or the defaults when nothing is stored.
func (s *Service) Load(ctx context.Context) (model.Preferences, error) {
	s.mu.RLock()
	if s.cached != nil {
		prefs := *s.cached
		s.mu.RUnlock()
		return prefs, nil
	}
	s.mu.RUnlock()

	prefs := model.Defaults()
	ok, err := store.GetJSON(ctx, s.kv, model.StorageKey, &prefs)
	if err != nil {
		return model.Defaults(), fmt.Errorf("load preferences: %w", err)
	}
	if ok {
		prefs = prefs.Normalize()
	}

	s.mu.Lock()
	s.cached = &prefs
	s.mu.Unlock()
	return prefs, nil
}

// Save validates and stores prefs and returns the normalized record.
func (s *Service) Save(ctx context.Context, prefs model.Preferences) (model.Preferences, error) {
	prefs = prefs.Normalize()
	if err := prefs.Validate(); err != nil {
		return model.Preferences{}, err
	}

	if err := store.SetJSON(ctx, s.kv, model.StorageKey, prefs); err != nil {
		return model.Preferences{}, fmt.Errorf("save preferences: %w", err)
	}

	s.mu.Lock()
	s.cached = &prefs
	s.mu.Unlock()
	return prefs, nil
}

// Reset 恢复默认偏好。
func (s *Service) Reset(ctx context.Context) (model.Preferences, error) {
	if err := s.kv.Delete(ctx, model.StorageKey); err != nil {
		return model.Preferences{}, fmt.Errorf("reset preferences: %w", err)
	}
	prefs := model.Defaults()
	s.mu.Lock()
	s.cached = &prefs
	s.mu.Unlock()
	return prefs, nil
}
