package rscalc

import (
	"context"
	"sync"
	"time"

	"github.com/rstrack/rstrack/internal/contracts"
)

// MemoryScoreRepository is an in-memory contracts.ScoreRepository for
// tests and local runs without PostgreSQL.
type MemoryScoreRepository struct {
	mu      sync.RWMutex
	scores  map[time.Time][]contracts.RSScore
	groups  map[time.Time][]contracts.GroupStrength
	deletes int
}

// NewMemoryScoreRepository creates an empty in-memory score repository.
func NewMemoryScoreRepository() *MemoryScoreRepository {
	return &MemoryScoreRepository{
		scores: make(map[time.Time][]contracts.RSScore),
		groups: make(map[time.Time][]contracts.GroupStrength),
	}
}

func (r *MemoryScoreRepository) ReplaceScores(_ context.Context, date time.Time, scores []contracts.RSScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores[date] = append([]contracts.RSScore(nil), scores...)
	return nil
}

func (r *MemoryScoreRepository) ReplaceGroupStrength(_ context.Context, date time.Time, groups []contracts.GroupStrength) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[date] = append([]contracts.GroupStrength(nil), groups...)
	return nil
}

func (r *MemoryScoreRepository) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = make(map[time.Time][]contracts.RSScore)
	r.groups = make(map[time.Time][]contracts.GroupStrength)
	r.deletes++
	return nil
}

// Scores returns the stored scores for a date.
func (r *MemoryScoreRepository) Scores(date time.Time) []contracts.RSScore {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scores[date]
}

// Groups returns the stored group rollups for a date.
func (r *MemoryScoreRepository) Groups(date time.Time) []contracts.GroupStrength {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groups[date]
}

// DeleteCount returns how many times DeleteAll ran.
func (r *MemoryScoreRepository) DeleteCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deletes
}

// MemorySettingsRepository is an in-memory contracts.SettingsRepository.
type MemorySettingsRepository struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemorySettingsRepository creates an empty in-memory settings
// repository.
func NewMemorySettingsRepository() *MemorySettingsRepository {
	return &MemorySettingsRepository{values: make(map[string]string)}
}

func (r *MemorySettingsRepository) Get(_ context.Context, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	return v, ok, nil
}

func (r *MemorySettingsRepository) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}
