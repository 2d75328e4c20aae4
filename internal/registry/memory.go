package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/rstrack/rstrack/internal/contracts"
)

// MemoryInstrumentRepository is an in-memory
// contracts.InstrumentRepository for tests.
type MemoryInstrumentRepository struct {
	mu          sync.RWMutex
	instruments map[string]contracts.Instrument
}

// NewMemoryInstrumentRepository creates an empty in-memory repository.
func NewMemoryInstrumentRepository() *MemoryInstrumentRepository {
	return &MemoryInstrumentRepository{instruments: make(map[string]contracts.Instrument)}
}

func (r *MemoryInstrumentRepository) Upsert(_ context.Context, inst contracts.Instrument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instruments[inst.Symbol] = inst
	return nil
}

func (r *MemoryInstrumentRepository) GetBySymbol(_ context.Context, symbol string) (contracts.Instrument, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instruments[symbol]
	return inst, ok, nil
}

func (r *MemoryInstrumentRepository) ListActive(_ context.Context) ([]contracts.Instrument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []contracts.Instrument
	for _, inst := range r.instruments {
		if inst.Active {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (r *MemoryInstrumentRepository) Deactivate(_ context.Context, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instruments[symbol]; ok {
		inst.Active = false
		r.instruments[symbol] = inst
	}
	return nil
}

func (r *MemoryInstrumentRepository) Sectors(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, func(i contracts.Instrument) string { return i.Sector })
}

func (r *MemoryInstrumentRepository) Industries(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, func(i contracts.Instrument) string { return i.Industry })
}

func (r *MemoryInstrumentRepository) distinct(_ context.Context, key func(contracts.Instrument) string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, inst := range r.instruments {
		v := key(inst)
		if !inst.Active || v == "" || v == "Unknown" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}
