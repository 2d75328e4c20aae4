package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/rstrack/rstrack/internal/contracts"
)

// Stage is the pipeline's current unit of work.
type Stage string

const (
	StageIdle      Stage = "idle"
	StageImport    Stage = "import"
	StageFetch     Stage = "fetch"
	StageCalculate Stage = "calculate"
	StagePublish   Stage = "publish"
)

// InstrumentState tracks one instrument through the fetch stage.
type InstrumentState string

const (
	InstrumentPending  InstrumentState = "pending"
	InstrumentFetching InstrumentState = "fetching"
	InstrumentFetched  InstrumentState = "fetched"
	InstrumentSkipped  InstrumentState = "up_to_date"
	InstrumentFailed   InstrumentState = "failed"
)

// InstrumentStatus is the per-instrument view of the current or last
// run.
type InstrumentStatus struct {
	Symbol    string
	State     InstrumentState
	BarsAdded int
	Freshness contracts.Freshness
	Error     string
}

// Status is a point-in-time snapshot of the pipeline.
type Status struct {
	Running    bool
	Stage      Stage
	StartedAt  time.Time
	FinishedAt time.Time

	Total   int
	Fetched int
	Skipped int
	Failed  int

	Instruments []InstrumentStatus
	LastError   string
}

// tracker records run progress behind a mutex so status reads never
// block the pipeline.
type tracker struct {
	mu          sync.RWMutex
	running     bool
	stage       Stage
	startedAt   time.Time
	finishedAt  time.Time
	lastError   string
	instruments map[string]*InstrumentStatus
}

func newTracker() *tracker {
	return &tracker{
		stage:       StageIdle,
		instruments: make(map[string]*InstrumentStatus),
	}
}

// tryBegin starts a run unless one is already in progress.
func (t *tracker) tryBegin(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return false
	}
	t.running = true
	t.stage = StageImport
	t.startedAt = now
	t.finishedAt = time.Time{}
	t.lastError = ""
	t.instruments = make(map[string]*InstrumentStatus)
	return true
}

func (t *tracker) setStage(s Stage) {
	t.mu.Lock()
	t.stage = s
	t.mu.Unlock()
}

func (t *tracker) track(symbols []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sym := range symbols {
		t.instruments[sym] = &InstrumentStatus{Symbol: sym, State: InstrumentPending}
	}
}

func (t *tracker) markFetching(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.instruments[symbol]; ok {
		st.State = InstrumentFetching
	}
}

func (t *tracker) markFetched(symbol string, barsAdded int) {
	t.set(symbol, InstrumentFetched, barsAdded, contracts.FreshnessFresh, "")
}

func (t *tracker) markSkipped(symbol string) {
	t.set(symbol, InstrumentSkipped, 0, contracts.FreshnessFresh, "")
}

func (t *tracker) markFailed(symbol string, freshness contracts.Freshness, errMsg string) {
	t.set(symbol, InstrumentFailed, 0, freshness, errMsg)
}

func (t *tracker) set(symbol string, state InstrumentState, barsAdded int, freshness contracts.Freshness, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.instruments[symbol]; ok {
		st.State = state
		st.BarsAdded = barsAdded
		st.Freshness = freshness
		st.Error = errMsg
	}
}

func (t *tracker) finish(now time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.stage = StageIdle
	t.finishedAt = now
	if err != nil {
		t.lastError = err.Error()
	}
}

// snapshot returns a copy safe to hand to callers.
func (t *tracker) snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Status{
		Running:    t.running,
		Stage:      t.stage,
		StartedAt:  t.startedAt,
		FinishedAt: t.finishedAt,
		Total:      len(t.instruments),
		LastError:  t.lastError,
	}
	for _, st := range t.instruments {
		s.Instruments = append(s.Instruments, *st)
		switch st.State {
		case InstrumentFetched:
			s.Fetched++
		case InstrumentSkipped:
			s.Skipped++
		case InstrumentFailed:
			s.Failed++
		}
	}
	sort.Slice(s.Instruments, func(i, j int) bool {
		return s.Instruments[i].Symbol < s.Instruments[j].Symbol
	})
	return s
}
