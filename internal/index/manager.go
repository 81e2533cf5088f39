package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/optiview/optiview/internal/index/bm25"
	"github.com/optiview/optiview/internal/index/vector"
	"github.com/optiview/optiview/internal/models"
)

// BuildConfig bounds a generation build.
type BuildConfig struct {
	EmbedConcurrency int
	EmbedTimeout     time.Duration
	MaxFailureRate   float64
}

// StatusReport is the externally visible state of both index variants.
type StatusReport struct {
	BM25       Status     `json:"bm25"`
	Vector     Status     `json:"vector"`
	ChunkCount int        `json:"chunk_count"`
	Shortfall  int        `json:"shortfall,omitempty"`
	BuiltAt    *time.Time `json:"built_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// Manager owns the current index generation for one project. Builds are
// all-or-nothing: a failed build leaves the previous generation queryable,
// and a successful one swaps the generation pointer atomically.
type Manager struct {
	embedder vector.Embedder
	cfg      BuildConfig

	mu           sync.RWMutex
	gen          *Generation
	vecIdx       *vector.Index
	bm25Status   Status
	vectorStatus Status
	building     bool
	activeScans  int
	lastError    string
}

// NewManager creates a manager with no generation built yet.
func NewManager(embedder vector.Embedder, cfg BuildConfig) *Manager {
	return &Manager{
		embedder:     embedder,
		cfg:          cfg,
		bm25Status:   StatusNotBuilt,
		vectorStatus: StatusNotBuilt,
	}
}

// Build constructs both indexes from the chunk set, in parallel, and swaps
// them in as the new generation. Refused while a scan holds the current
// generation or another build is running.
func (m *Manager) Build(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return ErrNoChunks
	}

	m.mu.Lock()
	if m.building {
		m.mu.Unlock()
		return ErrBuildInProgress
	}
	if m.activeScans > 0 {
		m.mu.Unlock()
		return ErrScanActive
	}
	m.building = true
	prevBM25, prevVector := m.bm25Status, m.vectorStatus
	m.bm25Status, m.vectorStatus = StatusBuilding, StatusBuilding
	m.mu.Unlock()

	start := time.Now()
	var (
		lexIdx *bm25.Index
		vecIdx *vector.Index
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexIdx, err = bm25.Build(chunks)
		if err != nil {
			return fmt.Errorf("bm25 build: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		vecIdx, err = vector.Build(gctx, chunks, m.embedder, vector.BuildOptions{
			Concurrency:    m.cfg.EmbedConcurrency,
			Timeout:        m.cfg.EmbedTimeout,
			MaxFailureRate: m.cfg.MaxFailureRate,
		})
		if err != nil {
			return fmt.Errorf("vector build: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		m.mu.Lock()
		m.building = false
		m.lastError = err.Error()
		// The failed variant reports error; the previous generation, if
		// any, stays queryable at its old status.
		if m.gen != nil {
			m.bm25Status, m.vectorStatus = prevBM25, prevVector
		} else {
			m.bm25Status, m.vectorStatus = StatusError, StatusError
		}
		m.mu.Unlock()
		return err
	}

	gen := &Generation{
		BM25:       lexIdx,
		Vector:     vecIdx,
		Pages:      BuildPageInfo(chunks),
		ChunkCount: len(chunks),
		Shortfall:  vecIdx.Shortfall(),
		BuiltAt:    time.Now(),
	}

	m.mu.Lock()
	m.gen = gen
	m.vecIdx = vecIdx
	m.bm25Status, m.vectorStatus = StatusReady, StatusReady
	m.building = false
	m.lastError = ""
	m.mu.Unlock()

	slog.Info("index generation built",
		"chunks", gen.ChunkCount,
		"shortfall", gen.Shortfall,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// Restore rebuilds a generation from chunks with persisted embeddings,
// skipping the embedding provider entirely.
func (m *Manager) Restore(chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return ErrNoChunks
	}

	lexIdx, err := bm25.Build(chunks)
	if err != nil {
		return fmt.Errorf("bm25 build: %w", err)
	}
	vecIdx, err := vector.Restore(chunks, m.embedder)
	if err != nil {
		return fmt.Errorf("vector restore: %w", err)
	}

	gen := &Generation{
		BM25:       lexIdx,
		Vector:     vecIdx,
		Pages:      BuildPageInfo(chunks),
		ChunkCount: len(chunks),
		Shortfall:  vecIdx.Shortfall(),
		BuiltAt:    time.Now(),
	}

	m.mu.Lock()
	m.gen = gen
	m.vecIdx = vecIdx
	m.bm25Status, m.vectorStatus = StatusReady, StatusReady
	m.lastError = ""
	m.mu.Unlock()
	return nil
}

// Acquire returns the current generation for a scan and pins it: no rebuild
// starts until the returned release function runs.
func (m *Manager) Acquire() (*Generation, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen == nil || m.bm25Status != StatusReady || m.vectorStatus != StatusReady {
		return nil, nil, ErrNotReady
	}

	m.activeScans++
	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			m.activeScans--
			m.mu.Unlock()
		})
	}
	return m.gen, release, nil
}

// EmbeddedChunks returns the current generation's chunks with embeddings,
// for persistence. Nil when no generation is ready.
func (m *Manager) EmbeddedChunks() []models.Chunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.vecIdx == nil {
		return nil
	}
	return m.vecIdx.EmbeddedChunks()
}

// Status reports the externally visible state of both indexes.
func (m *Manager) Status() StatusReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := StatusReport{
		BM25:      m.bm25Status,
		Vector:    m.vectorStatus,
		LastError: m.lastError,
	}
	if m.gen != nil {
		report.ChunkCount = m.gen.ChunkCount
		report.Shortfall = m.gen.Shortfall
		builtAt := m.gen.BuiltAt
		report.BuiltAt = &builtAt
	}
	return report
}

// IsThresholdError reports whether err is an embed failure-rate escalation.
func IsThresholdError(err error) bool {
	var te *vector.ThresholdError
	return errors.As(err, &te)
}
