// ABOUTME: Linear undo/redo history over serialized topology snapshots.
// ABOUTME: Rejects duplicate saves, discards the redo branch on new edits, and evicts the oldest past capacity.
package history

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/2389-research/topoedit/topo"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// DefaultMaxHistory is the snapshot capacity used when none is configured.
const DefaultMaxHistory = 50

// Snapshot is an immutable copy of the topology at one point in history.
type Snapshot struct {
	ID     ulid.ULID      `json:"id"`
	Taken  time.Time      `json:"taken"`
	Digest string         `json:"digest"`
	doc    *topo.Document
}

// Document returns a copy of the snapshot's topology.
func (s Snapshot) Document() *topo.Document {
	return s.doc.Clone()
}

// Status summarizes the history for UI toolbars.
type Status struct {
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
	Length  int  `json:"length"`
	Index   int  `json:"index"`
}

// Manager records snapshots of a graph and restores them on undo and redo.
// It is not safe for concurrent use.
type Manager struct {
	g         topo.Graph
	snapshots []Snapshot
	index     int
	max       int
	restoring bool
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxHistory caps the number of retained snapshots. Values below 1 are ignored.
func WithMaxHistory(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.max = n
		}
	}
}

// WithLogger sets the logger used for history events.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a Manager over g and records the current state as the
// initial snapshot at index 0.
func New(g topo.Graph, opts ...Option) *Manager {
	m := &Manager{
		g:      g,
		index:  -1,
		max:    DefaultMaxHistory,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.SaveState()
	return m
}

func (m *Manager) capture() (Snapshot, error) {
	doc := topo.Serialize(m.g)
	data, err := topo.EncodeDocument(doc)
	if err != nil {
		return Snapshot{}, err
	}
	sum := sha256.Sum256(data)
	return Snapshot{
		ID:     ulid.MustNew(ulid.Timestamp(m.now()), rand.Reader),
		Taken:  m.now(),
		Digest: hex.EncodeToString(sum[:]),
		doc:    doc,
	}, nil
}

// SaveState snapshots the graph. It returns false while a restore is in
// progress and when the graph is identical to the current snapshot.
func (m *Manager) SaveState() bool {
	if m.restoring {
		return false
	}
	snap, err := m.capture()
	if err != nil {
		m.logger.Error("history capture failed", zap.Error(err))
		return false
	}
	if m.index >= 0 && m.snapshots[m.index].Digest == snap.Digest {
		return false
	}

	m.snapshots = append(m.snapshots[:m.index+1], snap)
	m.index = len(m.snapshots) - 1
	if over := len(m.snapshots) - m.max; over > 0 {
		m.snapshots = append([]Snapshot(nil), m.snapshots[over:]...)
		m.index -= over
	}

	m.logger.Debug("history saved",
		zap.String("snapshot", snap.ID.String()),
		zap.Int("index", m.index),
		zap.Int("length", len(m.snapshots)))
	return true
}

// Undo restores the previous snapshot.
func (m *Manager) Undo() bool {
	if m.restoring || !m.CanUndo() {
		return false
	}
	return m.moveTo(m.index-1, "undo")
}

// Redo restores the next snapshot.
func (m *Manager) Redo() bool {
	if m.restoring || !m.CanRedo() {
		return false
	}
	return m.moveTo(m.index+1, "redo")
}

func (m *Manager) moveTo(i int, op string) bool {
	if err := m.restore(m.snapshots[i]); err != nil {
		m.logger.Error("history restore failed",
			zap.String("op", op),
			zap.Int("index", i),
			zap.Error(err))
		return false
	}
	m.index = i
	m.logger.Debug("history "+op, zap.Int("index", i))
	return true
}

func (m *Manager) restore(s Snapshot) error {
	m.restoring = true
	defer func() { m.restoring = false }()

	if _, err := topo.Deserialize(m.g, s.doc); err != nil {
		return fmt.Errorf("restore snapshot %s: %w", s.ID, err)
	}
	topo.EnforceLayering(m.g)
	return nil
}

// CanUndo reports whether an older snapshot exists.
func (m *Manager) CanUndo() bool {
	return m.index > 0
}

// CanRedo reports whether a newer snapshot exists.
func (m *Manager) CanRedo() bool {
	return m.index >= 0 && m.index < len(m.snapshots)-1
}

// Clear drops every snapshot. Callers re-establish a baseline with SaveState.
func (m *Manager) Clear() {
	m.snapshots = nil
	m.index = -1
	m.logger.Debug("history cleared")
}

// Restoring reports whether a snapshot is being applied to the graph.
func (m *Manager) Restoring() bool {
	return m.restoring
}

// State returns the current pointer and boundary flags.
func (m *Manager) State() Status {
	return Status{
		CanUndo: m.CanUndo(),
		CanRedo: m.CanRedo(),
		Length:  len(m.snapshots),
		Index:   m.index,
	}
}

// Snapshots returns the retained snapshots, oldest first.
func (m *Manager) Snapshots() []Snapshot {
	return append([]Snapshot(nil), m.snapshots...)
}

// Current returns the snapshot at the pointer.
func (m *Manager) Current() (Snapshot, bool) {
	if m.index < 0 {
		return Snapshot{}, false
	}
	return m.snapshots[m.index], true
}
