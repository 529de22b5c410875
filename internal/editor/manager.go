package editor

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flowdesk/internal/flow"
	"flowdesk/internal/models"
)

var ErrFlowNotFound = errors.New("flow not found")

// Store is the persistence the manager needs. *models.FlowRepository
// satisfies it.
type Store interface {
	Create(f *models.Flow) error
	GetByID(id string) (*models.Flow, error)
	GetAll() ([]models.FlowSummary, error)
	Save(f *models.Flow) (bool, error)
	Rename(id, name string) (bool, error)
	Delete(id string) (bool, error)
}

type ChangeKind string

const (
	ChangeNodeAdded        ChangeKind = "node_added"
	ChangeSelection        ChangeKind = "selection_changed"
	ChangeSelectionCleared ChangeKind = "selection_cleared"
)

// Change describes one gesture applied to a session.
type Change struct {
	FlowID  string
	Kind    ChangeKind
	Node    *flow.Node
	NodeID  string
	Version int64
}

// Manager keeps the open editing sessions, loading flows from the store on
// first use.
type Manager struct {
	store   Store
	palette *flow.Palette
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	handlerMu sync.RWMutex
	onChange  func(Change)
}

func NewManager(store Store, palette *flow.Palette, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		palette:  palette,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) SetChangeHandler(handler func(Change)) {
	m.handlerMu.Lock()
	m.onChange = handler
	m.handlerMu.Unlock()
}

func (m *Manager) Palette() *flow.Palette {
	return m.palette
}

func (m *Manager) notify(c Change) {
	m.handlerMu.RLock()
	handler := m.onChange
	m.handlerMu.RUnlock()

	if handler != nil {
		handler(c)
	}
}

// Open returns the session for a flow, loading it from the store if it is
// not already open.
func (m *Manager) Open(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, nil
	}

	stored, err := m.store.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow: %w", err)
	}
	if stored == nil {
		return nil, ErrFlowNotFound
	}

	g, err := flow.Restore(stored.Nodes, stored.Edges)
	if err != nil {
		return nil, fmt.Errorf("flow %s is corrupt: %w", id, err)
	}

	s := newSession(stored.ID, stored.Name, g, m.palette, m.notify)
	m.sessions[id] = s
	m.logger.Debug("flow opened", zap.String("flow_id", id), zap.Int("nodes", g.NodeCount()))
	return s, nil
}

// Create stores a new flow holding the seed graph and opens it.
func (m *Manager) Create(name string) (*Session, error) {
	return m.add(name, flow.NewSeedGraph())
}

// Import stores a flow built from doc and opens it.
func (m *Manager) Import(doc flow.Document) (*Session, error) {
	g, err := doc.Graph()
	if err != nil {
		return nil, fmt.Errorf("invalid flow document: %w", err)
	}
	return m.add(doc.Name, g)
}

func (m *Manager) add(name string, g *flow.Graph) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("flow name is required")
	}

	stored := &models.Flow{
		ID:    uuid.New().String(),
		Name:  name,
		Nodes: g.Nodes(),
		Edges: g.Edges(),
	}
	if err := m.store.Create(stored); err != nil {
		return nil, err
	}

	s := newSession(stored.ID, stored.Name, g, m.palette, m.notify)

	m.mu.Lock()
	m.sessions[stored.ID] = s
	m.mu.Unlock()

	m.logger.Info("flow created", zap.String("flow_id", stored.ID), zap.String("name", name))
	return s, nil
}

// EnsureDefault creates a flow called name when the store holds none. It
// returns the id of the most recently updated flow.
func (m *Manager) EnsureDefault(name string) (string, error) {
	flows, err := m.store.GetAll()
	if err != nil {
		return "", err
	}
	if len(flows) > 0 {
		return flows[0].ID, nil
	}

	s, err := m.Create(name)
	if err != nil {
		return "", err
	}
	return s.ID(), nil
}

func (m *Manager) List() ([]models.FlowSummary, error) {
	return m.store.GetAll()
}

func (m *Manager) Rename(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("flow name is required")
	}

	found, err := m.store.Rename(id, name)
	if err != nil {
		return err
	}
	if !found {
		return ErrFlowNotFound
	}

	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		s.rename(name)
	}
	return nil
}

func (m *Manager) Delete(id string) error {
	found, err := m.store.Delete(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if !found {
		return ErrFlowNotFound
	}
	m.logger.Info("flow deleted", zap.String("flow_id", id))
	return nil
}

// Save writes the open session for id back to the store.
func (m *Manager) Save(id string) error {
	s, err := m.Open(id)
	if err != nil {
		return err
	}
	return m.SaveSession(s)
}

func (m *Manager) SaveSession(s *Session) error {
	doc, version := s.snapshot()

	found, err := m.store.Save(&models.Flow{
		ID:    s.ID(),
		Name:  doc.Name,
		Nodes: doc.Nodes,
		Edges: doc.Edges,
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrFlowNotFound
	}

	s.markSaved(version)
	return nil
}

// DirtySessions lists open sessions with unsaved changes.
func (m *Manager) DirtySessions() []*Session {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	dirty := open[:0]
	for _, s := range open {
		if s.Dirty() {
			dirty = append(dirty, s)
		}
	}
	return dirty
}
