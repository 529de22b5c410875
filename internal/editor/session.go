package editor

import (
	"sync"

	"flowdesk/internal/flow"
)

// Session is one flow open for editing. Gestures on a session run one at a
// time under its mutex, in arrival order.
type Session struct {
	flowID string

	mu           sync.Mutex
	name         string
	graph        *flow.Graph
	selection    flow.Selection
	canvas       *flow.Controller
	palette      *flow.Palette
	version      int64
	savedVersion int64

	notify func(Change)
}

// View is a consistent copy of a session's state for rendering.
type View struct {
	FlowID       string              `json:"flow_id"`
	Name         string              `json:"name"`
	Version      int64               `json:"version"`
	Nodes        []flow.Node         `json:"nodes"`
	Edges        []flow.Edge         `json:"edges"`
	Resolved     []flow.ResolvedEdge `json:"resolved_edges"`
	SelectedID   string              `json:"selected_id,omitempty"`
	HasSelection bool                `json:"has_selection"`
	Dirty        bool                `json:"dirty"`
}

func newSession(flowID, name string, g *flow.Graph, palette *flow.Palette, notify func(Change)) *Session {
	s := &Session{
		flowID:  flowID,
		name:    name,
		graph:   g,
		palette: palette,
		notify:  notify,
	}
	s.canvas = flow.NewController(g, &s.selection)
	return s
}

func (s *Session) ID() string {
	return s.flowID
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// DragStart records a palette drag. It reports false when nodeType is not
// a palette entry.
func (s *Session) DragStart(nodeType string) (flow.DragPayload, bool) {
	t, _ := flow.ParseNodeType(nodeType)
	entry, ok := s.palette.Lookup(t)
	if !ok {
		return flow.DragPayload{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.OnPaletteDragStart(entry), true
}

func (s *Session) DragOver() flow.DropEffect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.OnDragOver()
}

// Drop places a node for payload at the pointer position inside canvas.
// It returns the node and the session version that added it.
func (s *Session) Drop(payload flow.DragPayload, pointer flow.Point, canvas flow.Rect) (flow.Node, int64) {
	s.mu.Lock()
	n := s.canvas.OnCanvasDrop(payload, pointer, canvas)
	s.version++
	version := s.version
	change := Change{FlowID: s.flowID, Kind: ChangeNodeAdded, Node: &n, Version: version}
	s.mu.Unlock()

	s.emit(change)
	return n, version
}

// Click selects the node with the given id, whether or not it exists.
func (s *Session) Click(nodeID string) {
	s.mu.Lock()
	s.canvas.OnNodeClick(nodeID)
	change := Change{FlowID: s.flowID, Kind: ChangeSelection, NodeID: nodeID, Version: s.version}
	s.mu.Unlock()

	s.emit(change)
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selection.Clear()
	change := Change{FlowID: s.flowID, Kind: ChangeSelectionCleared, Version: s.version}
	s.mu.Unlock()

	s.emit(change)
}

func (s *Session) Selection() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Current()
}

// SelectedNode resolves the selection against the graph.
func (s *Session) SelectedNode() (flow.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Resolve(s.graph)
}

func (s *Session) FindNode(id string) (flow.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.FindNode(id)
}

func (s *Session) ResolvedEdges() []flow.ResolvedEdge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.ListEdgesResolved()
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	selected, has := s.selection.Current()
	return View{
		FlowID:       s.flowID,
		Name:         s.name,
		Version:      s.version,
		Nodes:        s.graph.Nodes(),
		Edges:        s.graph.Edges(),
		Resolved:     s.graph.ListEdgesResolved(),
		SelectedID:   selected,
		HasSelection: has,
		Dirty:        s.version != s.savedVersion,
	}
}

func (s *Session) Document() flow.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return flow.DocumentFromGraph(s.name, s.graph)
}

func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version != s.savedVersion
}

// snapshot returns the document to persist and the version it reflects.
func (s *Session) snapshot() (flow.Document, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return flow.DocumentFromGraph(s.name, s.graph), s.version
}

func (s *Session) markSaved(version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.savedVersion {
		s.savedVersion = version
	}
}

// rename bumps the version so a flush that read the old name is
// followed by one that writes the new one.
func (s *Session) rename(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	s.version++
}

func (s *Session) emit(c Change) {
	if s.notify != nil {
		s.notify(c)
	}
}
