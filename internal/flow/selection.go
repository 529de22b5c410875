package flow

// Selection tracks at most one selected node id. It holds the id only and
// never checks it against the graph.
type Selection struct {
	id  string
	set bool
}

func (s *Selection) Select(id string) {
	s.id = id
	s.set = true
}

func (s *Selection) Clear() {
	s.id = ""
	s.set = false
}

func (s *Selection) Current() (string, bool) {
	return s.id, s.set
}

// Resolve looks the selected id up in g. A selection pointing at a missing
// node resolves to nothing.
func (s *Selection) Resolve(g *Graph) (Node, bool) {
	if !s.set {
		return Node{}, false
	}
	return g.FindNode(s.id)
}
