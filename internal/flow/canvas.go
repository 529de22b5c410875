package flow

// DragPayload is what a palette drag carries to the canvas.
type DragPayload struct {
	NodeType string `json:"node_type"`
}

// DropEffect is the answer to a drag-over; the canvas accepts every drop.
type DropEffect string

const DropEffectCopy DropEffect = "copy"

// Controller turns canvas gestures into graph and selection changes.
type Controller struct {
	graph     *Graph
	selection *Selection
	pending   *DragPayload
}

func NewController(g *Graph, sel *Selection) *Controller {
	return &Controller{graph: g, selection: sel}
}

// OnPaletteDragStart records the entry being dragged.
func (c *Controller) OnPaletteDragStart(entry PaletteEntry) DragPayload {
	p := DragPayload{NodeType: string(entry.Type)}
	c.pending = &p
	return p
}

// Pending returns the payload of the drag in progress, if any.
func (c *Controller) Pending() (DragPayload, bool) {
	if c.pending == nil {
		return DragPayload{}, false
	}
	return *c.pending, true
}

func (c *Controller) OnDragOver() DropEffect {
	return DropEffectCopy
}

// OnCanvasDrop adds one unconnected node at the pointer position relative
// to the canvas origin. A payload without a type falls back to the drag in
// progress; a type outside the catalog becomes NodeTypeUnknown.
func (c *Controller) OnCanvasDrop(payload DragPayload, pointer Point, canvas Rect) Node {
	raw := payload.NodeType
	if raw == "" && c.pending != nil {
		raw = c.pending.NodeType
	}
	c.pending = nil

	t, _ := ParseNodeType(raw)
	return c.graph.AddNode(t, pointer.Sub(canvas.TopLeft()))
}

func (c *Controller) OnNodeClick(id string) {
	c.selection.Select(id)
}
