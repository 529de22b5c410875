package flow

// NodeType identifies what a node does in a chatbot flow.
type NodeType string

const (
	NodeTypeStart      NodeType = "start"
	NodeTypeText       NodeType = "text"
	NodeTypeAIResponse NodeType = "ai_response"
	NodeTypeCondition  NodeType = "condition"
	NodeTypeTemplate   NodeType = "template"
	NodeTypeImage      NodeType = "image"
	NodeTypeVideo      NodeType = "video"
	NodeTypeAudio      NodeType = "audio"
	NodeTypeDocument   NodeType = "document"
	NodeTypeLocation   NodeType = "location"
	NodeTypeQuickReply NodeType = "quick_reply"
	NodeTypeList       NodeType = "list"
	NodeTypeButton     NodeType = "button"
	NodeTypeDelay      NodeType = "delay"

	// NodeTypeUnknown is what any unrecognised type becomes at the boundary.
	NodeTypeUnknown NodeType = "unknown"
)

var nodeTypes = []NodeType{
	NodeTypeStart,
	NodeTypeText,
	NodeTypeAIResponse,
	NodeTypeCondition,
	NodeTypeTemplate,
	NodeTypeImage,
	NodeTypeVideo,
	NodeTypeAudio,
	NodeTypeDocument,
	NodeTypeLocation,
	NodeTypeQuickReply,
	NodeTypeList,
	NodeTypeButton,
	NodeTypeDelay,
}

var knownNodeTypes = func() map[NodeType]bool {
	m := make(map[NodeType]bool, len(nodeTypes))
	for _, t := range nodeTypes {
		m[t] = true
	}
	return m
}()

// NodeTypes lists the recognised node types in declaration order.
func NodeTypes() []NodeType {
	out := make([]NodeType, len(nodeTypes))
	copy(out, nodeTypes)
	return out
}

// ParseNodeType maps s onto the catalog. The second result is false for
// anything outside it, in which case NodeTypeUnknown is returned.
func ParseNodeType(s string) (NodeType, bool) {
	t := NodeType(s)
	if knownNodeTypes[t] {
		return t, true
	}
	return NodeTypeUnknown, false
}

func (t NodeType) Known() bool {
	return knownNodeTypes[t]
}

func (t NodeType) String() string {
	return string(t)
}

// Point is a position in canvas pixel space. No bounds are enforced.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Rect is the canvas bounding box as reported by the client.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) TopLeft() Point {
	return Point{X: r.Left, Y: r.Top}
}

type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Type     NodeType `json:"type" yaml:"type"`
	Position Point    `json:"position" yaml:"position"`
	Label    string   `json:"label" yaml:"label"`
}

// Edge is a directed connection between two node ids. Either end may
// refer to a node that no longer exists.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// ResolvedEdge is an Edge whose endpoints were both found.
type ResolvedEdge struct {
	From Node `json:"from"`
	To   Node `json:"to"`
}

// DefaultLabel is the label a freshly dropped node gets.
func DefaultLabel(t NodeType) string {
	return "New " + string(t)
}
