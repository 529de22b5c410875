package flow

import "fmt"

// Color is a palette colour tag. The set is closed; anything else renders gray.
type Color string

const (
	ColorBlue    Color = "blue"
	ColorPurple  Color = "purple"
	ColorGreen   Color = "green"
	ColorRed     Color = "red"
	ColorYellow  Color = "yellow"
	ColorOrange  Color = "orange"
	ColorTeal    Color = "teal"
	ColorIndigo  Color = "indigo"
	ColorPink    Color = "pink"
	ColorCyan    Color = "cyan"
	ColorGray    Color = "gray"
	ColorEmerald Color = "emerald"
	ColorAmber   Color = "amber"
)

var knownColors = map[Color]bool{
	ColorBlue: true, ColorPurple: true, ColorGreen: true, ColorRed: true,
	ColorYellow: true, ColorOrange: true, ColorTeal: true, ColorIndigo: true,
	ColorPink: true, ColorCyan: true, ColorGray: true, ColorEmerald: true,
	ColorAmber: true,
}

// Class returns the tailwind background class for the colour at the given
// shade, e.g. "bg-blue-500".
func (c Color) Class(shade int) string {
	if !knownColors[c] {
		c = ColorGray
	}
	return fmt.Sprintf("bg-%s-%d", c, shade)
}

var canvasColors = map[NodeType]Color{
	NodeTypeStart:      ColorGreen,
	NodeTypeText:       ColorBlue,
	NodeTypeAIResponse: ColorPurple,
	NodeTypeCondition:  ColorYellow,
	NodeTypeTemplate:   ColorIndigo,
}

// CanvasColor is the fill used for a node of type t on the canvas.
func CanvasColor(t NodeType) Color {
	if c, ok := canvasColors[t]; ok {
		return c
	}
	return ColorGray
}

// ConnectionAnchor is where edge lines attach, relative to a node's position.
var ConnectionAnchor = Point{X: 60, Y: 30}
