package flow

type Category string

const (
	CategoryMessages    Category = "Mensajes"
	CategoryInteractive Category = "Interactivos"
	CategoryLogic       Category = "Lógica"
)

// PaletteEntry describes one draggable node type.
type PaletteEntry struct {
	Type     NodeType `json:"type"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
	Color    Color    `json:"color"`
}

type PaletteCategory struct {
	Title   Category       `json:"title"`
	Entries []PaletteEntry `json:"entries"`
}

// Palette is the read-only catalog of drag sources.
type Palette struct {
	entries []PaletteEntry
}

var defaultEntries = []PaletteEntry{
	{Type: NodeTypeText, Label: "Mensaje de Texto", Category: CategoryMessages, Color: ColorBlue},
	{Type: NodeTypeTemplate, Label: "Plantilla", Category: CategoryMessages, Color: ColorPurple},
	{Type: NodeTypeImage, Label: "Imagen", Category: CategoryMessages, Color: ColorGreen},
	{Type: NodeTypeVideo, Label: "Video", Category: CategoryMessages, Color: ColorRed},
	{Type: NodeTypeAudio, Label: "Audio", Category: CategoryMessages, Color: ColorYellow},
	{Type: NodeTypeDocument, Label: "Documento", Category: CategoryMessages, Color: ColorOrange},
	{Type: NodeTypeLocation, Label: "Ubicación", Category: CategoryMessages, Color: ColorTeal},

	{Type: NodeTypeQuickReply, Label: "Respuesta Rápida", Category: CategoryInteractive, Color: ColorIndigo},
	{Type: NodeTypeList, Label: "Lista", Category: CategoryInteractive, Color: ColorPink},
	{Type: NodeTypeButton, Label: "Botones", Category: CategoryInteractive, Color: ColorCyan},

	{Type: NodeTypeCondition, Label: "Condición", Category: CategoryLogic, Color: ColorGray},
	{Type: NodeTypeAIResponse, Label: "Respuesta IA", Category: CategoryLogic, Color: ColorEmerald},
	{Type: NodeTypeDelay, Label: "Espera", Category: CategoryLogic, Color: ColorAmber},
}

var categoryOrder = []Category{CategoryMessages, CategoryInteractive, CategoryLogic}

func DefaultPalette() *Palette {
	return &Palette{entries: defaultEntries}
}

func (p *Palette) Entries() []PaletteEntry {
	out := make([]PaletteEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Categories groups the entries in display order.
func (p *Palette) Categories() []PaletteCategory {
	groups := make([]PaletteCategory, 0, len(categoryOrder))
	for _, c := range categoryOrder {
		group := PaletteCategory{Title: c}
		for _, e := range p.entries {
			if e.Category == c {
				group.Entries = append(group.Entries, e)
			}
		}
		groups = append(groups, group)
	}
	return groups
}

func (p *Palette) Lookup(t NodeType) (PaletteEntry, bool) {
	for _, e := range p.entries {
		if e.Type == t {
			return e, true
		}
	}
	return PaletteEntry{}, false
}
