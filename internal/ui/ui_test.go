package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAlignsUnicode(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	old := Output
	Output = &buf
	t.Cleanup(func() { Output = old })

	Table([]string{"TYPE", "CATEGORY"}, [][]string{
		{"condition", "Lógica"},
		{"text", "Mensajes"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "  TYPE       CATEGORY", strings.TrimRight(lines[0], " "))
	assert.Equal(t, "  condition  Lógica", lines[2])
	assert.Equal(t, "  text       Mensajes", lines[3])
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	old := Output
	Output = &buf
	t.Cleanup(func() { Output = old })

	Table([]string{"A"}, nil)
	assert.Empty(t, buf.String())
}

func TestVisibleWidthSkipsEscapes(t *testing.T) {
	assert.Equal(t, 4, visibleWidth("\x1b[32mblue\x1b[0m"))
	assert.Equal(t, 6, visibleWidth("Lógica"))
}

func TestSwatchFallsBackToGray(t *testing.T) {
	color.NoColor = true
	assert.Equal(t, "■ violet", Swatch("violet"))
	assert.Equal(t, "■ blue", Swatch("blue"))
}
