package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Parallel()

	r := NewRenderer()

	out, err := r.Render("# Title\n\nsome *text*")
	require.NoError(t, err)
	require.Contains(t, out, `<h1 id="title">Title</h1>`)
	require.Contains(t, out, "<em>text</em>")
}

func TestRenderEscapesRawHTML(t *testing.T) {
	t.Parallel()

	out, err := NewRenderer().Render("<script>alert(1)</script>")
	require.NoError(t, err)
	require.NotContains(t, out, "<script>")
}

func TestRenderTables(t *testing.T) {
	t.Parallel()

	out, err := NewRenderer().Render("| a | b |\n|---|---|\n| 1 | 2 |")
	require.NoError(t, err)
	require.Contains(t, out, "<table>")
}
