package review

import (
	"context"
	"testing"

	"github.com/lamp-blog/lamp/internal/content"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	t.Parallel()

	articles := newRecordingMarker("articles", content.TypeArticle)
	feed := newRecordingMarker("feed", content.TypeArticle,
		content.TypeComment)

	reg, err := NewRegistry(articles, feed)
	require.NoError(t, err)

	require.Equal(t, []StatusMarker{articles, feed},
		reg.Lookup(content.TypeArticle))
	require.Equal(t, []StatusMarker{feed}, reg.Lookup(content.TypeComment))
	require.Equal(t, []content.Type{content.TypeArticle,
		content.TypeComment}, reg.Types())
}

func TestRegistryLookupNeverNil(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry()
	require.NoError(t, err)

	markers := reg.Lookup(content.TypeComment)
	require.NotNil(t, markers)
	require.Empty(t, markers)
	require.False(t, reg.Supports(content.TypeComment))
}

func TestRegistryLookupReturnsCopy(t *testing.T) {
	t.Parallel()

	m := newRecordingMarker("articles", content.TypeArticle)
	reg, err := NewRegistry(m)
	require.NoError(t, err)

	markers := reg.Lookup(content.TypeArticle)
	markers[0] = nil

	require.Equal(t, []StatusMarker{m}, reg.Lookup(content.TypeArticle))
}

func TestRegistryDuplicateKeptOnce(t *testing.T) {
	t.Parallel()

	m := newRecordingMarker("twice", content.TypeArticle,
		content.TypeArticle)
	reg, err := NewRegistry(m, m)
	require.NoError(t, err)

	require.Len(t, reg.Lookup(content.TypeArticle), 1)
}

func TestRegistryRejectsEmptyTypes(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(newRecordingMarker("none"))
	require.Error(t, err)
}

// valueMarker is a non-comparable marker value.
type valueMarker struct {
	name  string
	types []content.Type
}

func (v valueMarker) Name() string { return v.name }

func (v valueMarker) SupportedReviewTypes() []content.Type {
	return v.types
}

func (v valueMarker) MarkAsReviewed(context.Context, Finalization) error {
	return nil
}

func (v valueMarker) MarkAsRejected(context.Context, Finalization) error {
	return nil
}

func TestRegistryValueMarkers(t *testing.T) {
	t.Parallel()

	a := valueMarker{name: "a", types: []content.Type{content.TypeArticle}}
	b := valueMarker{name: "b", types: []content.Type{content.TypeArticle}}
	again := valueMarker{
		name:  "a",
		types: []content.Type{content.TypeArticle, content.TypeComment},
	}

	var (
		reg *Registry
		err error
	)
	require.NotPanics(t, func() {
		reg, err = NewRegistry(a, b, again)
	})
	require.NoError(t, err)

	article := reg.Lookup(content.TypeArticle)
	require.Len(t, article, 2)
	require.Equal(t, "a", article[0].Name())
	require.Equal(t, "b", article[1].Name())

	require.Len(t, reg.Lookup(content.TypeComment), 1)
}
