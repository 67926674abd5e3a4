package review

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/lamp-blog/lamp/internal/content"
)

// Finalization is what a status marker needs to apply a review outcome.
// EventID is stable across redeliveries of the same decision.
type Finalization struct {
	EventID   string
	JobID     int64
	Type      content.Type
	ContentID string

	// Reason is set for rejections.
	Reason string
}

// StatusMarker applies review outcomes to the content types it declares.
// Implementations must tolerate the same Finalization arriving twice.
type StatusMarker interface {
	// Name identifies the marker in logs and metrics.
	Name() string

	// SupportedReviewTypes lists the content types handled. Must not be
	// empty.
	SupportedReviewTypes() []content.Type

	// MarkAsReviewed applies an approval.
	MarkAsReviewed(ctx context.Context, f Finalization) error

	// MarkAsRejected applies a rejection.
	MarkAsRejected(ctx context.Context, f Finalization) error
}

// ContentLocator reports whether content exists. Markers usually
// implement it too.
type ContentLocator interface {
	ContentExists(ctx context.Context, ref content.Ref) (bool, error)
}

// Registry maps content types to the markers that handle them. It is
// built once and never modified.
type Registry struct {
	byType map[content.Type][]StatusMarker
}

// NewRegistry indexes markers by the types they declare.
func NewRegistry(markers ...StatusMarker) (*Registry, error) {
	r := &Registry{
		byType: make(map[content.Type][]StatusMarker),
	}

	for _, m := range markers {
		if m == nil {
			return nil, fmt.Errorf("nil status marker")
		}

		types := m.SupportedReviewTypes()
		if len(types) == 0 {
			return nil, fmt.Errorf("status marker %q declares no "+
				"content types", m.Name())
		}

		// Markers are keyed by name. A name already registered for a
		// type is skipped.
		for _, t := range types {
			registered := slices.ContainsFunc(r.byType[t],
				func(other StatusMarker) bool {
					return other.Name() == m.Name()
				})
			if registered {
				continue
			}
			r.byType[t] = append(r.byType[t], m)
		}
	}

	return r, nil
}

// Lookup returns the markers for t in registration order. The slice is a
// copy and never nil.
func (r *Registry) Lookup(t content.Type) []StatusMarker {
	markers := r.byType[t]
	out := make([]StatusMarker, len(markers))
	copy(out, markers)

	return out
}

// Supports reports whether any marker handles t.
func (r *Registry) Supports(t content.Type) bool {
	return len(r.byType[t]) > 0
}

// Types lists the registered content types, sorted.
func (r *Registry) Types() []content.Type {
	types := make([]content.Type, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		return types[i] < types[j]
	})

	return types
}
