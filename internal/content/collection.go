package content

import (
	"context"
	"fmt"
)

// CollectionType names a list of content that can be browsed.
type CollectionType string

const (
	// CollectionArticles is every published article.
	CollectionArticles CollectionType = "articles"

	// CollectionUserArticles is the articles of one author. The
	// collection id is the author id.
	CollectionUserArticles CollectionType = "user_articles"

	// CollectionComments is every published comment.
	CollectionComments CollectionType = "comments"

	// CollectionArticleComments is the published comments of one
	// article. The collection id is the article id.
	CollectionArticleComments CollectionType = "article_comments"
)

// CollectionAccessor is implemented by content services that can list
// collections of their content.
type CollectionAccessor interface {
	// SupportedCollections lists the collection types served.
	SupportedCollections() []CollectionType

	// ContentCollection lists the members of one collection.
	ContentCollection(ctx context.Context, ct CollectionType,
		collectionID string) ([]Details, error)
}

// CollectionRegistry routes collection requests to the accessor serving the
// collection type. It is immutable after construction.
type CollectionRegistry struct {
	accessors map[CollectionType]CollectionAccessor
}

// NewCollectionRegistry indexes the given accessors. Two accessors claiming
// the same collection type is a wiring error.
func NewCollectionRegistry(
	accessors ...CollectionAccessor) (*CollectionRegistry, error) {

	r := &CollectionRegistry{
		accessors: make(map[CollectionType]CollectionAccessor),
	}
	for _, a := range accessors {
		for _, ct := range a.SupportedCollections() {
			if _, ok := r.accessors[ct]; ok {
				return nil, fmt.Errorf("collection %s served "+
					"twice", ct)
			}
			r.accessors[ct] = a
		}
	}

	return r, nil
}

// Collection lists a collection, or returns ErrUnsupportedCollection.
func (r *CollectionRegistry) Collection(ctx context.Context,
	ct CollectionType, collectionID string) ([]Details, error) {

	a, ok := r.accessors[ct]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCollection, ct)
	}

	return a.ContentCollection(ctx, ct, collectionID)
}
