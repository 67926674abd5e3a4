package content

import (
	"fmt"
	"strconv"
	"time"
)

// Type identifies the kind of a content object. It is the dispatch key of
// the review marker registry.
type Type string

const (
	// TypeArticle is a blog article.
	TypeArticle Type = "article"

	// TypeComment is a comment on an article or on another comment.
	TypeComment Type = "comment"
)

// AllTypes lists the known content types.
func AllTypes() []Type {
	return []Type{TypeArticle, TypeComment}
}

// ParseType converts the stored form of a content type.
func ParseType(s string) (Type, error) {
	for _, t := range AllTypes() {
		if string(t) == s {
			return t, nil
		}
	}

	return "", fmt.Errorf("unknown content type %q", s)
}

// String returns the stored form.
func (t Type) String() string {
	return string(t)
}

// Ref is the lightweight handle the review core uses for content. The id is
// opaque to everything except the owning content service.
type Ref struct {
	ID       string
	Type     Type
	AuthorID int64
}

// String renders the ref as type:id, which is also its ordering key.
func (r Ref) String() string {
	return fmt.Sprintf("%s:%s", r.Type, r.ID)
}

// Key is the ordering key for events about this content.
func (r Ref) Key() string {
	return r.String()
}

// FormatID renders a numeric content id in its opaque string form.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseID parses an opaque content id produced by FormatID.
func ParseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed id %q", ErrContentNotFound,
			id)
	}

	return n, nil
}

// Details is the summary row returned by content collections.
type Details struct {
	Ref       Ref
	Title     string
	Status    Status
	CreatedAt time.Time
}
