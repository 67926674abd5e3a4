package sqlc

import (
	"database/sql"
)

type Article struct {
	ID           int64
	AuthorID     int64
	Title        string
	BodyMd       string
	BodyHtml     sql.NullString
	Status       string
	PrevStatus   sql.NullString
	RejectReason sql.NullString
	CreatedAt    int64
	UpdatedAt    int64
	PublishedAt  sql.NullInt64
}

type Comment struct {
	ID           int64
	ArticleID    int64
	ParentID     sql.NullInt64
	AuthorID     int64
	BodyMd       string
	BodyHtml     sql.NullString
	Status       string
	RejectReason sql.NullString
	CreatedAt    int64
	UpdatedAt    int64
}

type ReviewJob struct {
	ID           int64
	ContentID    string
	ContentType  string
	AuthorID     int64
	ReviewerID   sql.NullInt64
	Status       string
	Reason       sql.NullString
	Auto         int64
	CreatedAt    int64
	DecidedAt    sql.NullInt64
	DispatchedAt sql.NullInt64
}
