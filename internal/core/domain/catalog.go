package domain

import "time"

// Category is a node in the browsing tree. A category with children is a
// branch, one without is a leaf. The parent relation forms a forest; root
// categories carry a nil ParentID.
type Category struct {
	ID       int64
	Name     string
	ParentID *int64
}

// Document is a content record filed under exactly one leaf category. The
// FileID is a transport-specific handle and is never interpreted by the core.
// Documents are immutable once committed.
type Document struct {
	ID         string
	CategoryID int64
	FileID     string
	Caption    string
	CreatedAt  time.Time
}

// DocumentDraft is one pending upload buffered in a session before commit.
// OriginalCaption is whatever caption arrived attached to the submission.
type DocumentDraft struct {
	FileID          string
	OriginalCaption string
}
