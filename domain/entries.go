package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Visibility states of an entry.
const (
	VisibilityPublic   = "PUBLIC"
	VisibilityFriends  = "FRIENDS"
	VisibilityUnlisted = "UNLISTED"
	VisibilityDeleted  = "DELETED"
)

// Content types an entry may carry.
const (
	ContentTypePlain       = "text/plain"
	ContentTypeMarkdown    = "text/markdown"
	ContentTypePNGBase64   = "image/png;base64"
	ContentTypeJPEGBase64  = "image/jpeg;base64"
	ContentTypeApplication = "application/base64"
)

// Entry is a unit of published content. The Id is fully qualified and
// authoritative: entries mirrored from remote nodes keep their remote id.
type Entry struct {
	Id          string
	AuthorUuid  uuid.UUID
	Title       string
	Description string
	Content     string
	ContentType string
	Visibility  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsImage reports whether the entry content is base64 image data.
func (e *Entry) IsImage() bool {
	return strings.HasPrefix(e.ContentType, "image/") || e.ContentType == ContentTypeApplication
}

// UuidSuffix is the last path segment of the entry id. Usually a uuid,
// but externally sourced entries may carry an opaque suffix.
func (e *Entry) UuidSuffix() string {
	s := strings.TrimRight(e.Id, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ValidVisibility reports whether v is one of the defined visibility states.
func ValidVisibility(v string) bool {
	switch v {
	case VisibilityPublic, VisibilityFriends, VisibilityUnlisted, VisibilityDeleted:
		return true
	}
	return false
}

// EntryFQID builds a fully qualified entry id under the author's fqid.
func EntryFQID(host string, authorUuid uuid.UUID, entryUuid string) string {
	return fmt.Sprintf("%sauthors/%s/entries/%s", host, authorUuid, entryUuid)
}
