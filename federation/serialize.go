package federation

import (
	"time"

	"github.com/deemkeen/chirpnet/domain"
)

// AuthorToPayload renders an author in the wire shape shared by the
// directory endpoint and every nested author object.
func AuthorToPayload(a *domain.Author) domain.AuthorPayload {
	return domain.AuthorPayload{
		Type:         domain.TypeAuthor,
		Id:           a.Id,
		Host:         a.Host,
		DisplayName:  a.DisplayName,
		Github:       a.GithubLink,
		ProfileImage: a.ProfileImage,
		Web:          a.WebURL(),
		Description:  a.Description,
	}
}

// EntryToPayload renders the exact snapshot that fans out to peers and
// that detail endpoints return. Live delivery and backfill use the same
// serialization.
func EntryToPayload(e *domain.Entry, author *domain.Author) domain.EntryPayload {
	return domain.EntryPayload{
		Type:        domain.TypeEntry,
		Title:       e.Title,
		Id:          e.Id,
		Web:         author.WebURL() + "/entries/" + e.UuidSuffix(),
		Description: e.Description,
		ContentType: e.ContentType,
		Content:     e.Content,
		Author:      AuthorToPayload(author),
		Published:   e.CreatedAt.Format(time.RFC3339),
		Visibility:  e.Visibility,
	}
}

func CommentToPayload(c *domain.Comment, author *domain.Author) domain.CommentPayload {
	return domain.CommentPayload{
		Type:        domain.TypeComment,
		Author:      AuthorToPayload(author),
		Comment:     c.Comment,
		ContentType: c.ContentType,
		Published:   c.CreatedAt.Format(time.RFC3339),
		Id:          c.Id,
		Entry:       c.EntryId,
	}
}

func LikeToPayload(l *domain.Like, author *domain.Author) domain.LikePayload {
	return domain.LikePayload{
		Type:      domain.TypeLike,
		Author:    AuthorToPayload(author),
		Published: l.CreatedAt.Format(time.RFC3339),
		Id:        l.Id,
		Object:    l.ObjectUrl,
	}
}

// parsePublished reads an RFC3339 timestamp off the wire; a missing or
// unparsable one falls back to now.
func parsePublished(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now()
	}
	return t
}
