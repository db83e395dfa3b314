// Package visibility decides who may see, enumerate and modify content.
// All decisions are computed from stored follow edges at call time;
// nothing here is cached.
package visibility

import (
	"errors"

	"github.com/deemkeen/chirpnet/db"
	"github.com/deemkeen/chirpnet/domain"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Resolver struct {
	DB *db.DB
}

func NewResolver(database *db.DB) *Resolver {
	return &Resolver{DB: database}
}

// Follows reports whether viewer has an accepted edge to author.
func (r *Resolver) Follows(viewer, author uuid.UUID) (bool, error) {
	fr, err := r.DB.ReadFollowRequest(viewer, author)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fr.Accepted.Bool(), nil
}

// IsFriend reports whether a and b hold accepted edges in both directions.
func (r *Resolver) IsFriend(a, b uuid.UUID) (bool, error) {
	ab, err := r.Follows(a, b)
	if err != nil || !ab {
		return false, err
	}
	return r.Follows(b, a)
}

// Friends derives the friend set of author: the intersection of accepted
// incoming and outgoing edges. Friendship is never stored.
func (r *Resolver) Friends(author uuid.UUID) ([]uuid.UUID, error) {
	followers, err := r.DB.FollowerUuids(author)
	if err != nil {
		return nil, err
	}
	following, err := r.DB.FollowingUuids(author)
	if err != nil {
		return nil, err
	}
	return lo.Intersect(followers, following), nil
}

// CanRead decides whether viewer may fetch the entry directly by id.
// viewer is nil for anonymous requests. PUBLIC and UNLISTED entries are
// readable by anyone holding the id; FRIENDS needs a mutual edge;
// DELETED is readable by staff only (callers conceal it as absent).
func (r *Resolver) CanRead(viewer *domain.Author, entry *domain.Entry) (bool, error) {
	switch entry.Visibility {
	case domain.VisibilityPublic, domain.VisibilityUnlisted:
		return true, nil
	case domain.VisibilityDeleted:
		return viewer != nil && viewer.IsStaff.Bool(), nil
	case domain.VisibilityFriends:
		if viewer == nil {
			return false, nil
		}
		if viewer.Uuid == entry.AuthorUuid || viewer.IsStaff.Bool() {
			return true, nil
		}
		return r.IsFriend(viewer.Uuid, entry.AuthorUuid)
	}
	return false, nil
}

// CanModify decides whether viewer may update or delete the entry.
// Strictly the author; staff read everything but modify nothing.
func (r *Resolver) CanModify(viewer *domain.Author, entry *domain.Entry) bool {
	return viewer != nil && viewer.Uuid == entry.AuthorUuid
}

// ListVisibilities returns the visibility states viewer may enumerate when
// listing author's entries:
//
//	staff           -> everything, DELETED included
//	the author      -> all but DELETED
//	mutual friends  -> PUBLIC, UNLISTED, FRIENDS
//	accepted follower -> PUBLIC, UNLISTED
//	everyone else   -> PUBLIC
func (r *Resolver) ListVisibilities(viewer *domain.Author, author uuid.UUID) ([]string, error) {
	if viewer != nil && viewer.IsStaff.Bool() {
		return []string{domain.VisibilityPublic, domain.VisibilityUnlisted, domain.VisibilityFriends, domain.VisibilityDeleted}, nil
	}
	if viewer == nil {
		return []string{domain.VisibilityPublic}, nil
	}
	if viewer.Uuid == author {
		return []string{domain.VisibilityPublic, domain.VisibilityUnlisted, domain.VisibilityFriends}, nil
	}

	friend, err := r.IsFriend(viewer.Uuid, author)
	if err != nil {
		return nil, err
	}
	if friend {
		return []string{domain.VisibilityPublic, domain.VisibilityUnlisted, domain.VisibilityFriends}, nil
	}

	follows, err := r.Follows(viewer.Uuid, author)
	if err != nil {
		return nil, err
	}
	if follows {
		return []string{domain.VisibilityPublic, domain.VisibilityUnlisted}, nil
	}

	return []string{domain.VisibilityPublic}, nil
}

// Feed returns the entries visible on viewer's feed, newest first: own
// entries, all PUBLIC, UNLISTED by authors the viewer follows and FRIENDS
// by mutual friends. DELETED never appears.
func (r *Resolver) Feed(viewer *domain.Author) ([]domain.Entry, error) {
	followed, err := r.DB.FollowingUuids(viewer.Uuid)
	if err != nil {
		return nil, err
	}
	followers, err := r.DB.FollowerUuids(viewer.Uuid)
	if err != nil {
		return nil, err
	}
	friends := lo.Intersect(followed, followers)

	return r.DB.FeedEntries(viewer.Uuid, followed, friends)
}

// CanReadComment inherits the parent entry's policy; a comment's author
// always sees their own comment.
func (r *Resolver) CanReadComment(viewer *domain.Author, comment *domain.Comment, entry *domain.Entry) (bool, error) {
	if viewer != nil && viewer.Uuid == comment.AuthorUuid {
		return true, nil
	}
	return r.CanRead(viewer, entry)
}

// CanReadLike inherits the liked object's policy; a like's author always
// sees their own like.
func (r *Resolver) CanReadLike(viewer *domain.Author, like *domain.Like, entry *domain.Entry) (bool, error) {
	if viewer != nil && viewer.Uuid == like.AuthorUuid {
		return true, nil
	}
	return r.CanRead(viewer, entry)
}
