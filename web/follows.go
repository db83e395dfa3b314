package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/deemkeen/chirpnet/domain"
	"github.com/deemkeen/chirpnet/federation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (s *Server) authorsPayloadFor(uuids []uuid.UUID) (domain.AuthorsPayload, error) {
	out := domain.AuthorsPayload{Type: domain.TypeAuthors, Authors: []domain.AuthorPayload{}}
	for _, u := range uuids {
		author, err := s.DB.ReadAuthorByUuid(u)
		if err != nil {
			return out, err
		}
		out.Authors = append(out.Authors, federation.AuthorToPayload(author))
	}
	return out, nil
}

func (s *Server) listFollowers(c *gin.Context) {
	author, err := s.authorParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	followers, err := s.DB.FollowerUuids(author.Uuid)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out, err := s.authorsPayloadFor(followers)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listFollowing(c *gin.Context) {
	author, err := s.authorParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	following, err := s.DB.FollowingUuids(author.Uuid)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out, err := s.authorsPayloadFor(following)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// listFriends serves the derived friend set: authors with accepted
// edges in both directions. Never stored, always computed.
func (s *Server) listFriends(c *gin.Context) {
	author, err := s.authorParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	friends, err := s.Vis.Friends(author.Uuid)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out, err := s.authorsPayloadFor(friends)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type followRequest struct {
	To      string `json:"to" binding:"required"`
	Summary string `json:"summary"`
}

// resolveAuthorRef accepts either a bare uuid or a fully qualified id.
func (s *Server) resolveAuthorRef(ref string) (*domain.Author, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return s.DB.ReadAuthorByUuid(id)
	}
	return s.DB.ReadAuthorById(ref)
}

// sendFollow creates a pending follow from the authenticated author. The
// request runs through the inbox dispatcher, so following a remote
// author pushes the payload to their home node exactly like an inbound
// federation follow would.
func (s *Server) sendFollow(c *gin.Context) {
	viewer := viewerFrom(c)

	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target author is required"})
		return
	}

	target, err := s.resolveAuthorRef(req.To)
	if err != nil {
		s.writeError(c, err)
		return
	}

	summary := req.Summary
	if summary == "" {
		summary = fmt.Sprintf("%s wants to follow %s", viewer.DisplayName, target.DisplayName)
	}

	actorJson, err := json.Marshal(federation.AuthorToPayload(viewer))
	if err != nil {
		s.writeError(c, err)
		return
	}
	objectJson, err := json.Marshal(federation.AuthorToPayload(target))
	if err != nil {
		s.writeError(c, err)
		return
	}
	raw, err := json.Marshal(domain.FollowPayload{
		Type:    domain.TypeFollow,
		Summary: summary,
		Actor:   actorJson,
		Object:  objectJson,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	res, err := s.Dispatcher.Handle(target, raw)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res.Body)
}

type acceptRequest struct {
	From string `json:"from" binding:"required"`
}

// acceptFollow flips a pending edge to accepted. Only the recipient may
// accept. Acceptance backfills the accepting author's UNLISTED entries
// to a remote follower, and FRIENDS entries when the pair just became
// mutual.
func (s *Server) acceptFollow(c *gin.Context) {
	viewer := viewerFrom(c)

	var req acceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "follower is required"})
		return
	}

	follower, err := s.resolveAuthorRef(req.From)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if err := s.DB.AcceptFollowRequest(follower.Uuid, viewer.Uuid); err != nil {
		s.writeError(c, err)
		return
	}

	if !follower.IsLocal(s.Conf.ApiBase()) {
		s.Engine.SendUnlistedBacklog(viewer, follower)
		mutual, err := s.Vis.IsFriend(viewer.Uuid, follower.Uuid)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if mutual {
			s.Engine.SendFriendsBacklog(viewer, follower)
		}
	}

	c.JSON(http.StatusOK, gin.H{"detail": "follow accepted"})
}

type unfollowRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// deleteFollow removes the edge outright, serving both reject and
// unfollow. Either endpoint of the edge may remove it.
func (s *Server) deleteFollow(c *gin.Context) {
	viewer := viewerFrom(c)

	var req unfollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
		return
	}

	from, err := s.resolveAuthorRef(req.From)
	if err != nil {
		s.writeError(c, err)
		return
	}
	to, err := s.resolveAuthorRef(req.To)
	if err != nil {
		s.writeError(c, err)
		return
	}

	if viewer.Uuid != from.Uuid && viewer.Uuid != to.Uuid && !viewer.IsStaff.Bool() {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your follow edge"})
		return
	}

	if err := s.DB.DeleteFollowRequest(from.Uuid, to.Uuid); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
