package web

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/deemkeen/chirpnet/domain"
	"github.com/deemkeen/chirpnet/federation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// nestedCollectionSize is how many comments/likes ride along on an entry
// detail response.
const nestedCollectionSize = 5

type entryRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
	Visibility  string `json:"visibility"`
}

// listEntries enumerates an author's entries at the tier the viewer is
// entitled to see.
func (s *Server) listEntries(c *gin.Context) {
	author, err := s.authorParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	viewer := viewerFrom(c)

	visibilities, err := s.Vis.ListVisibilities(viewer, author.Uuid)
	if err != nil {
		s.writeError(c, err)
		return
	}

	page, size := pagination(c, 25)
	entries, count, err := s.DB.ListEntriesByAuthor(author.Uuid, visibilities, page, size)
	if err != nil {
		s.writeError(c, err)
		return
	}

	src := []domain.EntryPayload{}
	for idx := range entries {
		src = append(src, federation.EntryToPayload(&entries[idx], author))
	}
	c.JSON(http.StatusOK, domain.EntriesEnvelope{
		Type:       domain.TypeEntries,
		Id:         author.Id + "/entries/",
		Web:        author.WebURL() + "/entries",
		PageNumber: page,
		Size:       size,
		Count:      count,
		Src:        src,
	})
}

// createEntry posts a new entry as the authenticated author and fans it
// out to its federation audience.
func (s *Server) createEntry(c *gin.Context) {
	author, err := s.authorParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	viewer := viewerFrom(c)
	if viewer.Uuid != author.Uuid {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot post as another author"})
		return
	}

	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if req.Visibility == "" {
		req.Visibility = domain.VisibilityPublic
	}
	if !domain.ValidVisibility(req.Visibility) || req.Visibility == domain.VisibilityDeleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visibility"})
		return
	}
	if req.ContentType == "" {
		req.ContentType = domain.ContentTypePlain
	}

	now := time.Now()
	entry := &domain.Entry{
		Id:          domain.EntryFQID(author.Host, author.Uuid, uuid.NewString()),
		AuthorUuid:  author.Uuid,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		ContentType: req.ContentType,
		Visibility:  req.Visibility,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.DB.UpsertEntry(entry); err != nil {
		s.writeError(c, err)
		return
	}

	s.Engine.FanOutEntry(entry)
	c.JSON(http.StatusCreated, federation.EntryToPayload(entry, author))
}

// getEntry serves one entry with a page of nested comments and likes.
func (s *Server) getEntry(c *gin.Context) {
	author, err := s.authorParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	entry, err := s.entryParam(c, author)
	if err != nil {
		s.writeError(c, err)
		return
	}
	viewer := viewerFrom(c)

	ok, err := s.Vis.CanRead(viewer, entry)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !ok {
		s.concealEntry(c, entry)
		return
	}

	payload := federation.EntryToPayload(entry, author)

	comments, commentCount, err := s.DB.ListCommentsByEntry(entry.Id, 1, nestedCollectionSize)
	if err != nil {
		s.writeError(c, err)
		return
	}
	commentsEnv, err := s.commentsEnvelope(entry, 1, nestedCollectionSize, commentCount, comments)
	if err != nil {
		s.writeError(c, err)
		return
	}
	payload.Comments = &commentsEnv

	likes, likeCount, err := s.DB.ListLikesByEntry(entry.Id, 1, nestedCollectionSize)
	if err != nil {
		s.writeError(c, err)
		return
	}
	likesEnv, err := s.likesEnvelope(entry.Id+"/likes/", 1, nestedCollectionSize, likeCount, likes)
	if err != nil {
		s.writeError(c, err)
		return
	}
	payload.Likes = &likesEnv

	c.JSON(http.StatusOK, payload)
}

// concealEntry turns a denied read into the right refusal: DELETED looks
// absent, everything else is forbidden.
func (s *Server) concealEntry(c *gin.Context, entry *domain.Entry) {
	if entry.Visibility == domain.VisibilityDeleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
}

// updateEntry edits an entry in place. The id and creation time never
// change; the edit fans out to the same audience as a fresh post.
func (s *Server) updateEntry(c *gin.Context) {
	author, err := s.authorParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	entry, err := s.entryParam(c, author)
	if err != nil {
		s.writeError(c, err)
		return
	}
	viewer := viewerFrom(c)
	if !s.Vis.CanModify(viewer, entry) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your entry"})
		return
	}
	if entry.Visibility == domain.VisibilityDeleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if req.Visibility != "" {
		if !domain.ValidVisibility(req.Visibility) || req.Visibility == domain.VisibilityDeleted {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visibility"})
			return
		}
		entry.Visibility = req.Visibility
	}
	if req.Title != "" {
		entry.Title = req.Title
	}
	if req.Description != "" {
		entry.Description = req.Description
	}
	if req.Content != "" {
		entry.Content = req.Content
	}
	if req.ContentType != "" {
		entry.ContentType = req.ContentType
	}
	entry.UpdatedAt = time.Now()

	if err := s.DB.UpsertEntry(entry); err != nil {
		s.writeError(c, err)
		return
	}

	s.Engine.FanOutEntry(entry)
	c.JSON(http.StatusOK, federation.EntryToPayload(entry, author))
}

// deleteEntry soft-deletes: visibility flips to DELETED, the row stays
// for staff audit, and a tombstone snapshot fans out to the public
// audience.
func (s *Server) deleteEntry(c *gin.Context) {
	author, err := s.authorParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	entry, err := s.entryParam(c, author)
	if err != nil {
		s.writeError(c, err)
		return
	}
	viewer := viewerFrom(c)
	if !s.Vis.CanModify(viewer, entry) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your entry"})
		return
	}
	if entry.Visibility == domain.VisibilityDeleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if err := s.DB.MarkEntryDeleted(entry.Id); err != nil {
		s.writeError(c, err)
		return
	}
	entry.Visibility = domain.VisibilityDeleted

	s.Engine.FanOutEntry(entry)
	c.Status(http.StatusNoContent)
}

// getEntryImage serves a base64 image entry decoded, with the same
// visibility gate as the entry itself.
func (s *Server) getEntryImage(c *gin.Context) {
	author, err := s.authorParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	entry, err := s.entryParam(c, author)
	if err != nil {
		s.writeError(c, err)
		return
	}
	viewer := viewerFrom(c)

	ok, err := s.Vis.CanRead(viewer, entry)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !ok {
		s.concealEntry(c, entry)
		return
	}
	if !entry.IsImage() {
		c.JSON(http.StatusNotFound, gin.H{"error": "not an image entry"})
		return
	}

	// Content may arrive as a data url; only the payload is stored base64
	content := entry.Content
	if idx := strings.Index(content, ","); idx >= 0 && strings.HasPrefix(content, "data:") {
		content = content[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image data unreadable"})
		return
	}

	contentType := strings.TrimSuffix(entry.ContentType, ";base64")
	if contentType == "application" || contentType == "application/base64" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}
