package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/deemkeen/chirpnet/db"
	"github.com/deemkeen/chirpnet/domain"
	"github.com/deemkeen/chirpnet/federation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (s *Server) commentsEnvelope(entry *domain.Entry, page, size, count int, comments []domain.Comment) (domain.CommentsEnvelope, error) {
	src := []domain.CommentPayload{}
	for idx := range comments {
		author, err := s.DB.ReadAuthorByUuid(comments[idx].AuthorUuid)
		if err != nil {
			return domain.CommentsEnvelope{}, err
		}
		src = append(src, federation.CommentToPayload(&comments[idx], author))
	}
	return domain.CommentsEnvelope{
		Type:       domain.TypeComments,
		Id:         entry.Id + "/comments/",
		PageNumber: page,
		Size:       size,
		Count:      count,
		Src:        src,
	}, nil
}

func (s *Server) likesEnvelope(collectionId string, page, size, count int, likes []domain.Like) (domain.LikesEnvelope, error) {
	src := []domain.LikePayload{}
	for idx := range likes {
		author, err := s.DB.ReadAuthorByUuid(likes[idx].AuthorUuid)
		if err != nil {
			return domain.LikesEnvelope{}, err
		}
		src = append(src, federation.LikeToPayload(&likes[idx], author))
	}
	return domain.LikesEnvelope{
		Type:       domain.TypeLikes,
		Id:         collectionId,
		PageNumber: page,
		Size:       size,
		Count:      count,
		Src:        src,
	}, nil
}

// readableEntry resolves :author/:entry and enforces the read policy.
func (s *Server) readableEntry(c *gin.Context) (*domain.Entry, bool) {
	author, err := s.authorParam(c)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	entry, err := s.entryParam(c, author)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	ok, err := s.Vis.CanRead(viewerFrom(c), entry)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	if !ok {
		s.concealEntry(c, entry)
		return nil, false
	}
	return entry, true
}

func (s *Server) listComments(c *gin.Context) {
	entry, ok := s.readableEntry(c)
	if !ok {
		return
	}

	page, size := pagination(c, nestedCollectionSize)
	comments, count, err := s.DB.ListCommentsByEntry(entry.Id, page, size)
	if err != nil {
		s.writeError(c, err)
		return
	}
	env, err := s.commentsEnvelope(entry, page, size, count, comments)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

type commentRequest struct {
	Comment     string `json:"comment" binding:"required"`
	ContentType string `json:"contentType"`
}

// createComment posts a comment as the authenticated author. The comment
// id is minted under the commenter's host, not the entry's, and the
// comment broadcasts to peers.
func (s *Server) createComment(c *gin.Context) {
	entry, ok := s.readableEntry(c)
	if !ok {
		return
	}
	viewer := viewerFrom(c)

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment text is required"})
		return
	}
	if req.ContentType == "" {
		req.ContentType = domain.ContentTypePlain
	}

	commentUuid := uuid.New()
	comment := &domain.Comment{
		Id:          domain.CommentFQID(viewer.Host, viewer.Uuid, commentUuid),
		Uuid:        commentUuid,
		EntryId:     entry.Id,
		AuthorUuid:  viewer.Uuid,
		Comment:     req.Comment,
		ContentType: req.ContentType,
		CreatedAt:   time.Now(),
	}
	if err := s.DB.UpsertComment(comment); err != nil {
		s.writeError(c, err)
		return
	}

	s.Engine.FanOutComment(comment)
	c.JSON(http.StatusCreated, federation.CommentToPayload(comment, viewer))
}

func (s *Server) listEntryLikes(c *gin.Context) {
	entry, ok := s.readableEntry(c)
	if !ok {
		return
	}

	page, size := pagination(c, nestedCollectionSize)
	likes, count, err := s.DB.ListLikesByEntry(entry.Id, page, size)
	if err != nil {
		s.writeError(c, err)
		return
	}
	env, err := s.likesEnvelope(entry.Id+"/likes/", page, size, count, likes)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

// likeEntry records one like by the authenticated author. A second like
// on the same entry is a 400, not a silent merge.
func (s *Server) likeEntry(c *gin.Context) {
	entry, ok := s.readableEntry(c)
	if !ok {
		return
	}
	viewer := viewerFrom(c)

	likeUuid := uuid.New()
	like := &domain.Like{
		Id:         domain.LikeFQID(viewer.Host, viewer.Uuid, likeUuid),
		Uuid:       likeUuid,
		AuthorUuid: viewer.Uuid,
		EntryId:    entry.Id,
		ObjectUrl:  entry.Id,
		CreatedAt:  time.Now(),
	}
	if err := s.DB.CreateLike(like); err != nil {
		s.writeError(c, err)
		return
	}

	s.Engine.FanOutLike(like)
	c.JSON(http.StatusCreated, federation.LikeToPayload(like, viewer))
}

// commentParam resolves the :comment path segment to a stored comment of
// the :author in the path.
func (s *Server) commentParam(c *gin.Context, author *domain.Author) (*domain.Comment, error) {
	commentUuid, err := uuid.Parse(c.Param("comment"))
	if err != nil {
		return nil, db.ErrNotFound
	}
	comment, err := s.DB.ReadCommentByUuid(commentUuid)
	if err != nil {
		return nil, err
	}
	if comment.AuthorUuid != author.Uuid {
		return nil, db.ErrNotFound
	}
	return comment, nil
}

// readableComment enforces the parent entry's policy on a comment.
func (s *Server) readableComment(c *gin.Context) (*domain.Comment, bool) {
	author, err := s.authorParam(c)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	comment, err := s.commentParam(c, author)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	entry, err := s.DB.ReadEntryById(comment.EntryId)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	ok, err := s.Vis.CanReadComment(viewerFrom(c), comment, entry)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	if !ok {
		s.concealEntry(c, entry)
		return nil, false
	}
	return comment, true
}

func (s *Server) listCommentLikes(c *gin.Context) {
	comment, ok := s.readableComment(c)
	if !ok {
		return
	}

	page, size := pagination(c, nestedCollectionSize)
	likes, count, err := s.DB.ListLikesByComment(comment.Id, page, size)
	if err != nil {
		s.writeError(c, err)
		return
	}
	env, err := s.likesEnvelope(comment.Id+"/likes/", page, size, count, likes)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

// likeComment records one like on a comment. Comment likes leave
// entry_id empty, so the duplicate check runs explicitly in storage.
func (s *Server) likeComment(c *gin.Context) {
	comment, ok := s.readableComment(c)
	if !ok {
		return
	}
	viewer := viewerFrom(c)

	likeUuid := uuid.New()
	like := &domain.Like{
		Id:         domain.LikeFQID(viewer.Host, viewer.Uuid, likeUuid),
		Uuid:       likeUuid,
		AuthorUuid: viewer.Uuid,
		CommentId:  comment.Id,
		ObjectUrl:  comment.Id,
		CreatedAt:  time.Now(),
	}
	if err := s.DB.CreateLike(like); err != nil {
		s.writeError(c, err)
		return
	}

	s.Engine.FanOutLike(like)
	c.JSON(http.StatusCreated, federation.LikeToPayload(like, viewer))
}

// listLiked serves everything an author has liked. Likes the viewer may
// not see through the parent entry's policy are filtered out.
func (s *Server) listLiked(c *gin.Context) {
	author, err := s.authorParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	viewer := viewerFrom(c)

	page, size := pagination(c, 25)
	likes, count, err := s.DB.ListLikesByAuthor(author.Uuid, page, size)
	if err != nil {
		s.writeError(c, err)
		return
	}

	visible := []domain.Like{}
	for idx := range likes {
		like := likes[idx]
		entryId := like.EntryId
		if like.IsCommentLike() {
			comment, err := s.DB.ReadCommentById(like.CommentId)
			if errors.Is(err, db.ErrNotFound) {
				continue
			}
			if err != nil {
				s.writeError(c, err)
				return
			}
			entryId = comment.EntryId
		}
		entry, err := s.DB.ReadEntryById(entryId)
		if errors.Is(err, db.ErrNotFound) {
			continue
		}
		if err != nil {
			s.writeError(c, err)
			return
		}
		ok, err := s.Vis.CanReadLike(viewer, &like, entry)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if ok {
			visible = append(visible, like)
		}
	}

	env, err := s.likesEnvelope(author.Id+"/liked/", page, size, count, visible)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}
