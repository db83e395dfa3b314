package web

import (
	"net/http"
	"time"

	"github.com/deemkeen/chirpnet/domain"
	"github.com/deemkeen/chirpnet/federation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// listAuthors serves the author directory: every approved author whose
// home is this node. This is the collection peers crawl before fan-out.
func (s *Server) listAuthors(c *gin.Context) {
	page, size := pagination(c, 25)

	authors, _, err := s.DB.ListAuthorsByHost(s.Conf.ApiBase(), page, size)
	if err != nil {
		s.writeError(c, err)
		return
	}

	out := domain.AuthorsPayload{Type: domain.TypeAuthors, Authors: []domain.AuthorPayload{}}
	for idx := range authors {
		out.Authors = append(out.Authors, federation.AuthorToPayload(&authors[idx]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getAuthor(c *gin.Context) {
	author, err := s.authorParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, federation.AuthorToPayload(author))
}

type signupRequest struct {
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required"`
	DisplayName  string `json:"displayName"`
	Github       string `json:"github"`
	ProfileImage string `json:"profileImage"`
	Description  string `json:"description"`
}

// createAuthor registers a local author. The account stays unapproved
// (and thus unable to authenticate) until staff flips the flag.
func (s *Server) createAuthor(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.writeError(c, err)
		return
	}

	display := req.DisplayName
	if display == "" {
		display = req.Username
	}

	id := uuid.New()
	author := &domain.Author{
		Uuid:         id,
		Id:           domain.AuthorFQID(s.Conf.ApiBase(), id),
		Username:     req.Username,
		PasswordHash: string(hash),
		DisplayName:  display,
		Host:         s.Conf.ApiBase(),
		GithubLink:   req.Github,
		ProfileImage: req.ProfileImage,
		Description:  req.Description,
		IsApproved:   domain.FALSE,
		CreatedAt:    time.Now(),
	}
	if err := s.DB.CreateAuthor(author); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, federation.AuthorToPayload(author))
}

type authorUpdateRequest struct {
	DisplayName  *string `json:"displayName"`
	Github       *string `json:"github"`
	ProfileImage *string `json:"profileImage"`
	Description  *string `json:"description"`
	IsApproved   *bool   `json:"isApproved"`
	IsStaff      *bool   `json:"isStaff"`
}

// updateAuthor lets an author edit their own profile; approval and staff
// flags can only be flipped by staff.
func (s *Server) updateAuthor(c *gin.Context) {
	author, err := s.authorParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	viewer := viewerFrom(c)
	if viewer.Uuid != author.Uuid && !viewer.IsStaff.Bool() {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your profile"})
		return
	}

	var req authorUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	if req.DisplayName != nil {
		author.DisplayName = *req.DisplayName
	}
	if req.Github != nil {
		author.GithubLink = *req.Github
	}
	if req.ProfileImage != nil {
		author.ProfileImage = *req.ProfileImage
	}
	if req.Description != nil {
		author.Description = *req.Description
	}
	if req.IsApproved != nil || req.IsStaff != nil {
		if !viewer.IsStaff.Bool() {
			c.JSON(http.StatusForbidden, gin.H{"error": "staff only"})
			return
		}
		if req.IsApproved != nil {
			author.IsApproved = domain.ToDbBool(*req.IsApproved)
		}
		if req.IsStaff != nil {
			author.IsStaff = domain.ToDbBool(*req.IsStaff)
		}
	}

	if err := s.DB.UpdateAuthor(author); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, federation.AuthorToPayload(author))
}

// postInbox receives one federation payload addressed to a local author.
// Any authenticated identity may deliver here — node service accounts
// and local authors alike; the payload's own author reference decides
// attribution, not the authenticated caller.
func (s *Server) postInbox(c *gin.Context) {
	target, err := s.authorParam(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	res, err := s.Dispatcher.Handle(target, raw)
	if err != nil {
		s.writeError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, res.Body)
}
