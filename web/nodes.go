package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/deemkeen/chirpnet/domain"
	"github.com/deemkeen/chirpnet/util"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type nodeRequest struct {
	BaseUrl  string `json:"baseUrl" binding:"required"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type nodeResponse struct {
	BaseUrl        string `json:"baseUrl"`
	Username       string `json:"username"`
	ServiceAccount string `json:"serviceAccount"`
	CreatedAt      string `json:"createdAt"`

	// Returned once at registration so the peer can be configured
	ServicePassword string `json:"servicePassword,omitempty"`
}

// registerNode configures a peer. Username/Password are what this node
// presents when calling the peer; a local service account is minted so
// the peer's pushes authenticate as a real local identity, and its
// credentials are returned exactly once. Bootstrap (push own PUBLIC
// content, pull the peer's) runs asynchronously.
func (s *Server) registerNode(c *gin.Context) {
	var req nodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "baseUrl is required"})
		return
	}

	servicePassword := util.RandomString(24)
	hash, err := bcrypt.GenerateFromPassword([]byte(servicePassword), bcrypt.DefaultCost)
	if err != nil {
		s.writeError(c, err)
		return
	}

	id := uuid.New()
	account := &domain.Author{
		Uuid:         id,
		Id:           domain.AuthorFQID(s.Conf.ApiBase(), id),
		Username:     "node-" + util.RandomString(8),
		PasswordHash: string(hash),
		DisplayName:  "service account " + req.BaseUrl,
		Host:         s.Conf.ApiBase(),
		IsApproved:   domain.TRUE,
		CreatedAt:    time.Now(),
	}
	if err := s.DB.CreateAuthor(account); err != nil {
		s.writeError(c, err)
		return
	}

	node := &domain.RemoteNode{
		BaseUrl:            strings.TrimRight(req.BaseUrl, "/"),
		Username:           req.Username,
		Password:           req.Password,
		ServiceAccountUuid: account.Uuid,
		CreatedAt:          time.Now(),
	}
	if err := s.DB.CreateRemoteNode(node); err != nil {
		s.writeError(c, err)
		return
	}

	go s.Syncer.BootstrapNode(node)

	c.JSON(http.StatusCreated, nodeResponse{
		BaseUrl:         node.BaseUrl,
		Username:        account.Username,
		ServiceAccount:  account.Uuid.String(),
		CreatedAt:       node.CreatedAt.Format(time.RFC3339),
		ServicePassword: servicePassword,
	})
}

func (s *Server) listNodes(c *gin.Context) {
	nodes, err := s.DB.ListRemoteNodes()
	if err != nil {
		s.writeError(c, err)
		return
	}

	out := []nodeResponse{}
	for idx := range nodes {
		n := nodes[idx]
		account := ""
		if a, err := s.DB.ReadAuthorByUuid(n.ServiceAccountUuid); err == nil {
			account = a.Username
		}
		out = append(out, nodeResponse{
			BaseUrl:        n.BaseUrl,
			Username:       account,
			ServiceAccount: n.ServiceAccountUuid.String(),
			CreatedAt:      n.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"type": "nodes", "nodes": out})
}
