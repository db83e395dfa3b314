package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/chirpnet/db"
	"github.com/deemkeen/chirpnet/domain"
	"github.com/deemkeen/chirpnet/federation"
	"github.com/deemkeen/chirpnet/util"
	"github.com/deemkeen/chirpnet/visibility"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Server wires the json api together: storage, visibility policy and the
// federation components behind the inbox and fan-out endpoints.
type Server struct {
	Conf       *util.AppConfig
	DB         *db.DB
	Vis        *visibility.Resolver
	Engine     *federation.Engine
	Dispatcher *federation.Dispatcher
	Syncer     *federation.Syncer

	log *log.Logger
}

func NewServer(conf *util.AppConfig, database *db.DB, vis *visibility.Resolver,
	engine *federation.Engine, dispatcher *federation.Dispatcher, syncer *federation.Syncer) *Server {
	return &Server{
		Conf:       conf,
		DB:         database,
		Vis:        vis,
		Engine:     engine,
		Dispatcher: dispatcher,
		Syncer:     syncer,
		log:        log.WithPrefix("web"),
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery())
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	// RSS Feed
	g.GET("/feed", s.getRSS)

	api := g.Group("/api", s.AuthMiddleware())

	api.GET("/authors/", s.listAuthors)
	api.POST("/authors/", s.createAuthor)
	api.GET("/authors/:author/", s.getAuthor)
	api.PUT("/authors/:author/", RequireAuth(), s.updateAuthor)

	// Stricter rate limit and a 1MB body cap on the federation inbox
	inboxLimiter := NewRateLimiter(rate.Limit(5), 10)
	maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024)
	api.POST("/authors/:author/inbox/", RequireAuth(), RateLimitMiddleware(inboxLimiter), maxBodySize, s.postInbox)

	api.GET("/authors/:author/entries/", s.listEntries)
	api.POST("/authors/:author/entries/", RequireAuth(), s.createEntry)
	api.GET("/authors/:author/entries/:entry/", s.getEntry)
	api.PUT("/authors/:author/entries/:entry/", RequireAuth(), s.updateEntry)
	api.DELETE("/authors/:author/entries/:entry/", RequireAuth(), s.deleteEntry)
	api.GET("/authors/:author/entries/:entry/image", s.getEntryImage)

	api.GET("/authors/:author/entries/:entry/comments/", s.listComments)
	api.POST("/authors/:author/entries/:entry/comments/", RequireAuth(), s.createComment)
	api.GET("/authors/:author/entries/:entry/likes/", s.listEntryLikes)
	api.POST("/authors/:author/entries/:entry/likes/", RequireAuth(), s.likeEntry)
	api.GET("/authors/:author/comments/:comment/likes/", s.listCommentLikes)
	api.POST("/authors/:author/comments/:comment/likes/", RequireAuth(), s.likeComment)
	api.GET("/authors/:author/liked/", s.listLiked)

	api.GET("/authors/:author/followers/", s.listFollowers)
	api.GET("/authors/:author/following/", s.listFollowing)
	api.GET("/authors/:author/friends/", s.listFriends)
	api.POST("/follow/", RequireAuth(), s.sendFollow)
	api.PATCH("/follow/", RequireAuth(), s.acceptFollow)
	api.DELETE("/follow/", RequireAuth(), s.deleteFollow)

	api.POST("/nodes/", RequireStaff(), s.registerNode)
	api.GET("/nodes/", RequireStaff(), s.listNodes)

	api.GET("/feed/", RequireAuth(), s.getFeed)

	return g
}

// Run serves the api until the listener fails.
func (s *Server) Run() error {
	s.log.Info("starting server", "host", s.Conf.Conf.Host, "port", s.Conf.Conf.HttpPort)
	return s.Router().Run(fmt.Sprintf("%s:%d", s.Conf.Conf.Host, s.Conf.Conf.HttpPort))
}

// writeError maps the storage and federation sentinels onto http codes.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, db.ErrDuplicate), errors.Is(err, federation.ErrBadPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.log.Error("request failed", "path", c.Request.URL.Path, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// authorParam resolves the :author path segment to a stored author.
func (s *Server) authorParam(c *gin.Context) (*domain.Author, error) {
	id, err := uuid.Parse(c.Param("author"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid author id", federation.ErrBadPayload)
	}
	return s.DB.ReadAuthorByUuid(id)
}

// entryParam resolves the :entry path segment under its author.
func (s *Server) entryParam(c *gin.Context, author *domain.Author) (*domain.Entry, error) {
	suffix := c.Param("entry")
	entry, err := s.DB.ReadEntryById(domain.EntryFQID(author.Host, author.Uuid, suffix))
	if errors.Is(err, db.ErrNotFound) {
		entry, err = s.DB.ReadEntryBySuffix(suffix)
	}
	if err != nil {
		return nil, err
	}
	if entry.AuthorUuid != author.Uuid {
		return nil, db.ErrNotFound
	}
	return entry, nil
}

// pagination reads page/size query params with the collection defaults.
func pagination(c *gin.Context, defaultSize int) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	size, _ = strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultSize)))
	if size < 1 {
		size = defaultSize
	}
	if size > 100 {
		size = 100
	}
	return page, size
}
