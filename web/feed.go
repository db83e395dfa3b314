package web

import (
	"net/http"

	"github.com/deemkeen/chirpnet/domain"
	"github.com/deemkeen/chirpnet/federation"
	"github.com/gin-gonic/gin"
)

// getFeed serves the authenticated viewer's stream: own entries, all
// PUBLIC, UNLISTED by followed authors and FRIENDS by mutual friends,
// newest first.
func (s *Server) getFeed(c *gin.Context) {
	viewer := viewerFrom(c)

	entries, err := s.Vis.Feed(viewer)
	if err != nil {
		s.writeError(c, err)
		return
	}

	page, size := pagination(c, 25)
	count := len(entries)
	start := (page - 1) * size
	if start > count {
		start = count
	}
	end := start + size
	if end > count {
		end = count
	}
	entries = entries[start:end]

	src := []domain.EntryPayload{}
	for idx := range entries {
		author, err := s.DB.ReadAuthorByUuid(entries[idx].AuthorUuid)
		if err != nil {
			s.writeError(c, err)
			return
		}
		src = append(src, federation.EntryToPayload(&entries[idx], author))
	}

	c.JSON(http.StatusOK, domain.EntriesEnvelope{
		Type:       domain.TypeEntries,
		Id:         s.Conf.ApiBase() + "feed/",
		PageNumber: page,
		Size:       size,
		Count:      count,
		Src:        src,
	})
}
