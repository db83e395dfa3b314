package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/deemkeen/chirpnet/domain"
	"github.com/deemkeen/chirpnet/util"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"
)

const rssFeedSize = 50

// getRSS renders the newest PUBLIC entries as an RSS feed. No auth; the
// feed never carries anything beyond what anonymous readers see anyway.
func (s *Server) getRSS(c *gin.Context) {
	rss, err := s.buildRSS()
	if err != nil {
		c.String(http.StatusNotFound, "")
		return
	}
	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, rss)
}

func (s *Server) buildRSS() (string, error) {
	entries, err := s.DB.PublicEntries(rssFeedSize)
	if err != nil {
		return "", fmt.Errorf("rss query: %w", err)
	}

	name := s.Conf.Conf.NodeName
	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s - public entries", name),
		Link:        &feeds.Link{Href: s.Conf.Conf.BaseUrl + "/feed"},
		Description: fmt.Sprintf("public entries on %s", name),
		Author:      &feeds.Author{Name: name, Email: fmt.Sprintf("%s@%s", "feed", name)},
		Created:     time.Now(),
	}

	var items []*feeds.Item
	for idx := range entries {
		entry := &entries[idx]
		author, err := s.DB.ReadAuthorByUuid(entry.AuthorUuid)
		if err != nil {
			continue
		}
		items = append(items, s.rssItem(entry, author))
	}

	feed.Items = items
	return feed.ToRss()
}

func (s *Server) rssItem(entry *domain.Entry, author *domain.Author) *feeds.Item {
	title := entry.Title
	if title == "" {
		title = entry.CreatedAt.Format(util.DateTimeFormat())
	}
	content := entry.Content
	if entry.IsImage() {
		content = entry.Description
	}
	return &feeds.Item{
		Id:      entry.Id,
		Title:   title,
		Link:    &feeds.Link{Href: author.WebURL() + "/entries/" + entry.UuidSuffix()},
		Content: content,
		Author:  &feeds.Author{Name: author.DisplayName, Email: fmt.Sprintf("%s@%s", author.Username, s.Conf.Conf.NodeName)},
		Created: entry.CreatedAt,
	}
}
