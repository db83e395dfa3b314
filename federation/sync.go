package federation

import (
	"errors"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/chirpnet/db"
	"github.com/deemkeen/chirpnet/domain"
	"github.com/deemkeen/chirpnet/util"
	"github.com/robfig/cron/v3"
)

// Syncer pulls content from configured peers, complementing the push
// path: anything a peer published while this node was unreachable is
// picked up on the next cycle. Imports run through the same Dispatcher
// code as inbox POSTs, so both paths converge on identical rows.
type Syncer struct {
	DB         *db.DB
	Conf       *util.AppConfig
	Client     *NodeClient
	Dispatcher *Dispatcher

	log *log.Logger
}

func NewSyncer(conf *util.AppConfig, database *db.DB, client *NodeClient, dispatcher *Dispatcher) *Syncer {
	return &Syncer{
		DB:         database,
		Conf:       conf,
		Client:     client,
		Dispatcher: dispatcher,
		log:        log.WithPrefix("sync"),
	}
}

// Schedule starts the periodic pull on the configured cron spec. Returns
// nil when no schedule is configured.
func (s *Syncer) Schedule() *cron.Cron {
	spec := s.Conf.Conf.SyncSchedule
	if spec == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, s.SyncAll); err != nil {
		s.log.Error("invalid sync schedule", "spec", spec, "err", err)
		return nil
	}
	c.Start()
	s.log.Info("periodic sync scheduled", "spec", spec)
	return c
}

// SyncAll pulls from every configured node in turn.
func (s *Syncer) SyncAll() {
	nodes, err := s.DB.ListRemoteNodes()
	if err != nil {
		s.log.Error("node list failed", "err", err)
		return
	}
	for idx := range nodes {
		s.SyncNode(&nodes[idx])
	}
}

// SyncNode pulls one peer's author directory and imports each author's
// entries, comments and likes. A failing author is logged and skipped;
// the rest of the directory still syncs.
func (s *Syncer) SyncNode(node *domain.RemoteNode) {
	authors, err := s.Client.FetchAuthors(node)
	if err != nil {
		s.log.Warn("authors directory fetch failed", "node", node.BaseUrl, "err", err)
		return
	}

	for _, ap := range authors {
		if err := s.syncAuthor(node, ap); err != nil {
			s.log.Warn("author sync failed", "node", node.BaseUrl, "author", ap.Id, "err", err)
		}
	}
	s.log.Info("node synced", "node", node.BaseUrl, "authors", len(authors))
}

func (s *Syncer) syncAuthor(node *domain.RemoteNode, ap domain.AuthorPayload) error {
	author, err := s.Dispatcher.Identity.ResolveOrCreateAuthor(ap, node.BaseUrl)
	if err != nil {
		return err
	}

	entries, err := s.Client.FetchEntries(node, author.Uuid.String())
	if err != nil {
		return err
	}

	for _, ep := range entries {
		entry, _, err := s.Dispatcher.ImportEntry(ep, node.BaseUrl)
		if err != nil {
			s.log.Warn("entry import failed", "entry", ep.Id, "err", err)
			continue
		}
		s.syncEntryActivity(node, author, entry)
	}
	return nil
}

func (s *Syncer) syncEntryActivity(node *domain.RemoteNode, author *domain.Author, entry *domain.Entry) {
	suffix := entry.UuidSuffix()

	comments, err := s.Client.FetchComments(node, author.Uuid.String(), suffix)
	if err != nil {
		s.log.Warn("comments fetch failed", "entry", entry.Id, "err", err)
	}
	for _, cp := range comments {
		comment, _, err := s.Dispatcher.ImportComment(cp, node.BaseUrl)
		if err != nil {
			s.log.Warn("comment import failed", "comment", cp.Id, "err", err)
			continue
		}
		commentLikes, err := s.Client.FetchCommentLikes(node, author.Uuid.String(), comment.Uuid.String())
		if err != nil {
			s.log.Warn("comment likes fetch failed", "comment", comment.Id, "err", err)
			continue
		}
		s.importLikes(node, commentLikes)
	}

	entryLikes, err := s.Client.FetchEntryLikes(node, author.Uuid.String(), suffix)
	if err != nil {
		s.log.Warn("entry likes fetch failed", "entry", entry.Id, "err", err)
		return
	}
	s.importLikes(node, entryLikes)
}

func (s *Syncer) importLikes(node *domain.RemoteNode, likes []domain.LikePayload) {
	for _, lp := range likes {
		if _, _, err := s.Dispatcher.ImportLike(lp, node.BaseUrl); err != nil && !errors.Is(err, db.ErrDuplicate) {
			s.log.Warn("like import failed", "like", lp.Id, "err", err)
		}
	}
}

// BootstrapNode runs the initial exchange with a freshly registered
// peer: every local author's PUBLIC entries are pushed to the peer's
// authors, then the peer's content is pulled. Intended to run in a
// goroutine off the registration request.
func (s *Syncer) BootstrapNode(node *domain.RemoteNode) {
	s.pushAllPublic(node)
	s.SyncNode(node)
}

// pushAllPublic delivers every local author's PUBLIC entries to each
// author listed in the peer's directory.
func (s *Syncer) pushAllPublic(node *domain.RemoteNode) {
	peers, err := s.Client.FetchAuthors(node)
	if err != nil {
		s.log.Warn("authors directory fetch failed", "node", node.BaseUrl, "err", err)
		return
	}

	locals, _, err := s.DB.ListAuthorsByHost(s.Conf.ApiBase(), 1, 1000)
	if err != nil {
		s.log.Error("local author list failed", "err", err)
		return
	}

	base := util.ApiBase(node.BaseUrl)
	for idx := range locals {
		local := &locals[idx]
		entries, err := s.DB.ListEntriesByAuthorAndVisibility(local.Uuid, domain.VisibilityPublic)
		if err != nil {
			s.log.Error("public entry query failed", "author", local.Uuid, "err", err)
			continue
		}
		for eidx := range entries {
			payload := EntryToPayload(&entries[eidx], local)
			for _, peer := range peers {
				inbox := base + "authors/" + util.LastPathSegment(peer.Id) + "/inbox/"
				if err := s.Client.PostInbox(inbox, payload); err != nil {
					s.log.Warn("bootstrap delivery failed", "inbox", inbox, "err", err)
				}
			}
		}
	}
}
