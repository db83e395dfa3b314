package federation

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/chirpnet/db"
	"github.com/deemkeen/chirpnet/domain"
	"github.com/deemkeen/chirpnet/util"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Engine computes the audience of local activity and delivers it to
// remote inboxes. Delivery is fire-and-forget: one attempt per
// recipient, per-recipient failures are logged and swallowed, and a dead
// peer never blocks the caller or other recipients.
type Engine struct {
	DB     *db.DB
	Conf   *util.AppConfig
	Client *NodeClient

	log *log.Logger
	wg  sync.WaitGroup
}

func NewEngine(conf *util.AppConfig, database *db.DB, client *NodeClient) *Engine {
	return &Engine{
		DB:     database,
		Conf:   conf,
		Client: client,
		log:    log.WithPrefix("fanout"),
	}
}

// Wait blocks until all dispatched deliveries have finished. Used by
// graceful shutdown and tests.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) deliver(inboxUrl string, payload any) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.Client.PostInbox(inboxUrl, payload); err != nil {
			e.log.Warn("delivery failed", "inbox", inboxUrl, "err", err)
		}
	}()
}

// FanOutEntry sends an entry snapshot to its audience, dispatched on the
// entry's visibility:
//
//	PUBLIC   -> every author on every configured node
//	UNLISTED -> remote accepted followers of the author
//	FRIENDS  -> remote mutual friends of the author
//	DELETED  -> the PUBLIC audience, as a tombstone
func (e *Engine) FanOutEntry(entry *domain.Entry) {
	author, err := e.DB.ReadAuthorByUuid(entry.AuthorUuid)
	if err != nil {
		e.log.Error("entry author lookup failed", "entry", entry.Id, "err", err)
		return
	}
	payload := EntryToPayload(entry, author)

	switch entry.Visibility {
	case domain.VisibilityPublic, domain.VisibilityDeleted:
		e.broadcast(payload, "")
	case domain.VisibilityUnlisted:
		e.sendToRemoteAuthors(e.remoteFollowers(author), payload)
	case domain.VisibilityFriends:
		e.sendToRemoteAuthors(e.remoteFriends(author), payload)
	}
}

// FanOutComment broadcasts a comment to every configured node except the
// one it originated on.
func (e *Engine) FanOutComment(comment *domain.Comment) {
	author, err := e.DB.ReadAuthorByUuid(comment.AuthorUuid)
	if err != nil {
		e.log.Error("comment author lookup failed", "comment", comment.Id, "err", err)
		return
	}
	e.broadcast(CommentToPayload(comment, author), author.Host)
}

// FanOutLike broadcasts a like to every configured node except the one
// it originated on.
func (e *Engine) FanOutLike(like *domain.Like) {
	author, err := e.DB.ReadAuthorByUuid(like.AuthorUuid)
	if err != nil {
		e.log.Error("like author lookup failed", "like", like.Id, "err", err)
		return
	}
	e.broadcast(LikeToPayload(like, author), author.Host)
}

// DeliverFollow pushes a follow payload to the target author's home
// inbox.
func (e *Engine) DeliverFollow(target *domain.Author, payload any) {
	e.deliver(target.InboxURL(), payload)
}

// SendUnlistedBacklog pushes all of author's UNLISTED entries to a newly
// accepted follower's inbox, serialized exactly like live fan-out.
func (e *Engine) SendUnlistedBacklog(author, follower *domain.Author) {
	e.sendBacklog(author, follower, domain.VisibilityUnlisted)
}

// SendFriendsBacklog pushes all of author's FRIENDS entries to a newly
// mutual friend's inbox.
func (e *Engine) SendFriendsBacklog(author, friend *domain.Author) {
	e.sendBacklog(author, friend, domain.VisibilityFriends)
}

func (e *Engine) sendBacklog(author, recipient *domain.Author, visibility string) {
	entries, err := e.DB.ListEntriesByAuthorAndVisibility(author.Uuid, visibility)
	if err != nil {
		e.log.Error("backlog query failed", "author", author.Uuid, "err", err)
		return
	}
	for idx := range entries {
		e.deliver(recipient.InboxURL(), EntryToPayload(&entries[idx], author))
	}
}

// broadcast delivers a payload to every author of every configured node,
// fetching each directory fresh so new remote authors are included.
// Nodes matching skipHost are left out.
func (e *Engine) broadcast(payload any, skipHost string) {
	nodes, err := e.DB.ListRemoteNodes()
	if err != nil {
		e.log.Error("node list failed", "err", err)
		return
	}

	for idx := range nodes {
		node := nodes[idx]
		if skipHost != "" && util.SameNetloc(node.BaseUrl, skipHost) {
			continue
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			authors, err := e.Client.FetchAuthors(&node)
			if err != nil {
				e.log.Warn("authors directory fetch failed", "node", node.BaseUrl, "err", err)
				return
			}
			base := util.ApiBase(node.BaseUrl)
			for _, a := range authors {
				suffix := util.LastPathSegment(a.Id)
				e.deliver(fmt.Sprintf("%sauthors/%s/inbox/", base, suffix), payload)
			}
		}()
	}
}

func (e *Engine) sendToRemoteAuthors(recipients []domain.Author, payload any) {
	for idx := range recipients {
		e.deliver(recipients[idx].InboxURL(), payload)
	}
}

// remoteFollowers returns the accepted followers of author living on
// other nodes.
func (e *Engine) remoteFollowers(author *domain.Author) []domain.Author {
	followers, err := e.DB.FollowerUuids(author.Uuid)
	if err != nil {
		e.log.Error("follower query failed", "author", author.Uuid, "err", err)
		return nil
	}
	return e.remoteAuthors(followers)
}

// remoteFriends returns the mutual friends of author living on other
// nodes.
func (e *Engine) remoteFriends(author *domain.Author) []domain.Author {
	followers, err := e.DB.FollowerUuids(author.Uuid)
	if err != nil {
		e.log.Error("follower query failed", "author", author.Uuid, "err", err)
		return nil
	}
	following, err := e.DB.FollowingUuids(author.Uuid)
	if err != nil {
		e.log.Error("following query failed", "author", author.Uuid, "err", err)
		return nil
	}
	return e.remoteAuthors(lo.Intersect(followers, following))
}

func (e *Engine) remoteAuthors(uuids []uuid.UUID) []domain.Author {
	localHost := e.Conf.ApiBase()
	var out []domain.Author
	for _, u := range uuids {
		a, err := e.DB.ReadAuthorByUuid(u)
		if err != nil {
			e.log.Warn("author lookup failed", "uuid", u, "err", err)
			continue
		}
		if !a.IsLocal(localHost) {
			out = append(out, *a)
		}
	}
	return out
}
