package federation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/chirpnet/db"
	"github.com/deemkeen/chirpnet/domain"
	"github.com/deemkeen/chirpnet/util"
	"github.com/google/uuid"
)

// Dispatcher routes inbox POSTs by payload type and imports their
// content. The same Import* path is used by the pull-based sync, so a
// piece of content converges to the same row whichever way it arrives.
type Dispatcher struct {
	DB       *db.DB
	Conf     *util.AppConfig
	Identity *Identity
	Engine   *Engine

	log *log.Logger
}

func NewDispatcher(conf *util.AppConfig, database *db.DB, identity *Identity, engine *Engine) *Dispatcher {
	return &Dispatcher{
		DB:       database,
		Conf:     conf,
		Identity: identity,
		Engine:   engine,
		log:      log.WithPrefix("inbox"),
	}
}

// InboxResult is what the inbox endpoint answers with.
type InboxResult struct {
	Created bool
	Body    any
}

// Handle processes one payload addressed to target. Unknown types and
// malformed payloads come back as ErrBadPayload; duplicate likes as
// db.ErrDuplicate.
func (d *Dispatcher) Handle(target *domain.Author, raw []byte) (*InboxResult, error) {
	var env domain.InboxEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	switch env.Type {
	case domain.TypeEntry:
		var p domain.EntryPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		entry, created, err := d.ImportEntry(p, d.Conf.ApiBase())
		if err != nil {
			return nil, err
		}
		author, err := d.DB.ReadAuthorByUuid(entry.AuthorUuid)
		if err != nil {
			return nil, err
		}
		return &InboxResult{Created: created, Body: EntryToPayload(entry, author)}, nil

	case domain.TypeComment:
		var p domain.CommentPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		comment, created, err := d.ImportComment(p, d.Conf.ApiBase())
		if err != nil {
			return nil, err
		}
		author, err := d.DB.ReadAuthorByUuid(comment.AuthorUuid)
		if err != nil {
			return nil, err
		}
		return &InboxResult{Created: created, Body: CommentToPayload(comment, author)}, nil

	case domain.TypeLike:
		var p domain.LikePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		like, created, err := d.ImportLike(p, d.Conf.ApiBase())
		if err != nil {
			return nil, err
		}
		author, err := d.DB.ReadAuthorByUuid(like.AuthorUuid)
		if err != nil {
			return nil, err
		}
		return &InboxResult{Created: created, Body: LikeToPayload(like, author)}, nil

	case domain.TypeFollow:
		return d.handleFollow(target, raw)
	}

	return nil, fmt.Errorf("%w: unsupported inbox type %q", ErrBadPayload, env.Type)
}

// ImportEntry upserts an entry under its declared id, resolving the
// nested author first. The bool result reports whether the row is new.
func (d *Dispatcher) ImportEntry(p domain.EntryPayload, defaultHost string) (*domain.Entry, bool, error) {
	if strings.TrimSpace(p.Id) == "" {
		return nil, false, fmt.Errorf("%w: entry without id", ErrBadPayload)
	}
	if !domain.ValidVisibility(p.Visibility) {
		return nil, false, fmt.Errorf("%w: unknown visibility %q", ErrBadPayload, p.Visibility)
	}

	author, err := d.Identity.ResolveOrCreateAuthor(p.Author, defaultHost)
	if err != nil {
		return nil, false, err
	}

	id := strings.TrimRight(strings.TrimSpace(p.Id), "/")
	created := false
	createdAt := parsePublished(p.Published)

	existing, err := d.DB.ReadEntryById(id)
	if errors.Is(err, db.ErrNotFound) {
		created = true
	} else if err != nil {
		return nil, false, err
	} else {
		createdAt = existing.CreatedAt
	}

	contentType := p.ContentType
	if contentType == "" {
		contentType = domain.ContentTypePlain
	}

	entry := &domain.Entry{
		Id:          id,
		AuthorUuid:  author.Uuid,
		Title:       p.Title,
		Description: p.Description,
		Content:     p.Content,
		ContentType: contentType,
		Visibility:  p.Visibility,
		CreatedAt:   createdAt,
		UpdatedAt:   time.Now(),
	}
	if err := d.DB.UpsertEntry(entry); err != nil {
		return nil, false, err
	}

	return entry, created, nil
}

// ImportComment upserts a comment under its declared id. A comment on an
// entry this node has never seen creates a placeholder parent so the
// comment is never dropped; the entry fills in when it arrives.
func (d *Dispatcher) ImportComment(p domain.CommentPayload, defaultHost string) (*domain.Comment, bool, error) {
	if strings.TrimSpace(p.Id) == "" || strings.TrimSpace(p.Entry) == "" {
		return nil, false, fmt.Errorf("%w: comment without id or entry", ErrBadPayload)
	}

	entryId := strings.TrimRight(strings.TrimSpace(p.Entry), "/")
	if _, err := d.DB.ReadEntryById(entryId); errors.Is(err, db.ErrNotFound) {
		if err := d.createPlaceholderEntry(entryId, defaultHost); err != nil {
			return nil, false, err
		}
	} else if err != nil {
		return nil, false, err
	}

	author, err := d.Identity.ResolveOrCreateAuthor(p.Author, defaultHost)
	if err != nil {
		return nil, false, err
	}

	id := strings.TrimRight(strings.TrimSpace(p.Id), "/")
	commentUuid, err := uuid.Parse(util.LastPathSegment(id))
	if err != nil {
		commentUuid = uuid.New()
	}

	created := false
	if _, err := d.DB.ReadCommentById(id); errors.Is(err, db.ErrNotFound) {
		created = true
	} else if err != nil {
		return nil, false, err
	}

	contentType := p.ContentType
	if contentType == "" {
		contentType = domain.ContentTypePlain
	}

	comment := &domain.Comment{
		Id:          id,
		Uuid:        commentUuid,
		EntryId:     entryId,
		AuthorUuid:  author.Uuid,
		Comment:     p.Comment,
		ContentType: contentType,
		CreatedAt:   parsePublished(p.Published),
	}
	if err := d.DB.UpsertComment(comment); err != nil {
		return nil, false, err
	}

	return comment, created, nil
}

// ImportLike stores a like, resolving its object by the /commented/ url
// shape. Re-importing a known like id refreshes it; a second distinct
// like by the same author on the same object is db.ErrDuplicate.
func (d *Dispatcher) ImportLike(p domain.LikePayload, defaultHost string) (*domain.Like, bool, error) {
	if strings.TrimSpace(p.Object) == "" {
		return nil, false, fmt.Errorf("%w: like without object", ErrBadPayload)
	}

	object := p.Object
	if unescaped, err := url.QueryUnescape(object); err == nil {
		object = unescaped
	}
	object = strings.TrimRight(strings.TrimSpace(object), "/")

	author, err := d.Identity.ResolveOrCreateAuthor(p.Author, defaultHost)
	if err != nil {
		return nil, false, err
	}

	likeUuid := uuid.New()
	id := strings.TrimRight(strings.TrimSpace(p.Id), "/")
	if id == "" {
		id = domain.LikeFQID(author.Host, author.Uuid, likeUuid)
	} else if parsed, err := uuid.Parse(util.LastPathSegment(id)); err == nil {
		likeUuid = parsed
	}

	like := &domain.Like{
		Id:         id,
		Uuid:       likeUuid,
		AuthorUuid: author.Uuid,
		ObjectUrl:  object,
		CreatedAt:  parsePublished(p.Published),
	}

	if domain.IsCommentObject(object) {
		comment, err := d.DB.ReadCommentById(object)
		if errors.Is(err, db.ErrNotFound) {
			if parsed, perr := uuid.Parse(util.LastPathSegment(object)); perr == nil {
				comment, err = d.DB.ReadCommentByUuid(parsed)
			}
		}
		if errors.Is(err, db.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: liked comment not found", ErrBadPayload)
		}
		if err != nil {
			return nil, false, err
		}
		like.CommentId = comment.Id
	} else {
		entry, err := d.DB.ReadEntryById(object)
		if errors.Is(err, db.ErrNotFound) {
			entry, err = d.DB.ReadEntryBySuffix(util.LastPathSegment(object))
		}
		if errors.Is(err, db.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: liked entry not found", ErrBadPayload)
		}
		if err != nil {
			return nil, false, err
		}
		like.EntryId = entry.Id
	}

	// Re-delivery of the same like id is an idempotent refresh
	if existing, err := d.DB.ReadLikeById(like.Id); err == nil {
		existing.EntryId = like.EntryId
		existing.CommentId = like.CommentId
		existing.ObjectUrl = like.ObjectUrl
		if err := d.DB.UpdateLike(existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, false, err
	}

	if err := d.DB.CreateLike(like); err != nil {
		return nil, false, err
	}

	return like, true, nil
}

// handleFollow stores the edge as pending with the raw actor/object kept
// verbatim. A follow addressed to a remote target (a local author
// following out) is pushed to the target's home inbox and the local
// mirror edge auto-accepts, backfilling FRIENDS entries when the pair
// just became mutual.
func (d *Dispatcher) handleFollow(target *domain.Author, raw []byte) (*InboxResult, error) {
	var p domain.FollowPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if len(p.Actor) == 0 {
		return nil, fmt.Errorf("%w: follow without actor", ErrBadPayload)
	}

	var actorPayload domain.AuthorPayload
	if err := json.Unmarshal(p.Actor, &actorPayload); err != nil {
		return nil, fmt.Errorf("%w: follow actor is not an object", ErrBadPayload)
	}

	actor, err := d.Identity.ResolveOrCreateAuthor(actorPayload, d.Conf.ApiBase())
	if err != nil {
		return nil, err
	}
	if actor.Uuid == target.Uuid {
		return nil, fmt.Errorf("%w: author cannot follow themselves", ErrBadPayload)
	}

	objectJson := string(p.Object)
	if objectJson == "" {
		objectJson = "{}"
	}

	fr := &domain.FollowRequest{
		FromUuid:   actor.Uuid,
		ToUuid:     target.Uuid,
		Summary:    p.Summary,
		ActorJson:  string(p.Actor),
		ObjectJson: objectJson,
		Pending:    domain.TRUE,
		Accepted:   domain.FALSE,
		CreatedAt:  time.Now(),
	}
	if err := d.DB.UpsertFollowRequest(fr); err != nil {
		return nil, err
	}

	localHost := d.Conf.ApiBase()
	if !target.IsLocal(localHost) && actor.IsLocal(localHost) {
		// Outbound follow: hand it to the target's home node and mirror
		// the edge as accepted here
		d.Engine.DeliverFollow(target, json.RawMessage(raw))
		if err := d.DB.AcceptFollowRequest(actor.Uuid, target.Uuid); err != nil {
			d.log.Warn("mirror accept failed", "from", actor.Uuid, "to", target.Uuid, "err", err)
		}
		if reverse, err := d.DB.ReadFollowRequest(target.Uuid, actor.Uuid); err == nil && reverse.Accepted.Bool() {
			d.Engine.SendFriendsBacklog(actor, target)
		}
	}

	return &InboxResult{Created: true, Body: map[string]string{"detail": "follow request received"}}, nil
}

// createPlaceholderEntry stores a minimal parent for a comment on an
// entry that has not federated here yet. The owning author is derived
// from the entry url.
func (d *Dispatcher) createPlaceholderEntry(entryId, defaultHost string) error {
	ownerSegment, ok := util.SegmentAfter(entryId, "authors")
	if !ok {
		return fmt.Errorf("%w: comment entry url %q has no author segment", ErrBadPayload, entryId)
	}

	ownerHost := util.NetlocBase(entryId)
	if ownerHost == "" {
		ownerHost = defaultHost
	}
	owner, err := d.Identity.ResolveOrCreateAuthor(domain.AuthorPayload{
		Type: domain.TypeAuthor,
		Id:   util.ApiBase(ownerHost) + "authors/" + ownerSegment,
	}, defaultHost)
	if err != nil {
		return err
	}

	now := time.Now()
	return d.DB.UpsertEntry(&domain.Entry{
		Id:          entryId,
		AuthorUuid:  owner.Uuid,
		Title:       "Remote Entry",
		Content:     "",
		ContentType: domain.ContentTypePlain,
		Visibility:  domain.VisibilityPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}
