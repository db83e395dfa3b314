package federation

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/deemkeen/chirpnet/db"
	"github.com/deemkeen/chirpnet/domain"
	"github.com/google/uuid"
)

func remoteAuthorPayload(authorUuid uuid.UUID) domain.AuthorPayload {
	return domain.AuthorPayload{
		Type:        domain.TypeAuthor,
		Id:          domain.AuthorFQID(testRemoteHost, authorUuid),
		Host:        testRemoteHost,
		DisplayName: "remote author",
	}
}

func TestHandleEntryCreatesThenUpdates(t *testing.T) {
	d := setupDispatcher(t)
	target := mustAuthor(t, d.DB, "local", testLocalHost)

	authorUuid := uuid.New()
	entryId := domain.EntryFQID(testRemoteHost, authorUuid, uuid.NewString())
	payload := domain.EntryPayload{
		Type:        domain.TypeEntry,
		Title:       "Hello",
		Id:          entryId,
		Content:     "first version",
		ContentType: domain.ContentTypeMarkdown,
		Author:      remoteAuthorPayload(authorUuid),
		Published:   "2026-08-01T10:00:00Z",
		Visibility:  domain.VisibilityPublic,
	}

	raw, _ := json.Marshal(payload)
	res, err := d.Handle(target, raw)
	if err != nil {
		t.Fatalf("first handle: %v", err)
	}
	if !res.Created {
		t.Error("first delivery should report created")
	}

	payload.Content = "second version"
	raw, _ = json.Marshal(payload)
	res, err = d.Handle(target, raw)
	if err != nil {
		t.Fatalf("second handle: %v", err)
	}
	if res.Created {
		t.Error("re-delivery should not report created")
	}

	stored, err := d.DB.ReadEntryById(entryId)
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if stored.Content != "second version" {
		t.Errorf("content = %q, want updated version", stored.Content)
	}
	if stored.CreatedAt.Format("2006-01-02") != "2026-08-01" {
		t.Errorf("created_at = %v, want published timestamp preserved", stored.CreatedAt)
	}
}

func TestHandleEntryRejectsUnknownVisibility(t *testing.T) {
	d := setupDispatcher(t)
	target := mustAuthor(t, d.DB, "local", testLocalHost)

	authorUuid := uuid.New()
	raw, _ := json.Marshal(domain.EntryPayload{
		Type:       domain.TypeEntry,
		Id:         domain.EntryFQID(testRemoteHost, authorUuid, uuid.NewString()),
		Author:     remoteAuthorPayload(authorUuid),
		Visibility: "SECRET",
	})
	if _, err := d.Handle(target, raw); !errors.Is(err, ErrBadPayload) {
		t.Errorf("err = %v, want ErrBadPayload", err)
	}
}

func TestHandleCommentOnUnknownEntryCreatesPlaceholder(t *testing.T) {
	d := setupDispatcher(t)
	target := mustAuthor(t, d.DB, "local", testLocalHost)

	ownerUuid := uuid.New()
	commenterUuid := uuid.New()
	entryId := domain.EntryFQID(testRemoteHost, ownerUuid, uuid.NewString())

	raw, _ := json.Marshal(domain.CommentPayload{
		Type:        domain.TypeComment,
		Author:      remoteAuthorPayload(commenterUuid),
		Comment:     "nice one",
		ContentType: domain.ContentTypePlain,
		Id:          domain.CommentFQID(testRemoteHost, commenterUuid, uuid.New()),
		Entry:       entryId,
	})
	res, err := d.Handle(target, raw)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.Created {
		t.Error("comment should report created")
	}

	placeholder, err := d.DB.ReadEntryById(entryId)
	if err != nil {
		t.Fatalf("placeholder entry missing: %v", err)
	}
	owner, err := d.DB.ReadAuthorByUuid(placeholder.AuthorUuid)
	if err != nil {
		t.Fatalf("placeholder owner missing: %v", err)
	}
	if owner.Uuid != ownerUuid {
		t.Errorf("placeholder owner = %s, want %s from entry url", owner.Uuid, ownerUuid)
	}
	if placeholder.Visibility != domain.VisibilityPublic {
		t.Errorf("placeholder visibility = %q", placeholder.Visibility)
	}
}

func TestHandleLikeOnEntry(t *testing.T) {
	d := setupDispatcher(t)
	target := mustAuthor(t, d.DB, "local", testLocalHost)
	entry := mustEntry(t, d.DB, target, domain.VisibilityPublic)

	likerUuid := uuid.New()
	likeId := domain.LikeFQID(testRemoteHost, likerUuid, uuid.New())
	payload := domain.LikePayload{
		Type:   domain.TypeLike,
		Author: remoteAuthorPayload(likerUuid),
		Id:     likeId,
		Object: entry.Id,
	}

	raw, _ := json.Marshal(payload)
	res, err := d.Handle(target, raw)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.Created {
		t.Error("first like should report created")
	}

	// Re-delivery of the same like id is idempotent
	res, err = d.Handle(target, raw)
	if err != nil {
		t.Fatalf("re-delivery: %v", err)
	}
	if res.Created {
		t.Error("re-delivered like should not report created")
	}

	// A second distinct like by the same author is a duplicate
	payload.Id = domain.LikeFQID(testRemoteHost, likerUuid, uuid.New())
	raw, _ = json.Marshal(payload)
	if _, err := d.Handle(target, raw); !errors.Is(err, db.ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestHandleLikeOnComment(t *testing.T) {
	d := setupDispatcher(t)
	target := mustAuthor(t, d.DB, "local", testLocalHost)
	entry := mustEntry(t, d.DB, target, domain.VisibilityPublic)

	commentUuid := uuid.New()
	commentId := domain.CommentFQID(testLocalHost, target.Uuid, commentUuid)
	err := d.DB.UpsertComment(&domain.Comment{
		Id:          commentId,
		Uuid:        commentUuid,
		EntryId:     entry.Id,
		AuthorUuid:  target.Uuid,
		Comment:     "self reply",
		ContentType: domain.ContentTypePlain,
		CreatedAt:   entry.CreatedAt,
	})
	if err != nil {
		t.Fatalf("upsert comment: %v", err)
	}

	likerUuid := uuid.New()
	raw, _ := json.Marshal(domain.LikePayload{
		Type:   domain.TypeLike,
		Author: remoteAuthorPayload(likerUuid),
		Object: commentId,
	})
	res, err := d.Handle(target, raw)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	like := res.Body.(domain.LikePayload)
	if like.Id == "" {
		t.Error("like without id should have one minted")
	}

	stored, err := d.DB.ReadLikeById(like.Id)
	if err != nil {
		t.Fatalf("read like: %v", err)
	}
	if stored.CommentId != commentId {
		t.Errorf("comment_id = %q, want %q", stored.CommentId, commentId)
	}
	if stored.EntryId != "" {
		t.Errorf("entry_id = %q, want empty on a comment like", stored.EntryId)
	}
}

func TestHandleLikeOnMissingObject(t *testing.T) {
	d := setupDispatcher(t)
	target := mustAuthor(t, d.DB, "local", testLocalHost)

	likerUuid := uuid.New()
	raw, _ := json.Marshal(domain.LikePayload{
		Type:   domain.TypeLike,
		Author: remoteAuthorPayload(likerUuid),
		Object: domain.EntryFQID(testRemoteHost, likerUuid, uuid.NewString()),
	})
	if _, err := d.Handle(target, raw); !errors.Is(err, ErrBadPayload) {
		t.Errorf("err = %v, want ErrBadPayload", err)
	}
}

func TestHandleFollowStoresPendingEdge(t *testing.T) {
	d := setupDispatcher(t)
	target := mustAuthor(t, d.DB, "local", testLocalHost)

	actorUuid := uuid.New()
	actor := remoteAuthorPayload(actorUuid)
	actorJson, _ := json.Marshal(actor)
	objectJson, _ := json.Marshal(AuthorToPayload(target))

	raw, _ := json.Marshal(domain.FollowPayload{
		Type:    domain.TypeFollow,
		Summary: "remote author wants to follow local",
		Actor:   actorJson,
		Object:  objectJson,
	})
	res, err := d.Handle(target, raw)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.Created {
		t.Error("follow should report created")
	}

	fr, err := d.DB.ReadFollowRequest(actorUuid, target.Uuid)
	if err != nil {
		t.Fatalf("read follow: %v", err)
	}
	if !fr.Pending.Bool() || fr.Accepted.Bool() {
		t.Errorf("pending=%v accepted=%v, want pending unaccepted", fr.Pending.Bool(), fr.Accepted.Bool())
	}
	if fr.ActorJson != string(actorJson) {
		t.Errorf("actor json not stored verbatim")
	}

	// Re-sending the follow resets to pending, still one row
	raw2, _ := json.Marshal(domain.FollowPayload{
		Type:   domain.TypeFollow,
		Actor:  actorJson,
		Object: objectJson,
	})
	if _, err := d.Handle(target, raw2); err != nil {
		t.Fatalf("re-handle: %v", err)
	}
	pending, err := d.DB.ListPendingFollowsTo(target.Uuid)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending rows = %d, want 1", len(pending))
	}
}

func TestHandleFollowRejectsArrayActor(t *testing.T) {
	d := setupDispatcher(t)
	target := mustAuthor(t, d.DB, "local", testLocalHost)

	raw := []byte(`{"type":"follow","actor":[{"id":"` + domain.AuthorFQID(testRemoteHost, uuid.New()) + `"}],"object":{}}`)
	if _, err := d.Handle(target, raw); !errors.Is(err, ErrBadPayload) {
		t.Errorf("err = %v, want ErrBadPayload", err)
	}
}

func TestHandleFollowRejectsSelfFollow(t *testing.T) {
	d := setupDispatcher(t)
	target := mustAuthor(t, d.DB, "local", testLocalHost)

	actorJson, _ := json.Marshal(AuthorToPayload(target))
	raw, _ := json.Marshal(domain.FollowPayload{
		Type:   domain.TypeFollow,
		Actor:  actorJson,
		Object: actorJson,
	})
	if _, err := d.Handle(target, raw); !errors.Is(err, ErrBadPayload) {
		t.Errorf("err = %v, want ErrBadPayload", err)
	}
}

func TestHandleUnknownType(t *testing.T) {
	d := setupDispatcher(t)
	target := mustAuthor(t, d.DB, "local", testLocalHost)

	if _, err := d.Handle(target, []byte(`{"type":"poke"}`)); !errors.Is(err, ErrBadPayload) {
		t.Errorf("err = %v, want ErrBadPayload", err)
	}
	if _, err := d.Handle(target, []byte(`not json`)); !errors.Is(err, ErrBadPayload) {
		t.Errorf("err = %v, want ErrBadPayload", err)
	}
}
