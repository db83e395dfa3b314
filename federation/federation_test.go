package federation

import (
	"testing"
	"time"

	"github.com/deemkeen/chirpnet/db"
	"github.com/deemkeen/chirpnet/domain"
	"github.com/deemkeen/chirpnet/util"
	"github.com/google/uuid"
)

const (
	testLocalBase  = "http://local.example.com"
	testLocalHost  = "http://local.example.com/api/"
	testRemoteHost = "http://remote.example.com/api/"
)

func testConf() *util.AppConfig {
	conf := &util.AppConfig{}
	conf.Conf.BaseUrl = testLocalBase
	conf.Conf.NodeName = "chirpnet-test"
	return conf
}

func setupDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	conf := testConf()
	client := NewNodeClient(database)
	t.Cleanup(func() { client.Close() })

	engine := NewEngine(conf, database, client)
	return NewDispatcher(conf, database, NewIdentity(conf, database), engine)
}

func mustAuthor(t *testing.T, d *db.DB, username, host string) *domain.Author {
	t.Helper()
	id := uuid.New()
	a := &domain.Author{
		Uuid:         id,
		Id:           domain.AuthorFQID(host, id),
		Username:     username,
		PasswordHash: domain.UnusablePassword,
		DisplayName:  username,
		Host:         host,
		IsApproved:   domain.TRUE,
		CreatedAt:    time.Now(),
	}
	if err := d.CreateAuthor(a); err != nil {
		t.Fatalf("create author %s: %v", username, err)
	}
	return a
}

func mustEntry(t *testing.T, d *db.DB, author *domain.Author, visibility string) *domain.Entry {
	t.Helper()
	now := time.Now()
	e := &domain.Entry{
		Id:          domain.EntryFQID(author.Host, author.Uuid, uuid.NewString()),
		AuthorUuid:  author.Uuid,
		Title:       "entry by " + author.Username,
		Content:     "hello",
		ContentType: domain.ContentTypePlain,
		Visibility:  visibility,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := d.UpsertEntry(e); err != nil {
		t.Fatalf("upsert entry: %v", err)
	}
	return e
}

func mustAcceptedFollow(t *testing.T, d *db.DB, from, to *domain.Author) {
	t.Helper()
	err := d.UpsertFollowRequest(&domain.FollowRequest{
		FromUuid:   from.Uuid,
		ToUuid:     to.Uuid,
		ActorJson:  "{}",
		ObjectJson: "{}",
		Pending:    domain.TRUE,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("upsert follow: %v", err)
	}
	if err := d.AcceptFollowRequest(from.Uuid, to.Uuid); err != nil {
		t.Fatalf("accept follow: %v", err)
	}
}
