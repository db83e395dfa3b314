package federation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deemkeen/chirpnet/domain"
	"github.com/deemkeen/chirpnet/util"
	"github.com/google/uuid"
)

// peerNode fakes a remote node: it serves an author directory and
// records every inbox POST it receives.
type peerNode struct {
	srv *httptest.Server

	mu       sync.Mutex
	inboxes  []string
	payloads []json.RawMessage

	directory []domain.AuthorPayload
}

func newPeerNode(t *testing.T) *peerNode {
	t.Helper()
	p := &peerNode{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/authors/":
			json.NewEncoder(w).Encode(domain.AuthorsPayload{
				Type:    domain.TypeAuthors,
				Authors: p.directory,
			})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/inbox/"):
			var raw json.RawMessage
			json.NewDecoder(r.Body).Decode(&raw)
			p.mu.Lock()
			p.inboxes = append(p.inboxes, r.URL.Path)
			p.payloads = append(p.payloads, raw)
			p.mu.Unlock()
			w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *peerNode) host() string {
	return util.ApiBase(p.srv.URL)
}

func (p *peerNode) addDirectoryAuthor(authorUuid uuid.UUID) {
	p.directory = append(p.directory, domain.AuthorPayload{
		Type: domain.TypeAuthor,
		Id:   domain.AuthorFQID(p.host(), authorUuid),
		Host: p.host(),
	})
}

func (p *peerNode) received() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.inboxes...)
}

func setupEngineWithPeer(t *testing.T) (*Dispatcher, *peerNode) {
	t.Helper()
	d := setupDispatcher(t)
	peer := newPeerNode(t)
	err := d.DB.CreateRemoteNode(&domain.RemoteNode{
		BaseUrl:   peer.srv.URL,
		Username:  "chirpnet-test",
		Password:  "s3cret",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create remote node: %v", err)
	}
	return d, peer
}

func TestFanOutPublicEntryBroadcasts(t *testing.T) {
	d, peer := setupEngineWithPeer(t)

	first := uuid.New()
	second := uuid.New()
	peer.addDirectoryAuthor(first)
	peer.addDirectoryAuthor(second)

	local := mustAuthor(t, d.DB, "local", testLocalHost)
	entry := mustEntry(t, d.DB, local, domain.VisibilityPublic)

	d.Engine.FanOutEntry(entry)
	d.Engine.Wait()

	got := peer.received()
	if len(got) != 2 {
		t.Fatalf("deliveries = %d, want one per directory author", len(got))
	}
	want := map[string]bool{
		"/api/authors/" + first.String() + "/inbox/":  true,
		"/api/authors/" + second.String() + "/inbox/": true,
	}
	for _, path := range got {
		if !want[path] {
			t.Errorf("unexpected delivery to %s", path)
		}
	}
}

func TestFanOutUnlistedGoesToRemoteFollowersOnly(t *testing.T) {
	d, peer := setupEngineWithPeer(t)

	local := mustAuthor(t, d.DB, "local", testLocalHost)
	follower := mustAuthor(t, d.DB, "follower", peer.host())
	bystander := mustAuthor(t, d.DB, "bystander", peer.host())
	localFollower := mustAuthor(t, d.DB, "neighbor", testLocalHost)

	mustAcceptedFollow(t, d.DB, follower, local)
	mustAcceptedFollow(t, d.DB, localFollower, local)

	// A pending request is not a follow yet
	err := d.DB.UpsertFollowRequest(&domain.FollowRequest{
		FromUuid: bystander.Uuid, ToUuid: local.Uuid,
		ActorJson: "{}", ObjectJson: "{}",
		Pending: domain.TRUE, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("upsert pending follow: %v", err)
	}

	entry := mustEntry(t, d.DB, local, domain.VisibilityUnlisted)
	d.Engine.FanOutEntry(entry)
	d.Engine.Wait()

	got := peer.received()
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1 (remote follower only)", len(got))
	}
	want := "/api/authors/" + follower.Uuid.String() + "/inbox/"
	if got[0] != want {
		t.Errorf("delivered to %s, want %s", got[0], want)
	}
}

func TestFanOutFriendsRequiresMutualFollow(t *testing.T) {
	d, peer := setupEngineWithPeer(t)

	local := mustAuthor(t, d.DB, "local", testLocalHost)
	friend := mustAuthor(t, d.DB, "friend", peer.host())
	oneWay := mustAuthor(t, d.DB, "oneway", peer.host())

	mustAcceptedFollow(t, d.DB, friend, local)
	mustAcceptedFollow(t, d.DB, local, friend)
	mustAcceptedFollow(t, d.DB, oneWay, local)

	entry := mustEntry(t, d.DB, local, domain.VisibilityFriends)
	d.Engine.FanOutEntry(entry)
	d.Engine.Wait()

	got := peer.received()
	if len(got) != 1 {
		t.Fatalf("deliveries = %d, want 1 (mutual friend only)", len(got))
	}
	want := "/api/authors/" + friend.Uuid.String() + "/inbox/"
	if got[0] != want {
		t.Errorf("delivered to %s, want %s", got[0], want)
	}
}

func TestFanOutDeletedEntryBroadcastsTombstone(t *testing.T) {
	d, peer := setupEngineWithPeer(t)
	peer.addDirectoryAuthor(uuid.New())

	local := mustAuthor(t, d.DB, "local", testLocalHost)
	entry := mustEntry(t, d.DB, local, domain.VisibilityPublic)
	if err := d.DB.MarkEntryDeleted(entry.Id); err != nil {
		t.Fatalf("mark deleted: %v", err)
	}
	entry.Visibility = domain.VisibilityDeleted

	d.Engine.FanOutEntry(entry)
	d.Engine.Wait()

	if len(peer.received()) != 1 {
		t.Fatalf("tombstone not broadcast")
	}
	peer.mu.Lock()
	p := peer.payloads[0]
	peer.mu.Unlock()
	var ep domain.EntryPayload
	if err := json.Unmarshal(p, &ep); err != nil {
		t.Fatalf("decode delivered payload: %v", err)
	}
	if ep.Visibility != domain.VisibilityDeleted {
		t.Errorf("delivered visibility = %q, want DELETED", ep.Visibility)
	}
}

func TestFanOutCommentSkipsOriginNode(t *testing.T) {
	d, peer := setupEngineWithPeer(t)
	peer.addDirectoryAuthor(uuid.New())

	remote := mustAuthor(t, d.DB, "remote", peer.host())
	local := mustAuthor(t, d.DB, "local", testLocalHost)
	entry := mustEntry(t, d.DB, local, domain.VisibilityPublic)

	commentUuid := uuid.New()
	comment := &domain.Comment{
		Id:          domain.CommentFQID(remote.Host, remote.Uuid, commentUuid),
		Uuid:        commentUuid,
		EntryId:     entry.Id,
		AuthorUuid:  remote.Uuid,
		Comment:     "came from the peer",
		ContentType: domain.ContentTypePlain,
		CreatedAt:   time.Now(),
	}
	if err := d.DB.UpsertComment(comment); err != nil {
		t.Fatalf("upsert comment: %v", err)
	}

	d.Engine.FanOutComment(comment)
	d.Engine.Wait()

	if got := peer.received(); len(got) != 0 {
		t.Errorf("deliveries = %d, want none back to the origin node", len(got))
	}
}

func TestSendUnlistedBacklog(t *testing.T) {
	d, peer := setupEngineWithPeer(t)

	local := mustAuthor(t, d.DB, "local", testLocalHost)
	follower := mustAuthor(t, d.DB, "follower", peer.host())
	mustEntry(t, d.DB, local, domain.VisibilityUnlisted)
	mustEntry(t, d.DB, local, domain.VisibilityUnlisted)
	mustEntry(t, d.DB, local, domain.VisibilityPublic)

	d.Engine.SendUnlistedBacklog(local, follower)
	d.Engine.Wait()

	got := peer.received()
	if len(got) != 2 {
		t.Fatalf("deliveries = %d, want the two unlisted entries", len(got))
	}
	want := "/api/authors/" + follower.Uuid.String() + "/inbox/"
	for _, path := range got {
		if path != want {
			t.Errorf("delivered to %s, want %s", path, want)
		}
	}
}
