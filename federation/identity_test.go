package federation

import (
	"errors"
	"testing"

	"github.com/deemkeen/chirpnet/domain"
	"github.com/google/uuid"
)

func TestResolveCreatesShadowAuthor(t *testing.T) {
	d := setupDispatcher(t)

	remoteUuid := uuid.New()
	p := domain.AuthorPayload{
		Type:        domain.TypeAuthor,
		Id:          domain.AuthorFQID(testRemoteHost, remoteUuid),
		DisplayName: "Remote Ronja",
	}

	a, err := d.Identity.ResolveOrCreateAuthor(p, testRemoteHost)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a.Uuid != remoteUuid {
		t.Errorf("uuid = %s, want %s", a.Uuid, remoteUuid)
	}
	if a.Host != testRemoteHost {
		t.Errorf("host = %q, want %q", a.Host, testRemoteHost)
	}
	if a.PasswordHash != domain.UnusablePassword {
		t.Errorf("shadow author got usable password %q", a.PasswordHash)
	}
	if !a.IsApproved.Bool() {
		t.Error("shadow author should be approved")
	}
	if a.Username != remoteUuid.String() {
		t.Errorf("username = %q, want uuid suffix", a.Username)
	}
}

func TestResolveIsIdempotentAndRefreshesProfile(t *testing.T) {
	d := setupDispatcher(t)

	remoteUuid := uuid.New()
	p := domain.AuthorPayload{
		Id:          domain.AuthorFQID(testRemoteHost, remoteUuid),
		DisplayName: "First Name",
	}
	first, err := d.Identity.ResolveOrCreateAuthor(p, testRemoteHost)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	p.DisplayName = "Renamed"
	second, err := d.Identity.ResolveOrCreateAuthor(p, testRemoteHost)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if second.Uuid != first.Uuid {
		t.Fatalf("second resolve created a new author")
	}
	if second.DisplayName != "Renamed" {
		t.Errorf("display name = %q, want %q", second.DisplayName, "Renamed")
	}

	stored, err := d.DB.ReadAuthorByUuid(first.Uuid)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if stored.DisplayName != "Renamed" {
		t.Errorf("stored display name = %q, want %q", stored.DisplayName, "Renamed")
	}
}

func TestResolveNeverRelocatesAuthorToOwnHost(t *testing.T) {
	d := setupDispatcher(t)

	remote := mustAuthor(t, d.DB, "ronja", testRemoteHost)

	// A payload claiming this node's own host must not move the author
	got, err := d.Identity.ResolveOrCreateAuthor(domain.AuthorPayload{
		Id:   remote.Id,
		Host: testLocalHost,
	}, testLocalHost)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Host != testRemoteHost {
		t.Errorf("host = %q, want unchanged %q", got.Host, testRemoteHost)
	}

	// A genuinely new remote host does move it
	moved := "http://third.example.com/api/"
	got, err = d.Identity.ResolveOrCreateAuthor(domain.AuthorPayload{
		Id:   remote.Id,
		Host: moved,
	}, testLocalHost)
	if err != nil {
		t.Fatalf("resolve after move: %v", err)
	}
	if got.Host != moved {
		t.Errorf("host = %q, want %q", got.Host, moved)
	}
}

func TestResolveRejectsBadReferences(t *testing.T) {
	d := setupDispatcher(t)

	cases := []struct {
		name string
		p    domain.AuthorPayload
	}{
		{"missing id", domain.AuthorPayload{DisplayName: "nobody"}},
		{"no uuid suffix", domain.AuthorPayload{Id: testRemoteHost + "authors/not-a-uuid"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := d.Identity.ResolveOrCreateAuthor(tc.p, testRemoteHost); !errors.Is(err, ErrBadPayload) {
				t.Errorf("err = %v, want ErrBadPayload", err)
			}
		})
	}
}

func TestResolveDerivesHostFromId(t *testing.T) {
	d := setupDispatcher(t)

	remoteUuid := uuid.New()
	a, err := d.Identity.ResolveOrCreateAuthor(domain.AuthorPayload{
		Id: "http://remote.example.com/api/authors/" + remoteUuid.String(),
	}, testLocalHost)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a.Host != testRemoteHost {
		t.Errorf("host = %q, want %q derived from id", a.Host, testRemoteHost)
	}
}
