package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestDbBoolConstants(t *testing.T) {
	if FALSE != 0 {
		t.Errorf("FALSE should be 0, got %d", FALSE)
	}
	if TRUE != 1 {
		t.Errorf("TRUE should be 1, got %d", TRUE)
	}
	if !TRUE.Bool() || FALSE.Bool() {
		t.Error("dbBool conversion broken")
	}
	if ToDbBool(true) != TRUE || ToDbBool(false) != FALSE {
		t.Error("ToDbBool conversion broken")
	}
}

func TestAuthorFQID(t *testing.T) {
	id := uuid.MustParse("6f7f2d6e-9a3b-4f3e-8a5d-111111111111")
	fqid := AuthorFQID("http://node.example.com/api/", id)

	expected := "http://node.example.com/api/authors/6f7f2d6e-9a3b-4f3e-8a5d-111111111111"
	if fqid != expected {
		t.Errorf("Expected %q, got %q", expected, fqid)
	}
}

func TestAuthorIsLocal(t *testing.T) {
	a := &Author{Host: "http://node.example.com/api/"}

	if !a.IsLocal("http://node.example.com/api/") {
		t.Error("Expected author to be local to own host")
	}
	if !a.IsLocal("http://node.example.com") {
		t.Error("Expected /api suffix to be ignored in comparison")
	}
	if a.IsLocal("http://other.example.com/api/") {
		t.Error("Expected author to be remote to another host")
	}
}

func TestAuthorInboxURL(t *testing.T) {
	id := uuid.MustParse("6f7f2d6e-9a3b-4f3e-8a5d-111111111111")
	a := &Author{Uuid: id, Host: "http://node.example.com/api/"}

	expected := "http://node.example.com/api/authors/6f7f2d6e-9a3b-4f3e-8a5d-111111111111/inbox/"
	if a.InboxURL() != expected {
		t.Errorf("Expected %q, got %q", expected, a.InboxURL())
	}
}

func TestAuthorWebURL(t *testing.T) {
	id := uuid.MustParse("6f7f2d6e-9a3b-4f3e-8a5d-111111111111")
	a := &Author{Uuid: id, Host: "http://node.example.com/api/"}

	expected := "http://node.example.com/authors/6f7f2d6e-9a3b-4f3e-8a5d-111111111111"
	if a.WebURL() != expected {
		t.Errorf("Expected %q, got %q", expected, a.WebURL())
	}
}

func TestAuthorToString(t *testing.T) {
	a := &Author{Uuid: uuid.New(), Username: "alice", Host: "http://node.example.com/api/"}
	out := a.ToString()
	if out == "" {
		t.Error("ToString() returned empty string")
	}
}
