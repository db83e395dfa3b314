package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	FALSE dbBool = iota
	TRUE
)

type dbBool uint

func (b dbBool) Bool() bool {
	return b == TRUE
}

func ToDbBool(b bool) dbBool {
	if b {
		return TRUE
	}
	return FALSE
}

// UnusablePassword is stored as the password hash of shadow authors
// mirrored from remote nodes. It can never verify against any input.
const UnusablePassword = "!"

// Author is a publishing identity. Local authors carry a usable password
// hash; shadow authors mirror identities that live on a remote node and
// keep that node's host in Host.
type Author struct {
	Uuid         uuid.UUID
	Id           string // fully qualified: <host>authors/<uuid>
	Username     string
	PasswordHash string
	DisplayName  string
	Host         string // canonical, ends with /api/
	GithubLink   string
	ProfileImage string
	Description  string
	IsApproved   dbBool
	IsStaff      dbBool
	CreatedAt    time.Time
}

func (a *Author) ToString() string {
	return fmt.Sprintf("\n\tUuid: %s \n\tId: %s \n\tUsername: %s \n\tHost: %s", a.Uuid, a.Id, a.Username, a.Host)
}

// IsLocal reports whether the author lives on the given local host.
func (a *Author) IsLocal(localHost string) bool {
	return sameHost(a.Host, localHost)
}

// InboxURL is where federation payloads addressed to this author are POSTed.
func (a *Author) InboxURL() string {
	return fmt.Sprintf("%sauthors/%s/inbox/", a.Host, a.Uuid)
}

// WebURL is the human-facing profile url (host without the /api suffix).
func (a *Author) WebURL() string {
	return fmt.Sprintf("%s/authors/%s", strings.TrimSuffix(strings.TrimRight(a.Host, "/"), "/api"), a.Uuid)
}

// AuthorFQID builds the fully qualified author id under host.
// host must be in canonical form (trailing /api/).
func AuthorFQID(host string, authorUuid uuid.UUID) string {
	return fmt.Sprintf("%sauthors/%s", host, authorUuid)
}

func sameHost(a, b string) bool {
	trim := func(s string) string {
		s = strings.TrimRight(strings.TrimSpace(s), "/")
		return strings.TrimSuffix(s, "/api")
	}
	return trim(a) == trim(b)
}
