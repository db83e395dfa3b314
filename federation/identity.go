package federation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deemkeen/chirpnet/db"
	"github.com/deemkeen/chirpnet/domain"
	"github.com/deemkeen/chirpnet/util"
	"github.com/google/uuid"
)

// ErrBadPayload marks wire payloads that fail validation. The web layer
// maps it to a 400.
var ErrBadPayload = errors.New("invalid payload")

// Identity resolves wire author references to stored authors, creating
// shadow rows for identities whose home is a remote node.
type Identity struct {
	DB   *db.DB
	Conf *util.AppConfig
}

func NewIdentity(conf *util.AppConfig, database *db.DB) *Identity {
	return &Identity{DB: database, Conf: conf}
}

// ResolveOrCreateAuthor finds the author a payload refers to, keyed on
// the uuid suffix of its id first and the full id second. Unknown
// identities become approved shadow authors with an unusable password.
// Known ones get their mutable fields refreshed; the stored host is
// never overwritten with this node's own host.
func (i *Identity) ResolveOrCreateAuthor(p domain.AuthorPayload, defaultHost string) (*domain.Author, error) {
	if strings.TrimSpace(p.Id) == "" {
		return nil, fmt.Errorf("%w: author reference without id", ErrBadPayload)
	}

	fqid := strings.TrimRight(strings.TrimSpace(p.Id), "/")
	suffix := util.LastPathSegment(fqid)
	authorUuid, err := uuid.Parse(suffix)
	if err != nil {
		return nil, fmt.Errorf("%w: author id %q has no uuid suffix", ErrBadPayload, p.Id)
	}

	host := p.Host
	if host == "" {
		host = util.NetlocBase(fqid)
	}
	if host == "" {
		host = defaultHost
	}
	host = util.ApiBase(host)

	existing, err := i.DB.ReadAuthorByUuid(authorUuid)
	if errors.Is(err, db.ErrNotFound) {
		existing, err = i.DB.ReadAuthorById(fqid)
	}
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	if errors.Is(err, db.ErrNotFound) {
		display := p.DisplayName
		if display == "" {
			display = suffix
		}
		shadow := &domain.Author{
			Uuid:         authorUuid,
			Id:           fqid,
			Username:     suffix,
			PasswordHash: domain.UnusablePassword,
			DisplayName:  display,
			Host:         host,
			GithubLink:   p.Github,
			ProfileImage: p.ProfileImage,
			Description:  p.Description,
			IsApproved:   domain.TRUE,
			CreatedAt:    time.Now(),
		}
		if cerr := i.DB.CreateAuthor(shadow); cerr != nil {
			if errors.Is(cerr, db.ErrDuplicate) {
				// Lost a race with a concurrent import
				return i.DB.ReadAuthorByUuid(authorUuid)
			}
			return nil, cerr
		}
		return shadow, nil
	}

	changed := false
	if p.DisplayName != "" && p.DisplayName != existing.DisplayName {
		existing.DisplayName = p.DisplayName
		changed = true
	}
	if p.Github != "" && p.Github != existing.GithubLink {
		existing.GithubLink = p.Github
		changed = true
	}
	if p.ProfileImage != "" && p.ProfileImage != existing.ProfileImage {
		existing.ProfileImage = p.ProfileImage
		changed = true
	}
	if p.Description != "" && p.Description != existing.Description {
		existing.Description = p.Description
		changed = true
	}
	// A payload may not relocate an author onto this node
	if host != existing.Host && !util.SameNetloc(host, i.Conf.ApiBase()) {
		existing.Host = host
		changed = true
	}

	if changed {
		if err := i.DB.UpdateAuthor(existing); err != nil {
			return nil, err
		}
	}

	return existing, nil
}
