package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Comment on an entry. Ids are minted under the commenting author's host,
// so remote comments keep their origin id.
type Comment struct {
	Id          string
	Uuid        uuid.UUID
	EntryId     string
	AuthorUuid  uuid.UUID
	Comment     string
	ContentType string
	CreatedAt   time.Time
}

// Like by an author on an entry or a comment. Exactly one of EntryId and
// CommentId is set. ObjectUrl keeps the liked object's fqid as declared
// on the wire.
type Like struct {
	Id         string
	Uuid       uuid.UUID
	AuthorUuid uuid.UUID
	EntryId    string
	CommentId  string
	ObjectUrl  string
	CreatedAt  time.Time
}

// IsCommentLike reports whether the like targets a comment.
func (l *Like) IsCommentLike() bool {
	return l.CommentId != ""
}

// FollowRequest is a directed edge from one author to another. A pending
// edge is a request; an accepted edge is a follow. The raw actor/object
// payloads from the wire are kept verbatim for replay.
type FollowRequest struct {
	FromUuid   uuid.UUID
	ToUuid     uuid.UUID
	Summary    string
	ActorJson  string
	ObjectJson string
	Pending    dbBool
	Accepted   dbBool
	CreatedAt  time.Time
}

// RemoteNode is a configured peer. Username/Password are the credentials
// this node presents when calling the peer; ServiceAccountUuid names the
// local author the peer authenticates as when calling us.
type RemoteNode struct {
	Id                 int64
	BaseUrl            string
	Username           string
	Password           string
	ServiceAccountUuid uuid.UUID
	CreatedAt          time.Time
}

func (n *RemoteNode) ToString() string {
	return fmt.Sprintf("\n\tBaseUrl: %s \n\tUsername: %s", n.BaseUrl, n.Username)
}

// CommentFQID builds a comment id under the commenting author's host.
func CommentFQID(host string, authorUuid uuid.UUID, commentUuid uuid.UUID) string {
	return fmt.Sprintf("%sauthors/%s/commented/%s", host, authorUuid, commentUuid)
}

// LikeFQID builds a like id under the liking author's host.
func LikeFQID(host string, authorUuid uuid.UUID, likeUuid uuid.UUID) string {
	return fmt.Sprintf("%sauthors/%s/liked/%s", host, authorUuid, likeUuid)
}

// IsCommentObject reports whether a liked object url points at a comment
// rather than an entry. Comment ids carry a /commented/ path segment.
func IsCommentObject(objectUrl string) bool {
	return strings.Contains(objectUrl, "/commented/")
}
