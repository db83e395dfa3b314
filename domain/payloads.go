package domain

import "encoding/json"

// Wire payloads of the federation contract. Every payload is
// type-discriminated; inbox consumers sniff Type before decoding fully.

const (
	TypeAuthor   = "author"
	TypeAuthors  = "authors"
	TypeEntry    = "entry"
	TypeEntries  = "entries"
	TypeComment  = "comment"
	TypeComments = "comments"
	TypeLike     = "like"
	TypeLikes    = "likes"
	TypeFollow   = "follow"
)

// InboxEnvelope is the minimal decode used to route an inbox POST.
type InboxEnvelope struct {
	Type string `json:"type"`
}

type AuthorPayload struct {
	Type         string `json:"type"`
	Id           string `json:"id"`
	Host         string `json:"host"`
	DisplayName  string `json:"displayName"`
	Github       string `json:"github,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
	Web          string `json:"web,omitempty"`
	Description  string `json:"description,omitempty"`
}

type AuthorsPayload struct {
	Type    string          `json:"type"`
	Authors []AuthorPayload `json:"authors"`
}

type EntryPayload struct {
	Type        string            `json:"type"`
	Title       string            `json:"title"`
	Id          string            `json:"id"`
	Web         string            `json:"web,omitempty"`
	Description string            `json:"description,omitempty"`
	ContentType string            `json:"contentType"`
	Content     string            `json:"content"`
	Author      AuthorPayload     `json:"author"`
	Comments    *CommentsEnvelope `json:"comments,omitempty"`
	Likes       *LikesEnvelope    `json:"likes,omitempty"`
	Published   string            `json:"published"`
	Visibility  string            `json:"visibility"`
}

type CommentPayload struct {
	Type        string         `json:"type"`
	Author      AuthorPayload  `json:"author"`
	Comment     string         `json:"comment"`
	ContentType string         `json:"contentType"`
	Published   string         `json:"published"`
	Id          string         `json:"id"`
	Entry       string         `json:"entry"`
	Web         string         `json:"web,omitempty"`
	Likes       *LikesEnvelope `json:"likes,omitempty"`
}

type LikePayload struct {
	Type      string        `json:"type"`
	Author    AuthorPayload `json:"author"`
	Published string        `json:"published"`
	Id        string        `json:"id"`
	Object    string        `json:"object"`
}

// FollowPayload keeps actor and object raw; the dispatcher validates
// their shape and stores them verbatim.
type FollowPayload struct {
	Type    string          `json:"type"`
	Summary string          `json:"summary"`
	Actor   json.RawMessage `json:"actor"`
	Object  json.RawMessage `json:"object"`
}

// Paginated collection envelopes.

type EntriesEnvelope struct {
	Type       string         `json:"type"`
	Id         string         `json:"id,omitempty"`
	Web        string         `json:"web,omitempty"`
	PageNumber int            `json:"page_number"`
	Size       int            `json:"size"`
	Count      int            `json:"count"`
	Src        []EntryPayload `json:"src"`
}

type CommentsEnvelope struct {
	Type       string           `json:"type"`
	Id         string           `json:"id,omitempty"`
	Web        string           `json:"web,omitempty"`
	PageNumber int              `json:"page_number"`
	Size       int              `json:"size"`
	Count      int              `json:"count"`
	Src        []CommentPayload `json:"src"`
}

type LikesEnvelope struct {
	Type       string        `json:"type"`
	Id         string        `json:"id,omitempty"`
	Web        string        `json:"web,omitempty"`
	PageNumber int           `json:"page_number"`
	Size       int           `json:"size"`
	Count      int           `json:"count"`
	Src        []LikePayload `json:"src"`
}
