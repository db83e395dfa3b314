package federation

import (
	"fmt"
	"strings"
	"time"

	"github.com/deemkeen/chirpnet/db"
	"github.com/deemkeen/chirpnet/domain"
	"github.com/deemkeen/chirpnet/util"
	"resty.dev/v3"
)

// NodeClient talks to peer nodes over their json api, authenticating
// with the per-node credentials stored at registration time. Calls are
// kept short; federation is best-effort and a slow peer must not stall
// anything.
type NodeClient struct {
	http *resty.Client
	db   *db.DB
}

func NewNodeClient(database *db.DB) *NodeClient {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetHeader("Accept", "application/json")

	return &NodeClient{http: client, db: database}
}

func (nc *NodeClient) Close() error {
	return nc.http.Close()
}

// apiURL joins a node base url with a relative api path.
func apiURL(baseUrl, path string) string {
	return util.ApiBase(baseUrl) + strings.TrimLeft(path, "/")
}

func (nc *NodeClient) request(node *domain.RemoteNode) *resty.Request {
	req := nc.http.R()
	if node.Username != "" {
		req.SetBasicAuth(node.Username, node.Password)
	}
	return req
}

// FetchAuthors pulls the peer's author directory.
func (nc *NodeClient) FetchAuthors(node *domain.RemoteNode) ([]domain.AuthorPayload, error) {
	var out domain.AuthorsPayload
	resp, err := nc.request(node).
		SetQueryParam("size", "100").
		SetResult(&out).
		Get(apiURL(node.BaseUrl, "authors/"))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("authors directory %s: %s", node.BaseUrl, resp.Status())
	}
	return out.Authors, nil
}

// FetchEntries pulls one author's entries from the peer.
func (nc *NodeClient) FetchEntries(node *domain.RemoteNode, authorUuid string) ([]domain.EntryPayload, error) {
	var out domain.EntriesEnvelope
	resp, err := nc.request(node).
		SetResult(&out).
		Get(apiURL(node.BaseUrl, fmt.Sprintf("authors/%s/entries/", authorUuid)))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("entries of %s on %s: %s", authorUuid, node.BaseUrl, resp.Status())
	}
	return out.Src, nil
}

// FetchComments pulls the comments of one entry from the peer.
func (nc *NodeClient) FetchComments(node *domain.RemoteNode, authorUuid, entrySuffix string) ([]domain.CommentPayload, error) {
	var out domain.CommentsEnvelope
	resp, err := nc.request(node).
		SetResult(&out).
		Get(apiURL(node.BaseUrl, fmt.Sprintf("authors/%s/entries/%s/comments/", authorUuid, entrySuffix)))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("comments of %s on %s: %s", entrySuffix, node.BaseUrl, resp.Status())
	}
	return out.Src, nil
}

// FetchEntryLikes pulls the likes of one entry from the peer.
func (nc *NodeClient) FetchEntryLikes(node *domain.RemoteNode, authorUuid, entrySuffix string) ([]domain.LikePayload, error) {
	return nc.fetchLikes(node, fmt.Sprintf("authors/%s/entries/%s/likes/", authorUuid, entrySuffix))
}

// FetchCommentLikes pulls the likes of one comment from the peer.
func (nc *NodeClient) FetchCommentLikes(node *domain.RemoteNode, authorUuid, commentSuffix string) ([]domain.LikePayload, error) {
	return nc.fetchLikes(node, fmt.Sprintf("authors/%s/comments/%s/likes/", authorUuid, commentSuffix))
}

func (nc *NodeClient) fetchLikes(node *domain.RemoteNode, path string) ([]domain.LikePayload, error) {
	var out domain.LikesEnvelope
	resp, err := nc.request(node).
		SetResult(&out).
		Get(apiURL(node.BaseUrl, path))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("likes %s on %s: %s", path, node.BaseUrl, resp.Status())
	}
	return out.Src, nil
}

// PostInbox delivers one payload to an author's inbox url, attaching the
// credentials of whichever configured node the url belongs to. One
// attempt; callers treat failure as a log line, never a retry queue.
func (nc *NodeClient) PostInbox(inboxUrl string, payload any) error {
	req := nc.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload)

	if node := nc.nodeFor(inboxUrl); node != nil && node.Username != "" {
		req.SetBasicAuth(node.Username, node.Password)
	}

	resp, err := req.Post(inboxUrl)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("inbox %s: %s", inboxUrl, resp.Status())
	}
	return nil
}

func (nc *NodeClient) nodeFor(rawUrl string) *domain.RemoteNode {
	nodes, err := nc.db.ListRemoteNodes()
	if err != nil {
		return nil
	}
	for idx := range nodes {
		if util.SameNetloc(nodes[idx].BaseUrl, rawUrl) {
			return &nodes[idx]
		}
	}
	return nil
}
