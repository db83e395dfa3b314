package db

import (
	"database/sql"

	"github.com/deemkeen/chirpnet/domain"
	"github.com/google/uuid"
)

// Comments
const (
	commentCols = `id, uuid, entry_id, author_uuid, comment, content_type, created_at`

	sqlUpsertComment = `INSERT INTO comments(` + commentCols + `) VALUES (?, ?, ?, ?, ?, ?, ?)
                                                            ON CONFLICT(id) DO UPDATE SET
                                                            comment = excluded.comment,
                                                            content_type = excluded.content_type`

	sqlSelectCommentById   = `SELECT ` + commentCols + ` FROM comments WHERE id = ?`
	sqlSelectCommentByUuid = `SELECT ` + commentCols + ` FROM comments WHERE uuid = ?`

	sqlSelectCommentsByEntry = `SELECT ` + commentCols + ` FROM comments
                                                            WHERE entry_id = ?
                                                            ORDER BY created_at DESC
                                                            LIMIT ? OFFSET ?`
	sqlCountCommentsByEntry = `SELECT COUNT(*) FROM comments WHERE entry_id = ?`
)

// Likes
const (
	likeCols = `id, uuid, author_uuid, entry_id, comment_id, object_url, created_at`

	sqlInsertLike = `INSERT INTO likes(` + likeCols + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlUpdateLike = `UPDATE likes SET entry_id = ?, comment_id = ?, object_url = ? WHERE id = ?`

	sqlSelectLikeById   = `SELECT ` + likeCols + ` FROM likes WHERE id = ?`
	sqlSelectLikeByUuid = `SELECT ` + likeCols + ` FROM likes WHERE uuid = ?`

	sqlSelectLikesByEntry = `SELECT ` + likeCols + ` FROM likes
                                                            WHERE entry_id = ?
                                                            ORDER BY created_at DESC
                                                            LIMIT ? OFFSET ?`
	sqlCountLikesByEntry = `SELECT COUNT(*) FROM likes WHERE entry_id = ?`

	sqlSelectLikesByComment = `SELECT ` + likeCols + ` FROM likes
                                                            WHERE comment_id = ?
                                                            ORDER BY created_at DESC
                                                            LIMIT ? OFFSET ?`
	sqlCountLikesByComment = `SELECT COUNT(*) FROM likes WHERE comment_id = ?`

	sqlSelectLikesByAuthor = `SELECT ` + likeCols + ` FROM likes
                                                            WHERE author_uuid = ?
                                                            ORDER BY created_at DESC
                                                            LIMIT ? OFFSET ?`
	sqlCountLikesByAuthor = `SELECT COUNT(*) FROM likes WHERE author_uuid = ?`

	sqlCountLikeByAuthorAndEntry   = `SELECT COUNT(*) FROM likes WHERE author_uuid = ? AND entry_id = ?`
	sqlCountLikeByAuthorAndComment = `SELECT COUNT(*) FROM likes WHERE author_uuid = ? AND comment_id = ?`
)

// Follow requests
const (
	followCols = `from_uuid, to_uuid, summary, actor_json, object_json, pending, accepted, created_at`

	// One row per (from,to); re-sending replaces the captured payloads
	// and resets the edge to pending.
	sqlUpsertFollow = `INSERT INTO follow_requests(` + followCols + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
                                                            ON CONFLICT(from_uuid, to_uuid) DO UPDATE SET
                                                            summary = excluded.summary,
                                                            actor_json = excluded.actor_json,
                                                            object_json = excluded.object_json,
                                                            pending = excluded.pending,
                                                            accepted = excluded.accepted`

	sqlSelectFollow = `SELECT ` + followCols + ` FROM follow_requests WHERE from_uuid = ? AND to_uuid = ?`
	sqlAcceptFollow = `UPDATE follow_requests SET accepted = 1, pending = 0 WHERE from_uuid = ? AND to_uuid = ?`
	sqlDeleteFollow = `DELETE FROM follow_requests WHERE from_uuid = ? AND to_uuid = ?`

	sqlSelectPendingFollowsTo = `SELECT ` + followCols + ` FROM follow_requests
                                                            WHERE to_uuid = ? AND pending = 1
                                                            ORDER BY created_at DESC`

	sqlSelectFollowerUuids  = `SELECT from_uuid FROM follow_requests WHERE to_uuid = ? AND accepted = 1`
	sqlSelectFollowingUuids = `SELECT to_uuid FROM follow_requests WHERE from_uuid = ? AND accepted = 1`
)

// Remote nodes
const (
	nodeCols = `id, base_url, username, password, service_account_uuid, created_at`

	sqlInsertNode = `INSERT INTO remote_nodes(base_url, username, password, service_account_uuid, created_at) VALUES (?, ?, ?, ?, ?)`

	sqlSelectNodes                = `SELECT ` + nodeCols + ` FROM remote_nodes ORDER BY created_at ASC`
	sqlSelectNodeByBaseUrl        = `SELECT ` + nodeCols + ` FROM remote_nodes WHERE base_url = ?`
	sqlSelectNodeByServiceAccount = `SELECT ` + nodeCols + ` FROM remote_nodes WHERE service_account_uuid = ?`
)

func (db *DB) UpsertComment(c *domain.Comment) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertComment,
			c.Id,
			c.Uuid.String(),
			c.EntryId,
			c.AuthorUuid.String(),
			c.Comment,
			c.ContentType,
			c.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadCommentById(id string) (*domain.Comment, error) {
	return db.readComment(sqlSelectCommentById, id)
}

func (db *DB) ReadCommentByUuid(id uuid.UUID) (*domain.Comment, error) {
	return db.readComment(sqlSelectCommentByUuid, id.String())
}

func (db *DB) ListCommentsByEntry(entryId string, page, size int) ([]domain.Comment, int, error) {
	var total int
	if err := db.db.QueryRow(sqlCountCommentsByEntry, entryId).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := db.db.Query(sqlSelectCommentsByEntry, entryId, size, (page-1)*size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, 0, err
		}
		comments = append(comments, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return comments, total, nil
}

func (db *DB) readComment(query string, arg any) (*domain.Comment, error) {
	row := db.db.QueryRow(query, arg)
	c, err := scanComment(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func scanComment(row rowScanner) (*domain.Comment, error) {
	var c domain.Comment
	var id, author string
	err := row.Scan(&c.Id, &id, &c.EntryId, &author, &c.Comment, &c.ContentType, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if c.Uuid, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if c.AuthorUuid, err = uuid.Parse(author); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateLike inserts a like. A second like by the same author on the same
// entry violates the uniqueness constraint and comes back as ErrDuplicate;
// comment likes are checked explicitly because their entry_id is NULL.
func (db *DB) CreateLike(l *domain.Like) error {
	if l.CommentId != "" {
		liked, err := db.HasLikedComment(l.AuthorUuid, l.CommentId)
		if err != nil {
			return err
		}
		if liked {
			return ErrDuplicate
		}
	}

	err := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertLike,
			l.Id,
			l.Uuid.String(),
			l.AuthorUuid.String(),
			nullable(l.EntryId),
			nullable(l.CommentId),
			l.ObjectUrl,
			l.CreatedAt,
		)
		return err
	})
	if isConstraintErr(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateLike refreshes the object bindings of an already stored like;
// re-importing the same like id is idempotent.
func (db *DB) UpdateLike(l *domain.Like) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateLike, nullable(l.EntryId), nullable(l.CommentId), l.ObjectUrl, l.Id)
		return err
	})
}

func (db *DB) ReadLikeById(id string) (*domain.Like, error) {
	return db.readLike(sqlSelectLikeById, id)
}

func (db *DB) ReadLikeByUuid(id uuid.UUID) (*domain.Like, error) {
	return db.readLike(sqlSelectLikeByUuid, id.String())
}

func (db *DB) ListLikesByEntry(entryId string, page, size int) ([]domain.Like, int, error) {
	return db.listLikes(sqlSelectLikesByEntry, sqlCountLikesByEntry, entryId, page, size)
}

func (db *DB) ListLikesByComment(commentId string, page, size int) ([]domain.Like, int, error) {
	return db.listLikes(sqlSelectLikesByComment, sqlCountLikesByComment, commentId, page, size)
}

func (db *DB) ListLikesByAuthor(author uuid.UUID, page, size int) ([]domain.Like, int, error) {
	return db.listLikes(sqlSelectLikesByAuthor, sqlCountLikesByAuthor, author.String(), page, size)
}

func (db *DB) HasLikedEntry(author uuid.UUID, entryId string) (bool, error) {
	var n int
	err := db.db.QueryRow(sqlCountLikeByAuthorAndEntry, author.String(), entryId).Scan(&n)
	return n > 0, err
}

func (db *DB) HasLikedComment(author uuid.UUID, commentId string) (bool, error) {
	var n int
	err := db.db.QueryRow(sqlCountLikeByAuthorAndComment, author.String(), commentId).Scan(&n)
	return n > 0, err
}

func (db *DB) readLike(query string, arg any) (*domain.Like, error) {
	row := db.db.QueryRow(query, arg)
	l, err := scanLike(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (db *DB) listLikes(query, countQuery, arg string, page, size int) ([]domain.Like, int, error) {
	var total int
	if err := db.db.QueryRow(countQuery, arg).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := db.db.Query(query, arg, size, (page-1)*size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var likes []domain.Like
	for rows.Next() {
		l, err := scanLike(rows)
		if err != nil {
			return nil, 0, err
		}
		likes = append(likes, *l)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return likes, total, nil
}

func scanLike(row rowScanner) (*domain.Like, error) {
	var l domain.Like
	var id, author string
	var entryId, commentId sql.NullString
	err := row.Scan(&l.Id, &id, &author, &entryId, &commentId, &l.ObjectUrl, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if l.Uuid, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if l.AuthorUuid, err = uuid.Parse(author); err != nil {
		return nil, err
	}
	l.EntryId = entryId.String
	l.CommentId = commentId.String
	return &l, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (db *DB) UpsertFollowRequest(fr *domain.FollowRequest) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertFollow,
			fr.FromUuid.String(),
			fr.ToUuid.String(),
			fr.Summary,
			fr.ActorJson,
			fr.ObjectJson,
			fr.Pending,
			fr.Accepted,
			fr.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadFollowRequest(from, to uuid.UUID) (*domain.FollowRequest, error) {
	row := db.db.QueryRow(sqlSelectFollow, from.String(), to.String())
	fr, err := scanFollow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fr, nil
}

// AcceptFollowRequest flips an edge to accepted. ErrNotFound when no edge
// exists between the two authors.
func (db *DB) AcceptFollowRequest(from, to uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlAcceptFollow, from.String(), to.String())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteFollowRequest removes an edge entirely; used for both rejecting a
// pending request and unfollowing an accepted one.
func (db *DB) DeleteFollowRequest(from, to uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlDeleteFollow, from.String(), to.String())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListPendingFollowsTo returns the open incoming requests for an author,
// newest first.
func (db *DB) ListPendingFollowsTo(to uuid.UUID) ([]domain.FollowRequest, error) {
	rows, err := db.db.Query(sqlSelectPendingFollowsTo, to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frs []domain.FollowRequest
	for rows.Next() {
		fr, err := scanFollow(rows)
		if err != nil {
			return nil, err
		}
		frs = append(frs, *fr)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return frs, nil
}

// FollowerUuids returns the authors with an accepted edge into author.
func (db *DB) FollowerUuids(author uuid.UUID) ([]uuid.UUID, error) {
	return db.queryUuids(sqlSelectFollowerUuids, author.String())
}

// FollowingUuids returns the authors author has an accepted edge to.
func (db *DB) FollowingUuids(author uuid.UUID) ([]uuid.UUID, error) {
	return db.queryUuids(sqlSelectFollowingUuids, author.String())
}

func (db *DB) queryUuids(query string, arg any) ([]uuid.UUID, error) {
	rows, err := db.db.Query(query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func scanFollow(row rowScanner) (*domain.FollowRequest, error) {
	var fr domain.FollowRequest
	var from, to string
	err := row.Scan(&from, &to, &fr.Summary, &fr.ActorJson, &fr.ObjectJson, &fr.Pending, &fr.Accepted, &fr.CreatedAt)
	if err != nil {
		return nil, err
	}
	if fr.FromUuid, err = uuid.Parse(from); err != nil {
		return nil, err
	}
	if fr.ToUuid, err = uuid.Parse(to); err != nil {
		return nil, err
	}
	return &fr, nil
}

func (db *DB) CreateRemoteNode(n *domain.RemoteNode) error {
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlInsertNode,
			n.BaseUrl,
			n.Username,
			n.Password,
			n.ServiceAccountUuid.String(),
			n.CreatedAt,
		)
		if err != nil {
			return err
		}
		n.Id, err = res.LastInsertId()
		return err
	})
	if isConstraintErr(err) {
		return ErrDuplicate
	}
	return err
}

func (db *DB) ListRemoteNodes() ([]domain.RemoteNode, error) {
	rows, err := db.db.Query(sqlSelectNodes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []domain.RemoteNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *n)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return nodes, nil
}

func (db *DB) ReadRemoteNodeByBaseUrl(baseUrl string) (*domain.RemoteNode, error) {
	return db.readNode(sqlSelectNodeByBaseUrl, baseUrl)
}

func (db *DB) ReadRemoteNodeByServiceAccount(account uuid.UUID) (*domain.RemoteNode, error) {
	return db.readNode(sqlSelectNodeByServiceAccount, account.String())
}

func (db *DB) readNode(query string, arg any) (*domain.RemoteNode, error) {
	row := db.db.QueryRow(query, arg)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func scanNode(row rowScanner) (*domain.RemoteNode, error) {
	var n domain.RemoteNode
	var account string
	err := row.Scan(&n.Id, &n.BaseUrl, &n.Username, &n.Password, &account, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	if n.ServiceAccountUuid, err = uuid.Parse(account); err != nil {
		return nil, err
	}
	return &n, nil
}
