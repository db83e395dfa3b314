package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/deemkeen/chirpnet/domain"
	"github.com/google/uuid"
)

const (
	entryCols = `id, author_uuid, title, description, content, content_type, visibility, created_at, updated_at`

	// Entries are keyed on their fully qualified id; re-delivery of the
	// same id is an update, never a second row.
	sqlUpsertEntry = `INSERT INTO entries(` + entryCols + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
                                                            ON CONFLICT(id) DO UPDATE SET
                                                            title = excluded.title,
                                                            description = excluded.description,
                                                            content = excluded.content,
                                                            content_type = excluded.content_type,
                                                            visibility = excluded.visibility,
                                                            updated_at = excluded.updated_at`

	sqlUpdateEntryVisibility = `UPDATE entries SET visibility = ?, updated_at = ? WHERE id = ?`

	sqlSelectEntryById     = `SELECT ` + entryCols + ` FROM entries WHERE id = ?`
	sqlSelectEntryBySuffix = `SELECT ` + entryCols + ` FROM entries WHERE id = ? OR id LIKE ? LIMIT 1`

	sqlSelectEntriesByAuthorPrefix = `SELECT ` + entryCols + ` FROM entries
                                                            WHERE author_uuid = ? AND visibility IN (%s)
                                                            ORDER BY created_at DESC
                                                            LIMIT ? OFFSET ?`
	sqlCountEntriesByAuthorPrefix = `SELECT COUNT(*) FROM entries WHERE author_uuid = ? AND visibility IN (%s)`

	sqlSelectEntriesByAuthorAndVisibility = `SELECT ` + entryCols + ` FROM entries
                                                            WHERE author_uuid = ? AND visibility = ?
                                                            ORDER BY created_at DESC`

	sqlSelectPublicEntries = `SELECT ` + entryCols + ` FROM entries
                                                            WHERE visibility = 'PUBLIC'
                                                            ORDER BY created_at DESC
                                                            LIMIT ?`

	sqlSelectFeedEntriesPrefix = `SELECT ` + entryCols + ` FROM entries
                                                            WHERE (author_uuid = ? AND visibility != 'DELETED')
                                                            OR visibility = 'PUBLIC'
                                                            OR (visibility = 'UNLISTED' AND author_uuid IN (%s))
                                                            OR (visibility = 'FRIENDS' AND author_uuid IN (%s))
                                                            ORDER BY created_at DESC`
)

func (db *DB) UpsertEntry(e *domain.Entry) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertEntry,
			e.Id,
			e.AuthorUuid.String(),
			e.Title,
			e.Description,
			e.Content,
			e.ContentType,
			e.Visibility,
			e.CreatedAt,
			e.UpdatedAt,
		)
		return err
	})
}

// MarkEntryDeleted soft-deletes an entry. The row stays for staff audit
// and for the deletion to federate as a tombstone.
func (db *DB) MarkEntryDeleted(id string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlUpdateEntryVisibility, domain.VisibilityDeleted, time.Now(), id)
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

func (db *DB) ReadEntryById(id string) (*domain.Entry, error) {
	row := db.db.QueryRow(sqlSelectEntryById, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ReadEntryBySuffix resolves an entry by the last segment of its id,
// matching either a bare suffix or any fully qualified id ending in it.
func (db *DB) ReadEntryBySuffix(suffix string) (*domain.Entry, error) {
	row := db.db.QueryRow(sqlSelectEntryBySuffix, suffix, "%/"+suffix)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListEntriesByAuthor pages through an author's entries restricted to the
// given visibility states, newest first.
func (db *DB) ListEntriesByAuthor(author uuid.UUID, visibilities []string, page, size int) ([]domain.Entry, int, error) {
	if len(visibilities) == 0 {
		return nil, 0, nil
	}

	in := placeholders(len(visibilities))
	args := make([]any, 0, len(visibilities)+3)
	args = append(args, author.String())
	for _, v := range visibilities {
		args = append(args, v)
	}

	var total int
	countQuery := strings.Replace(sqlCountEntriesByAuthorPrefix, "%s", in, 1)
	if err := db.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, size, (page-1)*size)
	query := strings.Replace(sqlSelectEntriesByAuthorPrefix, "%s", in, 1)
	entries, err := db.queryEntries(query, args...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListEntriesByAuthorAndVisibility returns all of an author's entries in a
// single visibility state, newest first. Used by federation backfills.
func (db *DB) ListEntriesByAuthorAndVisibility(author uuid.UUID, visibility string) ([]domain.Entry, error) {
	return db.queryEntries(sqlSelectEntriesByAuthorAndVisibility, author.String(), visibility)
}

func (db *DB) PublicEntries(limit int) ([]domain.Entry, error) {
	return db.queryEntries(sqlSelectPublicEntries, limit)
}

// FeedEntries returns the visibility-filtered feed for viewer: own entries,
// all PUBLIC, UNLISTED by authors the viewer follows, FRIENDS by mutual
// friends. Newest first; DELETED never appears.
func (db *DB) FeedEntries(viewer uuid.UUID, followed, friends []uuid.UUID) ([]domain.Entry, error) {
	query := strings.Replace(sqlSelectFeedEntriesPrefix, "%s", placeholders(len(followed)), 1)
	query = strings.Replace(query, "%s", placeholders(len(friends)), 1)

	args := make([]any, 0, 1+len(followed)+len(friends))
	args = append(args, viewer.String())
	for _, u := range followed {
		args = append(args, u.String())
	}
	for _, u := range friends {
		args = append(args, u.String())
	}

	return db.queryEntries(query, args...)
}

func (db *DB) queryEntries(query string, args ...any) ([]domain.Entry, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func scanEntry(row rowScanner) (*domain.Entry, error) {
	var e domain.Entry
	var author string
	err := row.Scan(
		&e.Id,
		&author,
		&e.Title,
		&e.Description,
		&e.Content,
		&e.ContentType,
		&e.Visibility,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.AuthorUuid, err = uuid.Parse(author)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// placeholders builds "?, ?, ?" for n args; an empty list yields NULL so
// the IN clause stays valid and matches nothing.
func placeholders(n int) string {
	if n == 0 {
		return "NULL"
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
