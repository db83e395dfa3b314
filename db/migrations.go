package db

import (
	"database/sql"

	"github.com/charmbracelet/log"
)

const (
	sqlCreateAuthorsTable = `CREATE TABLE IF NOT EXISTS authors(
		uuid uuid NOT NULL PRIMARY KEY,
		id varchar(300) UNIQUE NOT NULL,
		username varchar(100) UNIQUE NOT NULL,
		password_hash varchar(100) NOT NULL,
		display_name varchar(100) NOT NULL,
		host varchar(200) NOT NULL,
		github_link varchar(200) DEFAULT '',
		profile_image text DEFAULT '',
		description text DEFAULT '',
		is_approved int DEFAULT 0,
		is_staff int DEFAULT 0,
		created_at timestamp DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateAuthorsIndices = `
		CREATE INDEX IF NOT EXISTS idx_authors_host ON authors(host);
		CREATE INDEX IF NOT EXISTS idx_authors_username ON authors(username);
	`

	sqlCreateEntriesTable = `CREATE TABLE IF NOT EXISTS entries(
		id varchar(300) NOT NULL PRIMARY KEY,
		author_uuid uuid NOT NULL REFERENCES authors(uuid),
		title varchar(200) NOT NULL,
		description varchar(300) DEFAULT '',
		content text NOT NULL,
		content_type varchar(50) NOT NULL DEFAULT 'text/plain',
		visibility varchar(10) NOT NULL DEFAULT 'PUBLIC',
		created_at timestamp DEFAULT CURRENT_TIMESTAMP,
		updated_at timestamp DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateEntriesIndices = `
		CREATE INDEX IF NOT EXISTS idx_entries_author_uuid ON entries(author_uuid);
		CREATE INDEX IF NOT EXISTS idx_entries_visibility ON entries(visibility);
		CREATE INDEX IF NOT EXISTS idx_entries_created_at ON entries(created_at DESC);
	`

	sqlCreateCommentsTable = `CREATE TABLE IF NOT EXISTS comments(
		id varchar(300) NOT NULL PRIMARY KEY,
		uuid uuid UNIQUE NOT NULL,
		entry_id varchar(300) NOT NULL REFERENCES entries(id),
		author_uuid uuid NOT NULL REFERENCES authors(uuid),
		comment text NOT NULL,
		content_type varchar(50) DEFAULT 'text/plain',
		created_at timestamp DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateCommentsIndices = `
		CREATE INDEX IF NOT EXISTS idx_comments_entry_id ON comments(entry_id);
		CREATE INDEX IF NOT EXISTS idx_comments_author_uuid ON comments(author_uuid);
	`

	// entry_id stays NULL on comment likes; the unique index then never
	// collides, so author+comment duplication is checked in code.
	sqlCreateLikesTable = `CREATE TABLE IF NOT EXISTS likes(
		id varchar(300) NOT NULL PRIMARY KEY,
		uuid uuid UNIQUE NOT NULL,
		author_uuid uuid NOT NULL REFERENCES authors(uuid),
		entry_id varchar(300),
		comment_id varchar(300),
		object_url text DEFAULT '',
		created_at timestamp DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(author_uuid, entry_id)
	)`

	sqlCreateLikesIndices = `
		CREATE INDEX IF NOT EXISTS idx_likes_entry_id ON likes(entry_id);
		CREATE INDEX IF NOT EXISTS idx_likes_comment_id ON likes(comment_id);
		CREATE INDEX IF NOT EXISTS idx_likes_author_uuid ON likes(author_uuid);
	`

	sqlCreateFollowRequestsTable = `CREATE TABLE IF NOT EXISTS follow_requests(
		from_uuid uuid NOT NULL REFERENCES authors(uuid),
		to_uuid uuid NOT NULL REFERENCES authors(uuid),
		summary text DEFAULT '',
		actor_json text DEFAULT '{}',
		object_json text DEFAULT '{}',
		pending int DEFAULT 1,
		accepted int DEFAULT 0,
		created_at timestamp DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(from_uuid, to_uuid)
	)`

	sqlCreateFollowRequestsIndices = `
		CREATE INDEX IF NOT EXISTS idx_follow_requests_to_uuid ON follow_requests(to_uuid);
		CREATE INDEX IF NOT EXISTS idx_follow_requests_from_uuid ON follow_requests(from_uuid);
	`

	sqlCreateRemoteNodesTable = `CREATE TABLE IF NOT EXISTS remote_nodes(
		id integer PRIMARY KEY AUTOINCREMENT,
		base_url varchar(200) UNIQUE NOT NULL,
		username varchar(150) DEFAULT '',
		password varchar(150) DEFAULT '',
		service_account_uuid uuid NOT NULL,
		created_at timestamp DEFAULT CURRENT_TIMESTAMP
	)`
)

// RunMigrations creates all tables and indices. Every statement is
// idempotent, so running twice is harmless.
func (db *DB) RunMigrations() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		tables := []struct {
			name      string
			createSQL string
		}{
			{"authors", sqlCreateAuthorsTable},
			{"entries", sqlCreateEntriesTable},
			{"comments", sqlCreateCommentsTable},
			{"likes", sqlCreateLikesTable},
			{"follow_requests", sqlCreateFollowRequestsTable},
			{"remote_nodes", sqlCreateRemoteNodesTable},
		}

		for _, t := range tables {
			if err := db.createTableIfNotExists(tx, t.createSQL, t.name); err != nil {
				return err
			}
		}

		indices := []string{
			sqlCreateAuthorsIndices,
			sqlCreateEntriesIndices,
			sqlCreateCommentsIndices,
			sqlCreateLikesIndices,
			sqlCreateFollowRequestsIndices,
		}

		for _, idx := range indices {
			if _, err := tx.Exec(idx); err != nil {
				log.Warn("Failed to create indices", "err", err)
			}
		}

		return nil
	})
}

func (db *DB) createTableIfNotExists(tx *sql.Tx, createSQL string, tableName string) error {
	_, err := tx.Exec(createSQL)
	if err != nil {
		log.Error("Error creating table", "table", tableName, "err", err)
		return err
	}
	return nil
}
