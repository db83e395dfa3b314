package db

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/chirpnet/domain"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// Sentinel errors. Callers match with errors.Is; the web layer maps
// ErrNotFound to 404 and ErrDuplicate to 400.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

var (
	dbInstance *DB
	dbOnce     sync.Once
)

const (
	authorCols = `uuid, id, username, password_hash, display_name, host, github_link, profile_image, description, is_approved, is_staff, created_at`

	sqlInsertAuthor = `INSERT INTO authors(` + authorCols + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlUpdateAuthor = `UPDATE authors SET display_name = ?, host = ?, github_link = ?, profile_image = ?, description = ?, is_approved = ?, is_staff = ? WHERE uuid = ?`

	sqlSelectAuthorByUuid     = `SELECT ` + authorCols + ` FROM authors WHERE uuid = ?`
	sqlSelectAuthorById       = `SELECT ` + authorCols + ` FROM authors WHERE id = ?`
	sqlSelectAuthorByUsername = `SELECT ` + authorCols + ` FROM authors WHERE username = ?`
	sqlSelectAuthorsByHost    = `SELECT ` + authorCols + ` FROM authors
                                                            WHERE host = ? AND is_approved = 1
                                                            ORDER BY created_at ASC
                                                            LIMIT ? OFFSET ?`
	sqlCountAuthorsByHost = `SELECT COUNT(*) FROM authors WHERE host = ? AND is_approved = 1`
)

// Open opens (creating if needed) the database at path, configures the
// connection pool and pragmas and ensures the schema exists.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Configure connection pool for concurrent access
	sqldb.SetMaxOpenConns(25)
	sqldb.SetMaxIdleConns(5)
	sqldb.SetConnMaxLifetime(time.Hour)

	// An in-memory database exists per connection; keep a single one
	if path == ":memory:" {
		sqldb.SetMaxOpenConns(1)
	}

	// Try to enable WAL2 mode, fall back to WAL if not supported
	var journalMode string
	err = sqldb.QueryRow("PRAGMA journal_mode=WAL2").Scan(&journalMode)
	if err != nil || journalMode == "delete" {
		// WAL2 not supported, try regular WAL
		err = sqldb.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode)
		if err != nil {
			log.Warn("Failed to enable WAL mode", "err", err)
		} else {
			log.Debug("Database journal mode (WAL2 not supported)", "mode", journalMode)
		}
	} else {
		log.Debug("Database journal mode", "mode", journalMode)
	}

	// Optimize PRAGMAs for the concurrent federation workload
	sqldb.Exec("PRAGMA synchronous = NORMAL")      // Reduces fsync calls
	sqldb.Exec("PRAGMA cache_size = -64000")       // 64MB cache per connection
	sqldb.Exec("PRAGMA temp_store = MEMORY")       // Store temp tables in RAM
	sqldb.Exec("PRAGMA busy_timeout = 5000")       // Wait up to 5s for locks
	sqldb.Exec("PRAGMA foreign_keys = ON")         // Enable FK constraints
	sqldb.Exec("PRAGMA auto_vacuum = INCREMENTAL") // Better performance than FULL

	d := &DB{db: sqldb}

	if err := d.RunMigrations(); err != nil {
		return nil, err
	}

	return d, nil
}

// MustInit opens the process-wide database once and keeps the handle for
// GetDB. Panics when the database cannot be opened.
func MustInit(path string) *DB {
	dbOnce.Do(func() {
		d, err := Open(path)
		if err != nil {
			panic(err)
		}
		dbInstance = d
	})
	return dbInstance
}

func GetDB() *DB {
	return dbInstance
}

func (db *DB) Close() error {
	return db.db.Close()
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("error starting transaction", "err", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			tx.Rollback()
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Error("error committing transaction", "err", err)
			return err
		}
		break
	}
	return nil
}

// isConstraintErr reports whether err is a uniqueness violation.
func isConstraintErr(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlitelib.SQLITE_CONSTRAINT,
			sqlitelib.SQLITE_CONSTRAINT_UNIQUE,
			sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}

func (db *DB) CreateAuthor(a *domain.Author) error {
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertAuthor,
			a.Uuid.String(),
			a.Id,
			a.Username,
			a.PasswordHash,
			a.DisplayName,
			a.Host,
			a.GithubLink,
			a.ProfileImage,
			a.Description,
			a.IsApproved,
			a.IsStaff,
			a.CreatedAt,
		)
		return err
	})
	if isConstraintErr(err) {
		return ErrDuplicate
	}
	return err
}

func (db *DB) UpdateAuthor(a *domain.Author) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateAuthor,
			a.DisplayName,
			a.Host,
			a.GithubLink,
			a.ProfileImage,
			a.Description,
			a.IsApproved,
			a.IsStaff,
			a.Uuid.String(),
		)
		return err
	})
}

func (db *DB) ReadAuthorByUuid(id uuid.UUID) (*domain.Author, error) {
	return db.readAuthor(sqlSelectAuthorByUuid, id.String())
}

func (db *DB) ReadAuthorById(fqid string) (*domain.Author, error) {
	return db.readAuthor(sqlSelectAuthorById, fqid)
}

func (db *DB) ReadAuthorByUsername(username string) (*domain.Author, error) {
	return db.readAuthor(sqlSelectAuthorByUsername, username)
}

// ListAuthorsByHost pages through the approved authors living on host,
// returning the page and the total count.
func (db *DB) ListAuthorsByHost(host string, page, size int) ([]domain.Author, int, error) {
	var total int
	if err := db.db.QueryRow(sqlCountAuthorsByHost, host).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := db.db.Query(sqlSelectAuthorsByHost, host, size, (page-1)*size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var authors []domain.Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return nil, 0, err
		}
		authors = append(authors, *a)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return authors, total, nil
}

func (db *DB) readAuthor(query string, arg any) (*domain.Author, error) {
	row := db.db.QueryRow(query, arg)
	a, err := scanAuthor(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuthor(row rowScanner) (*domain.Author, error) {
	var a domain.Author
	var id string
	err := row.Scan(
		&id,
		&a.Id,
		&a.Username,
		&a.PasswordHash,
		&a.DisplayName,
		&a.Host,
		&a.GithubLink,
		&a.ProfileImage,
		&a.Description,
		&a.IsApproved,
		&a.IsStaff,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Uuid, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
