package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Database provides high-level helpers around a SQLite connection.
type Database struct {
	db *sql.DB

	addBookStmt   *sql.Stmt
	addMemberStmt *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// busy_timeout lets concurrent writers wait instead of failing; immediate
	// transactions take the write lock up front.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	database, err := OpenDatabase(context.Background(), db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// OpenDatabase migrates an already opened handle and prepares statements on it.
// The caller keeps ownership of db if an error is returned.
func OpenDatabase(ctx context.Context, db *sql.DB) (*Database, error) {
	if err := applyMigrations(ctx, db); err != nil {
		return nil, err
	}

	database := &Database{db: db}
	if err := database.prepareStatements(ctx); err != nil {
		database.closeStatements()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	d.closeStatements()
	return d.db.Close()
}

func (d *Database) closeStatements() {
	if d.addBookStmt != nil {
		d.addBookStmt.Close()
	}
	if d.addMemberStmt != nil {
		d.addMemberStmt.Close()
	}
}

// Ping reports whether the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(ctx context.Context, db *sql.DB) error {
	// WAL improves write concurrency.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return fmt.Errorf("create meta: %w", err)
	}

	var current int
	_ = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// AUTOINCREMENT keeps ids of deleted rows from being handed out again.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            published_year INTEGER
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL
        );`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements(ctx context.Context) error {
	var err error
	if d.addBookStmt, err = d.db.PrepareContext(ctx, `INSERT INTO books(title,author,published_year) VALUES(?,?,?)`); err != nil {
		return err
	}
	if d.addMemberStmt, err = d.db.PrepareContext(ctx, `INSERT INTO members(email,password_hash) VALUES(?,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*Book, error) {
	var (
		b    Book
		year sql.NullInt64
	)
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if year.Valid {
		b.PublishedYear = &year.Int64
	}
	return &b, nil
}

func nullYear(year *int64) sql.NullInt64 {
	if year == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *year, Valid: true}
}

// CreateBook inserts a book and returns it with its assigned id.
func (d *Database) CreateBook(ctx context.Context, f BookFields) (*Book, error) {
	res, err := d.addBookStmt.ExecContext(ctx, f.Title, f.Author, nullYear(f.PublishedYear))
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Book{ID: id, Title: f.Title, Author: f.Author, PublishedYear: f.PublishedYear}, nil
}

func (d *Database) GetBook(ctx context.Context, id int64) (*Book, error) {
	return scanBook(d.db.QueryRowContext(ctx, `SELECT id,title,author,published_year FROM books WHERE id=?`, id))
}

// ListBooks returns every book in insertion order.
func (d *Database) ListBooks(ctx context.Context) ([]*Book, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id,title,author,published_year FROM books ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []*Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// UpdateBook overwrites every column of the book in one transaction.
func (d *Database) UpdateBook(ctx context.Context, id int64, f BookFields) (*Book, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE books SET title=?, author=?, published_year=? WHERE id=?`,
		f.Title, f.Author, nullYear(f.PublishedYear), id)
	if err != nil {
		return nil, fmt.Errorf("update book %d: %w", id, err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}

	b, err := scanBook(tx.QueryRowContext(ctx, `SELECT id,title,author,published_year FROM books WHERE id=?`, id))
	if err != nil {
		return nil, err
	}
	return b, tx.Commit()
}

func (d *Database) DeleteBook(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM books WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}
	return requireRow(res)
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

func scanMember(row rowScanner) (*Member, error) {
	var m Member
	if err := row.Scan(&m.ID, &m.Email, &m.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// CreateMember stores a member whose password has already been hashed.
func (d *Database) CreateMember(ctx context.Context, email, passwordHash string) (*Member, error) {
	res, err := d.addMemberStmt.ExecContext(ctx, email, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert member: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Member{ID: id, Email: email, PasswordHash: passwordHash}, nil
}

// GetMember fetches a single member.
func (d *Database) GetMember(ctx context.Context, id int64) (*Member, error) {
	return scanMember(d.db.QueryRowContext(ctx, `SELECT id,email,password_hash FROM members WHERE id=?`, id))
}

// GetMemberByEmail fetches the member registered under email.
func (d *Database) GetMemberByEmail(ctx context.Context, email string) (*Member, error) {
	return scanMember(d.db.QueryRowContext(ctx, `SELECT id,email,password_hash FROM members WHERE email=?`, email))
}

// ListMembers returns all members.
func (d *Database) ListMembers(ctx context.Context) ([]*Member, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id,email,password_hash FROM members ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []*Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpdateMember replaces email and password hash. A clash with another
// member's email leaves the row untouched.
func (d *Database) UpdateMember(ctx context.Context, id int64, email, passwordHash string) (*Member, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE members SET email=?, password_hash=? WHERE id=?`, email, passwordHash, id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("update member %d: %w", id, err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Member{ID: id, Email: email, PasswordHash: passwordHash}, nil
}

func (d *Database) DeleteMember(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM members WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete member %d: %w", id, err)
	}
	return requireRow(res)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
