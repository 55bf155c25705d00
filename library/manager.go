package library

import (
	"context"
	"fmt"
)

// PasswordHasher turns plaintext passwords into storable hashes and checks them.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// LibraryManager is a thin façade over the Database that keeps plaintext
// passwords out of the storage layer.
type LibraryManager struct {
	db     *Database
	hasher PasswordHasher
}

// NewLibraryManager wraps an opened database.
func NewLibraryManager(db *Database, hasher PasswordHasher) *LibraryManager {
	return &LibraryManager{db: db, hasher: hasher}
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// Ping checks the underlying database.
func (lm *LibraryManager) Ping(ctx context.Context) error { return lm.db.Ping(ctx) }

// ------------------ Book helpers ------------------

func (lm *LibraryManager) CreateBook(ctx context.Context, f BookFields) (*Book, error) {
	return lm.db.CreateBook(ctx, f)
}

func (lm *LibraryManager) GetBook(ctx context.Context, id int64) (*Book, error) {
	return lm.db.GetBook(ctx, id)
}

func (lm *LibraryManager) ListBooks(ctx context.Context) ([]*Book, error) {
	return lm.db.ListBooks(ctx)
}

func (lm *LibraryManager) UpdateBook(ctx context.Context, id int64, f BookFields) (*Book, error) {
	return lm.db.UpdateBook(ctx, id, f)
}

func (lm *LibraryManager) DeleteBook(ctx context.Context, id int64) error {
	return lm.db.DeleteBook(ctx, id)
}

// ------------------ Member helpers ------------------

// RegisterMember hashes password and stores a new member.
func (lm *LibraryManager) RegisterMember(ctx context.Context, email, password string) (*Member, error) {
	hash, err := lm.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return lm.db.CreateMember(ctx, email, hash)
}

// Authenticate returns the member owning email if password matches.
// Unknown emails yield ErrNotFound, wrong passwords ErrInvalidCredentials.
func (lm *LibraryManager) Authenticate(ctx context.Context, email, password string) (*Member, error) {
	m, err := lm.db.GetMemberByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !lm.hasher.Verify(password, m.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return m, nil
}

func (lm *LibraryManager) GetMember(ctx context.Context, id int64) (*Member, error) {
	return lm.db.GetMember(ctx, id)
}

func (lm *LibraryManager) ListMembers(ctx context.Context) ([]*Member, error) {
	return lm.db.ListMembers(ctx)
}

// UpdateMember replaces both the email and the password of member id.
func (lm *LibraryManager) UpdateMember(ctx context.Context, id int64, email, password string) (*Member, error) {
	hash, err := lm.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return lm.db.UpdateMember(ctx, id, email, hash)
}

func (lm *LibraryManager) DeleteMember(ctx context.Context, id int64) error {
	return lm.db.DeleteMember(ctx, id)
}
