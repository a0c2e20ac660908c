// Top-level Database type (§1, §9 "Global state"): wires together the
// content store, lock manager, collection/document tree and schema
// catalog, and owns the start/shutdown lifecycle including an advisory
// lock on the data directory so two processes never open the same
// database concurrently.
package xantippe

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

const lockFileName = ".xantippe.lock"

func lockFilePath(dir string) string { return filepath.Join(dir, lockFileName) }

// Database is the embeddable entry point: Start opens (or creates) the
// database at Config.Path, Shutdown flushes and closes it.
type Database struct {
	config Config

	running atomic.Bool
	dirLock *os.File

	store     *ContentStore
	locks     *LockManager
	tree      *Tree
	alloc     *idAllocator
	schemas   *SchemaCatalog
	validator Validator
}

// New constructs a Database from cfg without starting it. Callers must
// call Start before using it.
func New(cfg Config) *Database {
	return &Database{config: cfg}
}

// SetValidator installs the external schema/DTD validator consulted by
// SetContent. Must be called before Start, or while the database is
// stopped; it is not safe to swap concurrently with running operations.
func (db *Database) SetValidator(v Validator) { db.validator = v }

func (db *Database) validatorOrNop() Validator {
	if db.validator == nil {
		return NopValidator{}
	}
	return db.validator
}

// IsRunning reports whether Start has succeeded without a matching Shutdown.
func (db *Database) IsRunning() bool { return db.running.Load() }

// Start opens the database directory, acquiring an advisory lock so a
// second process (or a second Start on this one) fails with
// ErrAlreadyRunning rather than corrupting shared state, then loads the
// catalog (metadata.dbx, collections.dbx, indices.dbx, schemas.dbx) and
// opens the content store.
func (db *Database) Start() error {
	if !db.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if err := os.MkdirAll(db.config.Path, 0o755); err != nil {
		db.running.Store(false)
		return fmt.Errorf("%w: mkdir %s: %v", ErrContentStore, db.config.Path, err)
	}

	dirLock, err := acquireDirLock(db.config.Path)
	if err != nil {
		db.running.Store(false)
		return err
	}

	nextID, err := LoadMetadata(db.config.Path)
	if err != nil {
		releaseDirLock(dirLock)
		db.running.Store(false)
		return err
	}
	alloc := newIDAllocator(nextID)

	locks := NewLockManager()
	tree, err := LoadCollections(db.config.Path, alloc, locks)
	if err != nil {
		releaseDirLock(dirLock)
		db.running.Store(false)
		return err
	}
	if err := LoadIndices(db.config.Path, tree); err != nil {
		releaseDirLock(dirLock)
		db.running.Store(false)
		return err
	}

	schemas, err := LoadSchemaCatalog(db.config.Path)
	if err != nil {
		releaseDirLock(dirLock)
		db.running.Store(false)
		return err
	}

	store, err := OpenContentStore(db.config.Path, db.config.Checksum)
	if err != nil {
		releaseDirLock(dirLock)
		db.running.Store(false)
		return err
	}

	db.dirLock = dirLock
	db.alloc = alloc
	db.locks = locks
	db.tree = tree
	db.schemas = schemas
	db.store = store

	component("db").Info().Str("path", db.config.Path).Msg("database started")
	return nil
}

// Shutdown flushes the catalog and content store and releases the
// directory lock. It is idempotent-safe to call once per successful Start.
func (db *Database) Shutdown() error {
	if !db.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(SaveMetadata(db.config.Path, db.alloc.peek()))
	record(SaveCollections(db.config.Path, db.tree.Root()))
	record(SaveIndices(db.config.Path, db.tree.Root()))
	record(db.schemas.Save(db.config.Path))
	record(db.store.Shutdown())
	record(releaseDirLock(db.dirLock))

	component("db").Info().Str("path", db.config.Path).Msg("database shut down")
	return firstErr
}

// GetRootCollection returns the root collection.
func (db *Database) GetRootCollection() (*Collection, error) {
	if !db.running.Load() {
		return nil, ErrNotRunning
	}
	return db.tree.Root(), nil
}

// GetCollection resolves uri to a collection.
func (db *Database) GetCollection(uri string) (*Collection, error) {
	if !db.running.Load() {
		return nil, ErrNotRunning
	}
	c, err := db.tree.ResolveCollection(uri)
	if err != nil {
		return nil, wrapURI("GetCollection", uri, err)
	}
	return c, nil
}

// GetDocument resolves uri to a document.
func (db *Database) GetDocument(uri string) (*Document, error) {
	if !db.running.Load() {
		return nil, ErrNotRunning
	}
	d, err := db.tree.ResolveDocument(uri)
	if err != nil {
		return nil, wrapURI("GetDocument", uri, err)
	}
	return d, nil
}

// Exists reports whether uri resolves to either a collection or a document.
func (db *Database) Exists(uri string) bool {
	if _, err := db.GetCollection(uri); err == nil {
		return true
	}
	if _, err := db.GetDocument(uri); err == nil {
		return true
	}
	return false
}

// IsCollection reports whether uri resolves to a collection.
func (db *Database) IsCollection(uri string) bool {
	_, err := db.GetCollection(uri)
	return err == nil
}

// IsDocument reports whether uri resolves to a document.
func (db *Database) IsDocument(uri string) bool {
	_, err := db.GetDocument(uri)
	return err == nil
}

// CreateCollection creates a child collection of the collection at
// parentURI.
func (db *Database) CreateCollection(parentURI, name string) (*Collection, error) {
	if !db.running.Load() {
		return nil, ErrNotRunning
	}
	parent, err := db.tree.ResolveCollection(parentURI)
	if err != nil {
		return nil, wrapURI("CreateCollection", parentURI, err)
	}
	return db.tree.CreateCollection(parent, name, NewHolder())
}

// DeleteCollection removes the collection named name under parentURI and
// everything beneath it.
func (db *Database) DeleteCollection(parentURI, name string) error {
	if !db.running.Load() {
		return ErrNotRunning
	}
	parent, err := db.tree.ResolveCollection(parentURI)
	if err != nil {
		return wrapURI("DeleteCollection", parentURI, err)
	}
	return db.tree.DeleteCollection(parent, name, db.store, NewHolder())
}

// ExecuteQuery runs a JSON-encoded query (query.go) against the running
// database's tree.
func (db *Database) ExecuteQuery(requestJSON []byte) ([]byte, error) {
	if !db.running.Load() {
		return nil, ErrNotRunning
	}
	return ExecuteQuery(db.tree, requestJSON)
}
