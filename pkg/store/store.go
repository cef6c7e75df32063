// Package store persists API results in session-scoped, append-only record
// stores with content-hash deduplication. A metadata database tracks sessions
// and an operation audit log; each session owns one independent SQLite record
// file. Operations on different sessions never block one another; operations
// within one session are serialized at the storage boundary.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hashicorp-forge/conduit/pkg/structured"
)

var (
	// ErrSessionNotFound is returned when the named session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionCreate is returned when the underlying storage cannot
	// allocate a new session.
	ErrSessionCreate = errors.New("session create failed")
)

// Store is the deployment-wide record store. One instance owns the metadata
// database and the per-session record files under its directory.
type Store struct {
	dir    string
	meta   *gorm.DB
	logger hclog.Logger

	// mu guards handles; each handle serializes writes to its session.
	mu      sync.Mutex
	handles map[string]*sessionHandle
}

// sessionHandle is the open record database of one session.
type sessionHandle struct {
	mu sync.Mutex
	db *gorm.DB
}

// Open initializes a store over the given directory, creating the metadata
// database on first use.
func Open(dir string, log hclog.Logger) (*Store, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	meta, err := openDatabase(filepath.Join(dir, "metadata.db"))
	if err != nil {
		return nil, fmt.Errorf("opening metadata database: %w", err)
	}

	if err := meta.AutoMigrate(&Session{}, &Operation{}); err != nil {
		return nil, fmt.Errorf("migrating metadata database: %w", err)
	}

	log = log.Named("store")
	log.Debug("store opened", "dir", dir)

	return &Store{
		dir:     dir,
		meta:    meta,
		logger:  log,
		handles: map[string]*sessionHandle{},
	}, nil
}

func openDatabase(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// Close releases the metadata database and every open session handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, h := range s.handles {
		closeDatabase(h.db)
		delete(s.handles, id)
	}
	closeDatabase(s.meta)
	return nil
}

func closeDatabase(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// CreateSession allocates a fresh session with its own empty record store.
func (s *Store) CreateSession(name, apiName, endpointName, description string) (*Session, error) {
	id := uuid.New().String()
	// The session ID in the file name keeps record files collision-free:
	// timestamp-based names collide when two sessions for the same
	// API/endpoint are created within one second, co-mingling their records.
	fileName := fmt.Sprintf("%s_%s_%s.db", apiName, endpointName, id)
	path := filepath.Join(s.dir, fileName)

	session := &Session{
		SessionID:    id,
		SessionName:  name,
		Description:  description,
		APIName:      apiName,
		EndpointName: endpointName,
		FilePath:     path,
	}

	if err := s.meta.Create(session).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreate, err)
	}

	db, err := openDatabase(path)
	if err != nil {
		s.meta.Delete(&Session{}, "session_id = ?", id)
		return nil, fmt.Errorf("%w: %v", ErrSessionCreate, err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		closeDatabase(db)
		s.meta.Delete(&Session{}, "session_id = ?", id)
		return nil, fmt.Errorf("%w: %v", ErrSessionCreate, err)
	}

	s.mu.Lock()
	s.handles[id] = &sessionHandle{db: db}
	s.mu.Unlock()

	s.logOperation(id, "create_session", 0, fmt.Sprintf("session %q for %s/%s", name, apiName, endpointName))

	s.logger.Info("session created",
		"session_id", id,
		"name", name,
		"api", apiName,
		"endpoint", endpointName,
	)
	return session, nil
}

// Append stores a value in the session unless an identical value (by content
// hash over the canonical form) is already present. It returns the number of
// new records: 1, or 0 for a deduplicated no-op. A duplicate still leaves an
// operation-log entry for traceability, with zero records affected.
func (s *Store) Append(sessionID string, raw structured.Value, processed *structured.Value, sourceParams map[string]interface{}) (int64, error) {
	h, _, err := s.handle(sessionID)
	if err != nil {
		return 0, err
	}

	hash := raw.Digest()

	// Single-writer per session: two concurrent appends of the same value
	// must not both observe "hash absent".
	h.mu.Lock()
	defer h.mu.Unlock()

	var count int64
	if err := h.db.Model(&Record{}).Where("content_hash = ?", hash).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("checking content hash: %w", err)
	}
	if count > 0 {
		s.logOperation(sessionID, "store_data", 0, fmt.Sprintf("duplicate content hash %s, skipped", shortHash(hash)))
		s.logger.Debug("duplicate record skipped", "session_id", sessionID, "hash", shortHash(hash))
		return 0, nil
	}

	rawJSON, err := raw.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("encoding raw value: %w", err)
	}

	record := &Record{
		ContentHash: hash,
		RawData:     JSON(rawJSON),
		Timestamp:   time.Now().UTC(),
	}

	if processed != nil {
		processedJSON, err := processed.MarshalJSON()
		if err != nil {
			return 0, fmt.Errorf("encoding processed value: %w", err)
		}
		record.ProcessedData = JSON(processedJSON)
	}

	if sourceParams != nil {
		paramsJSON, err := json.Marshal(sourceParams)
		if err != nil {
			return 0, fmt.Errorf("encoding source params: %w", err)
		}
		record.SourceParams = JSON(paramsJSON)
	}

	if err := h.db.Create(record).Error; err != nil {
		return 0, fmt.Errorf("inserting record: %w", err)
	}

	// Atomic increment: re-querying the count after insert would race with
	// concurrent appends to other connections.
	now := time.Now().UTC()
	if err := s.meta.Model(&Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"total_records":     gorm.Expr("total_records + ?", 1),
			"updated_at":        now,
			"last_operation_at": now,
		}).Error; err != nil {
		return 0, fmt.Errorf("updating session stats: %w", err)
	}

	s.logOperation(sessionID, "store_data", 1, fmt.Sprintf("stored record with content hash %s", shortHash(hash)))

	return 1, nil
}

// List returns the session's records ordered by timestamp descending.
// A limit of 0 returns everything.
func (s *Store) List(sessionID string, limit, offset int) ([]Record, error) {
	h, _, err := s.handle(sessionID)
	if err != nil {
		return nil, err
	}

	q := h.db.Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	var records []Record
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

// ListSessions returns all sessions ordered by creation time descending.
func (s *Store) ListSessions() ([]Session, error) {
	var sessions []Session
	if err := s.meta.Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// GetSession returns one session's metadata.
func (s *Store) GetSession(sessionID string) (*Session, error) {
	var session Session
	err := s.meta.First(&session, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return &session, nil
}

// Operations returns the session's audit log, newest first.
func (s *Store) Operations(sessionID string) ([]Operation, error) {
	if _, err := s.GetSession(sessionID); err != nil {
		return nil, err
	}

	var ops []Operation
	if err := s.meta.Where("session_id = ?", sessionID).
		Order("timestamp DESC").
		Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// DeleteSession removes the session's record file, its operation log entries,
// and finally the session metadata. Other sessions are untouched.
func (s *Store) DeleteSession(sessionID string) error {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if h, ok := s.handles[sessionID]; ok {
		h.mu.Lock()
		closeDatabase(h.db)
		h.mu.Unlock()
		delete(s.handles, sessionID)
	}
	s.mu.Unlock()

	// Metadata first: removing the file before the transaction could leave a
	// registered session whose next open silently migrates a fresh empty
	// database. An orphaned file after a crash is harmless by comparison.
	err = s.meta.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Operation{}, "session_id = ?", sessionID).Error; err != nil {
			return err
		}
		return tx.Delete(&Session{}, "session_id = ?", sessionID).Error
	})
	if err != nil {
		return fmt.Errorf("deleting session metadata: %w", err)
	}

	if err := os.Remove(session.FilePath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove record file",
			"session_id", sessionID,
			"path", session.FilePath,
			"error", err,
		)
	}

	s.logger.Info("session deleted", "session_id", sessionID, "name", session.SessionName)
	return nil
}

// handle returns the open record database for a session, opening it on first
// use.
func (s *Store) handle(sessionID string) (*sessionHandle, *Session, error) {
	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.handles[sessionID]; ok {
		return h, session, nil
	}

	db, err := openDatabase(session.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening record database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		closeDatabase(db)
		return nil, nil, fmt.Errorf("migrating record database: %w", err)
	}

	h := &sessionHandle{db: db}
	s.handles[sessionID] = h
	return h, session, nil
}

// logOperation appends an audit entry. Audit failures are logged but never
// fail the calling operation.
func (s *Store) logOperation(sessionID, opType string, affected int64, details string) {
	op := &Operation{
		OperationID:     uuid.New().String(),
		SessionID:       sessionID,
		OperationType:   opType,
		RecordsAffected: affected,
		Details:         details,
		Timestamp:       time.Now().UTC(),
	}
	if err := s.meta.Create(op).Error; err != nil {
		s.logger.Error("failed to record operation", "session_id", sessionID, "type", opType, "error", err)
	}
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
