package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// Pure Go driver registered as "sqlite".
	_ "modernc.org/sqlite"
)

const defaultTable = "epc_submission_audit"

// SQLOption applies a configuration option to the SQLStore.
type SQLOption func(*SQLStore)

// WithTable sets the journal table name. Empty values are ignored.
func WithTable(name string) SQLOption {
	return func(s *SQLStore) {
		if name != "" {
			s.table = name
		}
	}
}

// record is the row layout of the journal table.
type record struct {
	ID             string `gorm:"primaryKey;size:40"`
	Path           string `gorm:"size:255"`
	Payload        []byte
	Status         string    `gorm:"size:16;index"`
	ReceivedAt     time.Time `gorm:"index"`
	Kind           string    `gorm:"size:32"`
	Action         string    `gorm:"size:16"`
	UpstreamStatus int
	Reference      string `gorm:"size:64"`
	Error          string
	ResolvedAt     *time.Time
}

// SQLStore persists entries through gorm on SQLite or PostgreSQL.
type SQLStore struct {
	db    *gorm.DB
	table string
}

// Connect opens PostgreSQL for postgres:// DSNs and SQLite otherwise.
func Connect(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	return gorm.Open(
		gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        dsn,
		}),
		cfg,
	)
}

// OpenSQL connects to dsn and migrates the journal table.
func OpenSQL(dsn string, opts ...SQLOption) (*SQLStore, error) {
	db, err := Connect(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", ErrStore, err)
	}
	return NewSQLStore(db, opts...)
}

// NewSQLStore wraps an open gorm handle and migrates the journal table.
func NewSQLStore(db *gorm.DB, opts ...SQLOption) (*SQLStore, error) {
	s := &SQLStore{db: db, table: defaultTable}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.db.Table(s.table).AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("%w: migrate: %w", ErrStore, err)
	}
	return s, nil
}

// Save implements Store.
func (s *SQLStore) Save(ctx context.Context, e Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	if e.Status == "" {
		e.Status = StatusReceived
	}
	rec := toRecord(e)
	err := s.db.WithContext(ctx).Table(s.table).Create(&rec).Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return ErrDuplicate
	default:
		return fmt.Errorf("%w: save: %w", ErrStore, err)
	}
}

// Resolve implements Store.
func (s *SQLStore) Resolve(ctx context.Context, id string, r Resolution) error {
	res := s.db.WithContext(ctx).Table(s.table).Where("id = ?", id).Updates(map[string]any{
		"status":          string(StatusResolved),
		"kind":            r.Kind,
		"action":          r.Action,
		"upstream_status": r.UpstreamStatus,
		"reference":       r.Reference,
		"error":           r.Error,
		"resolved_at":     r.ResolvedAt.UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("%w: resolve: %w", ErrStore, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, id string) (Entry, error) {
	var rec record
	err := s.db.WithContext(ctx).Table(s.table).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("%w: get: %w", ErrStore, err)
	}
	return fromRecord(rec), nil
}

// Pending implements Store.
func (s *SQLStore) Pending(ctx context.Context, limit int) ([]Entry, error) {
	var recs []record
	q := s.db.WithContext(ctx).Table(s.table).
		Where("status = ?", string(StatusReceived)).
		Order("received_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("%w: pending: %w", ErrStore, err)
	}
	out := make([]Entry, 0, len(recs))
	for _, r := range recs {
		out = append(out, fromRecord(r))
	}
	return out, nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func toRecord(e Entry) record {
	return record{
		ID:             e.ID,
		Path:           e.Path,
		Payload:        e.Payload,
		Status:         string(e.Status),
		ReceivedAt:     e.ReceivedAt.UTC(),
		Kind:           e.Kind,
		Action:         e.Action,
		UpstreamStatus: e.UpstreamStatus,
		Reference:      e.Reference,
		Error:          e.Error,
		ResolvedAt:     e.ResolvedAt,
	}
}

func fromRecord(r record) Entry {
	return Entry{
		ID:             r.ID,
		Path:           r.Path,
		Payload:        r.Payload,
		Status:         Status(r.Status),
		ReceivedAt:     r.ReceivedAt,
		Kind:           r.Kind,
		Action:         r.Action,
		UpstreamStatus: r.UpstreamStatus,
		Reference:      r.Reference,
		Error:          r.Error,
		ResolvedAt:     r.ResolvedAt,
	}
}
