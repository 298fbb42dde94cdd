// Package store persists alert records and poll state with GORM, over
// SQLite (pure Go) or Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/couchcryptid/nws-alert-ingest/internal/domain"
)

// Poll state keys.
const (
	keyLastPoll = "last_poll_time"
	keyLedger   = "ledger"
)

// sqliteBusyTimeout makes SQLite wait for a competing writer instead of
// failing with SQLITE_BUSY.
const sqliteBusyTimeout = "_pragma=busy_timeout(5000)"

// Store implements pipeline.RecordStore, pipeline.StateStore, and
// pipeline.CycleLock.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects with the named driver ("sqlite" or "postgres") and migrates
// the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(SQLiteDSN(dsn))
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	return New(db)
}

// New wraps an open connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&alertRow{}, &stateRow{}, &lockRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// SQLiteDSN adds a busy timeout to a SQLite DSN that does not set one.
func SQLiteDSN(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqliteBusyTimeout
	}
	return dsn + "?" + sqliteBusyTimeout
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// FindByFullID returns the record stored under fullID, or nil if none.
func (s *Store) FindByFullID(ctx context.Context, fullID string) (*domain.RecordRef, error) {
	var row alertRow
	err := s.db.WithContext(ctx).
		Select("id", "full_id").
		Where("full_id = ?", fullID).
		Take(&row).Error
	return refOrNil(row, err)
}

// FindRootByIdentifier returns the root (sequence "001") record of a series,
// or nil if none is stored.
func (s *Store) FindRootByIdentifier(ctx context.Context, identifier string) (*domain.RecordRef, error) {
	var row alertRow
	err := s.db.WithContext(ctx).
		Select("id", "full_id").
		Where("identifier = ? AND sequence = ?", identifier, domain.RootSequence).
		Order("id asc").
		Take(&row).Error
	return refOrNil(row, err)
}

// Insert stores rec with an optional parent in a single statement, so a
// record is never visible without its attributes.
func (s *Store) Insert(ctx context.Context, rec domain.AlertRecord, parent *domain.RecordRef) (domain.RecordRef, error) {
	row := toRow(rec, parent)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.RecordRef{}, fmt.Errorf("%w: %s: %v", domain.ErrPersist, rec.FullID, err)
	}
	return domain.RecordRef{ID: row.ID, FullID: row.FullID}, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&alertRow{}).Count(&n).Error
	return n, err
}

// get returns a full record by store ID.
func (s *Store) get(ctx context.Context, id int64) (domain.AlertRecord, error) {
	var row alertRow
	if err := s.db.WithContext(ctx).Take(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.AlertRecord{}, fmt.Errorf("record %d: %w", id, domain.ErrAlertNotFound)
		}
		return domain.AlertRecord{}, err
	}
	return fromRow(row), nil
}

// EachRecord calls fn for every stored record in ID order, loading them in
// batches. Iteration stops at the first error from fn.
func (s *Store) EachRecord(ctx context.Context, fn func(domain.AlertRecord) error) error {
	var rows []alertRow
	var fnErr error
	res := s.db.WithContext(ctx).Order("id asc").FindInBatches(&rows, 500, func(_ *gorm.DB, _ int) error {
		for _, row := range rows {
			if err := fn(fromRow(row)); err != nil {
				fnErr = err
				return err
			}
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	return res.Error
}

// LastPoll returns the time of the last completed poll, or the zero time if
// there has been none.
func (s *Store) LastPoll(ctx context.Context) (time.Time, error) {
	v, ok, err := s.getState(ctx, keyLastPoll)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode %s: %w", keyLastPoll, err)
	}
	return t, nil
}

// SetLastPoll records the time of a completed poll.
func (s *Store) SetLastPoll(ctx context.Context, t time.Time) error {
	return s.setState(ctx, keyLastPoll, t.UTC().Format(time.RFC3339Nano))
}

// Ledger returns the persisted ledger, oldest first.
func (s *Store) Ledger(ctx context.Context) ([]string, error) {
	v, ok, err := s.getState(ctx, keyLedger)
	if err != nil || !ok {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(v), &ids); err != nil {
		return nil, fmt.Errorf("decode %s: %w", keyLedger, err)
	}
	return ids, nil
}

// SetLedger replaces the persisted ledger.
func (s *Store) SetLedger(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode %s: %w", keyLedger, err)
	}
	return s.setState(ctx, keyLedger, string(data))
}

func (s *Store) getState(ctx context.Context, key string) (string, bool, error) {
	var row stateRow
	err := s.db.WithContext(ctx).Where("state_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return row.Value, true, nil
}

func (s *Store) setState(ctx context.Context, key, value string) error {
	row := stateRow{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "state_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// TryAcquire takes the named lock for owner until ttl elapses. It reports
// false when another owner holds an unexpired lease. An expired lease, or one
// already held by owner, is taken over.
func (s *Store) TryAcquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := s.now()
	row := lockRow{Name: name, Owner: owner, ExpiresAt: now.Add(ttl).UnixMilli()}
	db := s.db.WithContext(ctx)

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	res = db.Model(&lockRow{}).
		Where("lock_name = ? AND (expires_at < ? OR owner = ?)", name, now.UnixMilli(), owner).
		Updates(map[string]any{"owner": owner, "expires_at": row.ExpiresAt})
	if res.Error != nil {
		return false, fmt.Errorf("take over lock %s: %w", name, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Release drops the named lock if owner still holds it.
func (s *Store) Release(ctx context.Context, name, owner string) error {
	err := s.db.WithContext(ctx).
		Where("lock_name = ? AND owner = ?", name, owner).
		Delete(&lockRow{}).Error
	if err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

func refOrNil(row alertRow, err error) (*domain.RecordRef, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.RecordRef{ID: row.ID, FullID: row.FullID}, nil
}
