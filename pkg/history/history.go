package history

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tarun-kavipurapu/tsync/pkg/logger"
	"tarun-kavipurapu/tsync/pkg/transfer"
)

type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// Transfer is one row of the history ledger.
type Transfer struct {
	ID          uint `gorm:"primaryKey"`
	Direction   Direction
	Name        string `gorm:"index"`
	Path        string
	Remote      string
	Pieces      uint64
	Bytes       uint64
	ShortWrites int
	Checksums   bool
	Error       string
	DurationMs  int64
	CreatedAt   time.Time
}

func (t Transfer) Failed() bool { return t.Error != "" }

type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the sqlite ledger at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
		Logger:      gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one connection keeps ":memory:" a single database
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Transfer{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Record(t *Transfer) error {
	if err := s.db.Create(t).Error; err != nil {
		return fmt.Errorf("record transfer %s: %w", t.Name, err)
	}
	return nil
}

// List returns up to limit transfers, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]Transfer, error) {
	var out []Transfer
	q := s.db.Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Observer records every finished transfer with the given remote address.
// Ledger errors are logged, never returned to the transfer.
func (s *Store) Observer(dir Direction, remote string) transfer.Observer {
	return &observer{store: s, dir: dir, remote: remote, log: logger.Sugar}
}

type observer struct {
	transfer.NopObserver
	store  *Store
	dir    Direction
	remote string
	log    *zap.SugaredLogger
}

func (o *observer) TransferDone(res transfer.Result, err error) {
	row := &Transfer{
		Direction:   o.dir,
		Name:        res.Name,
		Path:        res.Path,
		Remote:      o.remote,
		Pieces:      res.Pieces,
		Bytes:       res.Bytes,
		ShortWrites: res.ShortWrites,
		Checksums:   res.Checksums,
		DurationMs:  res.Duration.Milliseconds(),
	}
	if err != nil {
		row.Error = err.Error()
	}
	if rerr := o.store.Record(row); rerr != nil {
		o.log.Errorf("[History] %v", rerr)
	}
}
