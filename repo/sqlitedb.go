package repo

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"path"
	"sync"
)

const (
	dbName      = "bundlr.db"
	inMemoryDSN = ":memory:"
)

// SqliteDB is an implementation of the Database interface using
// the gorm ORM with sqlite.
type SqliteDB struct {
	db  *gorm.DB
	mtx sync.RWMutex
}

// NewSqliteDB opens the database in the datastore directory of dataDir.
// Passing ":memory:" opens an in-memory database.
func NewSqliteDB(dataDir string) (*SqliteDB, error) {
	pth := path.Join(dataDir, "datastore", dbName)
	if dataDir == inMemoryDSN {
		pth = inMemoryDSN
	}
	db, err := gorm.Open(sqlite.Open(pth), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if pth == inMemoryDSN {
		// Every new connection would get its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return &SqliteDB{db: db}, nil
}

// View invokes the passed function in the context of a managed
// read-only transaction.  Any errors returned from the user-supplied
// function are returned from this function.
func (s *SqliteDB) View(fn func(tx *gorm.DB) error) error {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return fn(s.db)
}

// Update invokes the passed function in the context of a managed
// read-write transaction.  Any errors returned from the user-supplied
// function will cause the transaction to be rolled back and are
// returned from this function.  Otherwise, the transaction is committed
// when the user-supplied function returns a nil error.
func (s *SqliteDB) Update(fn func(tx *gorm.DB) error) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.db.Transaction(fn)
}

// Close closes the underlying connection pool.
func (s *SqliteDB) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
