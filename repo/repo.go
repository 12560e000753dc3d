package repo

import (
	"fmt"
	"github.com/cpacia/bundlr/models"
	"github.com/op/go-logging"
	"gorm.io/gorm"
	"io/ioutil"
	"os"
	"path"
	"strconv"
)

const (
	// defaultRepoVersion is the current repo version used for migrations.
	defaultRepoVersion = 0

	// versionFileName is the name of the version file.
	versionFileName = "version"

	// keyFileName is the name of the default key file.
	keyFileName = "keyfile"
)

var log = logging.MustGetLogger("REPO")

// Repo is a representation of a bundlr data directory.
// In this we store:
// - The bundlr.conf file
// - The key file
// - The funding journal database
type Repo struct {
	db      Database
	journal *Journal
	dataDir string
}

// NewRepo returns a new Repo for the given data directory. It will
// be initialized if it is not already.
func NewRepo(dataDir string) (*Repo, error) {
	return newRepo(dataDir, false)
}

// MockRepo returns a repo in dataDir with an in-memory database.
func MockRepo(dataDir string) (*Repo, error) {
	return newRepo(dataDir, true)
}

// DB returns the database implementation.
func (r *Repo) DB() Database {
	return r.db
}

// Journal returns the funding journal.
func (r *Repo) Journal() *Journal {
	return r.journal
}

// DataDir returns the data directory associated with this repo.
func (r *Repo) DataDir() string {
	return r.dataDir
}

// KeyFile returns the path of the default key file.
func (r *Repo) KeyFile() string {
	return path.Join(r.dataDir, keyFileName)
}

// Close will close the repo and associated databases.
func (r *Repo) Close() error {
	return r.db.Close()
}

// DestroyRepo deletes the entire directory. Do NOT use this unless you are
// positive you want to wipe all data.
func (r *Repo) DestroyRepo() error {
	if err := r.db.Close(); err != nil {
		return err
	}
	return os.RemoveAll(r.dataDir)
}

// writeVersion writes the version number to file.
func (r *Repo) writeVersion(version int) error {
	versionStr := strconv.Itoa(version)
	return ioutil.WriteFile(path.Join(r.dataDir, versionFileName), []byte(versionStr), 0644)
}

func newRepo(dataDir string, inMemoryDB bool) (*Repo, error) {
	if err := checkWriteable(path.Join(dataDir, "datastore")); err != nil {
		return nil, err
	}
	_, err := os.Stat(path.Join(dataDir, versionFileName))
	isNew := os.IsNotExist(err)

	dsn := dataDir
	if inMemoryDB {
		dsn = inMemoryDSN
	}
	db, err := NewSqliteDB(dsn)
	if err != nil {
		return nil, err
	}
	if err := autoMigrateDatabase(db); err != nil {
		db.Close()
		return nil, err
	}

	r := &Repo{
		db:      db,
		journal: NewJournal(db),
		dataDir: dataDir,
	}
	if isNew {
		log.Debugf("Initializing new repo at %s", dataDir)
		if err := r.writeVersion(defaultRepoVersion); err != nil {
			db.Close()
			return nil, err
		}
	}
	return r, nil
}

func checkWriteable(dir string) error {
	_, err := os.Stat(dir)
	if err == nil {
		// Directory exists, make sure we can write to it
		testfile := path.Join(dir, "test")
		fi, err := os.Create(testfile)
		if err != nil {
			if os.IsPermission(err) {
				return fmt.Errorf("%s is not writeable by the current user", dir)
			}
			return fmt.Errorf("unexpected error while checking writeablility of repo root: %s", err)
		}
		fi.Close()
		return os.Remove(testfile)
	}

	if os.IsNotExist(err) {
		// Directory does not exist, check that we can create it
		return os.MkdirAll(dir, 0700)
	}

	if os.IsPermission(err) {
		return fmt.Errorf("cannot write to %s, incorrect permissions", err)
	}

	return err
}

func autoMigrateDatabase(db Database) error {
	dbModels := []interface{}{
		&models.FundingRecord{},
	}
	return db.Update(func(tx *gorm.DB) error {
		return tx.AutoMigrate(dbModels...)
	})
}
