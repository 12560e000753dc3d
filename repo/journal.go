package repo

import (
	"errors"
	"github.com/cpacia/bundlr/models"
	"gorm.io/gorm"
	"time"
)

// ErrRecordNotFound is returned when the journal has no record for a
// transaction ID.
var ErrRecordNotFound = errors.New("funding record not found")

// Journal persists the progress of funding transactions so that an
// interrupted fund can be resumed.
type Journal struct {
	db Database
}

// NewJournal returns a journal backed by db. The funding record table must
// already be migrated.
func NewJournal(db Database) *Journal {
	return &Journal{db: db}
}

// Record inserts or replaces the record for rec.TxID.
func (j *Journal) Record(rec models.FundingRecord) error {
	if rec.TxID == "" {
		return errors.New("funding record has no transaction ID")
	}
	return j.db.Update(func(tx *gorm.DB) error {
		var existing models.FundingRecord
		err := tx.Where("tx_id = ?", rec.TxID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&rec).Error
		} else if err != nil {
			return err
		}
		rec.CreatedAt = existing.CreatedAt
		return tx.Save(&rec).Error
	})
}

// MarkState moves a record to state. A non-nil lastErr is stored with it,
// a nil one clears any previous error.
func (j *Journal) MarkState(txID models.TxID, state models.FundingState, lastErr error) error {
	errStr := ""
	if lastErr != nil {
		errStr = lastErr.Error()
	}
	return j.db.Update(func(tx *gorm.DB) error {
		res := tx.Model(&models.FundingRecord{}).Where("tx_id = ?", txID).Updates(map[string]interface{}{
			"state":      state,
			"last_error": errStr,
			"updated_at": time.Now(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
}

// Get returns the record for txID.
func (j *Journal) Get(txID models.TxID) (models.FundingRecord, error) {
	var rec models.FundingRecord
	err := j.db.View(func(tx *gorm.DB) error {
		return tx.Where("tx_id = ?", txID).First(&rec).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, ErrRecordNotFound
	}
	return rec, err
}

// Pending returns the records for chain that the relay has not yet
// acknowledged, oldest first.
func (j *Journal) Pending(chain string) ([]models.FundingRecord, error) {
	var recs []models.FundingRecord
	err := j.db.View(func(tx *gorm.DB) error {
		return tx.Where("chain = ? AND state <> ?", chain, models.FundingStateNotified).
			Order("created_at").
			Find(&recs).Error
	})
	return recs, err
}
