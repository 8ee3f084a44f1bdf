package db

import (
	"encoding/json"
	"errors"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/flarexio/insights/conf"
	"github.com/flarexio/insights/report"
)

// Report keeps the scraped document as a JSON payload next to the columns
// used for lookups.
type Report struct {
	ID       string `gorm:"primaryKey"`
	Username string `gorm:"index"`
	Tracks   int
	Payload  []byte
	DataModel
}

func NewReport(r *report.Report) (*Report, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}

	return &Report{
		ID:       r.ID.String(),
		Username: r.User.Username,
		Tracks:   len(r.Tracks),
		Payload:  payload,
		DataModel: DataModel{
			CreatedAt: r.CreatedAt,
		},
	}, nil
}

func (m *Report) reconstitute() (*report.Report, error) {
	var r *report.Report
	if err := json.Unmarshal(m.Payload, &r); err != nil {
		return nil, err
	}

	return r, nil
}

func NewReportRepository(cfg conf.Persistence) (*ReportRepository, error) {
	filename := filepath.Join(cfg.Host, cfg.Name+".db")
	if cfg.InMem {
		filename = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(filename), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Report{}); err != nil {
		return nil, err
	}

	repo := new(ReportRepository)
	repo.db = db
	return repo, nil
}

var _ Database = (*ReportRepository)(nil)

type ReportRepository struct {
	db *gorm.DB
}

func (repo *ReportRepository) DB() *gorm.DB {
	return repo.db
}

func (repo *ReportRepository) Store(r *report.Report) error {
	m, err := NewReport(r) // convert Domain to Data model
	if err != nil {
		return err
	}

	return repo.db.Save(m).Error
}

func (repo *ReportRepository) Latest() (*report.Report, error) {
	var m *Report

	// ULIDs sort by creation time
	result := repo.db.Order("id DESC").Take(&m)
	if err := result.Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, report.ErrReportNotFound
		}

		return nil, err
	}

	return m.reconstitute()
}

func (repo *ReportRepository) Find(id report.ReportID) (*report.Report, error) {
	var m *Report

	result := repo.db.Take(&m, "id = ?", id.String())
	if err := result.Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, report.ErrReportNotFound
		}

		return nil, err
	}

	return m.reconstitute()
}

func (repo *ReportRepository) ListAll() ([]*report.Report, error) {
	var models []*Report

	result := repo.db.Order("id ASC").Find(&models)
	if err := result.Error; err != nil {
		return nil, err
	}

	reports := make([]*report.Report, 0, len(models))
	for _, m := range models {
		r, err := m.reconstitute()
		if err != nil {
			return nil, err
		}

		reports = append(reports, r)
	}

	return reports, nil
}

func (repo *ReportRepository) Close() error {
	sqlDB, err := repo.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func (repo *ReportRepository) Truncate() error {
	return repo.db.Exec("DELETE FROM reports").Error
}
