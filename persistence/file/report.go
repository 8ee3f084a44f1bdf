package file

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/flarexio/insights/conf"
	"github.com/flarexio/insights/export"
	"github.com/flarexio/insights/report"
)

// NewReportRepository keeps the latest report as the flat JSON file shared
// between the scraper and the dashboard.
func NewReportRepository(cfg conf.Persistence) *ReportRepository {
	host := cfg.Host
	if host == "" {
		host = "."
	}

	name := cfg.Name
	if name == "" {
		name = "soundcloud_insights"
	}

	return &ReportRepository{
		filename: filepath.Join(host, name+".json"),
	}
}

type ReportRepository struct {
	filename string
	mu       sync.RWMutex
}

func (repo *ReportRepository) Filename() string {
	return repo.filename
}

func (repo *ReportRepository) Store(r *report.Report) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	return export.WriteFile(repo.filename, func(w io.Writer) error {
		return export.WriteJSON(w, r)
	})
}

func (repo *ReportRepository) Latest() (*report.Report, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	data, err := os.ReadFile(repo.filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, report.ErrReportNotFound
		}

		return nil, err
	}

	var r *report.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}

	// a document holding only null decodes without a report
	if r == nil {
		return nil, report.ErrReportNotFound
	}

	if r.CountryTracks == nil {
		r.IndexCountries()
	}

	return r, nil
}

func (repo *ReportRepository) Find(id report.ReportID) (*report.Report, error) {
	r, err := repo.Latest()
	if err != nil {
		return nil, err
	}

	if r.ID != id {
		return nil, report.ErrReportNotFound
	}

	return r, nil
}

func (repo *ReportRepository) ListAll() ([]*report.Report, error) {
	r, err := repo.Latest()
	if err != nil {
		if errors.Is(err, report.ErrReportNotFound) {
			return make([]*report.Report, 0), nil
		}

		return nil, err
	}

	return []*report.Report{r}, nil
}

func (repo *ReportRepository) Close() error {
	return nil
}

func (repo *ReportRepository) Truncate() error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	err := os.Remove(repo.filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}
