package report

type Repository interface {
	// Command

	Store(r *Report) error

	// Query

	Latest() (*Report, error)
	Find(id ReportID) (*Report, error)
	ListAll() ([]*Report, error)

	Close() error
}
