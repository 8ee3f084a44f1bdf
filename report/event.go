package report

import "time"

const ReportScraped = "report_scraped"

// ReportScrapedEvent announces a freshly stored report to running dashboards.
type ReportScrapedEvent struct {
	ReportID   ReportID  `json:"report_id"`
	Username   string    `json:"username"`
	Tracks     int       `json:"tracks"`
	TotalPlays int       `json:"total_plays"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewReportScrapedEvent(r *Report) *ReportScrapedEvent {
	return &ReportScrapedEvent{
		ReportID:   r.ID,
		Username:   r.User.Username,
		Tracks:     len(r.Tracks),
		TotalPlays: r.TotalPlays(),
		OccurredAt: time.Now(),
	}
}

func (e *ReportScrapedEvent) EventName() string {
	return ReportScraped
}

// Topic is insights.<report id>.scraped.
func (e *ReportScrapedEvent) Topic() string {
	return "insights." + e.ReportID.String() + ".scraped"
}
