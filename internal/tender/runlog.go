package tender

import "time"

type RunStatus string

const (
	RunSuccess RunStatus = "SUCCESS"
	RunPartial RunStatus = "PARTIAL"
	RunFailed  RunStatus = "FAILED"
)

// RunLog is the audit row of one execution.
type RunLog struct {
	ID                  string    `csv:"id"`
	StartedAt           time.Time `csv:"started_at"`
	FinishedAt          time.Time `csv:"finished_at"`
	Mode                FetchMode `csv:"fetch_mode"`
	Discovered          int       `csv:"discovered"`
	Succeeded           int       `csv:"succeeded"`
	Failed              int       `csv:"failed"`
	DocumentsDownloaded int       `csv:"documents_downloaded"`
	DocumentsFailed     int       `csv:"documents_failed"`
	DocumentsParsed     int       `csv:"documents_parsed"`
	Status              RunStatus `csv:"status"`
	Notes               string    `csv:"notes"`
}

// SuccessRate is the share of discovered records that were persisted, in percent.
func (r RunLog) SuccessRate() float64 {
	if r.Discovered == 0 {
		return 0
	}
	return float64(r.Succeeded) / float64(r.Discovered) * 100
}

func (r RunLog) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
