package db

type Tender struct {
	ID            int64
	TenderID      string
	Department    string
	NoticeNumber  string
	Category      string
	Title         string
	TenderValue   string
	PublishedDate string
	BidOpenDate   string
	BidCloseDate  string
	NavTokens     string
	DetailUrl     string
	FetchMode     string
	FetchedAt     int64
	UpdatedAt     int64
}

type TenderDetail struct {
	TenderID            int64
	Eligibility         string
	GeneralTerms        string
	LegalTerms          string
	TechnicalTerms      string
	SubmissionProcedure string
	UpdatedAt           int64
}

type Document struct {
	ID        int64
	TenderID  int64
	Url       string
	Kind      string
	Filename  string
	LocalPath string
	Status    string
	Size      int64
	UpdatedAt int64
}

type ExtractedField struct {
	ID          int64
	TenderID    int64
	DocumentID  int64
	Name        string
	Value       string
	Type        string
	Method      string
	ExtractedAt int64
}

type RunLog struct {
	ID                  string
	StartedAt           int64
	FinishedAt          int64
	FetchMode           string
	Discovered          int64
	Succeeded           int64
	Failed              int64
	DocumentsDownloaded int64
	DocumentsFailed     int64
	DocumentsParsed     int64
	Status              string
	Notes               string
}
