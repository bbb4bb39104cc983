package tender

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

// DocumentKind selects the text extraction handler for an attachment.
type DocumentKind string

const (
	KindUnknown     DocumentKind = "unknown"
	KindPDF         DocumentKind = "pdf"
	KindSpreadsheet DocumentKind = "spreadsheet"
	KindWord        DocumentKind = "word"
	KindCSV         DocumentKind = "csv"
)

var kindByExtension = map[string]DocumentKind{
	".pdf":  KindPDF,
	".xls":  KindSpreadsheet,
	".xlsx": KindSpreadsheet,
	".xlsm": KindSpreadsheet,
	".doc":  KindWord,
	".docx": KindWord,
	".csv":  KindCSV,
}

var kindByMIME = map[string]DocumentKind{
	"application/pdf":          KindPDF,
	"application/vnd.ms-excel": KindSpreadsheet,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       KindSpreadsheet,
	"application/msword":                                                      KindWord,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": KindWord,
	"text/csv": KindCSV,
}

func KindFromExtension(ext string) DocumentKind {
	kind, ok := kindByExtension[strings.ToLower(ext)]
	if !ok {
		return KindUnknown
	}
	return kind
}

func KindFromMIME(contentType string) DocumentKind {
	mediatype, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return KindUnknown
	}
	kind, ok := kindByMIME[mediatype]
	if !ok {
		return KindUnknown
	}
	return kind
}

// ExtensionFor is the canonical extension of a kind, empty for KindUnknown.
func ExtensionFor(kind DocumentKind) string {
	switch kind {
	case KindPDF:
		return ".pdf"
	case KindSpreadsheet:
		return ".xlsx"
	case KindWord:
		return ".docx"
	case KindCSV:
		return ".csv"
	}
	return ""
}

// InferKind looks at the url path, then a declared mime type, then the
// link text, in that order.
func InferKind(link *url.URL, declared, text string) DocumentKind {
	if link != nil {
		if kind := KindFromExtension(path.Ext(link.Path)); kind != KindUnknown {
			return kind
		}
		for _, values := range link.Query() {
			for _, v := range values {
				if kind := KindFromExtension(path.Ext(v)); kind != KindUnknown {
					return kind
				}
			}
		}
	}
	if declared != "" {
		if kind := KindFromMIME(declared); kind != KindUnknown {
			return kind
		}
	}
	return KindFromExtension(path.Ext(strings.TrimSpace(text)))
}

type DocumentStatus string

const (
	StatusPending     DocumentStatus = "pending"
	StatusDownloading DocumentStatus = "downloading"
	StatusDownloaded  DocumentStatus = "downloaded"
	StatusFailed      DocumentStatus = "failed"
)

// DocumentRef is an attachment discovered on a detail view. ID is assigned
// by the store, LocalPath once the fetcher resolved where it lives.
type DocumentRef struct {
	ID        int64
	URL       string
	Kind      DocumentKind
	Filename  string
	LocalPath string
	Status    DocumentStatus
	Size      int64
}

type FieldType string

const (
	FieldCurrency FieldType = "currency"
	FieldDate     FieldType = "date"
	FieldText     FieldType = "text"
)

const MethodRegex = "regex"

// ExtractedField is a named value pulled out of a document's text.
type ExtractedField struct {
	Name   string
	Value  string
	Type   FieldType
	Method string
}
