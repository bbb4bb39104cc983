package docparse

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

var ErrLegacyFormat = errors.New("legacy binary office format is not supported")

// PDFText concatenates the text layer of every page.
func PDFText(ctx context.Context, path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// SpreadsheetText writes every row of every sheet as a tab separated line.
func SpreadsheetText(ctx context.Context, path string) (string, error) {
	if isLegacyOffice(path) {
		return "", ErrLegacyFormat
	}
	book, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer book.Close()

	var sb strings.Builder
	for _, sheet := range book.GetSheetList() {
		rows, err := book.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheet, err)
		}
		writeRows(&sb, rows)
	}
	return sb.String(), nil
}

// CSVText treats a csv attachment as a single sheet.
func CSVText(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	writeRows(&sb, rows)
	return sb.String(), nil
}

func writeRows(sb *strings.Builder, rows [][]string) {
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cell = strings.TrimSpace(cell)
			if cell != "" {
				cells = append(cells, cell)
			}
		}
		if len(cells) == 0 {
			continue
		}
		sb.WriteString(strings.Join(cells, "\t"))
		sb.WriteString("\n")
	}
}

// WordText reads the paragraphs of a docx body, one per line.
func WordText(ctx context.Context, path string) (string, error) {
	if isLegacyOffice(path) {
		return "", ErrLegacyFormat
	}
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer archive.Close()

	for _, f := range archive.File {
		if f.Name != "word/document.xml" {
			continue
		}
		body, err := f.Open()
		if err != nil {
			return "", err
		}
		defer body.Close()
		return paragraphs(body)
	}
	return "", fmt.Errorf("word/document.xml not found")
}

func paragraphs(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		sb     strings.Builder
		line   strings.Builder
		inText bool
	)
	flush := func() {
		text := strings.TrimSpace(line.String())
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
		line.Reset()
	}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				line.WriteString("\t")
			case "br", "cr":
				line.WriteString(" ")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	flush()
	return sb.String(), nil
}

// isLegacyOffice sniffs the OLE2 compound file signature of .doc and .xls.
func isLegacyOffice(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	header := make([]byte, 8)
	_, err = io.ReadFull(file, header)
	if err != nil {
		return false
	}
	return string(header) == "\xd0\xcf\x11\xe0\xa1\xb1\x1a\xe1"
}
