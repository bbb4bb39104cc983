package textutil

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

var headerPunct = regexp.MustCompile(`[^a-z0-9&/ ]+`)

// NormalizeHeader lowercases a heading and removes numbering and punctuation
// so "3. Eligibility Criteria :" and "eligibility criteria" compare equal.
func NormalizeHeader(header string) string {
	header = strings.ToLower(header)
	header = headerPunct.ReplaceAllString(header, " ")
	header = whitespaceRegex.ReplaceAllString(header, " ")
	header = strings.TrimSpace(header)
	return strings.TrimLeft(header, "0123456789 ")
}

// BestMatch returns the index of the candidate closest to s and its
// Jaro-Winkler score. Candidates are expected to be normalized already.
// An exact match always wins, -1 is returned when no candidate reaches threshold.
func BestMatch(s string, candidates []string, threshold float64) (int, float64) {
	s = NormalizeHeader(s)
	best := -1
	bestScore := 0.0
	for i, c := range candidates {
		if s == c {
			return i, 1
		}
		score := matchr.JaroWinkler(s, c, false)
		if score >= threshold && score > bestScore {
			best = i
			bestScore = score
		}
	}
	return best, bestScore
}

var (
	filenameInvalid   = regexp.MustCompile(`[^\w\s-]`)
	filenameSeparator = regexp.MustCompile(`[-\s]+`)
	extensionRegex    = regexp.MustCompile(`^\.[A-Za-z0-9]{1,5}$`)
)

const maxStemLength = 100

// SanitizeFilename produces a filesystem safe name, the extension is kept
// and lowercased when it looks like one.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	ext := filepath.Ext(name)
	if extensionRegex.MatchString(ext) {
		name = strings.TrimSuffix(name, ext)
		ext = strings.ToLower(ext)
	} else {
		ext = ""
	}

	stem := filenameInvalid.ReplaceAllString(name, "")
	stem = filenameSeparator.ReplaceAllString(stem, "_")
	stem = strings.Trim(stem, "_")
	if len(stem) > maxStemLength {
		stem = strings.TrimRight(stem[:maxStemLength], "_")
	}
	if stem == "" {
		stem = "document"
	}
	return stem + ext
}
