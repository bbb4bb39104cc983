package detail

import (
	"strings"
	"tenderscrape/internal/tender"
	"tenderscrape/lib/textutil"
)

// SectionLabels are the headings each section is known to appear under,
// already normalized.
type SectionLabels struct {
	Section tender.Section
	Labels  []string
}

func DefaultSectionLabels() []SectionLabels {
	return []SectionLabels{
		{Section: tender.SectionEligibility, Labels: []string{
			"eligibility",
			"eligibility criteria",
			"eligibility conditions",
			"qualification criteria",
			"pre qualification criteria",
		}},
		{Section: tender.SectionGeneralTerms, Labels: []string{
			"general terms",
			"general terms and conditions",
			"general terms & conditions",
			"general conditions",
			"terms and conditions",
		}},
		{Section: tender.SectionLegalTerms, Labels: []string{
			"legal terms",
			"legal terms and conditions",
			"legal terms & conditions",
			"legal conditions",
		}},
		{Section: tender.SectionTechnicalTerms, Labels: []string{
			"technical terms",
			"technical terms and conditions",
			"technical terms & conditions",
			"technical specifications",
			"technical conditions",
		}},
		{Section: tender.SectionSubmissionProcedure, Labels: []string{
			"submission procedure",
			"bid submission procedure",
			"procedure for submission",
			"procedure for bid submission",
			"how to submit",
		}},
	}
}

// documentLabels end whatever section precedes the attachment list.
var documentLabels = []string{
	"documents",
	"tender documents",
	"download documents",
	"attachments",
	"uploaded documents",
}

const (
	headerThreshold = 0.93
	maxHeaderWords  = 8
)

type sectionMatcher struct {
	labels   []string
	sections []tender.Section
}

func newSectionMatcher(known []SectionLabels) sectionMatcher {
	var m sectionMatcher
	for _, entry := range known {
		for _, label := range entry.Labels {
			m.labels = append(m.labels, textutil.NormalizeHeader(label))
			m.sections = append(m.sections, entry.Section)
		}
	}
	for _, label := range documentLabels {
		m.labels = append(m.labels, label)
		m.sections = append(m.sections, "")
	}
	return m
}

// header reports whether line is a section heading. Headings written as
// "Label: content" carry the content inline.
func (m sectionMatcher) header(line string) (section tender.Section, inline string, ok bool) {
	candidates := []struct{ head, rest string }{{head: line}}
	if idx := strings.IndexAny(line, ":-"); idx > 0 {
		candidates = append(candidates, struct{ head, rest string }{
			head: line[:idx],
			rest: strings.TrimSpace(line[idx+1:]),
		})
	}

	for _, c := range candidates {
		if len(strings.Fields(c.head)) > maxHeaderWords {
			continue
		}
		idx, _ := textutil.BestMatch(c.head, m.labels, headerThreshold)
		if idx < 0 {
			continue
		}
		return m.sections[idx], c.rest, true
	}
	return "", "", false
}

// ParseSections walks the lines of a detail view and assigns every line
// after a heading to that heading's section, up to the next heading.
func ParseSections(lines []string, known []SectionLabels) tender.Detail {
	m := newSectionMatcher(known)

	var (
		detail  tender.Detail
		current tender.Section
		buffer  []string
	)
	flush := func() {
		if current != "" && len(buffer) > 0 && detail.Get(current) == "" {
			detail.Set(current, strings.Join(buffer, "\n"))
		}
		buffer = nil
	}

	for _, line := range lines {
		section, inline, ok := m.header(line)
		if ok {
			flush()
			current = section
			if inline != "" {
				buffer = append(buffer, inline)
			}
			continue
		}
		if current != "" {
			buffer = append(buffer, line)
		}
	}
	flush()
	return detail
}
