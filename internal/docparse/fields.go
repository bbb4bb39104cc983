package docparse

import (
	"fmt"
	"regexp"
	"strings"
	"tenderscrape/internal/config"
	"tenderscrape/internal/tender"
)

// amount matches indian and western digit grouping with optional paise.
const amount = `([0-9][0-9,]*(?:\.[0-9]{1,2})?)`
const currency = `(?:Rs\.?|INR|₹)?\s*`
const separator = `[\s:.\-]*`
const date = `(\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4})`

// Pattern is the ordered list of expressions tried for one field. The
// first capture group is the value, the whole match when there is none.
type Pattern struct {
	Field       string
	Type        tender.FieldType
	Expressions []*regexp.Regexp
}

var defaultDefinitions = []config.FieldPattern{
	{
		Field: "emd",
		Type:  string(tender.FieldCurrency),
		Patterns: []string{
			`\bE\.?M\.?D\.?(?:\s+amount)?` + separator + currency + amount,
			`earnest\s+money(?:\s+deposit)?(?:\s+amount)?` + separator + `(?:\(EMD\))?` + separator + currency + amount,
		},
	},
	{
		Field: "tender_fee",
		Type:  string(tender.FieldCurrency),
		Patterns: []string{
			`(?:tender|bid)\s+(?:document\s+)?(?:processing\s+)?fee` + separator + currency + amount,
			`(?:document|processing)\s+fee` + separator + currency + amount,
		},
	},
	{
		Field: "estimated_cost",
		Type:  string(tender.FieldCurrency),
		Patterns: []string{
			`estimated\s+(?:contract\s+)?(?:cost|value)(?:\s+of\s+(?:the\s+)?work)?` + separator + currency + amount,
			`\b(?:ECV|PAC)\b` + separator + currency + amount,
		},
	},
	{
		Field: "bid_close_date",
		Type:  string(tender.FieldDate),
		Patterns: []string{
			`(?:bid|tender)\s+(?:submission\s+)?(?:closing|close|end|due)\s+date(?:\s+(?:and|&)\s+time)?` + separator + date,
			`last\s+date\s+(?:for|of)\s+(?:bid\s+)?submission` + separator + date,
		},
	},
	{
		Field:    "date",
		Type:     string(tender.FieldDate),
		Patterns: []string{date},
	},
	{
		Field: "eligibility",
		Type:  string(tender.FieldText),
		Patterns: []string{
			`eligibility(?:\s+criteria)?\s*[:\-]\s*([^\n]{10,300})`,
		},
	},
}

// DefaultPatterns is the built in field table.
func DefaultPatterns() []Pattern {
	patterns, err := CompilePatterns(defaultDefinitions)
	if err != nil {
		panic(err)
	}
	return patterns
}

// CompilePatterns compiles configured field patterns, every expression is
// matched case insensitively.
func CompilePatterns(definitions []config.FieldPattern) ([]Pattern, error) {
	var out []Pattern
	for _, def := range definitions {
		if def.Field == "" {
			return nil, fmt.Errorf("field pattern without a field name")
		}
		fieldType := tender.FieldType(def.Type)
		switch fieldType {
		case "":
			fieldType = tender.FieldText
		case tender.FieldCurrency, tender.FieldDate, tender.FieldText:
		default:
			return nil, fmt.Errorf("field %s: unknown type %q", def.Field, def.Type)
		}

		pattern := Pattern{Field: def.Field, Type: fieldType}
		for _, expr := range def.Patterns {
			re, err := regexp.Compile("(?i)" + expr)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", def.Field, err)
			}
			pattern.Expressions = append(pattern.Expressions, re)
		}
		out = append(out, pattern)
	}
	return out, nil
}

// MergePatterns replaces the entries of base that share a field name with
// overrides, fields base does not know about are appended.
func MergePatterns(base, overrides []Pattern) []Pattern {
	out := make([]Pattern, len(base))
	copy(out, base)

	index := map[string]int{}
	for i, p := range out {
		index[p.Field] = i
	}
	for _, p := range overrides {
		i, ok := index[p.Field]
		if ok {
			out[i] = p
			continue
		}
		index[p.Field] = len(out)
		out = append(out, p)
	}
	return out
}

// ExtractFields returns at most one field per pattern, the first match of
// the first expression that matches. Fields nothing matched are omitted.
func ExtractFields(text string, patterns []Pattern) []tender.ExtractedField {
	var out []tender.ExtractedField
	if strings.TrimSpace(text) == "" {
		return out
	}
	for _, pattern := range patterns {
		for _, re := range pattern.Expressions {
			match := re.FindStringSubmatch(text)
			if match == nil {
				continue
			}
			value := match[0]
			if len(match) > 1 {
				value = match[1]
			}
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			out = append(out, tender.ExtractedField{
				Name:   pattern.Field,
				Value:  value,
				Type:   pattern.Type,
				Method: tender.MethodRegex,
			})
			break
		}
	}
	return out
}
