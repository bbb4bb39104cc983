package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeHeader(t *testing.T) {
	table := []struct {
		in       string
		expected string
	}{
		{in: "Eligibility Criteria:", expected: "eligibility criteria"},
		{in: "3. General  Terms & Conditions", expected: "general terms & conditions"},
		{in: "  SUBMISSION PROCEDURE ", expected: "submission procedure"},
	}
	for _, test := range table {
		require.Equal(t, test.expected, NormalizeHeader(test.in))
	}
}

func TestBestMatch(t *testing.T) {
	candidates := []string{"eligibility criteria", "technical terms", "legal terms"}

	idx, score := BestMatch("Eligibility Criteria :", candidates, 0.9)
	require.Equal(t, 0, idx)
	require.Equal(t, 1.0, score)

	idx, _ = BestMatch("Technical Term", candidates, 0.9)
	require.Equal(t, 1, idx)

	idx, _ = BestMatch("Bank Guarantee Format", candidates, 0.9)
	require.Equal(t, -1, idx)
}

func TestSanitizeFilename(t *testing.T) {
	table := []struct {
		in       string
		expected string
	}{
		{in: "Tender Notice (Final).PDF", expected: "Tender_Notice_Final.pdf"},
		{in: "BOQ - Part 1.xlsx", expected: "BOQ_Part_1.xlsx"},
		{in: "../../etc/passwd", expected: "etcpasswd"},
		{in: "???", expected: "document"},
		{in: "", expected: "document"},
	}
	for _, test := range table {
		require.Equal(t, test.expected, SanitizeFilename(test.in), test.in)
	}

	long := SanitizeFilename(strings.Repeat("a", 300) + ".doc")
	require.Equal(t, maxStemLength+len(".doc"), len(long))
}
