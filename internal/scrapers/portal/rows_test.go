package portal

import (
	"tenderscrape/internal/scrapeerr"
	"tenderscrape/internal/tender"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractNavTokens(t *testing.T) {
	table := []struct {
		name     string
		fragment string
		expected tender.NavTokens
	}{
		{
			name:     "onclick three tokens",
			fragment: `<a href="#" onclick="GetTenderInfo('123','O','R-9')">View</a>`,
			expected: tender.NavTokens{"123", "O", "R-9"},
		},
		{
			name:     "double quotes and spaces",
			fragment: `<a onclick='openWin("55", "A")'>open</a>`,
			expected: tender.NavTokens{"55", "A"},
		},
		{
			name:     "javascript href",
			fragment: `<a href="javascript:GetTenderInfo('9','C','X')">View</a>`,
			expected: tender.NavTokens{"9", "C", "X"},
		},
		{
			name:     "escaped plain text",
			fragment: `GetTenderInfo(&#39;77&#39;,&#39;O&#39;)`,
			expected: tender.NavTokens{"77", "O"},
		},
		{
			name:     "skips calls with the wrong arity",
			fragment: `<a href="javascript:void(0)" onclick="track('x'); GetTenderInfo('1','2')">x</a>`,
			expected: tender.NavTokens{"1", "2"},
		},
		{
			name:     "parens inside a quoted argument",
			fragment: `<a onclick="GetTenderInfo('123','Works (Civil)','R-9')">View</a>`,
			expected: tender.NavTokens{"123", "Works (Civil)", "R-9"},
		},
		{
			name:     "comma inside a quoted argument",
			fragment: `<a onclick="GetTenderInfo('123','A, B','R-9')">View</a>`,
			expected: tender.NavTokens{"123", "A, B", "R-9"},
		},
		{
			name:     "bare numeric argument",
			fragment: `<a onclick="openWin(42, 'A')">open</a>`,
			expected: tender.NavTokens{"42", "A"},
		},
		{name: "unterminated call", fragment: `<a onclick="GetTenderInfo('1','2'">x</a>`, expected: nil},
		{name: "no action", fragment: `<span>closed</span>`, expected: nil},
		{name: "empty", fragment: "", expected: nil},
	}
	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, ExtractNavTokens(test.fragment))
		})
	}
}

func TestParseRowShortRow(t *testing.T) {
	_, err := ParseRow([]string{"Dept", "NIT-1"}, 7)
	require.Equal(t, scrapeerr.KindValidation, scrapeerr.Classify(err))

	var validation *scrapeerr.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, 7, validation.Row)
	require.Equal(t, "tender_id", validation.Field)
}
