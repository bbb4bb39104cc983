package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/go-resty/resty/v2"
)

// MaxBodyLength caps how much of a request or response body is kept in a dump.
const MaxBodyLength = 64 * 1024

var redactedHeaders = []string{"Cookie", "Set-Cookie", "Authorization"}

func writeHeaders(out *strings.Builder, headers http.Header) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			if slices.Contains(redactedHeaders, http.CanonicalHeaderKey(k)) {
				v = "<redacted>"
			}
			fmt.Fprintf(out, "%s: %s\n", k, v)
		}
	}
}

func truncate(body string) string {
	if len(body) <= MaxBodyLength {
		return body
	}
	return fmt.Sprintf("%s\n<truncated %d bytes>", body[:MaxBodyLength], len(body)-MaxBodyLength)
}

func requestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("<unreadable body: %s>", err)
	}
	defer body.Close()
	raw, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("<unreadable body: %s>", err)
	}
	return string(raw)
}

// FormatMessage renders one exchange as plain text so a malformed payload can
// be inspected after the run. Session cookies are never written out.
func FormatMessage(res *resty.Response) string {
	var out strings.Builder
	out.WriteString("---- REQUEST ----\n\n")
	fmt.Fprintf(&out, "%s %s\n\n", res.Request.Method, res.Request.URL)
	if raw := res.Request.RawRequest; raw != nil {
		writeHeaders(&out, raw.Header)
		out.WriteString("\n")
		out.WriteString(truncate(requestBody(raw)))
		out.WriteString("\n")
	}

	out.WriteString("\n---- RESPONSE ----\n\n")
	fmt.Fprintf(&out, "%d", res.StatusCode())
	if res.RawResponse != nil {
		if location, err := res.RawResponse.Location(); err == nil {
			fmt.Fprintf(&out, " %s", location)
		}
	}
	out.WriteString("\n\n")
	writeHeaders(&out, res.Header())
	out.WriteString("\n")
	out.WriteString(truncate(res.String()))
	return out.String()
}
