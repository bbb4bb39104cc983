// Package telemetry is how components report what happened to them. Each
// component holds an API scoped to its own name and reports with short ids
// of the form `<struct>.<method>` (lowercase, dashes between words), such as
// `client.fetch-listing`.
package telemetry

// API is an abstraction over logging and metrics so tests can assert on
// what a component reported.
type API interface {
	// ReportBroken reports a failure that needs a fix or an operator.
	ReportBroken(id string, params ...any)
	// ReportWarning reports something that went wrong without stopping the
	// caller, like a skipped record or a degraded parse.
	ReportWarning(id string, params ...any)
	ReportDebug(msg string, params ...any)
	// ReportCount reports a gauge reading, values are not meant to be summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with the name of the component it was made for.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	if scoped, ok := inner.(ScopedAPI); ok {
		return ScopedAPI{namespace: scoped.namespace + "/" + namespace, inner: scoped.inner}
	}
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) id(id string) string {
	return s.namespace + ": " + id
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.id(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.id(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.id(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.id(id), count)
}

// Nop drops every report.
type Nop struct{}

func (Nop) ReportBroken(string, ...any)  {}
func (Nop) ReportWarning(string, ...any) {}
func (Nop) ReportDebug(string, ...any)   {}
func (Nop) ReportCount(string, int64)    {}
