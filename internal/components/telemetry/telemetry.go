package telemetry

import (
	"fmt"
)

// API is what every component reports through. Production wires SlogAPI, tests
// wire a Recorder and assert on the ids that were reported.
type API interface {
	// ReportBroken flags a failure of a component that an operator has to act on.
	//
	// Ids name the component and operation in lowercase, like `fetcher.fetch-page`
	// or `authenticator.login`. Batch index, page, status and the error itself belong in params.
	ReportBroken(id string, params ...any)
	// ReportWarning flags something that degraded a run without failing it, a stalled
	// batch or an expired session for example. Ids follow ReportBroken.
	ReportWarning(id string, params ...any)
	ReportDebug(msg string, params ...any)
	// ReportCount records a gauge-like observation, rows in a page or pages in a batch.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace before handing it to inner.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scope(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}
