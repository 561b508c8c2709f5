package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/storefront-session/internal/domain"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordRefresh(domain.DomainStaff, OutcomeSuccess)
	m.RecordRefresh(domain.DomainStaff, OutcomeSuccess)
	m.RecordLogin(domain.DomainAdmin, OutcomeMismatch)
	m.RecordRequest(domain.DomainCustomer, "GET", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.refresh.WithLabelValues("STAFF", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues("ADMIN", OutcomeMismatch)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("CUSTOMER", "GET", "200")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRefresh(domain.DomainStaff, OutcomeRejected)
		m.RecordError("/x", "GET", "INTERNAL_ERROR")
	})
}
