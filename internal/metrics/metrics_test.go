package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGet_Singleton(t *testing.T) {
	m1 := Get()
	m2 := Get()
	assert.Same(t, m1, m2)
}

func TestPurchaseTotal_Counts(t *testing.T) {
	m := Get()
	before := testutil.ToFloat64(m.PurchaseTotal.WithLabelValues("purchased"))
	m.PurchaseTotal.WithLabelValues("purchased").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(m.PurchaseTotal.WithLabelValues("purchased")))
}
