package telemetry

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/reject"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "coupon_expired", Outcome(errors.Wrap(reject.New("coupon_expired", "expired"), "apply")))
	assert.Equal(t, "error", Outcome(errors.New("timeout")))
}
