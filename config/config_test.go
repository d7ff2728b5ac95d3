package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyblex/backend/internal/payhere"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAYHERE_ENVIRONMENT", "")
	t.Setenv("APP_BASE_URL", "https://api.cyblex.lk/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, payhere.Sandbox, cfg.PayHere.Environment)
	assert.Equal(t, int64(10000), cfg.PayHere.MinAmountCents)
	assert.Equal(t, int64(10000000), cfg.PayHere.MaxAmountCents)
	assert.Equal(t, 300, cfg.PayHere.TimeoutSeconds)
	assert.Equal(t, "LKR", cfg.PayHere.Currency)
	assert.Equal(t, "https://api.cyblex.lk/payments/notify", cfg.PayHere.NotifyURL)
	assert.False(t, cfg.PayHere.ExpirePending)
	assert.Equal(t, 24, cfg.JWT.ExpireHours)
}

func TestLoadLiveEnvironment(t *testing.T) {
	t.Setenv("PAYHERE_ENVIRONMENT", "live")
	t.Setenv("PAYHERE_MERCHANT_ID", "1211149")

	cfg, err := Load()
	require.NoError(t, err)
	m := cfg.PayHere.Merchant()
	assert.Equal(t, payhere.Live, m.Environment)
	assert.Equal(t, "https://www.payhere.lk/pay/checkout", m.Environment.CheckoutURL())
	assert.Equal(t, "1211149", m.ID)
}

func TestLoadRejectsUnknownEnvironment(t *testing.T) {
	t.Setenv("PAYHERE_ENVIRONMENT", "staging")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvertedBand(t *testing.T) {
	t.Setenv("PAYHERE_MIN_AMOUNT", "500")
	t.Setenv("PAYHERE_MAX_AMOUNT", "100")
	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "cyblex", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/cyblex?sslmode=disable", d.DSN())
	d.URL = "postgres://x"
	assert.Equal(t, "postgres://x", d.DSN())
}
