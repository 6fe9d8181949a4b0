package receipt

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iapkit/iapkit/verifytest"
)

func newTestVerifier(production, sandbox *verifytest.Server) *Verifier {
	cfg := &VerifierConfig{Timeout: 5 * time.Second}
	if production != nil {
		cfg.ProductionURL = production.URL()
	}
	if sandbox != nil {
		cfg.SandboxURL = sandbox.URL()
	}
	return NewVerifier(cfg)
}

func TestVerifyValidReceipt(t *testing.T) {
	production := verifytest.New(StatusValid)
	defer production.Close()

	v := newTestVerifier(production, nil)
	result := v.Verify(context.Background(), []byte("receipt-blob"))

	assert.True(t, result.Valid)
	assert.Equal(t, OutcomeValid, result.Outcome)
	assert.Equal(t, Production, result.Environment)
	assert.Equal(t, 1, result.Calls)
	assert.Equal(t, 1, production.Calls())
}

func TestVerifySandboxRedirect(t *testing.T) {
	production := verifytest.New(StatusSandboxReceipt)
	defer production.Close()
	sandbox := verifytest.New(StatusValid)
	defer sandbox.Close()

	v := newTestVerifier(production, sandbox)
	result := v.Verify(context.Background(), []byte("sandbox-receipt"))

	assert.True(t, result.Valid)
	assert.Equal(t, OutcomeValid, result.Outcome)
	assert.Equal(t, Sandbox, result.Environment)
	assert.Equal(t, 2, result.Calls)
	assert.Equal(t, 1, production.Calls(), "exactly one production call")
	assert.Equal(t, 1, sandbox.Calls(), "exactly one sandbox call")
}

func TestVerifyRedirectLoopIsAmbiguous(t *testing.T) {
	production := verifytest.New(StatusSandboxReceipt)
	defer production.Close()
	sandbox := verifytest.New(StatusSandboxReceipt)
	defer sandbox.Close()

	v := newTestVerifier(production, sandbox)
	result := v.Verify(context.Background(), []byte("confused-receipt"))

	assert.False(t, result.Valid)
	assert.Equal(t, OutcomeAmbiguous, result.Outcome)
	assert.Equal(t, 2, result.Calls, "redirects are capped at one hop")
	assert.Equal(t, StatusSandboxReceipt, result.Status)
}

func TestVerifyRejectedReceipt(t *testing.T) {
	production := verifytest.New(21003)
	defer production.Close()

	v := newTestVerifier(production, nil)
	result := v.Verify(context.Background(), []byte("bad-receipt"))

	assert.False(t, result.Valid)
	assert.Equal(t, OutcomeInvalid, result.Outcome)
	assert.Equal(t, 21003, result.Status)
	assert.NoError(t, result.Err, "service rejection is not a transport error")
}

func TestVerifyMissingReceipt(t *testing.T) {
	production := verifytest.New(StatusValid)
	defer production.Close()

	v := newTestVerifier(production, nil)

	for _, blob := range [][]byte{nil, {}} {
		result := v.Verify(context.Background(), blob)
		assert.False(t, result.Valid)
		assert.Equal(t, OutcomeMissingReceipt, result.Outcome)
	}
	assert.Equal(t, 0, production.Calls(), "missing receipt must not hit the network")
}

func TestVerifyTransportError(t *testing.T) {
	production := verifytest.New(StatusValid)
	production.Close() // refuse connections

	v := newTestVerifier(production, nil)
	result := v.Verify(context.Background(), []byte("receipt-blob"))

	assert.False(t, result.Valid)
	assert.Equal(t, OutcomeInvalid, result.Outcome)
	assert.Error(t, result.Err)
	assert.Equal(t, 1, result.Calls, "transport errors are not retried")
}

func TestVerifyMalformedResponse(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		production := verifytest.New(StatusValid)
		defer production.Close()
		production.RespondRaw("{not json")

		v := newTestVerifier(production, nil)
		result := v.Verify(context.Background(), []byte("receipt-blob"))

		assert.False(t, result.Valid)
		assert.Equal(t, OutcomeInvalid, result.Outcome)
		assert.Error(t, result.Err)
	})

	t.Run("missing status field", func(t *testing.T) {
		production := verifytest.New(StatusValid)
		defer production.Close()
		production.RespondRaw(`{"receipt": {}}`)

		v := newTestVerifier(production, nil)
		result := v.Verify(context.Background(), []byte("receipt-blob"))

		assert.False(t, result.Valid)
		assert.Equal(t, OutcomeInvalid, result.Outcome)
		assert.Error(t, result.Err)
	})
}

func TestVerifySandboxStart(t *testing.T) {
	sandbox := verifytest.New(StatusValid)
	defer sandbox.Close()

	v := NewVerifier(&VerifierConfig{
		SandboxURL:  sandbox.URL(),
		Environment: Sandbox,
	})
	result := v.Verify(context.Background(), []byte("dev-receipt"))

	assert.True(t, result.Valid)
	assert.Equal(t, Sandbox, result.Environment)
	assert.Equal(t, 1, sandbox.Calls())
}

func TestNewVerifierDefaults(t *testing.T) {
	v := NewVerifier(nil)

	require.NotNil(t, v)
	assert.Equal(t, DefaultProductionURL, v.productionURL)
	assert.Equal(t, DefaultSandboxURL, v.sandboxURL)
	assert.Equal(t, Production, v.start)
	assert.Equal(t, 30*time.Second, v.httpClient.Timeout)
}

func TestNewVerifierKeepsInjectedClient(t *testing.T) {
	custom := &http.Client{Timeout: time.Second}
	v := NewVerifier(&VerifierConfig{HTTPClient: custom})
	assert.Same(t, custom, v.httpClient)
}
