// Package receipt validates storefront purchase receipts against a remote
// verification service.
//
// Trust decisions are delegated entirely to the remote service: the verifier
// never inspects receipt signatures itself, it only interprets the integer
// status field of the service's JSON response. A receipt generated in the
// sandbox environment but sent to the production endpoint is reported with
// status 21007; the verifier follows that redirect to the sandbox endpoint
// at most once and classifies anything beyond the cap as ambiguous rather
// than recursing.
package receipt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Environment selects which verification backend a request is sent to.
type Environment string

const (
	// Production is the live verification backend.
	Production Environment = "production"
	// Sandbox is the test verification backend.
	Sandbox Environment = "sandbox"
)

// Default verification endpoints.
const (
	DefaultProductionURL = "https://buy.itunes.apple.com/verifyReceipt"
	DefaultSandboxURL    = "https://sandbox.itunes.apple.com/verifyReceipt"
)

// Service status codes interpreted by the verifier. Any status other than
// these is a terminal rejection.
const (
	// StatusValid means the receipt is valid.
	StatusValid = 0
	// StatusSandboxReceipt means the receipt was generated by the sandbox
	// environment but sent to the production endpoint.
	StatusSandboxReceipt = 21007
)

// maxSandboxHops bounds how many sandbox redirects a single validation may
// follow. The redirect rule is self-referential (a misbehaving service can
// answer 21007 from the sandbox endpoint too), so the hop count is capped
// rather than trusting the service to terminate.
const maxSandboxHops = 1

// Outcome classifies the terminal result of a validation attempt.
type Outcome string

const (
	// OutcomeValid means the service accepted the receipt.
	OutcomeValid Outcome = "valid"
	// OutcomeInvalid means the service rejected the receipt, the response
	// was undecodable, or transport failed.
	OutcomeInvalid Outcome = "invalid"
	// OutcomeMissingReceipt means no local receipt exists; no network call
	// was made.
	OutcomeMissingReceipt Outcome = "missing_receipt"
	// OutcomeAmbiguous means the sandbox redirect cap was exceeded and the
	// receipt's validity could not be determined.
	OutcomeAmbiguous Outcome = "ambiguous"
)

// Result is the terminal outcome of one validation.
type Result struct {
	// Valid is true only when Outcome is OutcomeValid.
	Valid bool

	// Outcome classifies how the validation terminated.
	Outcome Outcome

	// Status is the last service status decoded, when any response decoded.
	Status int

	// Environment is the backend that produced the terminal response.
	Environment Environment

	// Calls is the number of verification requests performed.
	Calls int

	// Err carries the transport or decode cause for invalid outcomes that
	// did not come from a service rejection.
	Err error
}

// VerifierConfig configures a Verifier.
type VerifierConfig struct {
	// ProductionURL overrides the production verification endpoint (optional).
	ProductionURL string

	// SandboxURL overrides the sandbox verification endpoint (optional).
	SandboxURL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *http.Client

	// Timeout for verification requests (optional, defaults to 30s).
	// Ignored when HTTPClient is provided.
	Timeout time.Duration

	// Environment is the backend validation starts against.
	// Defaults to Production.
	Environment Environment

	// Logger for validation progress (optional, defaults to no-op).
	Logger *zap.Logger
}

// Verifier validates receipt blobs against the verification service.
// A Verifier is safe for concurrent use, though callers that need a single
// process-wide validity flag should serialize validations themselves.
type Verifier struct {
	productionURL string
	sandboxURL    string
	httpClient    *http.Client
	start         Environment
	logger        *zap.Logger
}

// NewVerifier creates a new receipt verifier.
func NewVerifier(config *VerifierConfig) *Verifier {
	if config == nil {
		config = &VerifierConfig{}
	}

	productionURL := config.ProductionURL
	if productionURL == "" {
		productionURL = DefaultProductionURL
	}

	sandboxURL := config.SandboxURL
	if sandboxURL == "" {
		sandboxURL = DefaultSandboxURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	start := config.Environment
	if start == "" {
		start = Production
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Verifier{
		productionURL: productionURL,
		sandboxURL:    sandboxURL,
		httpClient:    httpClient,
		start:         start,
		logger:        logger,
	}
}

// verifyRequest is the wire format sent to the verification service.
type verifyRequest struct {
	ReceiptData string `json:"receipt-data"`
}

// verifyResponse is the portion of the service response the verifier reads.
// Status is a pointer so a missing field is distinguishable from status 0.
type verifyResponse struct {
	Status *int `json:"status"`
}

// Verify runs one validation of the given receipt blob.
//
// A nil or empty blob terminates immediately with OutcomeMissingReceipt and
// zero network calls. Transport errors and undecodable responses terminate
// as invalid without retry; only the sandbox redirect (status 21007) is
// retried, bounded by maxSandboxHops.
func (v *Verifier) Verify(ctx context.Context, receiptBlob []byte) Result {
	if len(receiptBlob) == 0 {
		v.logger.Debug("no local receipt, skipping verification")
		return Result{Outcome: OutcomeMissingReceipt, Environment: v.start}
	}

	body, err := json.Marshal(verifyRequest{
		ReceiptData: base64.StdEncoding.EncodeToString(receiptBlob),
	})
	if err != nil {
		return Result{Outcome: OutcomeInvalid, Environment: v.start,
			Err: fmt.Errorf("failed to marshal verify request: %w", err)}
	}

	env := v.start
	result := Result{Environment: env}

	for hop := 0; ; hop++ {
		result.Environment = env
		result.Calls++

		status, err := v.post(ctx, env, body)
		if err != nil {
			v.logger.Warn("receipt verification failed",
				zap.String("environment", string(env)),
				zap.Error(err))
			result.Outcome = OutcomeInvalid
			result.Err = err
			return result
		}

		result.Status = status

		switch {
		case status == StatusValid:
			v.logger.Debug("receipt valid",
				zap.String("environment", string(env)))
			result.Valid = true
			result.Outcome = OutcomeValid
			return result

		case status == StatusSandboxReceipt:
			if hop >= maxSandboxHops {
				v.logger.Warn("sandbox redirect cap exceeded",
					zap.String("environment", string(env)),
					zap.Int("calls", result.Calls))
				result.Outcome = OutcomeAmbiguous
				return result
			}
			v.logger.Debug("sandbox receipt, retrying against sandbox")
			env = Sandbox

		default:
			v.logger.Debug("receipt invalid",
				zap.String("environment", string(env)),
				zap.Int("status", status))
			result.Outcome = OutcomeInvalid
			return result
		}
	}
}

// post performs one verification request and decodes the status field.
func (v *Verifier) post(ctx context.Context, env Environment, body []byte) (int, error) {
	url := v.productionURL
	if env == Sandbox {
		url = v.sandboxURL
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read verify response: %w", err)
	}

	var decoded verifyResponse
	if err := json.Unmarshal(responseBody, &decoded); err != nil {
		return 0, fmt.Errorf("failed to decode verify response: %w", err)
	}
	if decoded.Status == nil {
		return 0, fmt.Errorf("verify response missing status field")
	}

	return *decoded.Status, nil
}
