// Package erpclient implements the UPSERT Client: an authenticated
// HTTPS client for the ERP upsert endpoint with environment routing
// (spec.md §4.9, §6).
package erpclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/crypto/pbkdf2"

	"github.com/tatidev/opms-erp-sync/internal/errs"
	"github.com/tatidev/opms-erp-sync/internal/logger"
	"github.com/tatidev/opms-erp-sync/internal/payload"
)

// Options lets one call override environment routing (spec.md §4.9:
// "explicit override > configured environment > default").
type Options struct {
	EnvironmentOverride string
}

// Response is the parsed ERP response on success.
type Response struct {
	Success   bool   `json:"success"`
	ID        uint   `json:"id"`
	ItemID    string `json:"itemId"`
	Operation string `json:"operation"`
	Error     string `json:"error,omitempty"`
}

// Client is the UPSERT Client contract.
type Client interface {
	Upsert(ctx context.Context, p *payload.Payload, opts Options) (*Response, error)
}

// Config carries everything the client needs to sign and route a
// request; kept separate from internal/config.Config so this package
// has no import-cycle dependency on the top-level config package.
type Config struct {
	SigningPassphrase string
	ConsumerKey       string
	TokenKey          string
	UpsertURLProd     string
	UpsertURLNonProd  string
	DefaultEnvironment string
	ScriptID          string
	DeploymentID      string
	Timeout           time.Duration
	BreakerThreshold  uint32
	BreakerTimeout    time.Duration
}

type client struct {
	cfg        Config
	httpClient *http.Client
	signer     *signer
	breaker    *gobreaker.CircuitBreaker
	log        *logger.Logger
}

// New constructs a UPSERT Client. The consumer/token signing secret is
// derived via PBKDF2-SHA256 from a configured passphrase, the same
// derivation the teacher uses to derive its credential-at-rest
// encryption key (see DESIGN.md) — reused here for a signing key
// instead of an encryption key.
func New(cfg Config, log *logger.Logger) Client {
	key := pbkdf2.Key([]byte(cfg.SigningPassphrase), []byte("opms-erp-sync-salt"), 10000, 32, sha256.New)

	st := gobreaker.Settings{
		Name:    "erp-upsert",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
	}

	return &client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		signer:     &signer{key: key, consumerKey: cfg.ConsumerKey, tokenKey: cfg.TokenKey},
		breaker:    gobreaker.NewCircuitBreaker(st),
		log:        log,
	}
}

// Upsert resolves environment, signs, sends, and classifies the result.
// Timeout/connection errors are TransportFailure (retryable); a
// structured success=false response is SemanticRejection (retryable
// under the current, undecided policy — see DESIGN.md open questions).
func (c *client) Upsert(ctx context.Context, p *payload.Payload, opts Options) (*Response, error) {
	url := c.resolveURL(opts.EnvironmentOverride)
	body, err := json.Marshal(p)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransformationFailure, "marshal payload failed", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, url, body)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errs.Wrap(errs.KindTransportFailure, "erp upsert circuit open", err)
		}
		return nil, err
	}

	resp := result.(*Response)
	if !resp.Success {
		return nil, errs.New(errs.KindSemanticRejection, resp.Error)
	}
	return resp, nil
}

func (c *client) doRequest(ctx context.Context, url string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.KindTransportFailure, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.signer.authHeader(http.MethodPost, url, body))

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransportFailure, "erp upsert request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransportFailure, "read erp response failed", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, errs.New(errs.KindTransportFailure, fmt.Sprintf("erp upsert returned status %d", httpResp.StatusCode))
	}

	var parsed Response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errs.Wrap(errs.KindTransformationFailure, "parse erp response failed", err)
	}
	return &parsed, nil
}

func (c *client) resolveURL(override string) string {
	env := override
	if env == "" {
		env = c.cfg.DefaultEnvironment
	}
	base := c.cfg.UpsertURLNonProd
	if env == "prod" {
		base = c.cfg.UpsertURLProd
	}
	return fmt.Sprintf("%s?script=%s&deploy=%s", base, c.cfg.ScriptID, c.cfg.DeploymentID)
}
