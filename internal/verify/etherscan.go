package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kiko1842/vaultwire/internal/ctxlog"
	"resty.dev/v3"
)

// Source is the compiler input needed to verify one contract.
type Source struct {
	// ContractName is the fully qualified name, "contracts/Vault.sol:Vault".
	ContractName    string
	CompilerVersion string
	StandardJSON    string
}

// SourceProvider looks up verification input by contract name.
type SourceProvider interface {
	Source(contract string) (Source, error)
}

// EtherscanConfig configures an Etherscan-compatible explorer API.
type EtherscanConfig struct {
	APIURL       string
	APIKey       string
	Timeout      time.Duration
	PollInterval time.Duration
	MaxPolls     int
}

// EtherscanClient verifies contracts through the explorer's
// verifysourcecode and checkverifystatus actions.
type EtherscanClient struct {
	http    *resty.Client
	cfg     EtherscanConfig
	sources SourceProvider
}

type explorerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// NewEtherscanClient creates a verifier for the explorer at cfg.APIURL.
func NewEtherscanClient(cfg EtherscanConfig, sources SourceProvider) (*EtherscanClient, error) {
	if cfg.APIURL == "" {
		return nil, errors.New("explorer api url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 12
	}
	client := resty.New().
		SetBaseURL(cfg.APIURL).
		SetTimeout(cfg.Timeout)
	return &EtherscanClient{http: client, cfg: cfg, sources: sources}, nil
}

// Close releases the underlying HTTP client.
func (c *EtherscanClient) Close() error {
	return c.http.Close()
}

// Verify submits the target and polls until the explorer reports a result.
func (c *EtherscanClient) Verify(ctx context.Context, target Target) error {
	logger := ctxlog.FromContext(ctx).With("address", target.Address.Hex(), "contract", target.Contract)

	src, err := c.sources.Source(target.Contract)
	if err != nil {
		return fmt.Errorf("loading source of %s: %w", target.Contract, err)
	}

	var submitted explorerResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"apikey":          c.cfg.APIKey,
			"module":          "contract",
			"action":          "verifysourcecode",
			"contractaddress": target.Address.Hex(),
			"sourceCode":      src.StandardJSON,
			"codeformat":      "solidity-standard-json-input",
			"contractname":    src.ContractName,
			"compilerversion": src.CompilerVersion,
		}).
		SetResult(&submitted).
		Post("")
	if err != nil {
		return fmt.Errorf("submitting verification: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("submitting verification: http %d", res.StatusCode())
	}
	if submitted.Status != "1" {
		if isAlreadyVerified(submitted.Result) {
			logger.Debug("Contract was already verified.")
			return nil
		}
		return fmt.Errorf("explorer rejected submission: %s: %s", submitted.Message, submitted.Result)
	}
	logger.Debug("Verification submitted.", "guid", submitted.Result)

	for attempt := 0; attempt < c.cfg.MaxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}

		var status explorerResponse
		res, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"apikey": c.cfg.APIKey,
				"module": "contract",
				"action": "checkverifystatus",
				"guid":   submitted.Result,
			}).
			SetResult(&status).
			Get("")
		if err != nil {
			return fmt.Errorf("polling verification status: %w", err)
		}
		if res.IsError() {
			return fmt.Errorf("polling verification status: http %d", res.StatusCode())
		}

		switch {
		case strings.Contains(strings.ToLower(status.Result), "pending"):
			logger.Debug("Verification pending.", "attempt", attempt+1)
			continue
		case status.Status == "1" || isAlreadyVerified(status.Result):
			return nil
		default:
			return fmt.Errorf("explorer reported: %s", status.Result)
		}
	}
	return fmt.Errorf("verification still pending after %d polls", c.cfg.MaxPolls)
}

func isAlreadyVerified(result string) bool {
	return strings.Contains(strings.ToLower(result), "already verified")
}
