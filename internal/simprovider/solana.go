package simprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/arbcore/detector/internal/domain"
	"github.com/arbcore/detector/internal/errs"
)

// SolanaProvider posts simulateTransaction to a primary Solana RPC, with
// automatic fallback to a secondary RPC on failure (spec §4.3 variant iv).
type SolanaProvider struct {
	*healthTracker
	name           string
	endpoint       string
	fallbackEndpoint string
	timeout        time.Duration
	priority       int
	enabled        bool
	client         *http.Client
}

func NewSolanaProvider(name, endpoint, fallbackEndpoint string, timeout time.Duration, priority int, enabled bool) *SolanaProvider {
	return &SolanaProvider{
		healthTracker:    newHealthTracker(),
		name:             name,
		endpoint:         endpoint,
		fallbackEndpoint: fallbackEndpoint,
		timeout:          timeout,
		priority:         priority,
		enabled:          enabled,
		client:           &http.Client{},
	}
}

func (p *SolanaProvider) Name() string                      { return p.name }
func (p *SolanaProvider) IsEnabled() bool                    { return p.enabled }
func (p *SolanaProvider) GetHealth() domain.ProviderHealth   { return p.health() }
func (p *SolanaProvider) GetMetrics() domain.ProviderMetrics { return p.metricsSnapshot() }
func (p *SolanaProvider) ResetMetrics()                      { p.reset() }

func (p *SolanaProvider) Priority() int { return p.priority }

type solanaSimParams struct {
	Commitment             string `json:"commitment,omitempty"`
	Encoding               string `json:"encoding"`
	ReplaceRecentBlockhash bool   `json:"replaceRecentBlockhash"`
	SigVerify              bool   `json:"sigVerify"`
}

type solanaRPCResponse struct {
	Result struct {
		Value struct {
			Err               interface{} `json:"err"`
			Logs              []string    `json:"logs"`
			UnitsConsumed     uint64      `json:"unitsConsumed"`
			InnerInstructions []interface{} `json:"innerInstructions"`
			Accounts          []struct {
				Lamports uint64 `json:"lamports"`
				Data     []string `json:"data"`
			} `json:"accounts"`
		} `json:"value"`
	} `json:"result"`
	Error *jsonRPCError `json:"error"`
}

func (p *SolanaProvider) simulateAt(ctx context.Context, endpoint string, req *domain.SimulationRequest) (*domain.SimulationResult, error) {
	params := []interface{}{
		req.SolanaTxBase64,
		solanaSimParams{
			Commitment:             req.Commitment,
			Encoding:               "base64",
			ReplaceRecentBlockhash: true,
			SigVerify:              false,
		},
	}
	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: "simulateTransaction", Params: params})
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.New(errs.SimProviderRateLimited, "SolanaProvider.Simulate", fmt.Errorf("HTTP 429"))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.SimProviderHTTP, "SolanaProvider.Simulate", fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	var parsed solanaRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("solana rpc error: %s", parsed.Error.Message)
	}

	wouldRevert := parsed.Result.Value.Err != nil
	accountDeltas := make(map[string]string, len(parsed.Result.Value.Accounts))
	for i, a := range parsed.Result.Value.Accounts {
		accountDeltas[fmt.Sprintf("account_%d", i)] = fmt.Sprintf("lamports=%d", a.Lamports)
	}

	result := &domain.SimulationResult{
		Success:     true,
		WouldRevert: wouldRevert,
		Provider:    p.name,
		Solana: &domain.SolanaExtension{
			ProgramLogs:   parsed.Result.Value.Logs,
			ComputeUnits:  parsed.Result.Value.UnitsConsumed,
			AccountDeltas: accountDeltas,
		},
	}
	if wouldRevert {
		result.RevertReason = fmt.Sprintf("Revert: %v", parsed.Result.Value.Err)
	}
	return result, nil
}

func (p *SolanaProvider) Simulate(ctx context.Context, req *domain.SimulationRequest) (*domain.SimulationResult, error) {
	p.recordAttempt()
	start := time.Now()

	result, err := p.simulateAt(ctx, p.endpoint, req)
	if err != nil && p.fallbackEndpoint != "" {
		result, err = p.simulateAt(ctx, p.fallbackEndpoint, req)
		if err == nil {
			p.recordFallbackUsed()
		}
	}
	latencyMs := time.Since(start).Milliseconds()
	if err != nil {
		p.recordFailure(err.Error())
		return nil, err
	}

	result.LatencyMs = latencyMs
	p.recordSuccess(latencyMs)
	if result.WouldRevert {
		p.recordPredictedRevert()
	}
	return result, nil
}

func (p *SolanaProvider) HealthCheck(ctx context.Context) (bool, string) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	body, _ := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: "getHealth", Params: []interface{}{}})
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, fmt.Sprintf("HTTP %d", resp.StatusCode)
}
