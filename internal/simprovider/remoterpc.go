package simprovider

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/arbcore/detector/internal/domain"
	"github.com/arbcore/detector/internal/errs"
)

// jsonRPCRequest/jsonRPCResponse are the bare eth_call envelope shared by
// RemoteRPCProvider and LocalRPCProvider.
type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

type jsonRPCResponse struct {
	Result string        `json:"result"`
	Error  *jsonRPCError `json:"error"`
}

type callOverride struct {
	Balance   *string           `json:"balance,omitempty"`
	Nonce     *uint64           `json:"nonce,omitempty"`
	Code      *string           `json:"code,omitempty"`
	State     map[string]string `json:"state,omitempty"`
	StateDiff map[string]string `json:"stateDiff,omitempty"`
}

func callParams(req *domain.SimulationRequest) map[string]interface{} {
	p := map[string]interface{}{
		"from": req.From.Hex(),
		"to":   req.To.Hex(),
		"data": "0x" + hex.EncodeToString(req.Data),
	}
	if req.GasLimit != nil {
		p["gas"] = fmt.Sprintf("0x%x", *req.GasLimit)
	}
	if req.Value != "" {
		p["value"] = req.Value
	}
	return p
}

func blockParam(req *domain.SimulationRequest) string {
	if req.BlockNumber != nil {
		return fmt.Sprintf("0x%x", *req.BlockNumber)
	}
	return "latest"
}

func overridesParam(req *domain.SimulationRequest) map[string]callOverride {
	if len(req.StateOverrides) == 0 {
		return nil
	}
	out := make(map[string]callOverride, len(req.StateOverrides))
	for addr, o := range req.StateOverrides {
		out[addr.Hex()] = callOverride{
			Balance:   o.Balance,
			Nonce:     o.Nonce,
			Code:      o.Code,
			State:     o.State,
			StateDiff: o.StateDiff,
		}
	}
	return out
}

func doEthCall(ctx context.Context, client *http.Client, endpoint string, timeout time.Duration, req *domain.SimulationRequest) (string, error) {
	params := []interface{}{callParams(req), blockParam(req)}
	if ov := overridesParam(req); ov != nil {
		params = append(params, ov)
	}
	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: "eth_call", Params: params})
	if err != nil {
		return "", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", errs.New(errs.SimProviderRateLimited, "doEthCall", fmt.Errorf("HTTP 429"))
	}
	if resp.StatusCode != http.StatusOK {
		return "", errs.New(errs.SimProviderHTTP, "doEthCall", fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	var parsed jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.Error != nil {
		// A JSON-RPC error on eth_call commonly carries the revert data in
		// .error.data -- still a *successful* simulation outcome (spec §9).
		return parsed.Error.Data, fmt.Errorf("eth_call reverted: %s", parsed.Error.Message)
	}
	return parsed.Result, nil
}

// RemoteRPCProvider posts bare eth_call requests to a remote RPC endpoint
// it owns (spec §4.3 variant ii).
type RemoteRPCProvider struct {
	*healthTracker
	name     string
	endpoint string
	timeout  time.Duration
	priority int
	enabled  bool
	client   *http.Client
}

func NewRemoteRPCProvider(name, endpoint string, timeout time.Duration, priority int, enabled bool) *RemoteRPCProvider {
	return &RemoteRPCProvider{
		healthTracker: newHealthTracker(),
		name:          name,
		endpoint:      endpoint,
		timeout:       timeout,
		priority:      priority,
		enabled:       enabled,
		client:        &http.Client{},
	}
}

func (p *RemoteRPCProvider) Name() string                        { return p.name }
func (p *RemoteRPCProvider) IsEnabled() bool                      { return p.enabled }
func (p *RemoteRPCProvider) GetHealth() domain.ProviderHealth     { return p.health() }
func (p *RemoteRPCProvider) GetMetrics() domain.ProviderMetrics   { return p.metricsSnapshot() }
func (p *RemoteRPCProvider) ResetMetrics()                        { p.reset() }

func (p *RemoteRPCProvider) Priority() int { return p.priority }

func (p *RemoteRPCProvider) Simulate(ctx context.Context, req *domain.SimulationRequest) (*domain.SimulationResult, error) {
	p.recordAttempt()
	start := time.Now()

	out, err := doEthCall(ctx, p.client, p.endpoint, p.timeout, req)
	latencyMs := time.Since(start).Milliseconds()
	if err != nil && out == "" {
		p.recordFailure(err.Error())
		return nil, err
	}

	p.recordSuccess(latencyMs)
	returnValue, _ := hexDecodeLoose(out)
	result := &domain.SimulationResult{
		Success:     true,
		WouldRevert: err != nil,
		ReturnValue: returnValue,
		Provider:    p.name,
		LatencyMs:   latencyMs,
	}
	if result.WouldRevert {
		result.RevertReason = DecodeRevertReason(returnValue)
		p.recordPredictedRevert()
	}
	return result, nil
}

func (p *RemoteRPCProvider) HealthCheck(ctx context.Context) (bool, string) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	body, _ := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: "eth_blockNumber", Params: []interface{}{}})
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
