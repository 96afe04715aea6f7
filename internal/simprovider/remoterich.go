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
	"github.com/ethereum/go-ethereum/common"
)

// RemoteRichProvider posts to a state-change/log-extracting simulation
// service (spec §4.3 variant i, wire shape in §6).
type RemoteRichProvider struct {
	*healthTracker
	name     string
	endpoint string
	timeout  time.Duration
	priority int
	enabled  bool
	client   *http.Client
}

func NewRemoteRichProvider(name, endpoint string, timeout time.Duration, priority int, enabled bool) *RemoteRichProvider {
	return &RemoteRichProvider{
		healthTracker: newHealthTracker(),
		name:          name,
		endpoint:      endpoint,
		timeout:       timeout,
		priority:      priority,
		enabled:       enabled,
		client:        &http.Client{},
	}
}

func (p *RemoteRichProvider) Name() string    { return p.name }
func (p *RemoteRichProvider) IsEnabled() bool { return p.enabled }
func (p *RemoteRichProvider) GetHealth() domain.ProviderHealth   { return p.health() }
func (p *RemoteRichProvider) GetMetrics() domain.ProviderMetrics { return p.metricsSnapshot() }
func (p *RemoteRichProvider) ResetMetrics()                      { p.reset() }

func (p *RemoteRichProvider) Priority() int { return p.priority }

type richRequestBody struct {
	NetworkID     string `json:"network_id"`
	From          string `json:"from"`
	To            string `json:"to"`
	Input         string `json:"input"`
	Value         string `json:"value"`
	Gas           uint64 `json:"gas,omitempty"`
	Save          bool   `json:"save"`
	SaveIfFails   bool   `json:"save_if_fails"`
	SimulationType string `json:"simulation_type"`
	BlockNumber   *uint64 `json:"block_number,omitempty"`
}

type richResponseBody struct {
	Simulation struct {
		Status      bool    `json:"status"`
		GasUsed     *uint64 `json:"gas_used"`
		ErrorMsg    string  `json:"error_message"`
		BlockNumber *uint64 `json:"block_number"`
	} `json:"simulation"`
	Transaction struct {
		TransactionInfo struct {
			CallTrace struct {
				Output string `json:"output"`
			} `json:"call_trace"`
			StateDiff []struct {
				Address  common.Address `json:"address"`
				Slot     string         `json:"slot"`
				Original string         `json:"original"`
				Dirty    string         `json:"dirty"`
			} `json:"state_diff"`
			Logs []struct {
				Address common.Address `json:"address"`
				Topics  []common.Hash  `json:"topics"`
				Data    string         `json:"data"`
			} `json:"logs"`
		} `json:"transaction_info"`
	} `json:"transaction"`
}

func (p *RemoteRichProvider) Simulate(ctx context.Context, req *domain.SimulationRequest) (*domain.SimulationResult, error) {
	p.recordAttempt()
	start := time.Now()

	body := richRequestBody{
		NetworkID:      fmt.Sprintf("%d", req.Chain),
		From:           req.From.Hex(),
		To:             req.To.Hex(),
		Input:          "0x" + hex.EncodeToString(req.Data),
		Value:          req.Value,
		SimulationType: "quick",
		BlockNumber:    req.BlockNumber,
	}
	if req.GasLimit != nil {
		body.Gas = *req.GasLimit
	}
	payload, err := json.Marshal(body)
	if err != nil {
		p.recordFailure(err.Error())
		return nil, errs.New(errs.SimProviderHTTP, "RemoteRichProvider.Simulate", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		p.recordFailure(err.Error())
		return nil, errs.New(errs.SimProviderHTTP, "RemoteRichProvider.Simulate", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.recordFailure(err.Error())
		return nil, errs.New(errs.SimProviderTimeout, "RemoteRichProvider.Simulate", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		p.recordFailure("rate limited")
		return nil, errs.New(errs.SimProviderRateLimited, "RemoteRichProvider.Simulate", fmt.Errorf("HTTP 429"))
	}
	if resp.StatusCode != http.StatusOK {
		p.recordFailure(fmt.Sprintf("HTTP %d", resp.StatusCode))
		return nil, errs.New(errs.SimProviderHTTP, "RemoteRichProvider.Simulate", fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	var parsed richResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		p.recordFailure(err.Error())
		return nil, errs.New(errs.SimProviderHTTP, "RemoteRichProvider.Simulate", err)
	}

	latencyMs := time.Since(start).Milliseconds()
	p.recordSuccess(latencyMs)

	result := &domain.SimulationResult{
		Success:      true,
		WouldRevert:  !parsed.Simulation.Status,
		GasUsed:      parsed.Simulation.GasUsed,
		Provider:     p.name,
		LatencyMs:    latencyMs,
		BlockNumber:  parsed.Simulation.BlockNumber,
	}
	if result.WouldRevert {
		if out, decErr := hexDecodeLoose(parsed.Transaction.TransactionInfo.CallTrace.Output); decErr == nil {
			result.RevertReason = DecodeRevertReason(out)
		} else if parsed.Simulation.ErrorMsg != "" {
			result.RevertReason = parsed.Simulation.ErrorMsg
		}
		p.recordPredictedRevert()
	}
	for _, sd := range parsed.Transaction.TransactionInfo.StateDiff {
		result.StateChanges = append(result.StateChanges, domain.StateChange{
			Address:  sd.Address,
			Slot:     sd.Slot,
			OldValue: sd.Original,
			NewValue: sd.Dirty,
		})
	}
	for _, l := range parsed.Transaction.TransactionInfo.Logs {
		data, _ := hexDecodeLoose(l.Data)
		result.Logs = append(result.Logs, domain.LogEntry{Address: l.Address, Topics: l.Topics, Data: data})
	}

	return result, nil
}

func (p *RemoteRichProvider) HealthCheck(ctx context.Context) (bool, string) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return false, err.Error()
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500, fmt.Sprintf("HTTP %d", resp.StatusCode)
}

func hexDecodeLoose(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}
