package decode

import (
	"strings"
	"time"

	"github.com/arbcore/detector/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// Registry implements C2: selector-dispatched decoder lookup plus a
// chain-keyed router-address table (spec §4.2 "Chain-aware router
// lookup"). V2/V3 calldata is self-describing for tokens and tolerates an
// unknown router; Curve and 1inch require a known router before decoding.
type Registry struct {
	families  map[domain.Protocol]*family
	selectors map[Selector]domain.Protocol
	// chain -> lowercased router address -> protocol
	routers map[uint64]map[string]domain.Protocol
}

type family struct {
	decoder            Decoder
	requireKnownRouter bool
}

// NewRegistry builds the registry with every protocol family wired in.
// curveLookup resolves Curve pool coin indices to token addresses; oneInch
// is the 1inch decoder (see NewOneInchDecoder), which carries its own
// logger for the sentinel-token debug line.
func NewRegistry(curveLookup PoolTokenLookup, oneInch Decoder) *Registry {
	r := &Registry{
		families:  make(map[domain.Protocol]*family),
		selectors: make(map[Selector]domain.Protocol),
		routers:   make(map[uint64]map[string]domain.Protocol),
	}

	r.registerFamily(domain.ProtocolUniswapV2, v2Decoder{}, false, []Selector{
		SelV2SwapExactTokensForTokens,
		SelV2SwapExactETHForTokens,
		SelV2SwapExactTokensForETH,
		SelV2SwapTokensForExactTokens,
		SelV2SwapETHForExactTokens,
		SelV2SwapTokensForExactETH,
		SelV2FeeOnTransfer,
	})
	r.registerFamily(domain.ProtocolUniswapV3, v3Decoder{}, false, []Selector{
		SelV3ExactInputSingle,
		SelV3ExactOutputSingle,
		SelV3ExactInput,
		SelV3Router02ExactInputSingle,
	})
	r.registerFamily(domain.ProtocolCurve, &curveDecoder{lookup: curveLookup}, true, []Selector{
		SelCurveExchange,
		SelCurveExchangeUnderlying,
		SelCurveCryptoExchange,
		SelCurveRouterNGExchange,
	})
	r.registerFamily(domain.ProtocolOneInch, oneInch, true, []Selector{
		SelOneInchSwap,
		SelOneInchUnoswap,
	})

	return r
}

func (r *Registry) registerFamily(p domain.Protocol, d Decoder, requireKnownRouter bool, sels []Selector) {
	r.families[p] = &family{decoder: d, requireKnownRouter: requireKnownRouter}
	for _, s := range sels {
		r.selectors[s] = p
	}
}

// AddRouter registers a known router address for a chain. Router addresses
// are matched case-insensitively (spec §4.2).
func (r *Registry) AddRouter(chain uint64, addr common.Address, p domain.Protocol) {
	m, ok := r.routers[chain]
	if !ok {
		m = make(map[string]domain.Protocol)
		r.routers[chain] = m
	}
	m[strings.ToLower(addr.Hex())] = p
}

// Decode selects a protocol decoder by selector and, where required by the
// protocol, verifies the destination router is known for the chain before
// attempting the decode (spec §4.2). Returns (nil, nil) for an unrecognized
// selector, an unknown router where one is required, or a transaction the
// decoder does not handle; a decoder's error for malformed calldata is
// returned unchanged, with a nil intent, for the caller to log and drop.
// receivedAt is stamped onto the intent's FirstSeenAt before it is returned,
// so the wall-clock first-seen time is fixed at construction and never
// touched again downstream.
func (r *Registry) Decode(rawTx *domain.RawPendingTransaction, chain uint64, receivedAt time.Time) (*domain.SwapIntent, error) {
	sel := rawTx.Selector()
	protocol, ok := r.selectors[sel]
	if !ok {
		return nil, nil
	}
	f := r.families[protocol]

	var router [20]byte
	if rawTx.To != nil {
		router = [20]byte(*rawTx.To)
	}

	if f.requireKnownRouter {
		if rawTx.To == nil {
			return nil, nil
		}
		known, ok := r.lookupRouter(chain, *rawTx.To)
		if !ok || known != protocol {
			return nil, nil
		}
	}

	intent, err := f.decoder.Decode(rawTx, chain, router)
	if err != nil || intent == nil {
		return intent, err
	}
	intent.FirstSeenAt = receivedAt
	return intent, nil
}

func (r *Registry) lookupRouter(chain uint64, addr common.Address) (domain.Protocol, bool) {
	m, ok := r.routers[chain]
	if !ok {
		return "", false
	}
	p, ok := m[strings.ToLower(addr.Hex())]
	return p, ok
}
