package dig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LeJamon/goXRPLdig/internal/addresscodec"
	"github.com/LeJamon/goXRPLdig/internal/network"
	"github.com/LeJamon/goXRPLdig/internal/rpcclient"
)

// DefaultAggregateTimeout bounds one whole aggregation call.
const DefaultAggregateTimeout = 10 * time.Second

// ErrInvalidAddress is returned synchronously for malformed addresses;
// validation is a precondition, not a facet failure.
var ErrInvalidAddress = errors.New("invalid account address")

// Dialer produces a Caller for one network. The returned close function is
// invoked once the aggregation settles; for pooled transports it may be a
// no-op.
type Dialer func(ctx context.Context, desc network.Descriptor) (rpcclient.Caller, func() error, error)

// HTTPDialer returns a Dialer backed by the network's HTTP endpoint.
// net/http pools connections per host, so the per-call close is a no-op.
func HTTPDialer(callTimeout time.Duration, log *zap.Logger) Dialer {
	return func(_ context.Context, desc network.Descriptor) (rpcclient.Caller, func() error, error) {
		c := rpcclient.NewHTTPClient(desc.HTTPURL,
			rpcclient.WithHTTPTimeout(callTimeout),
			rpcclient.WithHTTPLogger(log))
		return c, func() error { return nil }, nil
	}
}

// WSDialer returns a Dialer that opens one WebSocket connection per
// aggregation call and closes it when the call settles. All facet fetches of
// the call share the connection.
func WSDialer(callTimeout time.Duration, log *zap.Logger) Dialer {
	return func(ctx context.Context, desc network.Descriptor) (rpcclient.Caller, func() error, error) {
		c, err := rpcclient.DialWS(ctx, desc.WebSocketURL,
			rpcclient.WithWSTimeout(callTimeout),
			rpcclient.WithWSLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}
}

// Aggregator fans out facet fetches and merges them into snapshots. It is
// safe for concurrent use; each call writes only its own result slots.
type Aggregator struct {
	registry    *network.Registry
	dial        Dialer
	timeout     time.Duration
	callTimeout time.Duration
	log         *zap.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithDialer substitutes the transport factory.
func WithDialer(d Dialer) Option {
	return func(a *Aggregator) { a.dial = d }
}

// WithTimeout sets the shared deadline for one Aggregate call.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.timeout = d }
}

// WithCallTimeout sets the per-facet call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.callTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(a *Aggregator) { a.log = log }
}

// NewAggregator creates an aggregator over the given registry.
func NewAggregator(registry *network.Registry, opts ...Option) *Aggregator {
	a := &Aggregator{
		registry:    registry,
		timeout:     DefaultAggregateTimeout,
		callTimeout: rpcclient.DefaultCallTimeout,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.dial == nil {
		a.dial = HTTPDialer(a.callTimeout, a.log)
	}
	return a
}

// facetResults holds one slot per facet. Each in-flight fetch writes only
// its own slot; slots are read only after every fetch has settled.
type facetResults struct {
	accountInfo  *AccountData
	transactions []Transaction
	objects      []json.RawMessage
	nfts         []NFToken
	currencies   []string
	trustLines   []TrustLine
	channels     []Channel
	errs         map[Facet]error
}

// Aggregate fetches the requested facets for one account concurrently and
// merges them into a snapshot. Individual facet failures become entries in
// Snapshot.Errors; only a malformed address or a failed transport dial fail
// the call itself. An empty facet list requests all facets.
func (a *Aggregator) Aggregate(ctx context.Context, address, networkID string, facets ...Facet) (*Snapshot, error) {
	if !addresscodec.IsValidClassicAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	eff, err := effectiveFacets(facets)
	if err != nil {
		return nil, err
	}

	desc, fellBack := a.registry.ResolveOrDefault(networkID)
	var diagnostics []string
	if fellBack {
		diagnostics = append(diagnostics,
			fmt.Sprintf("unknown network %q, fell back to %s", networkID, desc.ID))
		a.log.Info("network fallback",
			zap.String("requested", networkID),
			zap.String("using", desc.ID))
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	caller, closeCaller, err := a.dial(ctx, desc)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", desc.ID, err)
	}
	defer closeCaller()

	results := facetResults{errs: make(map[Facet]error, len(eff))}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, facet := range eff {
		wg.Add(1)
		go func(f Facet) {
			defer wg.Done()
			fctx, cancel := context.WithTimeout(ctx, a.callTimeout)
			defer cancel()
			err := a.fetchOne(fctx, caller, address, f, &results)
			if err != nil {
				mu.Lock()
				results.errs[f] = err
				mu.Unlock()
			}
		}(facet)
	}
	wg.Wait()

	return a.merge(address, desc, eff, &results, diagnostics), nil
}

// fetchOne runs the facet's fetcher and stores its payload. Payload slots
// are exclusive per facet, so no locking is needed here.
func (a *Aggregator) fetchOne(ctx context.Context, c rpcclient.Caller, address string, f Facet, res *facetResults) error {
	switch f {
	case FacetAccountInfo:
		info, err := fetchAccountInfo(ctx, c, address)
		if err != nil {
			return err
		}
		res.accountInfo = info
	case FacetTransactions:
		txs, err := fetchTransactions(ctx, c, address)
		if err != nil {
			return err
		}
		res.transactions = txs
	case FacetObjects:
		objs, err := fetchObjects(ctx, c, address)
		if err != nil {
			return err
		}
		res.objects = objs
	case FacetNFTs:
		nfts, err := fetchNFTs(ctx, c, address)
		if err != nil {
			return err
		}
		res.nfts = nfts
	case FacetCurrencies:
		currencies, err := fetchCurrencies(ctx, c, address)
		if err != nil {
			return err
		}
		res.currencies = currencies
	case FacetTrustLines:
		lines, err := fetchTrustLines(ctx, c, address)
		if err != nil {
			return err
		}
		res.trustLines = lines
	case FacetChannels:
		channels, err := fetchChannels(ctx, c, address)
		if err != nil {
			return err
		}
		res.channels = channels
	}
	return nil
}

// merge builds the immutable snapshot after all fetches have settled.
// Activation is derived here, not at fetch time.
func (a *Aggregator) merge(address string, desc network.Descriptor, eff []Facet, res *facetResults, diagnostics []string) *Snapshot {
	snap := &Snapshot{
		Address:     address,
		Network:     desc,
		Activation:  ActivationUnknown,
		Requested:   eff,
		Diagnostics: diagnostics,
	}

	for _, f := range eff {
		err, failed := res.errs[f]

		if f == FacetAccountInfo {
			switch {
			case !failed:
				snap.Activation = Activated
				snap.AccountInfo = res.accountInfo
			case errors.Is(err, ErrAccountNotFound):
				// Semantic negative: the account does not exist. Not an
				// error entry.
				snap.Activation = NotActivated
			default:
				snap.Activation = ActivationUnknown
				a.recordError(snap, f, err)
			}
			continue
		}

		if failed {
			a.recordError(snap, f, err)
		}
		// Failed facets keep their zero value; succeeded facets get their
		// payload. Both paths default to empty collections.
		switch f {
		case FacetTransactions:
			snap.Transactions = emptyIfNil(res.transactions)
		case FacetObjects:
			snap.Objects = emptyIfNil(res.objects)
		case FacetNFTs:
			snap.NFTs = emptyIfNil(res.nfts)
		case FacetCurrencies:
			snap.Currencies = emptyIfNil(res.currencies)
		case FacetTrustLines:
			snap.TrustLines = emptyIfNil(res.trustLines)
		case FacetChannels:
			snap.Channels = emptyIfNil(res.channels)
		}
	}

	a.log.Debug("aggregation complete",
		zap.String("address", address),
		zap.String("network", desc.ID),
		zap.Stringer("activation", snap.Activation),
		zap.Int("facets", len(eff)),
		zap.Int("errors", len(snap.Errors)))

	return snap
}

func (a *Aggregator) recordError(snap *Snapshot, f Facet, err error) {
	kind := rpcclient.KindTransport
	var rpcErr *rpcclient.RPCError
	if errors.As(err, &rpcErr) {
		kind = rpcErr.Kind
	}
	if rpcclient.IsTimeout(err) {
		kind = rpcclient.KindTimeout
	}

	if snap.Errors == nil {
		snap.Errors = make(map[Facet]*FacetError)
	}
	snap.Errors[f] = &FacetError{
		Facet:   f,
		Kind:    kind,
		Message: err.Error(),
		Err:     err,
	}
	a.log.Warn("facet fetch failed",
		zap.String("address", snap.Address),
		zap.String("facet", string(f)),
		zap.Error(err))
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
