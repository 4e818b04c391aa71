package arkpay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/arkpay/types"
)

const (
	testRecipient   = "DNjuJEDQkhrJ7cA9FZ2iVXt5anYiM8Jtc9"
	testVendorField = "thisisarandomtestingvendorfieldwhatever"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

// sequenceTokens returns tok-1, tok-2, ...
func sequenceTokens() types.TokenGenerator {
	var n atomic.Int32
	return func() string { return fmt.Sprintf("tok-%d", n.Add(1)) }
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) of(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type fakeSeeds struct {
	mu    sync.Mutex
	calls int
	err   error
	peers []types.Peer
}

func (f *fakeSeeds) Seeds(context.Context, string) ([]types.Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.peers, f.err
}

func (f *fakeSeeds) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNode struct {
	mu        sync.Mutex
	peerCalls int
	txCalls   int
	peersErr  error
	infos     []types.PeerInfo
	txs       []types.Transaction
	// txErrs fail the first lookups in order; txErr fails every lookup after.
	txErrs []error
	txErr  error
	// txHook runs at the start of every lookup, outside the lock.
	txHook func()
}

func (f *fakeNode) Peers(context.Context, types.Peer) ([]types.PeerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peerCalls++
	return f.infos, f.peersErr
}

func (f *fakeNode) ReceivedTransactions(context.Context, types.Peer, string) ([]types.Transaction, error) {
	if f.txHook != nil {
		f.txHook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCalls++
	if len(f.txErrs) > 0 {
		err := f.txErrs[0]
		f.txErrs = f.txErrs[1:]
		return nil, err
	}
	if f.txErr != nil {
		return nil, f.txErr
	}
	return f.txs, nil
}

func (f *fakeNode) calls() (peers, txs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peerCalls, f.txCalls
}

type fakeRates struct {
	err  error
	rate decimal.Decimal
}

func (f *fakeRates) DailyLow(context.Context, string, string) (decimal.Decimal, error) {
	return f.rate, f.err
}

// gatedRates blocks every lookup until release is closed and signals
// entered on the first one.
type gatedRates struct {
	rate    decimal.Decimal
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedRates(rate decimal.Decimal) *gatedRates {
	return &gatedRates{rate: rate, entered: make(chan struct{}), release: make(chan struct{})}
}

func (f *gatedRates) DailyLow(ctx context.Context, _, _ string) (decimal.Decimal, error) {
	f.once.Do(func() { close(f.entered) })
	select {
	case <-f.release:
		return f.rate, nil
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}
}

func newTestGateway(seeds *fakeSeeds, node *fakeNode, rates *fakeRates, opts ...Option) (*Gateway, *recorder) {
	base := []Option{
		WithTokenGenerator(sequenceTokens()),
		WithClients(seeds, node, rates),
		WithPollInterval(5 * time.Millisecond),
	}
	g := New(append(base, opts...)...)
	rec := &recorder{}
	g.OnAny(rec.record)
	return g, rec
}

func waitDone(t *testing.T, g *Gateway) {
	t.Helper()
	select {
	case <-g.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
}

func TestSettersAndSnapshot(t *testing.T) {
	g := New(WithTokenGenerator(sequenceTokens()))

	g.Recipient(testRecipient).
		Amount(decimal.NewFromInt(10)).
		Currency("eur").
		Network("mainnet").
		Coin("ARK").
		Seeds("ARK", map[string]string{"MainNet": "http://seeds.test/mainnet.json"}).
		Peers([]types.Peer{{IP: "1.2.3.4", Port: 1234}})

	want := &types.Session{
		State: types.StateIdle,
		Transfer: types.Transfer{
			Recipient:   testRecipient,
			Amounts:     types.Amounts{Fiat: decimal.NewFromInt(10)},
			VendorField: "tok-1",
			Currency:    "EUR",
		},
		Network: types.NetworkInfo{
			Name:  "mainnet",
			Coin:  "ARK",
			Peers: []types.Peer{{IP: "1.2.3.4", Port: 4003, Protocol: "http"}},
		},
		Seeds: types.Seeds{"ark": {"mainnet": "http://seeds.test/mainnet.json"}},
	}

	snapshot := g.ToObject()
	if diff := cmp.Diff(want, snapshot, decimalEqual); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}

	snapshot.Network.Peers[0].IP = "changed"
	snapshot.Seeds["ark"]["mainnet"] = "changed"
	if diff := cmp.Diff(want, g.ToObject(), decimalEqual); diff != "" {
		t.Fatalf("snapshot is not a copy (-want +got):\n%s", diff)
	}

	g.VendorField(testVendorField)
	assert.Equal(t, testVendorField, g.ToObject().Transfer.VendorField)
	assert.NoError(t, g.Err())
}

func TestDefaults(t *testing.T) {
	s := New(WithTokenGenerator(sequenceTokens())).ToObject()

	assert.True(t, s.AutoDiscoverPeers)
	assert.False(t, s.Started)
	assert.Equal(t, "devnet", s.Network.Name)
	assert.Equal(t, "ARK", s.Network.Coin)
	assert.Equal(t, "USD", s.Transfer.Currency)
	assert.Equal(t, "tok-1", s.Transfer.VendorField)
	assert.Empty(t, s.Network.Peers)
	assert.Nil(t, s.Transfer.Amounts.Crypto)
	assert.Nil(t, s.Transfer.ExchangeRate)
	assert.Equal(t, types.DefaultSeeds(), s.Seeds)
}

func TestPeersSetterRejectsEmpty(t *testing.T) {
	for name, list := range map[string][]types.Peer{"nil": nil, "empty": {}} {
		t.Run(name, func(t *testing.T) {
			seeds := &fakeSeeds{}
			g, rec := newTestGateway(seeds, &fakeNode{}, &fakeRates{})
			g.Recipient(testRecipient).Amount(decimal.NewFromInt(1)).Peers(list)

			assert.True(t, types.IsCode(g.Err(), types.ErrInvalidInput))
			assert.True(t, g.ToObject().AutoDiscoverPeers)

			err := g.Start(context.Background())
			assert.True(t, types.IsCode(err, types.ErrInvalidInput))
			assert.Zero(t, seeds.count())
			assert.Empty(t, rec.kinds())
		})
	}
}

func TestPeersSetterAcceptsListAfterEmpty(t *testing.T) {
	g, _ := newTestGateway(&fakeSeeds{}, &fakeNode{}, &fakeRates{rate: decimal.NewFromInt(1)})
	g.Recipient(testRecipient).Amount(decimal.NewFromInt(1)).Peers(nil)
	require.True(t, types.IsCode(g.Err(), types.ErrInvalidInput))

	g.Peers([]types.Peer{{IP: "10.0.0.1"}})
	assert.NoError(t, g.Err())
	assert.False(t, g.ToObject().AutoDiscoverPeers)
	assert.NoError(t, g.Prepare(context.Background()))
}

func TestPresetPeersSkipSeedsAndDiscovery(t *testing.T) {
	seeds := &fakeSeeds{}
	node := &fakeNode{}
	g, rec := newTestGateway(seeds, node, &fakeRates{rate: decimal.RequireFromString("0.5")})

	g.Recipient(testRecipient).
		Amount(decimal.NewFromInt(4)).
		Peers([]types.Peer{{IP: "10.0.0.9", Port: 8443, Protocol: "https"}})

	require.NoError(t, g.Prepare(context.Background()))

	peerCalls, _ := node.calls()
	assert.Zero(t, seeds.count())
	assert.Zero(t, peerCalls)
	assert.Empty(t, rec.kinds())

	s := g.ToObject()
	require.NotNil(t, s.Transfer.Amounts.Crypto)
	require.NotNil(t, s.Transfer.ExchangeRate)
	assert.True(t, s.Transfer.Amounts.Crypto.Equal(decimal.NewFromInt(2)))
	assert.True(t, s.Transfer.ExchangeRate.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, []types.Peer{{IP: "10.0.0.9", Port: 8443, Protocol: "https"}}, s.Network.Peers)
	assert.Equal(t, types.StateIdle, s.State)
}

func TestAmountChangeDiscardsConversion(t *testing.T) {
	g, _ := newTestGateway(&fakeSeeds{}, &fakeNode{}, &fakeRates{rate: decimal.NewFromInt(2)})
	g.Recipient(testRecipient).Amount(decimal.NewFromInt(1)).Peers([]types.Peer{{IP: "10.0.0.1"}})

	require.NoError(t, g.Prepare(context.Background()))
	require.NotNil(t, g.ToObject().Transfer.Amounts.Crypto)

	g.Amount(decimal.NewFromInt(3))
	s := g.ToObject()
	assert.Nil(t, s.Transfer.Amounts.Crypto)
	assert.Nil(t, s.Transfer.ExchangeRate)
}

func TestInvalidInputNeverRetries(t *testing.T) {
	cases := map[string]func(*Gateway){
		"recipient":   func(g *Gateway) { g.Recipient("not-an-address").Amount(decimal.NewFromInt(1)) },
		"network":     func(g *Gateway) { g.Recipient(testRecipient).Amount(decimal.NewFromInt(1)).Network("mainnet") },
		"amount":      func(g *Gateway) { g.Recipient(testRecipient).Amount(decimal.Zero) },
		"vendorField": func(g *Gateway) { g.Recipient(testRecipient).Amount(decimal.NewFromInt(1)).VendorField("") },
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			seeds := &fakeSeeds{}
			g, rec := newTestGateway(seeds, &fakeNode{}, &fakeRates{})
			setup(g)

			err := g.Prepare(context.Background())
			assert.True(t, types.IsCode(err, types.ErrInvalidInput), "%v", err)
			assert.Zero(t, seeds.count())
			assert.Empty(t, rec.kinds())
		})
	}
}

func TestSeedFailureAbortsOnce(t *testing.T) {
	seeds := &fakeSeeds{err: errors.New("seed list unavailable")}
	g, rec := newTestGateway(seeds, &fakeNode{}, &fakeRates{})
	g.Recipient(testRecipient).Amount(decimal.NewFromInt(1))

	err := g.Start(context.Background())

	var gwErr *types.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, types.ErrSessionAborted, gwErr.Code)
	assert.Equal(t, "no seeds found", gwErr.Message)

	assert.Equal(t, 5, seeds.count())
	assert.Len(t, rec.of(EventError), 5)
	aborted := rec.of(EventAborted)
	require.Len(t, aborted, 1)
	assert.Equal(t, "no seeds found", aborted[0].Reason)
	assert.Equal(t, EventAborted, rec.kinds()[len(rec.kinds())-1])
	for _, ev := range rec.of(EventError) {
		assert.Equal(t, types.PhaseSeeds, ev.Phase)
	}

	s := g.ToObject()
	assert.Empty(t, s.Network.Peers)
	assert.Equal(t, "tok-2", s.Transfer.VendorField)
	assert.Empty(t, s.Transfer.Recipient)
	assert.Equal(t, types.StateIdle, s.State)
	assert.False(t, s.Started)
}

func TestUnknownSeedAborts(t *testing.T) {
	seeds := &fakeSeeds{peers: []types.Peer{{IP: "10.0.0.1"}}}
	g, rec := newTestGateway(seeds, &fakeNode{}, &fakeRates{})
	g.Recipient(testRecipient).Amount(decimal.NewFromInt(1)).Seeds("ark", map[string]string{"mainnet": "http://seeds.test"})

	err := g.Prepare(context.Background())

	assert.True(t, types.IsCode(err, types.ErrSessionAborted))
	assert.Zero(t, seeds.count())
	errs := rec.of(EventError)
	require.Len(t, errs, 1)
	assert.True(t, types.IsCode(errs[0].Err, types.ErrUnknownSeed))
	assert.Len(t, rec.of(EventAborted), 1)
}

func TestDiscoveryFailureAborts(t *testing.T) {
	seeds := &fakeSeeds{peers: []types.Peer{{IP: "10.0.0.1"}}}
	node := &fakeNode{peersErr: errors.New("connection refused")}
	g, rec := newTestGateway(seeds, node, &fakeRates{})
	g.Recipient(testRecipient).Amount(decimal.NewFromInt(1))

	err := g.Prepare(context.Background())

	assert.True(t, types.IsCode(err, types.ErrSessionAborted))
	peerCalls, _ := node.calls()
	assert.Equal(t, 5, peerCalls)
	assert.Len(t, rec.of(EventError), 5)
	aborted := rec.of(EventAborted)
	require.Len(t, aborted, 1)
	assert.Equal(t, "no peers found", aborted[0].Reason)
}

func TestRateFailureAborts(t *testing.T) {
	seeds := &fakeSeeds{peers: []types.Peer{{IP: "10.0.0.1"}}}
	node := &fakeNode{infos: []types.PeerInfo{{Peer: types.Peer{IP: "10.0.0.2"}, Latency: ptr(5.0)}}}
	g, rec := newTestGateway(seeds, node, &fakeRates{err: errors.New("rate source down")}, WithRetry(3, 0))
	g.Recipient(testRecipient).Amount(decimal.NewFromInt(1))

	err := g.Start(context.Background())

	assert.True(t, types.IsCode(err, types.ErrSessionAborted))
	assert.Len(t, rec.of(EventError), 3)
	aborted := rec.of(EventAborted)
	require.Len(t, aborted, 1)
	assert.Equal(t, "no exchange rate found", aborted[0].Reason)
	assert.Empty(t, rec.of(EventStarted))

	s := g.ToObject()
	assert.Nil(t, s.Transfer.Amounts.Crypto)
	assert.Nil(t, s.Transfer.ExchangeRate)
}

func TestCancelledPrepareDoesNotAbort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, rec := newTestGateway(&fakeSeeds{}, &fakeNode{}, &fakeRates{})
	g.Recipient(testRecipient).Amount(decimal.NewFromInt(1))

	err := g.Prepare(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.kinds())
	assert.Equal(t, types.StateIdle, g.State())
	assert.Equal(t, testRecipient, g.ToObject().Transfer.Recipient)
}

func TestStopIsIdempotent(t *testing.T) {
	node := &fakeNode{}
	g, rec := newTestGateway(&fakeSeeds{}, node, &fakeRates{rate: decimal.NewFromInt(1)})
	g.Recipient(testRecipient).Amount(decimal.NewFromInt(1)).Peers([]types.Peer{{IP: "10.0.0.1"}})

	require.NoError(t, g.Start(context.Background()))
	assert.Equal(t, types.StatePolling, g.State())

	err := g.Start(context.Background())
	assert.True(t, types.IsCode(err, types.ErrAlreadyStarted))

	assert.Eventually(t, func() bool {
		_, txs := node.calls()
		return txs >= 2
	}, time.Second, time.Millisecond)

	g.Stop()
	g.Stop()
	waitDone(t, g)

	assert.Equal(t, types.StateIdle, g.State())
	assert.Equal(t, []EventKind{EventStarted}, rec.kinds())
}

func TestStopFromStartedHandler(t *testing.T) {
	node := &fakeNode{}
	g, rec := newTestGateway(&fakeSeeds{}, node, &fakeRates{rate: decimal.NewFromInt(1)})
	g.On(EventStarted, func(Event) { g.Stop() })
	g.Recipient(testRecipient).Amount(decimal.NewFromInt(1)).Peers([]types.Peer{{IP: "10.0.0.1"}})

	require.NoError(t, g.Start(context.Background()))
	waitDone(t, g)

	assert.Equal(t, types.StateIdle, g.State())
	assert.False(t, g.ToObject().Started)
	assert.Equal(t, []EventKind{EventStarted}, rec.kinds())
	_, txs := node.calls()
	assert.Zero(t, txs)
}

func TestStopFromPollErrorHandler(t *testing.T) {
	node := &fakeNode{txErr: errors.New("connection reset")}
	g, rec := newTestGateway(&fakeSeeds{}, node, &fakeRates{rate: decimal.NewFromInt(1)})
	g.On(EventError, func(ev Event) {
		if ev.Phase == types.PhasePoll {
			g.Stop()
		}
	})
	g.Recipient(testRecipient).Amount(decimal.NewFromInt(1)).Peers([]types.Peer{{IP: "10.0.0.1"}})

	require.NoError(t, g.Start(context.Background()))
	waitDone(t, g)

	assert.Equal(t, types.StateIdle, g.State())
	assert.Equal(t, []EventKind{EventStarted, EventError}, rec.kinds())
	_, txs := node.calls()
	assert.Equal(t, 1, txs)
}

func TestPollErrorKeepsPolling(t *testing.T) {
	paid := types.Transaction{
		ID:          "paid",
		Amount:      decimal.NewFromInt(100000000),
		Recipient:   testRecipient,
		VendorField: testVendorField,
	}
	node := &fakeNode{
		txErrs: []error{errors.New("timeout"), errors.New("bad gateway")},
		txs:    []types.Transaction{paid},
	}
	g, rec := newTestGateway(&fakeSeeds{}, node, &fakeRates{rate: decimal.NewFromInt(1)})
	g.Recipient(testRecipient).
		Amount(decimal.NewFromInt(1)).
		VendorField(testVendorField).
		Peers([]types.Peer{{IP: "10.0.0.1"}})

	require.NoError(t, g.Start(context.Background()))
	waitDone(t, g)

	assert.Equal(t, []EventKind{EventStarted, EventError, EventError, EventCompleted}, rec.kinds())
	for _, ev := range rec.of(EventError) {
		assert.Equal(t, types.PhasePoll, ev.Phase)
	}
	assert.ErrorContains(t, rec.of(EventError)[0].Err, "timeout")
	assert.Equal(t, "paid", rec.of(EventCompleted)[0].Transaction.ID)
	assert.Equal(t, types.StateCompleted, g.State())
}

func TestNoPollErrorAfterStop(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	node := &fakeNode{
		txErr: errors.New("late failure"),
		txHook: func() {
			once.Do(func() { close(entered) })
			<-release
		},
	}
	g, rec := newTestGateway(&fakeSeeds{}, node, &fakeRates{rate: decimal.NewFromInt(1)})
	g.Recipient(testRecipient).Amount(decimal.NewFromInt(1)).Peers([]types.Peer{{IP: "10.0.0.1"}})

	require.NoError(t, g.Start(context.Background()))
	<-entered

	g.Stop()
	assert.Equal(t, types.StateIdle, g.State())
	close(release)
	waitDone(t, g)

	assert.Equal(t, []EventKind{EventStarted}, rec.kinds())
}

func TestResetDuringPrepareDiscardsConversion(t *testing.T) {
	rates := newGatedRates(decimal.NewFromInt(2))
	g, rec := newTestGateway(&fakeSeeds{}, &fakeNode{}, rates)
	g.Recipient(testRecipient).Amount(decimal.NewFromInt(5)).Peers([]types.Peer{{IP: "10.0.0.1"}})

	errc := make(chan error, 1)
	go func() { errc <- g.Prepare(context.Background()) }()
	<-rates.entered

	g.Reset()
	close(rates.release)

	var err error
	select {
	case err = <-errc:
	case <-time.After(5 * time.Second):
		t.Fatal("prepare did not return")
	}
	assert.True(t, types.IsCode(err, types.ErrSessionClosed), "%v", err)

	s := g.ToObject()
	assert.Nil(t, s.Transfer.Amounts.Crypto)
	assert.Nil(t, s.Transfer.ExchangeRate)
	assert.Equal(t, types.StateIdle, s.State)
	assert.Empty(t, s.Network.Peers)
	assert.Empty(t, rec.kinds())

	g.Recipient(testRecipient).Amount(decimal.NewFromInt(3)).Peers([]types.Peer{{IP: "10.0.0.2"}})
	require.NoError(t, g.Prepare(context.Background()))
	s = g.ToObject()
	require.NotNil(t, s.Transfer.Amounts.Crypto)
	assert.True(t, s.Transfer.Amounts.Crypto.Equal(decimal.NewFromInt(6)))
}

func TestExpiry(t *testing.T) {
	g, rec := newTestGateway(&fakeSeeds{}, &fakeNode{}, &fakeRates{rate: decimal.NewFromInt(1)}, WithExpiry(30*time.Millisecond))
	g.Recipient(testRecipient).Amount(decimal.NewFromInt(1)).Peers([]types.Peer{{IP: "10.0.0.1"}})

	require.NoError(t, g.Start(context.Background()))
	waitDone(t, g)

	assert.Equal(t, []EventKind{EventStarted, EventExpired}, rec.kinds())
	expired := rec.of(EventExpired)[0]
	require.NotNil(t, expired.Session)
	assert.Equal(t, types.StateExpired, expired.Session.State)
	assert.Equal(t, types.StateExpired, g.State())

	err := g.Start(context.Background())
	assert.True(t, types.IsCode(err, types.ErrSessionClosed))

	g.Reset()
	assert.Equal(t, types.StateIdle, g.State())
}

func TestResetGeneratesFreshVendorField(t *testing.T) {
	g := New(WithTokenGenerator(sequenceTokens()))
	g.Recipient(testRecipient).Peers([]types.Peer{{IP: "10.0.0.1"}})

	first := g.ToObject().Transfer.VendorField
	s := g.Reset().ToObject()

	assert.NotEqual(t, first, s.Transfer.VendorField)
	assert.Equal(t, "tok-2", s.Transfer.VendorField)
	assert.Empty(t, s.Transfer.Recipient)
	assert.Empty(t, s.Network.Peers)
	assert.True(t, s.AutoDiscoverPeers)
}

func TestHandlerPanicDoesNotStopDelivery(t *testing.T) {
	g, rec := newTestGateway(&fakeSeeds{err: errors.New("down")}, &fakeNode{}, &fakeRates{}, WithRetry(1, 0))
	g.On(EventAborted, func(Event) { panic("boom") })
	g.Recipient(testRecipient).Amount(decimal.NewFromInt(1))

	_ = g.Prepare(context.Background())
	assert.Equal(t, []EventKind{EventError, EventAborted}, rec.kinds())
}

func ptr(v float64) *float64 { return &v }

// redirectClient sends every connection to srv regardless of the host and
// port in the request URL.
func redirectClient(srv *httptest.Server) *http.Client {
	addr := srv.Listener.Addr().String()
	dialer := &net.Dialer{Timeout: time.Second}
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
		},
	}
}

func TestEndToEndCompletes(t *testing.T) {
	var txCalls atomic.Int32
	var hosts sync.Map

	mux := http.NewServeMux()
	mux.HandleFunc("/devnet.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, types.AcceptHeader, r.Header.Get("Accept"))
		w.Write([]byte(`[{"ip":"10.0.0.1","port":4002}]`))
	})
	mux.HandleFunc("/api/v2/peers", func(w http.ResponseWriter, r *http.Request) {
		hosts.Store("peers:"+r.Host, true)
		w.Write([]byte(`{"data":[{"ip":"10.0.0.2","port":4003,"latency":10},{"ip":"10.0.0.3","port":4003,"latency":900}]}`))
	})
	mux.HandleFunc("/data/histoday", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "USD", r.URL.Query().Get("fsym"))
		assert.Equal(t, "ARK", r.URL.Query().Get("tsym"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"Response":"Success","Data":[{"time":1,"low":0.2},{"time":2,"low":0.1}]}`))
	})
	mux.HandleFunc("/api/v2/wallets/"+testRecipient+"/transactions/received", func(w http.ResponseWriter, r *http.Request) {
		hosts.Store("txs:"+r.Host, true)
		if txCalls.Add(1) < 2 {
			w.Write([]byte(`{"data":[{"id":"other","amount":"100000000","recipient":"` + testRecipient + `","vendorField":"someone else"}]}`))
			return
		}
		w.Write([]byte(`{"data":[{"id":"paid","amount":"100000000","recipient":"` + testRecipient + `","vendorField":"` + testVendorField + `"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := New(
		WithHTTPClient(redirectClient(srv)),
		WithRateSource("http://rates.test/data/histoday"),
		WithPollInterval(5*time.Millisecond),
		WithTimeout(time.Second),
	)
	rec := &recorder{}
	g.OnAny(rec.record)

	g.Recipient(testRecipient).
		Amount(decimal.NewFromInt(10)).
		VendorField(testVendorField).
		Seeds("ark", map[string]string{"devnet": "http://seeds.test/devnet.json"})

	require.NoError(t, g.Start(context.Background()))
	waitDone(t, g)

	assert.Equal(t, []EventKind{EventStarted, EventCompleted}, rec.kinds())

	started := rec.of(EventStarted)[0].Session
	require.NotNil(t, started)
	assert.True(t, started.Started)
	assert.Equal(t, types.StatePolling, started.State)
	assert.Equal(t, []types.Peer{{IP: "10.0.0.2", Port: 4003, Protocol: "http"}}, started.Network.Peers)
	assert.True(t, started.Transfer.Amounts.Crypto.Equal(decimal.NewFromInt(1)))

	completed := rec.of(EventCompleted)[0].Transaction
	require.NotNil(t, completed)
	assert.Equal(t, "paid", completed.ID)

	_, ok := hosts.Load("peers:10.0.0.1:4003")
	assert.True(t, ok)
	_, ok = hosts.Load("txs:10.0.0.2:4003")
	assert.True(t, ok)

	assert.Equal(t, types.StateCompleted, g.State())
	assert.True(t, types.IsCode(g.Start(context.Background()), types.ErrSessionClosed))
}

func TestNewFromConfig(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Network = "mainnet"
	cfg.Currency = "EUR"
	cfg.LogBackend = "logrus"

	g, err := NewFromConfig(cfg, WithTokenGenerator(sequenceTokens()))
	require.NoError(t, err)

	s := g.ToObject()
	assert.Equal(t, "mainnet", s.Network.Name)
	assert.Equal(t, "EUR", s.Transfer.Currency)
	assert.Equal(t, "tok-1", s.Transfer.VendorField)

	cfg.RetryCount = 50
	_, err = NewFromConfig(cfg)
	assert.True(t, types.IsCode(err, types.ErrConfigError))
}
