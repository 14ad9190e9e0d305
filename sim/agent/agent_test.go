package agent

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lobsim/lobsim/sim/book"
)

func twoSided(bid, ask int64) MarketView {
	return MarketView{
		Snapshot:  book.MarketSnapshot{BestBid: bid, BestAsk: ask, BestBidQty: 10, BestAskQty: 10},
		Reference: 10_000,
	}
}

func TestOrderID_EncodesOwner(t *testing.T) {
	id := OrderID(NoiseTraderID, 12345)
	assert.Equal(t, NoiseTraderID, OwnerOf(id))
	assert.NotEqual(t, OrderID(TakerID, 12345), id)
}

func TestAgentState_Apply_CashFlow(t *testing.T) {
	var buyer, seller AgentState
	buyer.Apply(book.Buy, 100, 5)
	seller.Apply(book.Sell, 100, 5)

	assert.Equal(t, int64(5), buyer.Inventory)
	assert.Equal(t, -500.0, buyer.PnL)
	assert.Equal(t, int64(-5), seller.Inventory)
	assert.Equal(t, 500.0, seller.PnL)
	assert.Zero(t, buyer.Inventory+seller.Inventory)
}

func TestMarketView_Mid_FallsBackToReference(t *testing.T) {
	assert.Equal(t, int64(100), twoSided(99, 101).Mid())
	oneSided := MarketView{Snapshot: book.MarketSnapshot{BestBid: 99}, Reference: 250}
	assert.Equal(t, int64(250), oneSided.Mid())
}

func TestMarketMaker_Quotes(t *testing.T) {
	tests := []struct {
		name      string
		spread    int64
		inventory int64
		view      MarketView
		wantBid   int64
		wantAsk   int64
	}{
		{"even spread", 2, 0, twoSided(99, 101), 99, 101},
		{"odd spread rounds outward", 3, 0, twoSided(99, 101), 98, 102},
		{"inventory within limit is ignored", 2, 1000, twoSided(99, 101), 99, 101},
		{"long skews both quotes down", 2, 2000, twoSided(99, 101), 97, 99},
		{"short skews both quotes up", 2, -2000, twoSided(99, 101), 101, 103},
		{"empty book uses reference", 2, 0, MarketView{Reference: 500}, 499, 501},
		{"bid clamped to one tick", 4, 0, MarketView{Reference: 1}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMarketMakerConfig()
			cfg.Spread = tt.spread
			m := NewMarketMaker(MarketMakerID, cfg)
			view := tt.view
			view.Self.Inventory = tt.inventory
			bid, ask := m.Quotes(view)
			assert.Equal(t, tt.wantBid, bid)
			assert.Equal(t, tt.wantAsk, ask)
			assert.Less(t, bid, ask)
		})
	}
}

func TestMarketMaker_RefreshCadence(t *testing.T) {
	// GIVEN a maker refreshing every 50µs
	cfg := DefaultMarketMakerConfig()
	m := NewMarketMaker(MarketMakerID, cfg)
	view := twoSided(99, 101)

	// WHEN first called
	first := m.Update(0, view)

	// THEN it posts a bid and an ask and nothing else
	require.Len(t, first, 2)
	assert.Equal(t, book.Limit, first[0].Kind)
	assert.Equal(t, book.Buy, first[0].Side)
	assert.Equal(t, book.Sell, first[1].Side)
	assert.Equal(t, cfg.Quantity, first[0].Quantity)
	assert.Equal(t, MarketMakerID, OwnerOf(first[0].OrderID))

	// AND stays quiet until the interval has elapsed
	assert.Empty(t, m.Update(cfg.RefreshInterval-1, view))

	// WHEN the interval elapses THEN both live quotes are cancelled before requoting
	again := m.Update(cfg.RefreshInterval, view)
	require.Len(t, again, 4)
	assert.Equal(t, Intent{Kind: book.Cancel, OrderID: first[0].OrderID}, again[0])
	assert.Equal(t, Intent{Kind: book.Cancel, OrderID: first[1].OrderID}, again[1])
	assert.Equal(t, []uint64{again[2].OrderID, again[3].OrderID}, m.LiveOrders())
}

func TestMarketMaker_FilledQuoteIsNotCancelled(t *testing.T) {
	cfg := DefaultMarketMakerConfig()
	m := NewMarketMaker(MarketMakerID, cfg)
	first := m.Update(0, twoSided(99, 101))

	m.OnExecution(Execution{OrderID: first[0].OrderID, Kind: Fill, Quantity: cfg.Quantity, Price: 99})
	m.OnExecution(Execution{OrderID: first[1].OrderID, Kind: Fill, Quantity: 1, Price: 101})

	again := m.Update(cfg.RefreshInterval, twoSided(99, 101))
	require.Len(t, again, 3)
	assert.Equal(t, Intent{Kind: book.Cancel, OrderID: first[1].OrderID}, again[0])
}

func TestMarketMaker_TrackerStaysBoundedOverManyRefreshes(t *testing.T) {
	// GIVEN a maker whose quotes are cancelled at every refresh
	cfg := DefaultMarketMakerConfig()
	m := NewMarketMaker(MarketMakerID, cfg)

	// WHEN it requotes thousands of times
	for i := int64(0); i < 5000; i++ {
		m.Update(i*cfg.RefreshInterval, twoSided(99, 101))
	}

	// THEN only the current pair is tracked and the queue holds nothing else
	assert.Len(t, m.LiveOrders(), 2)
	assert.Len(t, m.live.queue, 2)
	assert.Zero(t, m.live.head)
}

func TestOrderTracker_FillsOutOfOrderDoNotAccumulate(t *testing.T) {
	// GIVEN a tracker where nine in ten orders fill without ever being the oldest
	tr := newOrderTracker()
	for i := uint64(1); i <= 10_000; i++ {
		tr.add(i, 5)
		if i%10 != 0 {
			tr.fill(i, 5)
		}
	}
	tr.drop(10)

	// THEN dead ids are compacted away as the queue grows
	assert.Equal(t, 999, tr.len())
	assert.LessOrEqual(t, len(tr.queue)-tr.head, 2*tr.len()+128)

	// AND submission order survives compaction
	id, ok := tr.oldest()
	require.True(t, ok)
	assert.Equal(t, uint64(20), id)
}

func TestTaker_MarketOrders(t *testing.T) {
	cfg := DefaultTakerConfig()
	cfg.Intensity = 3
	cfg.SideBias = 1
	tk := NewTaker(TakerID, cfg, rand.New(rand.NewSource(7)))

	total := 0
	for step := int64(0); step < 200; step++ {
		for _, in := range tk.Update(step, twoSided(99, 101)) {
			total++
			assert.Equal(t, book.Market, in.Kind)
			assert.Equal(t, book.Buy, in.Side)
			assert.GreaterOrEqual(t, in.Quantity, int64(1))
			assert.Equal(t, TakerID, OwnerOf(in.OrderID))
		}
	}
	assert.InDelta(t, 600, total, 120, "arrivals should average the intensity")
}

func TestTaker_LimitOrdersCrossAtOppositeBest(t *testing.T) {
	cfg := DefaultTakerConfig()
	cfg.Intensity = 5
	cfg.UseMarketOrders = false
	tk := NewTaker(TakerID, cfg, rand.New(rand.NewSource(3)))

	seen := 0
	for step := int64(0); step < 20; step++ {
		for _, in := range tk.Update(step, twoSided(99, 101)) {
			seen++
			require.Equal(t, book.Limit, in.Kind)
			if in.Side == book.Buy {
				assert.Equal(t, int64(101), in.Price)
			} else {
				assert.Equal(t, int64(99), in.Price)
			}
		}
	}
	require.Positive(t, seen)

	assert.Equal(t, int64(777), crossingPrice(book.Buy, MarketView{Reference: 777}))
}

func TestTaker_SameSeedSameIntents(t *testing.T) {
	a := NewTaker(TakerID, DefaultTakerConfig(), rand.New(rand.NewSource(42)))
	b := NewTaker(TakerID, DefaultTakerConfig(), rand.New(rand.NewSource(42)))
	for step := int64(0); step < 100; step++ {
		require.Equal(t, a.Update(step, twoSided(99, 101)), b.Update(step, twoSided(99, 101)))
	}
}

func TestNoiseTrader_PricesAroundMid(t *testing.T) {
	cfg := DefaultNoiseTraderConfig()
	cfg.CancelIntensity = 0
	nt := NewNoiseTrader(NoiseTraderID, cfg, rand.New(rand.NewSource(11)))

	for step := int64(0); step < 200; step++ {
		for _, in := range nt.Update(step, twoSided(995, 1005)) {
			require.Equal(t, book.Limit, in.Kind)
			assert.InDelta(t, 1000, in.Price, 8*cfg.PriceVolatility)
			assert.GreaterOrEqual(t, in.Quantity, int64(1))
		}
	}
}

func TestNoiseTrader_PriceFloorIsOneTick(t *testing.T) {
	cfg := DefaultNoiseTraderConfig()
	cfg.PriceVolatility = 50
	cfg.CancelIntensity = 0
	nt := NewNoiseTrader(NoiseTraderID, cfg, rand.New(rand.NewSource(5)))
	for step := int64(0); step < 100; step++ {
		for _, in := range nt.Update(step, MarketView{Reference: 1}) {
			assert.GreaterOrEqual(t, in.Price, int64(1))
		}
	}
}

func TestNoiseTrader_CancelsOldestLiveOrderFirst(t *testing.T) {
	// GIVEN a noise trader holding three resting orders, the first one filled
	cfg := DefaultNoiseTraderConfig()
	cfg.CancelProbability = 1
	nt := NewNoiseTrader(NoiseTraderID, cfg, rand.New(rand.NewSource(1)))
	nt.cancels = NewArrivalSampler(0)
	nt.limits = NewArrivalSampler(0)
	ids := []uint64{OrderID(NoiseTraderID, 1), OrderID(NoiseTraderID, 2), OrderID(NoiseTraderID, 3)}
	for _, id := range ids {
		nt.live.add(id, 10)
	}
	nt.OnExecution(Execution{OrderID: ids[0], Kind: Fill, Quantity: 10, Price: 100})

	// WHEN cancel arrivals are plentiful
	nt.cancels = NewArrivalSampler(20)
	var cancelled []uint64
	for step := int64(0); len(cancelled) < 2 && step < 50; step++ {
		for _, in := range nt.Update(step, twoSided(99, 101)) {
			require.Equal(t, book.Cancel, in.Kind)
			cancelled = append(cancelled, in.OrderID)
		}
	}

	// THEN the surviving orders are cancelled oldest first, each exactly once
	assert.Equal(t, ids[1:], cancelled)
	assert.Empty(t, nt.LiveOrders())
}

func TestNoiseTrader_RejectForgetsOrder(t *testing.T) {
	nt := NewNoiseTrader(NoiseTraderID, DefaultNoiseTraderConfig(), rand.New(rand.NewSource(1)))
	nt.live.add(OrderID(NoiseTraderID, 1), 5)
	nt.OnExecution(Execution{OrderID: OrderID(NoiseTraderID, 1), Kind: Reject})
	assert.Empty(t, nt.LiveOrders())
}

func TestArrivalSampler_MeanMatchesIntensity(t *testing.T) {
	for _, lambda := range []float64{0.2, 1.5, 8, 45} {
		rng := rand.New(rand.NewSource(42))
		s := NewArrivalSampler(lambda)
		n := 20000
		sum := 0
		for i := 0; i < n; i++ {
			c := s.Count(rng)
			require.GreaterOrEqual(t, c, 0)
			sum += c
		}
		mean := float64(sum) / float64(n)
		assert.InDelta(t, lambda, mean, 0.05*lambda+0.02, "lambda=%v", lambda)
	}
}

func TestArrivalSampler_ZeroIntensityDrawsNothing(t *testing.T) {
	a := rand.New(rand.NewSource(9))
	b := rand.New(rand.NewSource(9))
	assert.Zero(t, NewArrivalSampler(0).Count(a))
	assert.Equal(t, b.Int63(), a.Int63(), "zero intensity must not advance the stream")
}

func TestQuantitySampler_TruncatedAtOne(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewQuantitySampler(1, 20)
	for i := 0; i < 5000; i++ {
		require.GreaterOrEqual(t, s.Sample(rng), int64(1))
	}
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultMarketMakerConfig().Validate())
	require.NoError(t, DefaultTakerConfig().Validate())
	require.NoError(t, DefaultNoiseTraderConfig().Validate())

	mm := func(f func(*MarketMakerConfig)) error {
		c := DefaultMarketMakerConfig()
		f(&c)
		return c.Validate()
	}
	tk := func(f func(*TakerConfig)) error {
		c := DefaultTakerConfig()
		f(&c)
		return c.Validate()
	}
	nt := func(f func(*NoiseTraderConfig)) error {
		c := DefaultNoiseTraderConfig()
		f(&c)
		return c.Validate()
	}

	tests := []struct {
		name string
		err  error
	}{
		{"maker zero spread", mm(func(c *MarketMakerConfig) { c.Spread = 0 })},
		{"maker zero quantity", mm(func(c *MarketMakerConfig) { c.Quantity = 0 })},
		{"maker zero refresh", mm(func(c *MarketMakerConfig) { c.RefreshInterval = 0 })},
		{"maker negative max inventory", mm(func(c *MarketMakerConfig) { c.MaxInventory = -1 })},
		{"maker negative penalty", mm(func(c *MarketMakerConfig) { c.InventoryPenalty = -0.1 })},
		{"taker negative intensity", tk(func(c *TakerConfig) { c.Intensity = -1 })},
		{"taker side bias above one", tk(func(c *TakerConfig) { c.SideBias = 1.5 })},
		{"taker zero std", tk(func(c *TakerConfig) { c.QuantityStd = 0 })},
		{"taker zero mean", tk(func(c *TakerConfig) { c.QuantityMean = 0 })},
		{"noise negative limit intensity", nt(func(c *NoiseTraderConfig) { c.LimitIntensity = -0.5 })},
		{"noise negative cancel intensity", nt(func(c *NoiseTraderConfig) { c.CancelIntensity = -0.5 })},
		{"noise zero volatility", nt(func(c *NoiseTraderConfig) { c.PriceVolatility = 0 })},
		{"noise cancel probability below zero", nt(func(c *NoiseTraderConfig) { c.CancelProbability = -0.1 })},
		{"noise zero std", nt(func(c *NoiseTraderConfig) { c.QuantityStd = 0 })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.err)
		})
	}
}
