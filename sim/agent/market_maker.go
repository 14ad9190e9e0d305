package agent

import (
	"github.com/lobsim/lobsim/sim/book"
)

// MarketMaker keeps a two-sided quote around the mid, replacing it every
// RefreshInterval of simulated time. It draws no random numbers.
type MarketMaker struct {
	id          uint64
	cfg         MarketMakerConfig
	seq         uint64
	quoted      bool
	lastRefresh int64
	live        *orderTracker
}

// NewMarketMaker creates a market maker. cfg is assumed validated.
func NewMarketMaker(id uint64, cfg MarketMakerConfig) *MarketMaker {
	return &MarketMaker{id: id, cfg: cfg, live: newOrderTracker()}
}

func (m *MarketMaker) ID() uint64   { return m.id }
func (m *MarketMaker) Name() string { return "market_maker" }

// Update cancels the outstanding quotes and posts a fresh pair when the
// refresh interval has elapsed (or on the first call).
func (m *MarketMaker) Update(now int64, view MarketView) []Intent {
	if m.quoted && now-m.lastRefresh < m.cfg.RefreshInterval {
		return nil
	}
	m.quoted = true
	m.lastRefresh = now

	stale := m.live.live()
	intents := make([]Intent, 0, len(stale)+2)
	for _, id := range stale {
		intents = append(intents, Intent{Kind: book.Cancel, OrderID: id})
		m.live.drop(id)
	}

	bid, ask := m.Quotes(view)
	for _, q := range [...]struct {
		side  book.Side
		price int64
	}{{book.Buy, bid}, {book.Sell, ask}} {
		m.seq++
		id := OrderID(m.id, m.seq)
		m.live.add(id, m.cfg.Quantity)
		intents = append(intents, Intent{
			Kind:     book.Limit,
			Side:     q.side,
			Price:    q.price,
			Quantity: m.cfg.Quantity,
			OrderID:  id,
		})
	}
	return intents
}

// Quotes computes the bid and ask the maker would post for view. The quote
// straddles the mid by ceil(spread/2) on each side. Beyond MaxInventory both
// prices shift by round(inventory*InventoryPenalty) ticks, down when long and
// up when short.
func (m *MarketMaker) Quotes(view MarketView) (bid, ask int64) {
	mid := view.Mid()
	half := (m.cfg.Spread + 1) / 2
	bid, ask = mid-half, mid+half

	inv := view.Self.Inventory
	if abs64(inv) > m.cfg.MaxInventory {
		skew := roundToTicks(float64(inv) * m.cfg.InventoryPenalty)
		bid -= skew
		ask -= skew
	}
	if bid < 1 {
		bid = 1
	}
	if ask <= bid {
		ask = bid + 1
	}
	return bid, ask
}

func (m *MarketMaker) OnExecution(e Execution) {
	switch e.Kind {
	case Fill:
		m.live.fill(e.OrderID, e.Quantity)
	case Reject:
		m.live.drop(e.OrderID)
	}
}

// LiveOrders lists the maker's tracked resting quotes, oldest first.
func (m *MarketMaker) LiveOrders() []uint64 { return m.live.live() }

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
