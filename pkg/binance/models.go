package binance

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"

	"nakula/pkg/core"
)

// serverTimeResponse is the /api/v3/time payload.
type serverTimeResponse struct {
	ServerTime int64 `json:"serverTime"`
}

// exchangeInfoResponse is the /api/v3/exchangeInfo payload, reduced to the
// fields the client consumes.
type exchangeInfoResponse struct {
	Timezone   string       `json:"timezone"`
	ServerTime int64        `json:"serverTime"`
	Symbols    []symbolInfo `json:"symbols"`
}

type symbolInfo struct {
	Symbol     string         `json:"symbol"`
	Status     string         `json:"status"`
	BaseAsset  string         `json:"baseAsset"`
	QuoteAsset string         `json:"quoteAsset"`
	OrderTypes []string       `json:"orderTypes"`
	Filters    []symbolFilter `json:"filters"`
}

// symbolFilter is the union of all filter shapes the exchange publishes;
// FilterType decides which fields are meaningful.
type symbolFilter struct {
	FilterType  string      `json:"filterType"`
	MinPrice    apd.Decimal `json:"minPrice"`
	MaxPrice    apd.Decimal `json:"maxPrice"`
	TickSize    apd.Decimal `json:"tickSize"`
	MinQuantity apd.Decimal `json:"minQty"`
	MaxQuantity apd.Decimal `json:"maxQty"`
	StepSize    apd.Decimal `json:"stepSize"`
	MinNotional apd.Decimal `json:"minNotional"`
}

// Filter type discriminators from the exchangeInfo payload.
const (
	filterTypePrice         = "PRICE_FILTER"
	filterTypeLotSize       = "LOT_SIZE"
	filterTypeMarketLotSize = "MARKET_LOT_SIZE"
	filterTypeMinNotional   = "MIN_NOTIONAL"
	filterTypeNotional      = "NOTIONAL"
)

// toSnapshot converts the raw exchange info into an immutable rules snapshot.
func (r *exchangeInfoResponse) toSnapshot() *InfoSnapshot {
	symbols := make(map[string]SymbolRules, len(r.Symbols))
	for _, s := range r.Symbols {
		rules := SymbolRules{
			Symbol:     s.Symbol,
			OrderTypes: make([]core.OrderType, 0, len(s.OrderTypes)),
		}
		for _, name := range s.OrderTypes {
			if t, ok := core.ParseOrderType(name); ok {
				rules.OrderTypes = append(rules.OrderTypes, t)
			}
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case filterTypePrice:
				rules.Price = &PriceFilter{
					MinPrice: f.MinPrice,
					MaxPrice: f.MaxPrice,
					TickSize: f.TickSize,
				}
			case filterTypeLotSize:
				rules.LotSize = &LotSizeFilter{
					MinQuantity: f.MinQuantity,
					MaxQuantity: f.MaxQuantity,
					StepSize:    f.StepSize,
				}
			case filterTypeMarketLotSize:
				rules.MarketLotSize = &LotSizeFilter{
					MinQuantity: f.MinQuantity,
					MaxQuantity: f.MaxQuantity,
					StepSize:    f.StepSize,
				}
			case filterTypeMinNotional, filterTypeNotional:
				notional := f.MinNotional
				rules.MinNotional = &notional
			}
		}
		symbols[strings.ToUpper(s.Symbol)] = rules
	}
	return &InfoSnapshot{
		Symbols:   symbols,
		FetchedAt: time.Now(),
	}
}

// tickerResponse is the /api/v3/ticker/24hr payload.
type tickerResponse struct {
	Symbol    string      `json:"symbol"`
	BidPrice  apd.Decimal `json:"bidPrice"`
	AskPrice  apd.Decimal `json:"askPrice"`
	LastPrice apd.Decimal `json:"lastPrice"`
	HighPrice apd.Decimal `json:"highPrice"`
	LowPrice  apd.Decimal `json:"lowPrice"`
	Volume    apd.Decimal `json:"volume"`
	CloseTime int64       `json:"closeTime"`
}

func (t *tickerResponse) toTicker() *core.Ticker {
	return &core.Ticker{
		Symbol:    t.Symbol,
		Bid:       t.BidPrice,
		Ask:       t.AskPrice,
		Last:      t.LastPrice,
		High:      t.HighPrice,
		Low:       t.LowPrice,
		Volume:    t.Volume,
		Timestamp: time.UnixMilli(t.CloseTime),
	}
}

// depthResponse is the /api/v3/depth payload. Levels arrive as
// [price, quantity] string pairs.
type depthResponse struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

func (d *depthResponse) toOrderBook(symbol string) (*core.OrderBook, error) {
	book := &core.OrderBook{
		Symbol:       symbol,
		LastUpdateID: d.LastUpdateID,
		Bids:         make([]core.OrderBookLevel, 0, len(d.Bids)),
		Asks:         make([]core.OrderBookLevel, 0, len(d.Asks)),
		Timestamp:    time.Now(),
	}
	for _, raw := range d.Bids {
		level, err := parseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("parse bid: %w", err)
		}
		book.Bids = append(book.Bids, level)
	}
	for _, raw := range d.Asks {
		level, err := parseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("parse ask: %w", err)
		}
		book.Asks = append(book.Asks, level)
	}
	return book, nil
}

func parseLevel(raw [2]string) (core.OrderBookLevel, error) {
	price, _, err := apd.NewFromString(raw[0])
	if err != nil {
		return core.OrderBookLevel{}, fmt.Errorf("price %q: %w", raw[0], err)
	}
	qty, _, err := apd.NewFromString(raw[1])
	if err != nil {
		return core.OrderBookLevel{}, fmt.Errorf("quantity %q: %w", raw[1], err)
	}
	return core.OrderBookLevel{Price: *price, Quantity: *qty}, nil
}

// tradeResponse is one element of the /api/v3/trades payload.
type tradeResponse struct {
	ID           int64       `json:"id"`
	Price        apd.Decimal `json:"price"`
	Qty          apd.Decimal `json:"qty"`
	Time         int64       `json:"time"`
	IsBuyerMaker bool        `json:"isBuyerMaker"`
}

func (t *tradeResponse) toTrade(symbol string) core.Trade {
	return core.Trade{
		ID:        t.ID,
		Symbol:    symbol,
		Price:     t.Price,
		Quantity:  t.Qty,
		IsBuyer:   !t.IsBuyerMaker,
		Timestamp: time.UnixMilli(t.Time),
	}
}

// myTradeResponse is one element of the /api/v3/myTrades payload.
type myTradeResponse struct {
	ID              int64       `json:"id"`
	OrderID         int64       `json:"orderId"`
	Symbol          string      `json:"symbol"`
	Price           apd.Decimal `json:"price"`
	Qty             apd.Decimal `json:"qty"`
	Commission      apd.Decimal `json:"commission"`
	CommissionAsset string      `json:"commissionAsset"`
	Time            int64       `json:"time"`
	IsBuyer         bool        `json:"isBuyer"`
}

func (t *myTradeResponse) toTrade() core.Trade {
	return core.Trade{
		ID:        t.ID,
		OrderID:   t.OrderID,
		Symbol:    t.Symbol,
		Price:     t.Price,
		Quantity:  t.Qty,
		Fee:       t.Commission,
		FeeAsset:  t.CommissionAsset,
		IsBuyer:   t.IsBuyer,
		Timestamp: time.UnixMilli(t.Time),
	}
}

// klineResponse is one element of the /api/v3/klines payload: a positional
// array mixing numbers and decimal strings.
type klineResponse []any

func (k klineResponse) toKline(symbol string) (core.Kline, error) {
	if len(k) < 9 {
		return core.Kline{}, fmt.Errorf("kline has %d fields, want at least 9", len(k))
	}

	openTime, err := klineInt(k, 0)
	if err != nil {
		return core.Kline{}, err
	}
	closeTime, err := klineInt(k, 6)
	if err != nil {
		return core.Kline{}, err
	}
	numTrades, err := klineInt(k, 8)
	if err != nil {
		return core.Kline{}, err
	}

	kline := core.Kline{
		Symbol:    symbol,
		OpenTime:  time.UnixMilli(openTime),
		CloseTime: time.UnixMilli(closeTime),
		NumTrades: numTrades,
	}

	for _, field := range []struct {
		idx int
		dst *apd.Decimal
	}{
		{1, &kline.Open},
		{2, &kline.High},
		{3, &kline.Low},
		{4, &kline.Close},
		{5, &kline.Volume},
	} {
		d, err := klineDecimal(k, field.idx)
		if err != nil {
			return core.Kline{}, err
		}
		*field.dst = *d
	}

	return kline, nil
}

func klineInt(k klineResponse, idx int) (int64, error) {
	f, ok := k[idx].(float64)
	if !ok {
		return 0, fmt.Errorf("kline field %d: expected number, got %T", idx, k[idx])
	}
	return int64(f), nil
}

func klineDecimal(k klineResponse, idx int) (*apd.Decimal, error) {
	s, ok := k[idx].(string)
	if !ok {
		return nil, fmt.Errorf("kline field %d: expected string, got %T", idx, k[idx])
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("kline field %d: %w", idx, err)
	}
	return d, nil
}

// orderResponse is the order shape shared by placement, query, and cancel
// endpoints.
type orderResponse struct {
	Symbol        string      `json:"symbol"`
	OrderID       int64       `json:"orderId"`
	ClientOrderID string      `json:"clientOrderId"`
	OrigClientID  string      `json:"origClientOrderId"`
	Price         apd.Decimal `json:"price"`
	OrigQty       apd.Decimal `json:"origQty"`
	ExecutedQty   apd.Decimal `json:"executedQty"`
	Status        string      `json:"status"`
	Type          string      `json:"type"`
	Side          string      `json:"side"`
	TimeInForce   string      `json:"timeInForce"`
	TransactTime  int64       `json:"transactTime"`
	Time          int64       `json:"time"`
	UpdateTime    int64       `json:"updateTime"`
}

func (o *orderResponse) toOrder() *core.Order {
	order := &core.Order{
		ID:             o.OrderID,
		ClientOrderID:  o.ClientOrderID,
		Symbol:         o.Symbol,
		Price:          o.Price,
		Quantity:       o.OrigQty,
		FilledQuantity: o.ExecutedQty,
	}
	if order.ClientOrderID == "" {
		order.ClientOrderID = o.OrigClientID
	}

	switch o.Side {
	case "SELL":
		order.Side = core.SideSell
	default:
		order.Side = core.SideBuy
	}
	if t, ok := core.ParseOrderType(o.Type); ok {
		order.Type = t
	}
	switch o.Status {
	case "PARTIALLY_FILLED":
		order.Status = core.StatusPartiallyFilled
	case "FILLED":
		order.Status = core.StatusFilled
	case "PENDING_CANCEL":
		order.Status = core.StatusPendingCancel
	case "CANCELED":
		order.Status = core.StatusCanceled
	case "REJECTED":
		order.Status = core.StatusRejected
	case "EXPIRED":
		order.Status = core.StatusExpired
	default:
		order.Status = core.StatusNew
	}
	switch o.TimeInForce {
	case "IOC":
		order.TimeInForce = core.IOC
	case "FOK":
		order.TimeInForce = core.FOK
	default:
		order.TimeInForce = core.GTC
	}

	created := o.TransactTime
	if created == 0 {
		created = o.Time
	}
	if created != 0 {
		order.CreatedAt = time.UnixMilli(created)
	}
	if o.UpdateTime != 0 {
		order.UpdatedAt = time.UnixMilli(o.UpdateTime)
	} else {
		order.UpdatedAt = order.CreatedAt
	}
	return order
}

// accountResponse is the /api/v3/account payload.
type accountResponse struct {
	MakerCommission int64             `json:"makerCommission"`
	TakerCommission int64             `json:"takerCommission"`
	CanTrade        bool              `json:"canTrade"`
	CanWithdraw     bool              `json:"canWithdraw"`
	CanDeposit      bool              `json:"canDeposit"`
	UpdateTime      int64             `json:"updateTime"`
	Balances        []balanceResponse `json:"balances"`
}

type balanceResponse struct {
	Asset  string      `json:"asset"`
	Free   apd.Decimal `json:"free"`
	Locked apd.Decimal `json:"locked"`
}

// AccountInfo holds account-level permissions, commissions, and balances.
type AccountInfo struct {
	// MakerCommission is the maker fee in basis points.
	MakerCommission int64 `json:"maker_commission"`
	// TakerCommission is the taker fee in basis points.
	TakerCommission int64 `json:"taker_commission"`
	// CanTrade reports whether the account may place orders.
	CanTrade bool `json:"can_trade"`
	// CanWithdraw reports whether the account may withdraw funds.
	CanWithdraw bool `json:"can_withdraw"`
	// CanDeposit reports whether the account may deposit funds.
	CanDeposit bool `json:"can_deposit"`
	// UpdatedAt is when the account data was last changed.
	UpdatedAt time.Time `json:"updated_at"`
	// Balances lists the account's per-asset balances.
	Balances []core.Balance `json:"balances"`
}

func (a *accountResponse) toAccountInfo() *AccountInfo {
	info := &AccountInfo{
		MakerCommission: a.MakerCommission,
		TakerCommission: a.TakerCommission,
		CanTrade:        a.CanTrade,
		CanWithdraw:     a.CanWithdraw,
		CanDeposit:      a.CanDeposit,
		UpdatedAt:       time.UnixMilli(a.UpdateTime),
		Balances:        make([]core.Balance, 0, len(a.Balances)),
	}
	for _, b := range a.Balances {
		info.Balances = append(info.Balances, core.Balance{
			Asset:  b.Asset,
			Free:   b.Free,
			Locked: b.Locked,
		})
	}
	return info
}

// WithdrawResult is the enveloped payload of a withdrawal submission.
type WithdrawResult struct {
	// ID is the exchange-assigned withdrawal identifier.
	ID string `json:"id"`
}

// WithdrawEntry is one record of the withdrawal history.
type WithdrawEntry struct {
	ID        string      `json:"id"`
	Asset     string      `json:"asset"`
	Amount    apd.Decimal `json:"amount"`
	Address   string      `json:"address"`
	TxID      string      `json:"txId"`
	ApplyTime int64       `json:"applyTime"`
	// Status is the numeric withdrawal state published by the exchange.
	Status int `json:"status"`
}

// DepositEntry is one record of the deposit history.
type DepositEntry struct {
	Asset      string      `json:"asset"`
	Amount     apd.Decimal `json:"amount"`
	Address    string      `json:"address"`
	TxID       string      `json:"txId"`
	InsertTime int64       `json:"insertTime"`
	// Status is the numeric deposit state published by the exchange.
	Status int `json:"status"`
}

// TradeFee is the per-symbol commission schedule.
type TradeFee struct {
	Symbol string      `json:"symbol"`
	Maker  apd.Decimal `json:"maker"`
	Taker  apd.Decimal `json:"taker"`
}

// AssetDetail describes deposit/withdrawal properties of one asset.
type AssetDetail struct {
	MinWithdrawAmount apd.Decimal `json:"minWithdrawAmount"`
	DepositStatus     bool        `json:"depositStatus"`
	WithdrawFee       apd.Decimal `json:"withdrawFee"`
	WithdrawStatus    bool        `json:"withdrawStatus"`
	DepositTip        string      `json:"depositTip"`
}

// DustRow is one asset conversion within a dust transfer.
type DustRow struct {
	FromAsset        string      `json:"fromAsset"`
	Amount           apd.Decimal `json:"amount"`
	TransferedAmount apd.Decimal `json:"transferedAmount"`
	ServiceCharge    apd.Decimal `json:"serviceChargeAmount"`
	OperateTime      int64       `json:"operateTime"`
	TranID           int64       `json:"tranId"`
}

// DustLog is one dust transfer: a batch of small balances converted at once.
type DustLog struct {
	TransferedTotal apd.Decimal `json:"transfered_total"`
	ServiceCharge   apd.Decimal `json:"serviceChargeTotal"`
	OperateTime     int64       `json:"operateTime"`
	Rows            []DustRow   `json:"logs"`
}

// listenKeyResponse is the /api/v3/userDataStream payload.
type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}
