package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"herd/internal/config"
	"herd/internal/market"
	"herd/internal/wallet"
)

// Binance trades on the spot market.
type Binance struct {
	client     *binance.Client
	symbol     string
	baseAsset  string
	quoteAsset string
	defaultFee float64
}

func NewBinance(cfg config.Exchange) (*Binance, error) {
	client := binance.NewClient(cfg.APIKey, cfg.APISecret)
	if cfg.Testnet {
		// SetApiEndpoint returns the client for chaining, not an error.
		client.SetApiEndpoint("https://testnet.binance.vision")
	}

	quote := strings.ToUpper(cfg.Currency)
	symbol := strings.ToUpper(cfg.Symbol)
	base := strings.TrimSuffix(symbol, quote)
	if base == symbol || base == "" {
		return nil, fmt.Errorf("symbol %q does not end in quote asset %q", symbol, quote)
	}

	return &Binance{
		client:     client,
		symbol:     symbol,
		baseAsset:  base,
		quoteAsset: quote,
		defaultFee: cfg.Fee,
	}, nil
}

func (b *Binance) Ticker(ctx context.Context) (market.Raw, error) {
	stats, err := b.client.NewListPriceChangeStatsService().Symbol(b.symbol).Do(ctx)
	if err != nil {
		return market.Raw{}, fmt.Errorf("fetch ticker: %w", err)
	}
	if len(stats) == 0 {
		return market.Raw{}, fmt.Errorf("no ticker stats for %s", b.symbol)
	}
	s := stats[0]
	return market.Raw{
		Time: time.Now().UTC(),
		Last: parsePrice(s.LastPrice),
		High: parsePrice(s.HighPrice),
		Low:  parsePrice(s.LowPrice),
		Bid:  parsePrice(s.BidPrice),
		Ask:  parsePrice(s.AskPrice),
	}, nil
}

func (b *Binance) Balance(ctx context.Context) (wallet.Raw, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return wallet.Raw{}, fmt.Errorf("fetch balance: %w", err)
	}

	raw := wallet.Raw{Fee: b.defaultFee}
	if account.MakerCommission > 0 {
		// Commission arrives in hundredths of a percent.
		raw.Fee = float64(account.MakerCommission) / 100
	}
	for _, balance := range account.Balances {
		switch balance.Asset {
		case b.baseAsset:
			raw.BTCAvailable = parsePrice(balance.Free)
			raw.BTCReserved = parsePrice(balance.Locked)
		case b.quoteAsset:
			raw.CurrencyAvailable = parsePrice(balance.Free)
			raw.CurrencyReserved = parsePrice(balance.Locked)
		}
	}
	return raw, nil
}

func (b *Binance) Buy(ctx context.Context, amount, price float64) (OrderResult, error) {
	return b.placeOrder(ctx, binance.SideTypeBuy, amount, price)
}

func (b *Binance) Sell(ctx context.Context, amount, price float64) (OrderResult, error) {
	return b.placeOrder(ctx, binance.SideTypeSell, amount, price)
}

func (b *Binance) placeOrder(ctx context.Context, side binance.SideType, amount, price float64) (OrderResult, error) {
	order, err := b.client.NewCreateOrderService().
		Symbol(b.symbol).
		Side(side).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(strconv.FormatFloat(amount, 'f', 7, 64)).
		Price(strconv.FormatFloat(price, 'f', 2, 64)).
		Do(ctx)
	if err != nil {
		return OrderResult{}, fmt.Errorf("place %s order: %w", side, err)
	}
	return OrderResult{ID: strconv.FormatInt(order.OrderID, 10)}, nil
}

func parsePrice(value string) float64 {
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}
