package marketdata

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
)

// BinanceFetcher serves crypto quotes and klines through the binance client.
// Public market-data endpoints need no credentials.
type BinanceFetcher struct {
	client *binance.Client
}

// NewBinanceFetcher creates a fetcher; keys may be empty for public data.
func NewBinanceFetcher(apiKey, secretKey string) *BinanceFetcher {
	return &BinanceFetcher{
		client: binance.NewClient(apiKey, secretKey),
	}
}

// Fetch implements ProviderFetcher. Supported functions: "ticker_price"
// (param symbol) and "klines" (params symbol, interval, limit).
func (f *BinanceFetcher) Fetch(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	switch function {
	case "ticker_price":
		return f.tickerPrice(ctx, params)
	case "klines":
		return f.klines(ctx, params)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported binance function %q", function)
	}
}

func (f *BinanceFetcher) tickerPrice(ctx context.Context, params map[string]string) ([]byte, error) {
	symbol := params["symbol"]
	if symbol == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "binance ticker_price requires a symbol param")
	}

	prices, err := f.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeExternalFetch, err, "binance ticker_price for %s failed", symbol)
	}

	payload, err := json.Marshal(prices)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExternalFetch, "failed to encode binance payload", err)
	}

	return payload, nil
}

func (f *BinanceFetcher) klines(ctx context.Context, params map[string]string) ([]byte, error) {
	symbol := params["symbol"]
	if symbol == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "binance klines requires a symbol param")
	}

	interval := params["interval"]
	if interval == "" {
		interval = "1m"
	}

	limit := 100
	if raw := params["limit"]; raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid limit", err)
		}

		limit = parsed
	}

	klines, err := f.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeExternalFetch, err, "binance klines for %s failed", symbol)
	}

	payload, err := json.Marshal(klines)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExternalFetch, "failed to encode binance payload", err)
	}

	return payload, nil
}
