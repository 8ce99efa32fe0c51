package marketdata

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
)

// PolygonFetcher serves aggregate bars through the official polygon client.
type PolygonFetcher struct {
	client *polygon.Client
}

// NewPolygonFetcher creates a fetcher for the given API key.
func NewPolygonFetcher(apiKey string) (*PolygonFetcher, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon api key is required")
	}

	return &PolygonFetcher{
		client: polygon.New(apiKey),
	}, nil
}

// polygonBar is the payload shape persisted for aggregate bars.
type polygonBar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Fetch implements ProviderFetcher. Supported functions: "aggregates" with
// params ticker, from, to (RFC3339 dates), multiplier.
func (f *PolygonFetcher) Fetch(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	if function != "aggregates" {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported polygon function %q", function)
	}

	ticker := params["ticker"]
	if ticker == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon aggregates requires a ticker param")
	}

	from, err := time.Parse("2006-01-02", params["from"])
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid from date", err)
	}

	to, err := time.Parse("2006-01-02", params["to"])
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid to date", err)
	}

	multiplier := 1
	if raw := params["multiplier"]; raw != "" {
		if multiplier, err = strconv.Atoi(raw); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid multiplier", err)
		}
	}

	//nolint:exhaustruct // third-party struct with many optional fields
	aggsParams := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: multiplier,
		Timespan:   models.Day,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithLimit(50000)

	iter := f.client.ListAggs(ctx, aggsParams)

	var bars []polygonBar

	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, polygonBar{
			Time:   time.Time(agg.Timestamp),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}

	if iter.Err() != nil {
		return nil, errors.Wrapf(errors.ErrCodeExternalFetch, iter.Err(), "polygon aggregates for %s failed", ticker)
	}

	payload, err := json.Marshal(bars)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeExternalFetch, "failed to encode polygon payload", err)
	}

	return payload, nil
}
