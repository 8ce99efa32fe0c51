package marketdata

import (
	"context"

	"github.com/go-resty/resty/v2"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantageFetcher calls the Alpha Vantage query endpoint. Every function
// maps onto the same URL with a `function` query parameter.
type AlphaVantageFetcher struct {
	client *resty.Client
	apiKey string
}

// NewAlphaVantageFetcher creates a fetcher for the given API key.
func NewAlphaVantageFetcher(apiKey string) (*AlphaVantageFetcher, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "alpha vantage api key is required")
	}

	return &AlphaVantageFetcher{
		client: resty.New().SetBaseURL(alphaVantageBaseURL),
		apiKey: apiKey,
	}, nil
}

// Fetch implements ProviderFetcher.
func (f *AlphaVantageFetcher) Fetch(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	request := f.client.R().
		SetContext(ctx).
		SetQueryParam("function", function).
		SetQueryParam("apikey", f.apiKey)

	for key, value := range params {
		request.SetQueryParam(key, value)
	}

	response, err := request.Get("")
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeExternalFetch, err, "alpha vantage %s request failed", function)
	}

	if response.IsError() {
		return nil, errors.Newf(errors.ErrCodeExternalFetch, "alpha vantage %s returned status %d", function, response.StatusCode())
	}

	return response.Body(), nil
}
