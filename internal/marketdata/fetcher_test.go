package marketdata

import (
	"context"
	"testing"

	"github.com/rxtech-lab/argo-desk/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type stubFetcher struct {
	payload []byte
	err     error
}

func (s *stubFetcher) Fetch(_ context.Context, _ string, _ map[string]string) ([]byte, error) {
	return s.payload, s.err
}

type RegistryTestSuite struct {
	suite.Suite
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (s *RegistryTestSuite) SetupTest() {
	s.registry = NewRegistry()
}

func (s *RegistryTestSuite) TestDispatchesToRegisteredProvider() {
	s.registry.Register("alpha_vantage", &stubFetcher{payload: []byte("data"), err: nil})

	payload, err := s.registry.Fetch(context.Background(), "alpha_vantage", "GLOBAL_QUOTE", nil)
	s.Require().NoError(err)
	s.Equal([]byte("data"), payload)
}

func (s *RegistryTestSuite) TestUnknownProvider() {
	_, err := s.registry.Fetch(context.Background(), "nasdaq", "quote", nil)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (s *RegistryTestSuite) TestFetcherConstructorsRequireKeys() {
	_, err := NewAlphaVantageFetcher("")
	s.True(errors.HasCode(err, errors.ErrCodeMissingParameter))

	_, err = NewPolygonFetcher("")
	s.True(errors.HasCode(err, errors.ErrCodeMissingParameter))
}

func (s *RegistryTestSuite) TestPolygonRejectsUnsupportedFunction() {
	fetcher, err := NewPolygonFetcher("test-key")
	s.Require().NoError(err)

	_, err = fetcher.Fetch(context.Background(), "last_trade", nil)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}
