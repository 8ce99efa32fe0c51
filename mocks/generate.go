package mocks

//go:generate mockgen -destination=./mock_fetcher.go -package=mocks github.com/rxtech-lab/argo-desk/internal/marketcache Fetcher
//go:generate mockgen -destination=./mock_advisor.go -package=mocks github.com/rxtech-lab/argo-desk/internal/agent Advisor
