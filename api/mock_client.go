package api

import (
	"context"
	"fmt"
	"sync"
)

// ClobClientInterface abstracts the exchange client so the engine can be
// tested without network access.
type ClobClientInterface interface {
	GetMarket(ctx context.Context, conditionID string) (*MarketInfo, error)
	GetMidpoint(ctx context.Context, tokenID string) (float64, error)
	CreateAndPostOrder(ctx context.Context, params OrderParams, options OrderOptions, orderType OrderType) (*OrderResponse, error)
}

var _ ClobClientInterface = (*ClobClient)(nil)
var _ ClobClientInterface = (*MockClobClient)(nil)

// PlacedOrder records one CreateAndPostOrder invocation on the mock.
type PlacedOrder struct {
	Params    OrderParams
	Options   OrderOptions
	OrderType OrderType
}

// MockClobClient is a test double for ClobClientInterface. Configure the
// Markets/Midpoints maps and Response before use; inspect Calls and Placed
// afterwards. ErrorOnNext triggers a one-shot failure per method name.
type MockClobClient struct {
	mu sync.Mutex

	Markets   map[string]*MarketInfo
	Midpoints map[string]float64
	Response  *OrderResponse

	Calls       map[string]int
	Placed      []PlacedOrder
	ErrorOnNext map[string]error
}

// NewMockClobClient creates a mock with empty fixtures and a successful
// default order response.
func NewMockClobClient() *MockClobClient {
	return &MockClobClient{
		Markets:   make(map[string]*MarketInfo),
		Midpoints: make(map[string]float64),
		Response: &OrderResponse{
			Success: true,
			OrderID: "mock-order-1",
			Status:  "live",
		},
		Calls:       make(map[string]int),
		ErrorOnNext: make(map[string]error),
	}
}

func (m *MockClobClient) takeError(method string) error {
	m.Calls[method]++
	if err, ok := m.ErrorOnNext[method]; ok {
		delete(m.ErrorOnNext, method)
		return err
	}
	return nil
}

func (m *MockClobClient) GetMarket(_ context.Context, conditionID string) (*MarketInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeError("GetMarket"); err != nil {
		return nil, err
	}
	market, ok := m.Markets[conditionID]
	if !ok {
		return nil, fmt.Errorf("get market failed: 404 not found")
	}
	return market, nil
}

func (m *MockClobClient) GetMidpoint(_ context.Context, tokenID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeError("GetMidpoint"); err != nil {
		return 0, err
	}
	mid, ok := m.Midpoints[tokenID]
	if !ok {
		return 0, fmt.Errorf("get midpoint failed: 404 not found")
	}
	return mid, nil
}

func (m *MockClobClient) CreateAndPostOrder(_ context.Context, params OrderParams, options OrderOptions, orderType OrderType) (*OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeError("CreateAndPostOrder"); err != nil {
		return nil, err
	}
	m.Placed = append(m.Placed, PlacedOrder{Params: params, Options: options, OrderType: orderType})
	return m.Response, nil
}
