package generator

import (
	"context"

	"github.com/adaptlearn/practice-engine/internal/catalog"
)

// MockProvider is a test double for generation providers.
type MockProvider struct {
	Item        catalog.Item
	Err         error
	LastRequest *Request // captures the last request for inspection
	Calls       int
}

// NewMockProvider creates a MockProvider that returns the given item.
func NewMockProvider(item catalog.Item) *MockProvider {
	return &MockProvider{Item: item}
}

func (m *MockProvider) Generate(_ context.Context, req Request) (catalog.Item, error) {
	m.LastRequest = &req
	m.Calls++
	if m.Err != nil {
		return catalog.Item{}, m.Err
	}
	item := m.Item
	if item.Source == "" {
		item.Source = "generated"
	}
	return item, nil
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return m.Err
}
