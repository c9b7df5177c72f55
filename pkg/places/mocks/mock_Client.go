// Package mocks provides test doubles for the places client.
package mocks

import (
	"context"

	places "github.com/homebid/match-cli/pkg/places"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// KeywordSearch provides a mock function with given fields: ctx, req
func (_m *MockClient) KeywordSearch(ctx context.Context, req places.KeywordSearchRequest) (*places.KeywordSearchResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for KeywordSearch")
	}

	var r0 *places.KeywordSearchResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, places.KeywordSearchRequest) (*places.KeywordSearchResponse, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, places.KeywordSearchRequest) *places.KeywordSearchResponse); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*places.KeywordSearchResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, places.KeywordSearchRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
