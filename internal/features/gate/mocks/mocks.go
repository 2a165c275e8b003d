// Package mocks содержит testify-моки зависимостей гейта для юнит-тестов.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"subgram-bot/internal/features/users"
	"subgram-bot/internal/subgram"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) Get(ctx context.Context, telegramID int64) (*users.User, error) {
	args := m.Called(ctx, telegramID)
	if u := args.Get(0); u != nil {
		return u.(*users.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserStore) CreateIfAbsent(ctx context.Context, telegramID int64, username *string, referredBy *int64) error {
	args := m.Called(ctx, telegramID, username, referredBy)
	return args.Error(0)
}

func (m *MockUserStore) UpdateUsername(ctx context.Context, telegramID int64, username string) error {
	args := m.Called(ctx, telegramID, username)
	return args.Error(0)
}

func (m *MockUserStore) AssignReferrer(ctx context.Context, telegramID, referrerID int64) error {
	args := m.Called(ctx, telegramID, referrerID)
	return args.Error(0)
}

func (m *MockUserStore) SetVerified(ctx context.Context, telegramID int64, verified bool) error {
	args := m.Called(ctx, telegramID, verified)
	return args.Error(0)
}

func (m *MockUserStore) GrantReward(ctx context.Context, grantKey string, referrerID, referralID, amount int64) (bool, error) {
	args := m.Called(ctx, grantKey, referrerID, referralID, amount)
	return args.Bool(0), args.Error(1)
}

type MockOracle struct {
	mock.Mock
}

func (m *MockOracle) Check(ctx context.Context, req subgram.CheckRequest) (*subgram.Verdict, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*subgram.Verdict), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockFallbackVerifier struct {
	mock.Mock
}

func (m *MockFallbackVerifier) Verify(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}
