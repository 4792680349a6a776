// Package mocks provides testify mock implementations of the engine's
// adapter interfaces for unit tests.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/models"
)

// MockMessageAdapter is a mock implementation of engine.MessageAdapter.
type MockMessageAdapter struct {
	mock.Mock
}

func (m *MockMessageAdapter) SendText(ctx context.Context, channelRef, text string) (string, error) {
	args := m.Called(ctx, channelRef, text)

	return args.String(0), args.Error(1)
}

func (m *MockMessageAdapter) SendMedia(ctx context.Context, channelRef, mediaType, url, caption string) (string, error) {
	args := m.Called(ctx, channelRef, mediaType, url, caption)

	return args.String(0), args.Error(1)
}

// MockContactStore is a mock implementation of engine.ContactStore.
type MockContactStore struct {
	mock.Mock
}

func (m *MockContactStore) ContactByID(ctx context.Context, tenantID, contactID string) (*models.Contact, error) {
	args := m.Called(ctx, tenantID, contactID)

	contact, _ := args.Get(0).(*models.Contact)

	return contact, args.Error(1)
}

func (m *MockContactStore) AddTag(ctx context.Context, tenantID, contactID, tag string) error {
	args := m.Called(ctx, tenantID, contactID, tag)

	return args.Error(0)
}

func (m *MockContactStore) RemoveTag(ctx context.Context, tenantID, contactID, tag string) error {
	args := m.Called(ctx, tenantID, contactID, tag)

	return args.Error(0)
}

func (m *MockContactStore) SetPipelineStage(ctx context.Context, tenantID, contactID, stageID string) error {
	args := m.Called(ctx, tenantID, contactID, stageID)

	return args.Error(0)
}

func (m *MockContactStore) SetRecoveryStage(ctx context.Context, tenantID, contactID, stageID string) error {
	args := m.Called(ctx, tenantID, contactID, stageID)

	return args.Error(0)
}

func (m *MockContactStore) TeamMemberIDs(ctx context.Context, tenantID string) ([]string, error) {
	args := m.Called(ctx, tenantID)

	ids, _ := args.Get(0).([]string)

	return ids, args.Error(1)
}

// MockNotifier is a mock implementation of engine.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userIDs []string, title, message string, metadata map[string]any) error {
	args := m.Called(ctx, userIDs, title, message, metadata)

	return args.Error(0)
}
