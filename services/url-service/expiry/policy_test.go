package expiry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shortlink/pkg/apperr"
	"shortlink/pkg/clock"
	"shortlink/services/url-service/models"
)

type MockMarker struct {
	mock.Mock
}

func (m *MockMarker) MarkExpired(ctx context.Context, code string) error {
	return m.Called(ctx, code).Error(0)
}

var created = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

func record() *models.URLRecord {
	return &models.URLRecord{
		Shortcode: "abc",
		CreatedAt: created,
		ExpiresAt: created.Add(30 * time.Minute),
	}
}

func TestCheckLiveRecord(t *testing.T) {
	marker := new(MockMarker)
	p := New(clock.NewFake(created.Add(29*time.Minute)), marker)

	rec := record()
	got, err := p.Check(context.Background(), rec)
	require.NoError(t, err)
	assert.Same(t, rec, got)
	assert.False(t, got.IsExpired)
	marker.AssertNotCalled(t, "MarkExpired", mock.Anything, mock.Anything)
}

func TestCheckAtExactExpiryIsLive(t *testing.T) {
	marker := new(MockMarker)
	p := New(clock.NewFake(created.Add(30*time.Minute)), marker)

	got, err := p.Check(context.Background(), record())
	require.NoError(t, err)
	assert.False(t, got.IsExpired, "expiry requires now to be strictly after expiresAt")
}

func TestCheckFlipsAndPersists(t *testing.T) {
	marker := new(MockMarker)
	marker.On("MarkExpired", mock.Anything, "abc").Return(nil).Once()
	p := New(clock.NewFake(created.Add(31*time.Minute)), marker)

	rec := record()
	got, err := p.Check(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, got.IsExpired)
	assert.False(t, rec.IsExpired, "input record is not mutated")

	// Повторная проверка уже истёкшей записи ничего не меняет
	again, err := p.Check(context.Background(), got)
	require.NoError(t, err)
	assert.Same(t, got, again)
	marker.AssertNumberOfCalls(t, "MarkExpired", 1)
}

func TestCheckPropagatesStoreError(t *testing.T) {
	marker := new(MockMarker)
	marker.On("MarkExpired", mock.Anything, "abc").Return(apperr.ErrNotFound)
	p := New(clock.NewFake(created.Add(time.Hour)), marker)

	_, err := p.Check(context.Background(), record())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestIsExpiredIsReadOnly(t *testing.T) {
	marker := new(MockMarker)
	c := clock.NewFake(created.Add(10 * time.Minute))
	p := New(c, marker)
	rec := record()

	assert.False(t, p.IsExpired(rec))
	c.Advance(21 * time.Minute)
	assert.True(t, p.IsExpired(rec))
	assert.False(t, rec.IsExpired)

	marker.AssertNotCalled(t, "MarkExpired", mock.Anything, mock.Anything)
}
