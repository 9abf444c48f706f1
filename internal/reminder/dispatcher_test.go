package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	myopenai "github.com/pathakanu/pocketlog/internal/openai"
	"github.com/pathakanu/pocketlog/internal/timer"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type presenterMock struct{ mock.Mock }

func (m *presenterMock) Present(ctx context.Context, key int64, title, body string) error {
	return m.Called(ctx, key, title, body).Error(0)
}

type composerMock struct{ mock.Mock }

func (m *composerMock) ComposeReminder(ctx context.Context, title string, due time.Time) (string, error) {
	args := m.Called(ctx, title, due)
	return args.String(0), args.Error(1)
}

type markerMock struct{ mock.Mock }

func (m *markerMock) MarkNotified(ctx context.Context, id, when int64) (bool, error) {
	args := m.Called(ctx, id, when)
	return args.Bool(0), args.Error(1)
}

var fireAt = time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC)

func testFire() timer.Fire {
	return timer.Fire{Key: 1, Title: "Submit report", FireAt: fireAt}
}

func TestHandlePresentsWithLocalBody(t *testing.T) {
	ctx := context.Background()
	presenter := new(presenterMock)
	presenter.On("Present", ctx, int64(1), "Submit report", "Due Mar 04 10:30").Return(nil).Once()
	marker := new(markerMock)
	marker.On("MarkNotified", ctx, int64(1), fireAt.UnixMilli()).Return(true, nil).Once()

	New(presenter, nil, marker, time.UTC, zap.NewNop()).Handle(ctx, testFire())

	presenter.AssertExpectations(t)
	marker.AssertExpectations(t)
}

func TestHandleUsesComposedBody(t *testing.T) {
	ctx := context.Background()
	composer := new(composerMock)
	composer.On("ComposeReminder", ctx, "Submit report", mock.Anything).Return("Time to send that report!", nil).Once()
	presenter := new(presenterMock)
	presenter.On("Present", ctx, int64(1), "Submit report", "Time to send that report!").Return(nil).Once()
	marker := new(markerMock)
	marker.On("MarkNotified", ctx, int64(1), fireAt.UnixMilli()).Return(true, nil).Once()

	New(presenter, composer, marker, time.UTC, zap.NewNop()).Handle(ctx, testFire())

	composer.AssertExpectations(t)
	presenter.AssertExpectations(t)
}

func TestHandleFallsBackWhenComposerFails(t *testing.T) {
	ctx := context.Background()
	for _, composeErr := range []error{myopenai.ErrClientNotInitialised, errors.New("timeout")} {
		composer := new(composerMock)
		composer.On("ComposeReminder", ctx, "Submit report", mock.Anything).Return("", composeErr).Once()
		presenter := new(presenterMock)
		presenter.On("Present", ctx, int64(1), "Submit report", "Due Mar 04 10:30").Return(nil).Once()
		marker := new(markerMock)
		marker.On("MarkNotified", ctx, int64(1), fireAt.UnixMilli()).Return(false, nil).Once()

		New(presenter, composer, marker, time.UTC, zap.NewNop()).Handle(ctx, testFire())

		presenter.AssertExpectations(t)
	}
}

func TestHandleAbsorbsPresentFailure(t *testing.T) {
	ctx := context.Background()
	presenter := new(presenterMock)
	presenter.On("Present", ctx, int64(1), "Submit report", mock.Anything).Return(errors.New("no channel")).Once()
	marker := new(markerMock)

	New(presenter, nil, marker, time.UTC, zap.NewNop()).Handle(ctx, testFire())

	marker.AssertNotCalled(t, "MarkNotified", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleAbsorbsPanics(t *testing.T) {
	ctx := context.Background()
	presenter := new(presenterMock)
	presenter.On("Present", ctx, int64(1), "Submit report", mock.Anything).Return(nil).Once()
	marker := new(markerMock)
	marker.On("MarkNotified", ctx, int64(1), fireAt.UnixMilli()).Run(func(mock.Arguments) {
		panic("store closed")
	}).Return(false, nil)

	New(presenter, nil, marker, time.UTC, zap.NewNop()).Handle(ctx, testFire())
}
