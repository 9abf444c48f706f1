package openai

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeReminderWithoutKey(t *testing.T) {
	t.Parallel()
	client := New("")
	assert.False(t, client.Enabled())

	_, err := client.ComposeReminder(context.Background(), "Submit report", time.Now())
	require.ErrorIs(t, err, ErrClientNotInitialised)
}

func TestComposeReminderRejectsEmptyTitle(t *testing.T) {
	t.Parallel()
	_, err := New("").ComposeReminder(context.Background(), "  ", time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrClientNotInitialised)
}

func TestClip(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "short", clip("short"))

	long := strings.Repeat("é", maxBodyLen+10)
	got := clip(long)
	assert.Len(t, []rune(got), maxBodyLen)
	assert.True(t, strings.HasSuffix(got, "..."))
}
