package testutil_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/streamhub/internal/store"
	"github.com/roach88/streamhub/internal/store/storetest"
	"github.com/roach88/streamhub/internal/streamquery"
	"github.com/roach88/streamhub/internal/testutil"
)

func TestMemoryBackend_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Backend {
		return testutil.NewMemoryBackend("local", "Local")
	})
}

func TestMemoryBackend_Failures(t *testing.T) {
	b := testutil.NewMemoryBackend("local", "Local")
	boom := errors.New("boom")

	b.FailStreams(boom)
	_, err := b.Streams().Get(context.Background(), "u1", streamquery.StreamsGetQuery{})
	assert.ErrorIs(t, err, boom)

	b.FailStreams(nil)
	_, err = b.Streams().Get(context.Background(), "u1", streamquery.StreamsGetQuery{})
	assert.NoError(t, err)

	b.FailEvents(boom)
	_, err = b.Events().Get(context.Background(), "u1", streamquery.EventsGetQuery{})
	assert.ErrorIs(t, err, boom)
}

func TestMemoryBackend_Close(t *testing.T) {
	b := testutil.NewMemoryBackend("local", "Local")
	assert.False(t, b.Closed())
	assert.NoError(t, b.Close())
	assert.True(t, b.Closed())
}
