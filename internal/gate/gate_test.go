package gate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siahsang/beatpost/internal/auth"
	"github.com/siahsang/beatpost/models"
)

func TestDecideNeverRendersWithoutIdentity(t *testing.T) {
	assert.Equal(t, Defer, Decide(auth.Unresolved))
	assert.Equal(t, Redirect, Decide(auth.Anonymous))
	assert.Equal(t, Render, Decide(auth.Authenticated))
}

type fixedSource struct {
	snapshot auth.Snapshot
	resolved chan struct{}
}

func (s *fixedSource) Wait(ctx context.Context) (auth.Snapshot, error) {
	select {
	case <-s.resolved:
		return s.snapshot, nil
	case <-ctx.Done():
		return auth.Snapshot{State: auth.Unresolved}, ctx.Err()
	}
}

func TestEvaluateTimesOutToDefer(t *testing.T) {
	source := &fixedSource{resolved: make(chan struct{})}
	g := New(source, 10*time.Millisecond)

	start := time.Now()
	decision, snapshot, err := g.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defer, decision)
	assert.Nil(t, snapshot.Identity)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEvaluateWaitsForResolution(t *testing.T) {
	source := &fixedSource{resolved: make(chan struct{})}
	g := New(source, time.Second)

	go func() {
		time.Sleep(5 * time.Millisecond)
		source.snapshot = auth.Snapshot{State: auth.Authenticated, Identity: &models.User{Username: "alice"}}
		close(source.resolved)
	}()

	decision, snapshot, err := g.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Render, decision)
	assert.Equal(t, "alice", snapshot.Username())
}

func TestEvaluateIsNotCached(t *testing.T) {
	source := &fixedSource{resolved: make(chan struct{}), snapshot: auth.Snapshot{State: auth.Authenticated}}
	close(source.resolved)
	g := New(source, time.Second)

	decision, _, _ := g.Evaluate(context.Background())
	assert.Equal(t, Render, decision)

	source.snapshot = auth.Snapshot{State: auth.Anonymous}
	decision, _, _ = g.Evaluate(context.Background())
	assert.Equal(t, Redirect, decision)
}

func TestEvaluateReportsCallerCancellation(t *testing.T) {
	source := &fixedSource{resolved: make(chan struct{})}
	g := New(source, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	decision, _, err := g.Evaluate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Defer, decision)
}
