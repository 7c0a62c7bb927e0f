package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManagerWaitWithoutServices(t *testing.T) {
	m := NewManager()
	m.Run(context.Background())
	require.NoError(t, m.Wait())
}

func TestManagerStopsOnCancel(t *testing.T) {
	m := NewManager()
	started := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		m.Register(Func(func(ctx context.Context) error {
			started <- struct{}{}
			<-ctx.Done()
			return nil
		}))
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.Run(ctx)
	<-started
	<-started
	cancel()
	require.NoError(t, m.Wait())
}

func TestManagerErrorCancelsOthers(t *testing.T) {
	m := NewManager()
	boom := errors.New("boom")
	m.Register(
		Func(func(ctx context.Context) error { return boom }),
		Func(func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}),
	)
	m.Run(context.Background())
	require.ErrorIs(t, m.Wait(), boom)
}
