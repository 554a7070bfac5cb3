package net_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/fluxmesh/net"
)

func TestDispatcherRunsPostedJobs(t *testing.T) {
	d, err := net.NewDispatcher()
	require.NoError(t, err)
	defer d.Close()

	stop := make(chan struct{})
	go d.Run(stop)
	defer close(stop)

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		d.Post(func() {
			defer wg.Done()
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 20)
}

func TestDispatcherFiresTimerInOrder(t *testing.T) {
	d, err := net.NewDispatcher()
	require.NoError(t, err)
	defer d.Close()

	stop := make(chan struct{})
	go d.Run(stop)
	defer close(stop)

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	now := time.Now()
	d.At(now.Add(30*time.Millisecond), func() {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
		close(done)
	})
	d.At(now.Add(5*time.Millisecond), func() {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timers never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, order)
}
