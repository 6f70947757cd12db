package api

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/dmitrijs2005/pdfconv/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPServer_RunAndShutdown(t *testing.T) {
	ts := newTestServer(t)
	srv := NewHTTPServer("127.0.0.1:0", ts.handler, time.Second, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	var addr string
	select {
	case a := <-srv.Listening():
		addr = a.String()
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ok")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestHTTPServer_ListenError(t *testing.T) {
	srv := NewHTTPServer("256.0.0.1:bad", http.NotFoundHandler(), time.Second, logging.Discard())
	require.Error(t, srv.Run(context.Background()))
}

func TestHTTPServer_RunsAgainWithoutListeningReader(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ts := newTestServer(t)
	srv := NewHTTPServer(addr, ts.handler, time.Second, logging.Discard())

	client := &http.Client{Timeout: time.Second}
	healthy := func() bool {
		resp, err := client.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}

	// Listening is never read, so the second run finds its buffer full.
	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Run(ctx) }()

		require.Eventually(t, healthy, 5*time.Second, 10*time.Millisecond, "run %d", i+1)

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatalf("run %d did not stop", i+1)
		}
	}
}
