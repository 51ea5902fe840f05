package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/botguard/auth"
	"github.com/jonwraymond/botguard/config"
	"github.com/jonwraymond/botguard/server"
)

func TestServe_StartsAndShutsDown(t *testing.T) {
	cfg := config.Default()
	cfg.Store.DSN = filepath.Join(t.TempDir(), "botguard.db")
	cfg.Upstream.Completion.APIKey = "test-key"
	cfg.Auth.APIKeys = []string{"ops-key"}
	cfg.Logging.Level = "error"
	require.NoError(t, cfg.Validate())

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + l.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, l) }()

	client := &http.Client{Timeout: 5 * time.Second}
	require.Eventually(t, func() bool {
		resp, err := client.Get(base + "/version")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := client.Get(base + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Post(base+"/v1/messages", "application/json",
		strings.NewReader(`{"user_id":7,"bot_token":"unregistered","text":"hi"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, base+"/v1/stats", nil)
	require.NoError(t, err)
	req.Header.Set(auth.DefaultAPIKeyHeader, "ops-key")
	resp, err = client.Do(req)
	require.NoError(t, err)
	var stats server.StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, stats.Admission.Identities)
	assert.Equal(t, cfg.Cache.Capacity, stats.Texts.Capacity)

	client.CloseIdleConnections()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_MissingCompletionKey(t *testing.T) {
	cfg := config.Default()
	cfg.Store.DSN = filepath.Join(t.TempDir(), "botguard.db")
	cfg.Logging.Level = "error"

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	err = serve(context.Background(), cfg, l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completion")
}
