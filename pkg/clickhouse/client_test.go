package clickhouse

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(ClientConfig{
		Host:        "ch.local",
		Port:        9000,
		Database:    "cropcast",
		User:        "svc",
		Password:    "p@ss",
		DialTimeout: 5 * time.Second,
		AsyncInsert: true,
		MaxExecTime: 30 * time.Second,
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "clickhouse", u.Scheme)
	assert.Equal(t, "ch.local:9000", u.Host)
	assert.Equal(t, "/cropcast", u.Path)
	assert.Equal(t, "svc", u.User.Username())
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	assert.Equal(t, "5s", u.Query().Get("dial_timeout"))
	assert.Equal(t, "1", u.Query().Get("async_insert"))
	assert.Empty(t, u.Query().Get("wait_for_async_insert"))
	assert.Equal(t, "30", u.Query().Get("max_execution_time"))
}

func TestBuildDSN_HTTP(t *testing.T) {
	dsn := BuildDSN(ClientConfig{Host: "h", Port: 8123, Database: "d", UseHTTP: true})
	assert.Equal(t, "http://h:8123/d", dsn)
}

func TestNewClient_RequiresHost(t *testing.T) {
	_, err := NewClient(context.Background())
	require.Error(t, err)
}
