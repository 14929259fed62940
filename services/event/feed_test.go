package event

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialFeed(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readRecord(t *testing.T, conn *websocket.Conn) Record {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var rec Record
	require.NoError(t, conn.ReadJSON(&rec))
	return rec
}

func TestFeedHandler_BacklogThenLive(t *testing.T) {
	l := NewLog()
	l.Publish(Record{Name: Contributed, Account: alice, Amount: 600, Tokens: uint256.NewInt(600)})

	srv := httptest.NewServer(NewFeedHandler(l))
	defer srv.Close()

	conn := dialFeed(t, srv, "")

	first := readRecord(t, conn)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, Contributed, first.Name)
	assert.Equal(t, alice, first.Account)
	assert.Equal(t, uint256.NewInt(600), first.Tokens)

	// 订阅建立后发布的事件
	require.Eventually(t, func() bool {
		l.mu.RLock()
		defer l.mu.RUnlock()
		return len(l.subs) == 1
	}, time.Second, 5*time.Millisecond)
	l.Publish(Record{Name: FundingClosed, TotalRaised: 600})

	second := readRecord(t, conn)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, FundingClosed, second.Name)
	assert.Equal(t, uint64(600), second.TotalRaised)
}

func TestFeedHandler_After(t *testing.T) {
	l := NewLog()
	for _, rec := range successLog() {
		rec.Seq = 0
		l.Publish(rec)
	}

	srv := httptest.NewServer(NewFeedHandler(l))
	defer srv.Close()

	conn := dialFeed(t, srv, "?after=3")
	rec := readRecord(t, conn)
	assert.Equal(t, uint64(4), rec.Seq)
	assert.Equal(t, Withdrawn, rec.Name)
}

func TestFeedHandler_InvalidAfter(t *testing.T) {
	srv := httptest.NewServer(NewFeedHandler(NewLog()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?after=abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
