package feeds

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{}

// startStreamServer runs a minimal ws endpoint and hands the server-side
// connection to the test
func startStreamServer(t *testing.T) (*httptest.Server, chan *websocket.Conn) {
	t.Helper()
	ready := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ready <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	return srv, ready
}

func wsAddr(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestPriceStream_CachesSubscribedTicks(t *testing.T) {
	srv, ready := startStreamServer(t)
	defer srv.Close()

	s := NewPriceStream(wsAddr(srv))
	s.Subscribe("0xAAA")
	s.Start()
	defer s.Stop()

	var serverConn *websocket.Conn
	select {
	case serverConn = <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("stream never connected")
	}

	require.NoError(t, serverConn.WriteJSON(streamTick{Token: "0xAAA", Price: "1.25"}))
	require.Eventually(t, func() bool {
		_, ok := s.Price("0xAAA")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	price, ok := s.Price("0xAAA")
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromFloat(1.25)))

	// Ticks for tokens nobody subscribed to are dropped
	require.NoError(t, serverConn.WriteJSON(streamTick{Token: "0xBBB", Price: "2"}))
	time.Sleep(50 * time.Millisecond)
	_, ok = s.Price("0xBBB")
	assert.False(t, ok)

	// Unsubscribe evicts the cache entry
	s.Unsubscribe("0xAAA")
	_, ok = s.Price("0xAAA")
	assert.False(t, ok)
}

func TestPriceStream_ConcurrentSubscribers(t *testing.T) {
	// Subscribes from many goroutines all write to the shared connection;
	// the stream must serialize them (one-writer rule).
	srv, ready := startStreamServer(t)
	defer srv.Close()

	s := NewPriceStream(wsAddr(srv))
	s.Subscribe("0xSEED")
	s.Start()
	defer s.Stop()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("stream never connected")
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Subscribe(fmt.Sprintf("0x%04d", n))
		}(i)
	}
	wg.Wait()

	// All registered; none have prices yet
	for i := 0; i < 20; i++ {
		_, ok := s.Price(fmt.Sprintf("0x%04d", i))
		assert.False(t, ok)
	}
}
