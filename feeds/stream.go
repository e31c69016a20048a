package feeds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PRICE STREAM - WebSocket pair-price cache
// ═══════════════════════════════════════════════════════════════════════════════
//
// Keeps a live price cache so the position monitor doesn't burn an HTTP round
// trip per position per cycle. The monitor consults the cache first and falls
// back to the HTTP feed when an entry is missing or stale.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	reconnectDelay = 5 * time.Second
	pingInterval   = 30 * time.Second
	staleAfter     = 30 * time.Second
)

// streamTick is one inbound price update
type streamTick struct {
	Token string `json:"token"`
	Price string `json:"price"`
}

// subscribeMsg asks the stream for a set of tokens
type subscribeMsg struct {
	Op     string   `json:"op"`
	Tokens []string `json:"tokens"`
}

type cachedPrice struct {
	price decimal.Decimal
	at    time.Time
}

// PriceStream maintains a websocket subscription and a price cache
type PriceStream struct {
	mu sync.RWMutex

	// writeMu serializes writes to conn: gorilla/websocket allows only one
	// concurrent writer, and pings race subscribe messages without it.
	writeMu sync.Mutex

	wsURL   string
	conn    *websocket.Conn
	running bool
	stopCh  chan struct{}

	subscribed map[string]struct{}
	prices     map[string]cachedPrice
}

// NewPriceStream creates a stream client (not yet connected)
func NewPriceStream(wsURL string) *PriceStream {
	return &PriceStream{
		wsURL:      wsURL,
		stopCh:     make(chan struct{}),
		subscribed: make(map[string]struct{}),
		prices:     make(map[string]cachedPrice),
	}
}

// Start connects and begins processing ticks
func (s *PriceStream) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.connectionLoop()
	log.Info().Str("url", s.wsURL).Msg("📡 Price stream started")
}

// Stop closes the connection
func (s *PriceStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	if s.conn != nil {
		s.conn.Close()
	}
}

// Subscribe adds a token to the stream subscription
func (s *PriceStream) Subscribe(token string) {
	s.mu.Lock()
	s.subscribed[token] = struct{}{}
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		s.sendSubscribe(conn)
	}
}

// Unsubscribe drops a token; its cache entry ages out
func (s *PriceStream) Unsubscribe(token string) {
	s.mu.Lock()
	delete(s.subscribed, token)
	delete(s.prices, token)
	s.mu.Unlock()
}

// Price returns the cached price when fresh. ok is false when the cache has
// nothing usable and the caller should fall back to HTTP.
func (s *PriceStream) Price(token string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.prices[token]
	if !ok || time.Since(entry.at) > staleAfter {
		return decimal.Zero, false
	}
	return entry.price, true
}

// connectionLoop keeps the websocket alive, reconnecting on drops
func (s *PriceStream) connectionLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(s.wsURL, nil)
		if err != nil {
			log.Warn().Err(err).Msg("Stream dial failed, retrying")
			select {
			case <-time.After(reconnectDelay):
				continue
			case <-s.stopCh:
				return
			}
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		s.sendSubscribe(conn)
		s.readLoop(conn)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()

		select {
		case <-time.After(reconnectDelay):
		case <-s.stopCh:
			return
		}
	}
}

// readLoop consumes ticks until the connection drops
func (s *PriceStream) readLoop(conn *websocket.Conn) {
	pinger := time.NewTicker(pingInterval)
	defer pinger.Stop()

	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-pinger.C:
				s.writeMu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, nil)
				s.writeMu.Unlock()
				if err != nil {
					return
				}
			case <-done:
				return
			case <-s.stopCh:
				return
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("Stream read ended")
			return
		}

		var tick streamTick
		if err := json.Unmarshal(msg, &tick); err != nil || tick.Token == "" {
			continue
		}

		price, err := decimal.NewFromString(tick.Price)
		if err != nil || price.LessThanOrEqual(decimal.Zero) {
			continue
		}

		s.mu.Lock()
		if _, ok := s.subscribed[tick.Token]; ok {
			s.prices[tick.Token] = cachedPrice{price: price, at: time.Now()}
		}
		s.mu.Unlock()
	}
}

func (s *PriceStream) sendSubscribe(conn *websocket.Conn) {
	s.mu.RLock()
	tokens := make([]string, 0, len(s.subscribed))
	for t := range s.subscribed {
		tokens = append(tokens, t)
	}
	s.mu.RUnlock()

	if len(tokens) == 0 {
		return
	}
	s.writeMu.Lock()
	err := conn.WriteJSON(subscribeMsg{Op: "subscribe", Tokens: tokens})
	s.writeMu.Unlock()
	if err != nil {
		log.Debug().Err(err).Msg("Subscribe send failed")
	}
}
