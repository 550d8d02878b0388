package client

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/OldEphraim/defi-trade-engine/utils/types"
)

// QuoteUpdate is one live quote message from the venue feed.
type QuoteUpdate struct {
	EventType string  `json:"event_type"`
	VenueID   string  `json:"venue_id"`
	Asset     string  `json:"asset"`
	Price     float64 `json:"price"`
	Liquidity float64 `json:"liquidity"`
	Timestamp int64   `json:"timestamp"`
}

// QuoteStream keeps a websocket subscription to the venue quote feed and
// pushes every update into the MarketData cache. Subscribers get a buffered
// channel; slow consumers drop updates rather than stall the reader.
type QuoteStream struct {
	url   string
	cache *MarketData

	mu   sync.Mutex
	conn *websocket.Conn
	subs map[string]chan QuoteUpdate // keyed by "venueID/asset"
}

func NewQuoteStream(url string, cache *MarketData) (*QuoteStream, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial quote feed: %w", err)
	}

	return &QuoteStream{
		url:   url,
		cache: cache,
		conn:  conn,
		subs:  make(map[string]chan QuoteUpdate),
	}, nil
}

func subKey(venueID, asset string) string { return venueID + "/" + asset }

// Subscribe registers interest in one (venue, asset) pair and returns the
// update channel.
func (qs *QuoteStream) Subscribe(venueID, asset string) (<-chan QuoteUpdate, error) {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	ch := make(chan QuoteUpdate, 100)
	qs.subs[subKey(venueID, asset)] = ch

	sub := map[string]interface{}{
		"type":     "subscribe",
		"channel":  "quotes",
		"venue_id": venueID,
		"asset":    asset,
	}
	if err := qs.conn.WriteJSON(sub); err != nil {
		delete(qs.subs, subKey(venueID, asset))
		return nil, fmt.Errorf("failed to subscribe to %s/%s: %w", venueID, asset, err)
	}

	log.Printf("Subscribed to quotes: %s/%s", venueID, asset)
	return ch, nil
}

// Listen reads the feed until the context is cancelled, redialing with
// backoff after connection failures.
func (qs *QuoteStream) Listen(ctx context.Context) {
	backoff := time.Second
	for {
		if err := qs.readLoop(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Quote feed error: %v, reconnecting in %s", err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}

		if err := qs.redial(); err != nil {
			log.Printf("Quote feed redial failed: %v", err)
			continue
		}
		backoff = time.Second
	}
}

func (qs *QuoteStream) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var updates []QuoteUpdate
		if err := qs.conn.ReadJSON(&updates); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				return err
			}
			return err
		}

		for _, upd := range updates {
			if upd.EventType != "quote" {
				continue
			}

			if qs.cache != nil {
				qs.cache.Put(types.Quote{
					VenueID:   upd.VenueID,
					Asset:     upd.Asset,
					Price:     upd.Price,
					Liquidity: upd.Liquidity,
					Timestamp: time.Unix(upd.Timestamp, 0),
				})
			}

			qs.mu.Lock()
			ch, exists := qs.subs[subKey(upd.VenueID, upd.Asset)]
			qs.mu.Unlock()
			if exists {
				select {
				case ch <- upd:
				default:
					log.Printf("Channel full for %s/%s", upd.VenueID, upd.Asset)
				}
			}
		}
	}
}

func (qs *QuoteStream) redial() error {
	conn, _, err := websocket.DefaultDialer.Dial(qs.url, nil)
	if err != nil {
		return err
	}

	qs.mu.Lock()
	defer qs.mu.Unlock()
	if qs.conn != nil {
		_ = qs.conn.Close()
	}
	qs.conn = conn

	// Re-establish every subscription on the fresh connection.
	for key := range qs.subs {
		venueID, asset, _ := strings.Cut(key, "/")
		sub := map[string]interface{}{
			"type":     "subscribe",
			"channel":  "quotes",
			"venue_id": venueID,
			"asset":    asset,
		}
		if err := qs.conn.WriteJSON(sub); err != nil {
			return err
		}
	}
	return nil
}

func (qs *QuoteStream) Close() error {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	if qs.conn != nil {
		return qs.conn.Close()
	}
	return nil
}
