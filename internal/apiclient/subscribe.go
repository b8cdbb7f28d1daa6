package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

const (
	// The server pings every 54s; a connection silent for longer is dead.
	defaultReadTimeout = 60 * time.Second
	pongWriteWait      = 10 * time.Second
)

// SubscribeOptions configures Subscribe.
type SubscribeOptions struct {
	// OnEvent receives every decoded event, in arrival order.
	OnEvent func(Event)
	// OnReconnect runs after every successful connection except the first.
	// Missed events are not replayed, so this is where callers resync.
	OnReconnect func()
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// BackOff defaults to an unbounded exponential policy.
	BackOff backoff.BackOff
	// ReadTimeout is how long the connection may stay silent, pings
	// included, before it is dropped and redialed. Defaults to 60s.
	ReadTimeout time.Duration
}

// wsURL turns the HTTP base URL into the websocket endpoint.
func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("token", c.Token())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscribe keeps a realtime connection open until ctx is done, reconnecting
// with backoff whenever it drops. It returns ctx.Err().
func (c *Client) Subscribe(ctx context.Context, opts SubscribeOptions) error {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	b := opts.BackOff
	if b == nil {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 500 * time.Millisecond
		eb.MaxInterval = 15 * time.Second
		eb.MaxElapsedTime = 0
		b = eb
	}
	b = backoff.WithContext(b, ctx)
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	connected := false
	for {
		target, err := c.wsURL()
		if err != nil {
			return err
		}

		conn, _, err := dialer.DialContext(ctx, target, nil)
		if err == nil {
			b.Reset()
			if connected && opts.OnReconnect != nil {
				opts.OnReconnect()
			}
			connected = true
			err = c.readLoop(ctx, conn, readTimeout, opts.OnEvent)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: realtime: %v", ErrTransport, err)
		}
		log.Printf("realtime: disconnected (%v), retrying in %s", err, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, readTimeout time.Duration, onEvent func(Event)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(pongWriteWait))
		var ne net.Error
		if errors.Is(err, websocket.ErrCloseSent) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil
		}
		return err
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Printf("realtime: dropping malformed event: %v", err)
			continue
		}
		if onEvent != nil {
			onEvent(ev)
		}
	}
}
