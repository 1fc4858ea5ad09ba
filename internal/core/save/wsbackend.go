package save

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Wire frames for the websocket save protocol. One request gets exactly one
// response; Data is base64 on the wire via encoding/json.
type wsRequest struct {
	Op   string   `json:"op"` // "save", "load", "delete", "list"
	Key  string   `json:"key,omitempty"`
	Data []byte   `json:"data,omitempty"`
	Meta Metadata `json:"meta,omitempty"`
}

type wsResponse struct {
	OK       bool     `json:"ok"`
	NotFound bool     `json:"notFound,omitempty"`
	Error    string   `json:"error,omitempty"`
	Data     []byte   `json:"data,omitempty"`
	Keys     []string `json:"keys,omitempty"`
}

// WSBackend is a cloud Backend speaking a request/response protocol over a
// single websocket connection. Requests are serialized; the simulation never
// waits on this path, so one in-flight request at a time is enough.
type WSBackend struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

var _ Backend = (*WSBackend)(nil)

// DialWS connects to a websocket save endpoint (ws:// or wss:// URL).
func DialWS(ctx context.Context, url string) (*WSBackend, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("save: dial cloud %s: %w", url, err)
	}
	return &WSBackend{conn: conn}, nil
}

func (b *WSBackend) Save(ctx context.Context, key string, data []byte, meta Metadata) error {
	if err := validateKey(key); err != nil {
		return err
	}
	_, err := b.roundTrip(ctx, wsRequest{Op: "save", Key: key, Data: data, Meta: meta})
	return err
}

func (b *WSBackend) Load(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	resp, err := b.roundTrip(ctx, wsRequest{Op: "load", Key: key})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (b *WSBackend) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	_, err := b.roundTrip(ctx, wsRequest{Op: "delete", Key: key})
	return err
}

func (b *WSBackend) List(ctx context.Context) ([]string, error) {
	resp, err := b.roundTrip(ctx, wsRequest{Op: "list"})
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

func (b *WSBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn.Close()
}

func (b *WSBackend) roundTrip(ctx context.Context, req wsRequest) (*wsResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = b.conn.SetWriteDeadline(deadline)
	_ = b.conn.SetReadDeadline(deadline)

	if err := b.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("save: cloud %s request: %w", req.Op, err)
	}
	var resp wsResponse
	if err := b.conn.ReadJSON(&resp); err != nil {
		return nil, fmt.Errorf("save: cloud %s response: %w", req.Op, err)
	}
	if resp.NotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.Key)
	}
	if !resp.OK {
		return nil, fmt.Errorf("save: cloud %s failed: %s", req.Op, resp.Error)
	}
	return &resp, nil
}
