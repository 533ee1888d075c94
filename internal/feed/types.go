package feed

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Command is a control message sent to the feed server. One subscribe per
// scope covers all event kinds on that scope.
type Command struct {
	Event string `json:"event"` // "subscribe" or "unsubscribe"
	Scope string `json:"scope"` // World, data center, or region name
}

// envelope is the wire shape of one inbound feed event.
type envelope struct {
	Event   string          `json:"event"`
	Item    uint32          `json:"item"`
	World   uint32          `json:"world"`
	Payload json.RawMessage `json:"payload"`
}

// wireListing is one listing element of a listings/add or listings/remove
// payload.
type wireListing struct {
	PricePerUnit int64  `json:"pricePerUnit"`
	Quantity     int64  `json:"quantity"`
	HQ           bool   `json:"hq"`
	RetainerName string `json:"retainerName"`
	SellerID     string `json:"sellerID"`
}

// wireSale is one sale element of a sales/add payload.
type wireSale struct {
	PricePerUnit int64  `json:"pricePerUnit"`
	Quantity     int64  `json:"quantity"`
	HQ           bool   `json:"hq"`
	BuyerName    string `json:"buyerName"`
	Timestamp    int64  `json:"timestamp"` // Unix seconds
}

// SocketConfig configures a single WebSocket connection.
type SocketConfig struct {
	URL          string        // WebSocket URL (e.g., wss://universalis.app/api/ws)
	UserAgent    string        // Sent as the User-Agent handshake header
	PingTimeout  time.Duration // Max time without ping/pong before the connection is considered stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultSocketConfig returns sensible defaults.
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		PingTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   10000,
	}
}
