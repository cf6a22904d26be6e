package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// EventHandler receives one decoded push event.
type EventHandler func(eventType, documentID, fileType string)

// Dispatcher maintains the push-event stream and fans decoded events out to
// the handlers registered per event type. The connection is re-dialed with
// exponential backoff after any failure.
type Dispatcher struct {
	endpoint string
	token    string
	handlers map[string]EventHandler
	logger   Logger

	onReconnect func(ctx context.Context)
}

type DispatcherOptions struct {
	Endpoint string
	Token    string
	Logger   Logger

	// OnReconnect runs after a session is re-established, so the orchestrator
	// can subscribe any paired document it has not subscribed yet.
	OnReconnect func(ctx context.Context)
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	return &Dispatcher{
		endpoint:    opts.Endpoint,
		token:       opts.Token,
		handlers:    map[string]EventHandler{},
		logger:      opts.Logger,
		onReconnect: opts.OnReconnect,
	}
}

// Register installs a handler for one event type. Registration happens
// before Run; the map is not mutated afterwards.
func (d *Dispatcher) Register(eventType string, handler EventHandler) {
	d.handlers[eventType] = handler
}

// Run dials the stream and pumps frames until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = time.Minute
	first := true
	for {
		if ctx.Err() != nil {
			return
		}
		err := d.session(ctx, first)
		first = false
		if ctx.Err() != nil {
			return
		}
		logf(d.logger, "event stream closed: %v; reconnecting in %s", err, backoff)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (d *Dispatcher) session(ctx context.Context, first bool) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.token)
	conn, _, err := websocket.Dial(ctx, d.endpoint, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")
	conn.SetReadLimit(1 << 20)

	if !first && d.onReconnect != nil {
		d.onReconnect(ctx)
	}
	logf(d.logger, "event stream connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		d.dispatch(data)
	}
}

type eventFrame struct {
	Header struct {
		EventType string `json:"event_type"`
	} `json:"header"`
	Event json.RawMessage `json:"event"`
}

func (d *Dispatcher) dispatch(data []byte) {
	var frame eventFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		logf(d.logger, "dropping undecodable event frame: %v", err)
		return
	}
	handler := d.handlers[frame.Header.EventType]
	if handler == nil {
		return
	}
	documentID, fileType := extractEventTarget(frame.Event)
	handler(frame.Header.EventType, documentID, fileType)
}

// extractEventTarget tolerates the payload variants seen on the wire: some
// events carry file_token, others document_id, and file_type is optional.
func extractEventTarget(payload json.RawMessage) (documentID, fileType string) {
	if len(payload) == 0 {
		return "", ""
	}
	var body struct {
		FileToken  string `json:"file_token"`
		DocumentID string `json:"document_id"`
		FileType   string `json:"file_type"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", ""
	}
	documentID = body.FileToken
	if documentID == "" {
		documentID = body.DocumentID
	}
	return documentID, body.FileType
}
