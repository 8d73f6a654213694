package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/scoreapp/score/internal/model"
)

// Error codes sent to subscribers that join after a job has ended.
const (
	CodeJobFailed    = "PIPELINE_FAILED"
	CodeJobCancelled = "JOB_CANCELLED"
)

const snapshotTimeout = 5 * time.Second

// JobSource reads stored job state. ScoreService satisfies it.
type JobSource interface {
	GetStatus(ctx context.Context, jobID string) (*model.StatusResponse, error)
	GetResult(ctx context.Context, jobID string) (*model.ProcessingResult, error)
}

// Client represents a WebSocket client
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub maintains active WebSocket connections
type Hub struct {
	// Clients grouped by job ID
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	source JobSource
	log    *zap.Logger
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	JobID   string
	Message []byte

	to *Client // single recipient, nil for every subscriber of JobID
}

// NewHub creates a new Hub
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// SetSource makes new subscribers start with the stored job state. Call it
// before serving connections.
func (h *Hub) SetSource(src JobSource) {
	h.source = src
}

// Run owns the client registry until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for jobID, clients := range h.clients {
				for client := range clients {
					close(client.Send)
				}
				delete(h.clients, jobID)
			}
			return

		case client := <-h.register:
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.log.Debug("websocket client registered", zap.String("job_id", client.JobID))

		case client := <-h.unregister:
			h.remove(client)
			h.log.Debug("websocket client unregistered", zap.String("job_id", client.JobID))

		case msg := <-h.broadcast:
			if msg.to != nil {
				if h.clients[msg.JobID][msg.to] {
					h.deliver(msg.to, msg.Message)
				}
				continue
			}
			for client := range h.clients[msg.JobID] {
				h.deliver(client, msg.Message)
			}
		}
	}
}

func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		// slow consumer
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.JobID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.clients, client.JobID)
	}
}

// Register adds a new client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Subscribe registers client and queues the job's stored state for it, so a
// subscriber that joins after the last broadcast still learns the outcome.
// Live broadcasts may arrive before the snapshot; the snapshot is never older
// than them because the store is written before each broadcast.
func (h *Hub) Subscribe(ctx context.Context, client *Client) bool {
	if !h.Register(client) {
		return false
	}
	if h.source == nil {
		return true
	}

	msg, ok := h.snapshot(ctx, client.JobID)
	if !ok {
		return true
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal websocket message", zap.Error(err))
		return true
	}

	select {
	case h.broadcast <- &BroadcastMessage{JobID: client.JobID, Message: data, to: client}:
	case <-h.done:
	}
	return true
}

func (h *Hub) snapshot(ctx context.Context, jobID string) (interface{}, bool) {
	status, err := h.source.GetStatus(ctx, jobID)
	if err != nil {
		h.log.Debug("no stored state for subscriber", zap.String("job_id", jobID), zap.Error(err))
		return nil, false
	}

	switch status.Status {
	case model.JobStatusCompleted:
		result, err := h.source.GetResult(ctx, jobID)
		if err != nil {
			h.log.Warn("failed to load result for subscriber", zap.String("job_id", jobID), zap.Error(err))
			return nil, false
		}
		return model.WSCompleteMessage{Type: model.WSMessageTypeComplete, JobID: jobID, Result: result}, true
	case model.JobStatusError, model.JobStatusCancelled:
		code := CodeJobFailed
		if status.Status == model.JobStatusCancelled {
			code = CodeJobCancelled
		}
		return model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			JobID: jobID,
			Error: model.WSError{Code: code, Message: status.Error},
		}, true
	default:
		return model.WSProgressMessage{Type: model.WSMessageTypeProgress, StatusResponse: *status}, true
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastProgress sends a status update to all job subscribers
func (h *Hub) BroadcastProgress(status model.StatusResponse) {
	h.send(status.JobID, model.WSProgressMessage{
		Type:           model.WSMessageTypeProgress,
		StatusResponse: status,
	})
}

// BroadcastComplete sends the finished result to all job subscribers
func (h *Hub) BroadcastComplete(jobID string, result *model.ProcessingResult) {
	h.send(jobID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Result: result,
	})
}

// BroadcastError sends an error message to all job subscribers
func (h *Hub) BroadcastError(jobID string, code, message string) {
	h.send(jobID, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

// send drops the message when the broadcast queue is full rather than
// stalling the pipeline; pollers still see the stored status.
func (h *Hub) send(jobID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal websocket message", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- &BroadcastMessage{JobID: jobID, Message: data}:
	default:
		h.log.Warn("websocket broadcast queue full", zap.String("job_id", jobID))
	}
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	subscribed := h.Subscribe(ctx, client)
	cancel()
	if !subscribed {
		return
	}
	defer h.Unregister(client)

	pongs := make(chan struct{}, 1)

	// Writer
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-pongs:
				pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
				if err := c.WriteMessage(websocket.TextMessage, pong); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket error", zap.String("job_id", jobID), zap.Error(err))
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}
}
