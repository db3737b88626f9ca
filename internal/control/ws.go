package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/pipeline"
)

const (
	clientSendBuffer = 4
	writeWait        = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	// The control surface is meant for the local network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message types sent over /ws.
const (
	MessageStatus = "status"
	MessageAck    = "ack"
)

// Command is a client-to-server websocket message. Value carries the
// argument of "threshold" (a number) and "classes" (a list of names).
type Command struct {
	Action string          `json:"action"`
	Value  json.RawMessage `json:"value,omitempty"`
}

// Message is a server-to-client websocket message.
type Message struct {
	Type   string           `json:"type"`
	Action string           `json:"action,omitempty"`
	Error  string           `json:"error,omitempty"`
	Status *pipeline.Status `json:"status,omitempty"`
}

func statusMessage(st pipeline.Status) Message {
	return Message{Type: MessageStatus, Status: &st}
}

type wsClient struct {
	conn *websocket.Conn
	send chan Message
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}

// hub tracks connected websocket clients. Slow clients lose messages
// rather than stall the pipeline.
type hub struct {
	mu       sync.Mutex
	clients  map[*wsClient]struct{}
	lastPush time.Time
	closed   bool
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]struct{})}
}

// due reports whether a periodic push is due at now and, if so, records it.
func (h *hub) due(now time.Time, interval time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return false
	}
	if !h.lastPush.IsZero() && now.Sub(h.lastPush) < interval {
		return false
	}
	h.lastPush = now
	return true
}

func (h *hub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

// sendTo queues m for one client if it is still connected.
func (h *hub) sendTo(c *wsClient, m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- m:
	default:
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) broadcast(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- m:
		default:
		}
	}
}

// closeAll disconnects every client and refuses new ones.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logf("websocket upgrade failed: %v", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan Message, clientSendBuffer)}
	if !s.hub.add(c) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	s.hub.sendTo(c, statusMessage(s.opts.Controller.Status()))

	go s.writePump(c)
	s.readPump(c)
}

// writePump owns all writes to the connection.
func (s *Server) writePump(c *wsClient) {
	defer c.conn.Close()
	for m := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(m); err != nil {
			logf("websocket write failed: %v", err)
			s.hub.remove(c)
			for range c.send {
			}
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (s *Server) readPump(c *wsClient) {
	defer s.hub.remove(c)
	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logf("websocket read: %v", err)
			}
			return
		}
		ack := Message{Type: MessageAck, Action: cmd.Action}
		if err := s.dispatch(cmd); err != nil {
			ack.Error = err.Error()
		}
		s.hub.sendTo(c, ack)
		switch {
		case ack.Error != "":
		case cmd.Action == "status":
			s.hub.sendTo(c, statusMessage(s.opts.Controller.Status()))
		default:
			s.hub.broadcast(statusMessage(s.opts.Controller.Status()))
		}
	}
}

// dispatch applies one websocket command.
func (s *Server) dispatch(cmd Command) error {
	ctl := s.opts.Controller
	switch cmd.Action {
	case "start":
		return ctl.StartRecording()
	case "stop":
		return ctl.StopRecording()
	case "toggle":
		_, err := ctl.ToggleRecording()
		return err
	case "screenshot":
		return ctl.TakeScreenshot()
	case "quit":
		ctl.RequestQuit()
		return nil
	case "status":
		return nil
	case "threshold":
		var v float64
		if err := json.Unmarshal(cmd.Value, &v); err != nil {
			return fmt.Errorf("threshold value must be a number: %w", err)
		}
		return ctl.SetConfidenceThreshold(v)
	case "classes":
		var names []string
		if len(cmd.Value) > 0 {
			if err := json.Unmarshal(cmd.Value, &names); err != nil {
				return fmt.Errorf("classes value must be a list of names: %w", err)
			}
		}
		ids, err := s.resolveClasses(ClassesRequest{Classes: names})
		if err != nil {
			return err
		}
		ctl.SetAllowedClasses(ids)
		return nil
	case "":
		return errors.New("missing action")
	}
	return fmt.Errorf("unknown action %q", cmd.Action)
}
