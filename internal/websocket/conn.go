package websocket

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// An attempt client autosaves or pings well inside this window.
	readWait = 5 * time.Minute
)

// NewUpgrader returns an upgrader that accepts only the given origins.
// An empty list accepts any origin.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(allowedOrigins, r.Header.Get("Origin"))
		},
	}
}

func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

// Conn is one attempt stream. It is not safe for concurrent writers; the
// stream handler reads and replies from a single goroutine.
type Conn struct {
	ws *websocket.Conn
}

// Wrap adopts an upgraded connection.
func Wrap(c *websocket.Conn) *Conn { return &Conn{ws: c} }

// Next blocks for the next client action.
func (c *Conn) Next() (Request, error) {
	var req Request
	_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
	err := c.ws.ReadJSON(&req)
	return req, err
}

// Send writes one event.
func (c *Conn) Send(event any) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(event)
}

func (c *Conn) Saved(r SavedResponse) error {
	r.Event = EventSaved
	return c.Send(r)
}

func (c *Conn) Graded(r GradedResponse) error {
	r.Event = EventGraded
	return c.Send(r)
}

func (c *Conn) Pong() error {
	return c.Send(PongResponse{Event: EventPong, At: time.Now().UTC()})
}

func (c *Conn) Fail(code, msg string) error {
	return c.Send(ErrorResponse{Event: EventError, Code: code, Error: msg})
}

// CloseSubmitted ends the stream with a normal closure after grading.
func (c *Conn) CloseSubmitted() error {
	frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "submitted")
	return c.ws.WriteControl(websocket.CloseMessage, frame, time.Now().Add(time.Second))
}

func (c *Conn) Close() error { return c.ws.Close() }

// ClosedUnexpectedly reports whether err is anything other than the client
// leaving normally.
func ClosedUnexpectedly(err error) bool {
	return websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure)
}
