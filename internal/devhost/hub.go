package devhost

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrNoPage is returned by Execute when no page is connected.
var ErrNoPage = errors.New("devhost: no page connected")

// ErrPageBusy is returned by Execute when every page's send buffer is full.
var ErrPageBusy = errors.New("devhost: no page accepted code")

const pageSendBuffer = 64

type page struct {
	send chan string
}

// Hub is the eval surface backed by connected pages. Code is pushed to every
// page; anything a page posts back goes to the message handler.
type Hub struct {
	mu        sync.Mutex
	pages     map[*page]struct{}
	onMessage func(string) bool
	upgrader  websocket.Upgrader
	logger    zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		pages: make(map[*page]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The dev host only listens on loopback.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "hub").Logger(),
	}
}

// SetMessageHandler installs fn for page messages. fn reports whether it handled the message.
func (h *Hub) SetMessageHandler(fn func(string) bool) {
	h.mu.Lock()
	h.onMessage = fn
	h.mu.Unlock()
}

func (h *Hub) Execute(code string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.pages) == 0 {
		return ErrNoPage
	}
	accepted := 0
	for p := range h.pages {
		select {
		case p.send <- code:
			accepted++
		default:
			h.logger.Warn().Msg("page send buffer full, dropping code")
		}
	}
	if accepted == 0 {
		return ErrPageBusy
	}
	return nil
}

func (h *Hub) Pages() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pages)
}

func (h *Hub) subscribe() *page {
	p := &page{send: make(chan string, pageSendBuffer)}
	h.mu.Lock()
	h.pages[p] = struct{}{}
	h.mu.Unlock()
	return p
}

func (h *Hub) unsubscribe(p *page) {
	h.mu.Lock()
	if _, ok := h.pages[p]; ok {
		delete(h.pages, p)
		close(p.send)
	}
	h.mu.Unlock()
}

func (h *Hub) deliver(msg string) {
	h.mu.Lock()
	fn := h.onMessage
	h.mu.Unlock()
	if fn == nil || !fn(msg) {
		h.logger.Debug().Int("bytes", len(msg)).Msg("unhandled page message")
	}
}

// ServeWS upgrades the request and runs the page until it disconnects.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	p := h.subscribe()
	defer h.unsubscribe(p)
	h.logger.Info().Str("remote", c.ClientIP()).Msg("page connected")

	go func() {
		for code := range p.send {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(code)); err != nil {
				h.logger.Debug().Err(err).Msg("websocket write")
				return
			}
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure,
			) {
				h.logger.Debug().Err(err).Msg("websocket read")
			}
			break
		}
		if kind != websocket.TextMessage {
			continue
		}
		h.deliver(string(data))
	}
	h.logger.Info().Msg("page disconnected")
}
