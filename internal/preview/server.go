package preview

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/matthoffner/wizardcoder-sandbox/internal/logging"
)

// Server publishes the renderer's visible content to browsers. Pages get
// the current document from /content and every later swap over /ws.
type Server struct {
	hub      *hub
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.RWMutex
	content string
	ctx     context.Context
}

// NewServer subscribes to r's swaps. r may be nil, in which case callers
// push content with Publish.
func NewServer(r *Renderer, logger *zap.Logger) *Server {
	logger = logging.OrNop(logger)
	s := &Server{
		hub:    newHub(logger),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				host, _, err := net.SplitHostPort(r.Host)
				if err != nil {
					host = r.Host
				}
				origin := r.Header.Get("Origin")
				return origin == "" || isLoopback(host)
			},
		},
	}
	if r != nil {
		s.content = r.Visible()
		r.OnSwap(s.Publish)
	}
	return s
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Publish records content as current and sends it to connected pages.
func (s *Server) Publish(content string) {
	s.mu.Lock()
	s.content = content
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	select {
	case s.hub.broadcast <- buildMessage("swap", content):
	case <-ctx.Done():
	}
}

// Content returns the most recently published document.
func (s *Server) Content() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content
}

// Handler returns the preview routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/content", s.handleContent)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start runs the broadcast hub until ctx is cancelled. Pages connecting
// before Start are turned away.
func (s *Server) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return
	}
	s.ctx = ctx
	go s.hub.run(ctx)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Start(ctx)
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("preview server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(s.Content()))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil {
		http.Error(w, "preview not running", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("preview upgrade failed", zap.Error(err))
		return
	}
	c := &client{hub: s.hub, conn: conn, send: make(chan []byte, sendBuffer)}
	c.send <- buildMessage("swap", s.Content())
	select {
	case s.hub.register <- c:
	case <-ctx.Done():
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump(ctx)
}

// indexPage keeps its own pair of iframes so the browser view swaps only
// once the new document has loaded.
const indexPage = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>WizardCoder preview</title>
<style>
  html, body { margin: 0; height: 100%; }
  iframe { position: absolute; inset: 0; width: 100%; height: 100%; border: 0; }
  iframe.hidden { visibility: hidden; }
</style>
</head>
<body>
<iframe id="a" sandbox="allow-scripts"></iframe>
<iframe id="b" sandbox="allow-scripts" class="hidden"></iframe>
<script>
  let front = document.getElementById("a");
  let back = document.getElementById("b");
  function show(html) {
    const next = back;
    next.onload = () => {
      next.classList.remove("hidden");
      front.classList.add("hidden");
      back = front;
      front = next;
    };
    next.srcdoc = html;
  }
  function connect() {
    const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
    ws.onmessage = (ev) => {
      const msg = JSON.parse(ev.data);
      if (msg.event === "swap") show(msg.data.content);
    };
    ws.onclose = () => setTimeout(connect, 1000);
  }
  fetch("/content").then((r) => r.text()).then(show).finally(connect);
</script>
</body>
</html>
`
