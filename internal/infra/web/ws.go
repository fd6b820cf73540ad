package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"cyber-research-service/internal/domain/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const wsWriteTimeout = 5 * time.Second

// wsObserver adapts one WebSocket connection to the fan-out observer
// interface. The mutex serializes writes; gorilla connections allow only one
// concurrent writer.
type wsObserver struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (o *wsObserver) Send(u model.ProgressUpdate) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_ = o.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return o.conn.WriteJSON(u)
}

func (o *wsObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_ = o.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteTimeout))
	return o.conn.Close()
}

// handleWS streams progress updates for one session until the session ends or
// the client disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.uc.Status(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	obs := &wsObserver{conn: conn}

	// Current state first, so the client never starts from a blank screen.
	if err := obs.Send(sess.Update()); err != nil {
		_ = obs.Close()
		return
	}
	if sess.Status.Terminal() {
		_ = obs.Close()
		return
	}

	s.hub.Register(id, obs)

	// The session may have finished between the first status read and
	// Register; that terminal event was published before the observer
	// existed, so nothing else would ever close it.
	if cur, err := s.uc.Status(r.Context(), id); err != nil || cur.Status.Terminal() {
		s.hub.Unregister(id, obs)
		if err == nil {
			_ = obs.Send(cur.Update())
		}
		_ = obs.Close()
		return
	}

	// Reads are discarded; the loop exists to notice disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.Unregister(id, obs)
				_ = conn.Close()
				return
			}
		}
	}()
}
