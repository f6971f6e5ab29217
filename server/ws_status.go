package server

import (
	"net/http"
	"time"

	"mxfedl/cache"
	"mxfedl/logger"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
)

// StatusWebSocketHandler streams status changes of one media file. The current
// status is sent first; the socket closes after a terminal status.
func (h *APIHandler) StatusWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Invalid media id", http.StatusBadRequest)
		return
	}
	if h.events == nil {
		http.Error(w, "Status events are not enabled", http.StatusServiceUnavailable)
		return
	}

	media, err := h.store(r).Media.GetByID(r.Context(), id)
	if err != nil {
		h.log.Error("[WS] 查询媒体失败", logger.Uint("mediaId", id), logger.ErrorField(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if media == nil {
		http.Error(w, "Media file not found", http.StatusNotFound)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	events, cancel, err := h.events.Subscribe(ctx, id)
	if err != nil {
		h.log.Error("[WS] 订阅状态失败", logger.Uint("mediaId", id), logger.ErrorField(err))
		return
	}
	defer cancel()

	// the file may have moved on between the query and the subscription
	if fresh, err := h.store(r).Media.GetByID(ctx, id); err == nil && fresh != nil {
		media = fresh
	}
	current := cache.StatusEvent{MediaID: id, Status: media.Status, EDLID: media.EDLID, At: media.UpdatedAt}
	if err := writeEvent(conn, current); err != nil || current.Status.Terminal() {
		closeNormal(conn)
		return
	}

	// 读协程：处理 pong 与客户端关闭
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				return
			}
			if ev.Status.Terminal() {
				closeNormal(conn)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev cache.StatusEvent) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(ev)
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
