package event

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// FeedHandler 通过 WebSocket 推送事件日志
//
// 连接建立后先推送 ?after=<seq> 之后的历史事件，再持续推送新事件，
// 每条消息为一条 JSON 编码的 Record。
type FeedHandler struct {
	log          *Log
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	logger       zerolog.Logger
}

// FeedOption FeedHandler 选项
type FeedOption func(*FeedHandler)

// WithFeedLogger 设置日志器
func WithFeedLogger(logger zerolog.Logger) FeedOption {
	return func(h *FeedHandler) {
		h.logger = logger.With().Str("component", "event-feed").Logger()
	}
}

// WithCheckOrigin 设置跨域校验
func WithCheckOrigin(check func(r *http.Request) bool) FeedOption {
	return func(h *FeedHandler) {
		h.upgrader.CheckOrigin = check
	}
}

// NewFeedHandler 创建事件推送 Handler
func NewFeedHandler(log *Log, opts ...FeedOption) *FeedHandler {
	h := &FeedHandler{
		log: log,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
		},
		writeTimeout: 10 * time.Second,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP 实现 http.Handler
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. 解析起始序号
	var after uint64
	if v := r.URL.Query().Get("after"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid after parameter", http.StatusBadRequest)
			return
		}
		after = parsed
	}

	// 2. 升级连接
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// 3. 读循环：只用于感知客户端断开
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// 4. 推送历史与新事件
	backlog, ch := h.log.SubscribeFrom(ctx, after)
	for _, rec := range backlog {
		if err := h.write(conn, rec); err != nil {
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-ch:
			if !ok {
				if ctx.Err() == nil {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber lagged"),
						time.Now().Add(h.writeTimeout))
				}
				return
			}
			if err := h.write(conn, rec); err != nil {
				return
			}
		}
	}
}

func (h *FeedHandler) write(conn *websocket.Conn, rec Record) error {
	_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	if err := conn.WriteJSON(rec); err != nil {
		h.logger.Debug().Err(err).Uint64("seq", rec.Seq).Msg("websocket write failed")
		return err
	}
	return nil
}
