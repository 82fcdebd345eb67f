package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vibecoding/internal/observe"
	"github.com/MrWong99/vibecoding/internal/transcript"
)

// streamRequest is one client message on /v1/stream.
type streamRequest struct {
	ID string `json:"id"`
	cleanRequest
}

// streamResponse answers exactly one [streamRequest], matched by ID. Error is
// set instead of the result fields when the message could not be handled.
type streamResponse struct {
	ID             string                  `json:"id"`
	Text           string                  `json:"text"`
	Method         string                  `json:"method,omitempty"`
	Fallback       bool                    `json:"fallback"`
	FallbackReason string                  `json:"fallback_reason,omitempty"`
	Corrections    []transcript.Correction `json:"corrections,omitempty"`
	Duration       string                  `json:"duration,omitempty"`
	Error          string                  `json:"error,omitempty"`
}

// handleStream upgrades to a WebSocket and cleans each text message as it
// arrives. Messages are processed concurrently, bounded by the batch limit,
// so replies may arrive out of order; clients correlate them by ID.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		observe.Logger(r.Context()).Debug("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.maxBody)

	ctx := r.Context()
	s.metrics.StreamActive.Add(ctx, 1)
	defer s.metrics.StreamActive.Add(context.WithoutCancel(ctx), -1)

	log := observe.Logger(ctx)
	log.Debug("stream opened", "remote", r.RemoteAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchLimit)

	for {
		typ, data, err := conn.Read(gctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
				log.Debug("stream read ended", "err", err)
			}
			break
		}
		if typ != websocket.MessageText {
			s.reply(gctx, conn, streamResponse{Error: "binary messages are not supported"})
			continue
		}

		var msg streamRequest
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(gctx, conn, streamResponse{Error: "invalid message: " + err.Error()})
			continue
		}
		g.Go(func() error {
			res, err := s.clean(gctx, msg.cleanRequest)
			if err != nil {
				s.reply(gctx, conn, streamResponse{ID: msg.ID, Error: err.Error()})
				return nil
			}
			s.reply(gctx, conn, streamResponse{
				ID:             msg.ID,
				Text:           res.Text,
				Method:         res.Method,
				Fallback:       res.Fallback,
				FallbackReason: res.FallbackReason,
				Corrections:    res.Corrections,
				Duration:       res.Duration,
			})
			return nil
		})
	}
	_ = g.Wait()
	conn.Close(websocket.StatusNormalClosure, "")
	log.Debug("stream closed", "remote", r.RemoteAddr)
}

// reply writes one response. Concurrent writes on a websocket.Conn are safe.
func (s *Server) reply(ctx context.Context, conn *websocket.Conn, resp streamResponse) {
	if err := wsjson.Write(ctx, conn, resp); err != nil {
		observe.Logger(ctx).Debug("stream write failed", "id", resp.ID, "err", err)
	}
}
