package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/okian/judgeboard/internal/domain/dedupe"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/protocol"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
)

const maxFrameBytes = 64 << 10

// ScoreSubmitter records a judge's scores.
type ScoreSubmitter interface {
	SubmitScore(candidateID, judgeID string, values map[string]float64) (model.Score, error)
}

// Handler serves the websocket endpoint.
type Handler struct {
	reg    *Registry
	router *Router
	scores ScoreSubmitter
	seen   dedupe.Deduper
	log    logger.Logger
}

// NewHandler creates the socket handler. scores may be nil, in which case
// submit_score is rejected as unsupported.
func NewHandler(reg *Registry, router *Router, scores ScoreSubmitter, seen dedupe.Deduper, log logger.Logger) *Handler {
	if seen == nil {
		seen = dedupe.NewInMemoryDeduper()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{reg: reg, router: router, scores: scores, seen: seen, log: log}
}

// ServeHTTP upgrades the request. Origins are not checked: judges and the
// display may run from any host on the venue network.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   h.serve,
	}.ServeHTTP(w, r)
}

func (h *Handler) serve(ws *websocket.Conn) {
	ws.MaxPayloadBytes = maxFrameBytes
	ctx := ws.Request().Context()
	c, err := h.reg.Accept(ctx, NewWSTransport(ws), ws.Request().RemoteAddr)
	if err != nil {
		_ = ws.Close()
		return
	}
	reason := ReasonClientGone
	defer func() { h.reg.Terminate(c.ID, reason) }()

	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				h.reject(ctx, c, protocol.CodeMalformed, "frame too large", "")
				continue
			}
			if !errors.Is(err, io.EOF) {
				h.log.Debug(ctx, "read stopped", logger.String("client_id", c.ID), logger.Error(err))
			}
			return
		}
		h.Handle(ctx, c, []byte(msg))
	}
}

// Handle processes one inbound frame from c. Errors are answered with an
// error envelope; the connection stays open.
func (h *Handler) Handle(ctx context.Context, c *Conn, raw []byte) {
	h.reg.Touch(c.ID)
	env, err := protocol.Decode(raw)
	if err != nil {
		metrics.RecordProtocolError()
		code := protocol.CodeMalformed
		if errors.Is(err, protocol.ErrUnknownEvent) {
			code = protocol.CodeUnknownEvent
		}
		h.reject(ctx, c, code, err.Error(), "")
		return
	}
	metrics.RecordInboundMessage(string(env.Kind))

	switch env.Kind {
	case protocol.KindHeartbeat:
		h.reply(ctx, c, protocol.NewHeartbeat())
	case protocol.KindEvent:
		h.handleEvent(ctx, c, env)
	default:
		// Responses and errors from clients carry nothing to act on.
		h.log.Debug(ctx, "ignored client envelope", logger.String("client_id", c.ID), logger.String("kind", string(env.Kind)))
	}
}

func (h *Handler) handleEvent(ctx context.Context, c *Conn, env protocol.Envelope) {
	switch env.EventType {
	case protocol.EventClientAuth:
		h.handleAuth(ctx, c, env)
	case protocol.EventSubmitScore:
		if env.ID != "" && h.seen.SeenAndRecord(ctx, env.ID) {
			metrics.RecordDuplicateMessage()
			h.log.Debug(ctx, "duplicate submission dropped", logger.String("envelope_id", env.ID))
			return
		}
		if err := h.handleSubmit(ctx, c, env); err != nil && env.ID != "" {
			h.seen.Unrecord(ctx, env.ID)
		}
	default:
		h.reject(ctx, c, protocol.CodeUnsupported, fmt.Sprintf("%s cannot be sent by clients", env.EventType), env.ID)
	}
}

func (h *Handler) handleAuth(ctx context.Context, c *Conn, env protocol.Envelope) {
	var auth protocol.ClientAuth
	if err := env.DecodeData(&auth); err != nil {
		h.reject(ctx, c, protocol.CodeMalformed, err.Error(), env.ID)
		return
	}
	role, err := protocol.ParseRole(auth.Type)
	if err != nil {
		h.reject(ctx, c, protocol.CodeInvalidRole, err.Error(), env.ID)
		return
	}
	if role == protocol.RoleJudge && auth.JudgeID == "" {
		h.reject(ctx, c, protocol.CodeInvalidRole, "judge connections need a judgeId", env.ID)
		return
	}
	if _, err := h.reg.Authenticate(ctx, c.ID, role, auth.JudgeID); err != nil {
		h.log.Debug(ctx, "auth on closed connection", logger.String("client_id", c.ID), logger.Error(err))
		return
	}
	resp, err := protocol.NewResponse(protocol.EventAuthSuccess, protocol.AuthSuccess{
		ClientID: c.ID,
		Role:     role,
		JudgeID:  c.JudgeID(),
	})
	if err != nil {
		return
	}
	h.reply(ctx, c, resp)
}

func (h *Handler) handleSubmit(ctx context.Context, c *Conn, env protocol.Envelope) error {
	if h.scores == nil {
		h.reject(ctx, c, protocol.CodeUnsupported, "score submission is disabled", env.ID)
		return errors.New("submission disabled")
	}
	judgeID := c.JudgeID()
	if c.Role() != protocol.RoleJudge || judgeID == "" {
		h.reject(ctx, c, protocol.CodeUnauthorized, "only authenticated judges may submit scores", env.ID)
		return errors.New("not a judge")
	}
	var sub protocol.SubmitScore
	if err := env.DecodeData(&sub); err != nil {
		h.reject(ctx, c, protocol.CodeMalformed, err.Error(), env.ID)
		return err
	}
	if sub.JudgeID != "" && sub.JudgeID != judgeID {
		h.reject(ctx, c, protocol.CodeUnauthorized, "judgeId does not match the connection", env.ID)
		return errors.New("judge mismatch")
	}

	score, err := h.scores.SubmitScore(sub.CandidateID, judgeID, sub.DimensionScores)
	if err != nil {
		h.reject(ctx, c, protocol.CodeRejected, err.Error(), env.ID)
		return err
	}
	resp, err := protocol.NewResponse(protocol.EventScoreAccepted, protocol.ScoreAccepted{
		ScoreID:     score.ID,
		CandidateID: score.CandidateID,
		TotalScore:  score.TotalScore,
		ReplyTo:     env.ID,
	})
	if err != nil {
		return nil
	}
	h.reply(ctx, c, resp)
	return nil
}

func (h *Handler) reply(ctx context.Context, c *Conn, env protocol.Envelope) {
	env.ClientID = c.ID
	if err := c.send(ctx, env); err != nil {
		metrics.RecordDroppedDelivery()
		h.log.Debug(ctx, "reply dropped", logger.String("client_id", c.ID), logger.Error(err))
	}
}

func (h *Handler) reject(ctx context.Context, c *Conn, code, message, replyTo string) {
	h.reply(ctx, c, protocol.NewError(code, message, replyTo))
}
