package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/theblitlabs/cook-staking/internal/monitoring/health"
	"github.com/theblitlabs/cook-staking/internal/session"
	"github.com/theblitlabs/cook-staking/internal/utils/contextutil"
	"github.com/theblitlabs/cook-staking/internal/utils/errorutil"
	"github.com/theblitlabs/cook-staking/pkg/logger"
)

// Controller is the session surface the HTTP layer drives
type Controller interface {
	Snapshot() session.State
	Subscribe(o session.Observer) (cancel func())
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	RefreshBalance(ctx context.Context) error
	SetAmount(text string) bool
	Stake(ctx context.Context, amountText string) error
	Claim(ctx context.Context) error
	DismissNotice()
}

// HealthReporter exposes the latest component health checks
type HealthReporter interface {
	Overall() health.Status
	GetAllHealth() []health.ComponentHealth
}

type Handler struct {
	ctrl      Controller
	health    HealthReporter
	symbol    string
	txTimeout time.Duration
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

func NewHandler(ctrl Controller, symbol string, txTimeout time.Duration) *Handler {
	return &Handler{
		ctrl:      ctrl,
		symbol:    symbol,
		txTimeout: txTimeout,
		log:       logger.WithComponent("api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// WithHealth reports component checks from /health
func (h *Handler) WithHealth(r HealthReporter) *Handler {
	h.health = r
	return h
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	State  *View  `json:"state,omitempty"`
}

func (h *Handler) view() View {
	return NewView(h.ctrl.Snapshot(), h.symbol)
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.view())
}

type healthResponse struct {
	Status     string                   `json:"status"`
	Components []health.ComponentHealth `json:"components,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}

	overall := h.health.Overall()
	status := http.StatusOK
	if overall == health.StatusError {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, healthResponse{
		Status:     string(overall),
		Components: h.health.GetAllHealth(),
	})
}

func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "connect", h.ctrl.Connect)
}

func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "disconnect", h.ctrl.Disconnect)
}

func (h *Handler) RefreshBalance(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "refresh", h.ctrl.RefreshBalance)
}

func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "claim", h.ctrl.Claim)
}

// Stake uses the amount in the body, or the form's current amount when the
// body is empty.
func (h *Handler) Stake(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAmount(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err, "invalid request body")
		return
	}
	amount := req.Amount
	if amount == "" {
		amount = h.ctrl.Snapshot().Form.AmountText
	}

	h.run(w, r, "stake", func(ctx context.Context) error {
		return h.ctrl.Stake(ctx, amount)
	})
}

func (h *Handler) SetAmount(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAmount(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err, "invalid request body")
		return
	}

	if !h.ctrl.SetAmount(req.Amount) {
		h.writeError(w, http.StatusConflict, session.ErrBusy, session.ErrBusy.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, h.view())
}

func (h *Handler) DismissNotice(w http.ResponseWriter, r *http.Request) {
	h.ctrl.DismissNotice()
	h.writeJSON(w, http.StatusOK, h.view())
}

// run executes op detached from the request so a client disconnect never
// abandons a transaction half way.
func (h *Handler) run(w http.ResponseWriter, r *http.Request, name string, op func(context.Context) error) {
	ctx, cancel := contextutil.Detached(r.Context(), h.txTimeout)
	defer cancel()

	if err := op(ctx); err != nil {
		status := statusFor(err)
		msg := err.Error()
		if status == http.StatusBadGateway {
			if n := h.ctrl.Snapshot().Notice; n != nil && n.Kind == session.NoticeError {
				msg = n.Message
			}
		}
		h.log.Warn().Err(err).Str("operation", name).Int("status", status).Msg("Operation rejected")
		h.writeError(w, status, err, msg)
		return
	}
	h.writeJSON(w, http.StatusOK, h.view())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, session.ErrAmountRequired), errors.Is(err, session.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	case errorutil.Canceled(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func decodeAmount(r *http.Request) (amountRequest, error) {
	var req amountRequest
	if r.Body == nil {
		return req, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	return req, nil
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error, msg string) {
	view := h.view()
	resp := errorResponse{Error: msg, State: &view}
	if err != nil && err.Error() != msg {
		resp.Detail = err.Error()
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
