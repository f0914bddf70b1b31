package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/theblitlabs/cook-staking/internal/monitoring/health"
	"github.com/theblitlabs/cook-staking/internal/session"
)

type mockController struct {
	mock.Mock

	mu        sync.Mutex
	state     session.State
	observers map[int]session.Observer
	nextID    int
}

func newMockController(s session.State) *mockController {
	return &mockController{state: s, observers: make(map[int]session.Observer)}
}

func (m *mockController) Snapshot() session.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockController) setState(s session.State) {
	m.mu.Lock()
	m.state = s
	observers := make([]session.Observer, 0, len(m.observers))
	for _, o := range m.observers {
		observers = append(observers, o)
	}
	m.mu.Unlock()

	for _, o := range observers {
		o(s)
	}
}

func (m *mockController) subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.observers)
}

func (m *mockController) Subscribe(o session.Observer) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.observers[id] = o
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.observers, id)
	}
}

func (m *mockController) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockController) Disconnect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockController) RefreshBalance(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockController) SetAmount(text string) bool {
	return m.Called(text).Bool(0)
}

func (m *mockController) Stake(ctx context.Context, amountText string) error {
	return m.Called(ctx, amountText).Error(0)
}

func (m *mockController) Claim(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockController) DismissNotice() {
	m.Called()
}

func setupRouter(ctrl *mockController) *Router {
	return NewRouter(NewHandler(ctrl, "COOK", time.Minute))
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) View {
	t.Helper()
	var v View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestGetState(t *testing.T) {
	ctrl := newMockController(connectedState())
	rec := doRequest(t, setupRouter(ctrl), http.MethodGet, "/api/state", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	v := decodeView(t, rec)
	assert.Equal(t, "12,345", v.Balance)
	assert.Equal(t, "COOK", v.Symbol)
	assert.True(t, v.Buttons.Stake.Enabled)
}

func TestHealthAndIndex(t *testing.T) {
	router := setupRouter(newMockController(session.State{}))

	rec := doRequest(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/ws")

	rec = doRequest(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReportsComponents(t *testing.T) {
	checker := health.NewChecker(time.Minute)
	checker.Register("rpc", func(context.Context) (string, error) { return "", fmt.Errorf("dial tcp: refused") })
	checker.CheckAll(context.Background())

	h := NewHandler(newMockController(session.State{}), "COOK", time.Minute).WithHealth(checker)
	rec := doRequest(t, NewRouter(h), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ERROR", resp.Status)
	require.Len(t, resp.Components, 1)
	assert.Equal(t, "rpc", resp.Components[0].Name)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := doRequest(t, setupRouter(newMockController(session.State{})), http.MethodGet, "/api/stake", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestConnectRunsDetachedFromRequest(t *testing.T) {
	ctrl := newMockController(session.State{})
	ctrl.On("Connect", mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			assert.NoError(t, ctx.Err())
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
		}).
		Return(nil)

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/connect", nil).WithContext(reqCtx)
	rec := httptest.NewRecorder()
	setupRouter(ctrl).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	ctrl.AssertExpectations(t)
}

func TestConnectFailure(t *testing.T) {
	ctrl := newMockController(session.State{WalletError: "no account in keystore"})
	ctrl.On("Connect", mock.Anything).Return(fmt.Errorf("%w: no account", session.ErrConnect))

	rec := doRequest(t, setupRouter(ctrl), http.MethodPost, "/api/connect", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	e := decodeError(t, rec)
	assert.Contains(t, e.Error, "wallet connection failed")
	require.NotNil(t, e.State)
	assert.Equal(t, "no account in keystore", e.State.WalletError)
}

func TestStake(t *testing.T) {
	ctrl := newMockController(connectedState())
	ctrl.On("Stake", mock.Anything, "10").Return(nil).Once()

	rec := doRequest(t, setupRouter(ctrl), http.MethodPost, "/api/stake", `{"amount":"10"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	ctrl.AssertExpectations(t)
}

func TestStakeUsesFormAmountWithoutBody(t *testing.T) {
	s := connectedState()
	s.Form.AmountText = "7"
	ctrl := newMockController(s)
	ctrl.On("Stake", mock.Anything, "7").Return(nil).Once()

	rec := doRequest(t, setupRouter(ctrl), http.MethodPost, "/api/stake", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	ctrl.AssertExpectations(t)
}

func TestStakeErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"busy", session.ErrBusy, http.StatusConflict},
		{"not connected", session.ErrNotConnected, http.StatusConflict},
		{"amount required", session.ErrAmountRequired, http.StatusBadRequest},
		{"invalid amount", fmt.Errorf("%w: %w", session.ErrWrite, session.ErrInvalidAmount), http.StatusBadRequest},
		{"closed", session.ErrClosed, http.StatusServiceUnavailable},
		{"reverted", fmt.Errorf("%w: stake: execution reverted", session.ErrWrite), http.StatusBadGateway},
		{"timed out", fmt.Errorf("%w: approve: %w", session.ErrWrite, context.DeadlineExceeded), http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newMockController(connectedState())
			ctrl.On("Stake", mock.Anything, "1").Return(tt.err)

			rec := doRequest(t, setupRouter(ctrl), http.MethodPost, "/api/stake", `{"amount":"1"}`)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestStakeFailureReportsNotice(t *testing.T) {
	ctrl := newMockController(connectedState())
	ctrl.On("Stake", mock.Anything, "1").
		Run(func(mock.Arguments) {
			s := connectedState()
			s.Form.AmountText = "1"
			s.Notice = &session.Notice{ID: "n1", Kind: session.NoticeError, Message: "Stake failed"}
			ctrl.setState(s)
		}).
		Return(fmt.Errorf("%w: approve: user rejected", session.ErrWrite))

	rec := doRequest(t, setupRouter(ctrl), http.MethodPost, "/api/stake", `{"amount":"1"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, "Stake failed", e.Error)
	assert.Contains(t, e.Detail, "user rejected")
	require.NotNil(t, e.State)
	assert.Equal(t, "1", e.State.Amount)
}

func TestStakeInvalidBody(t *testing.T) {
	ctrl := newMockController(connectedState())

	rec := doRequest(t, setupRouter(ctrl), http.MethodPost, "/api/stake", `{"amount":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	ctrl.AssertNotCalled(t, "Stake", mock.Anything, mock.Anything)
}

func TestSetAmount(t *testing.T) {
	ctrl := newMockController(connectedState())
	ctrl.On("SetAmount", "2.5").Return(true)
	ctrl.On("SetAmount", "3").Return(false)
	router := setupRouter(ctrl)

	rec := doRequest(t, router, http.MethodPut, "/api/amount", `{"amount":"2.5"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPut, "/api/amount", `{"amount":"3"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, session.ErrBusy.Error(), decodeError(t, rec).Error)
}

func TestClaim(t *testing.T) {
	ctrl := newMockController(connectedState())
	ctrl.On("Claim", mock.Anything).Return(nil).Once()

	rec := doRequest(t, setupRouter(ctrl), http.MethodPost, "/api/claim", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	ctrl.AssertExpectations(t)
	ctrl.AssertNotCalled(t, "Stake", mock.Anything, mock.Anything)
}

func TestDisconnectRefreshAndDismiss(t *testing.T) {
	ctrl := newMockController(connectedState())
	ctrl.On("Disconnect", mock.Anything).Return(nil)
	ctrl.On("RefreshBalance", mock.Anything).Return(nil)
	ctrl.On("DismissNotice").Return()
	router := setupRouter(ctrl)

	assert.Equal(t, http.StatusOK, doRequest(t, router, http.MethodPost, "/api/balance/refresh", "").Code)
	assert.Equal(t, http.StatusOK, doRequest(t, router, http.MethodDelete, "/api/notice", "").Code)
	assert.Equal(t, http.StatusOK, doRequest(t, router, http.MethodPost, "/api/disconnect", "").Code)
	ctrl.AssertExpectations(t)
}

func TestStreamPushesState(t *testing.T) {
	ctrl := newMockController(session.State{Balance: session.BalanceView{DisplayValue: "0"}, Version: 1})
	srv := httptest.NewServer(setupRouter(ctrl))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	readView := func() View {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg struct {
			Type    string `json:"type"`
			Payload View   `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "state", msg.Type)
		return msg.Payload
	}

	first := readView()
	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, "Connect Wallet", first.Buttons.Connect.Label)

	require.Eventually(t, func() bool { return ctrl.subscribers() == 1 }, time.Second, 5*time.Millisecond)

	next := connectedState()
	next.Version = 2
	ctrl.setState(next)

	second := readView()
	assert.Equal(t, uint64(2), second.Version)
	assert.Equal(t, "12,345", second.Balance)
	assert.True(t, second.Buttons.Stake.Enabled)
}
