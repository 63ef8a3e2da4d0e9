package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/custodia-labs/pos-sync/internal/core/domain"
	"github.com/custodia-labs/pos-sync/internal/core/ports/driving"
)

// Mock services for testing

var (
	_ driving.AuthService = (*mockAuthService)(nil)
	_ driving.SyncEngine  = (*mockSyncEngine)(nil)
	_ driving.QueueAdmin  = (*mockQueueAdmin)(nil)
)

type mockAuthService struct {
	authenticateFn  func(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)
	validateTokenFn func(ctx context.Context, token string) (*domain.AuthContext, error)
	refreshTokenFn  func(ctx context.Context, req domain.RefreshRequest) (*domain.LoginResponse, error)
	logoutFn        func(ctx context.Context, token string) error
}

func (m *mockAuthService) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if m.validateTokenFn != nil {
		return m.validateTokenFn(ctx, token)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) RefreshToken(ctx context.Context, req domain.RefreshRequest) (*domain.LoginResponse, error) {
	if m.refreshTokenFn != nil {
		return m.refreshTokenFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

func (m *mockAuthService) LogoutAll(ctx context.Context, operatorID string) error {
	return nil
}

func (m *mockAuthService) CreateOperator(ctx context.Context, req domain.CreateOperatorRequest) (*domain.Operator, error) {
	return nil, errors.New("not implemented")
}

type mockSyncEngine struct {
	forceSyncFn func(ctx context.Context, opts driving.SyncOptions) (*domain.SyncReport, error)
	statusFn    func(ctx context.Context) (*domain.SyncStatus, error)
}

func (m *mockSyncEngine) ProbeConnectivity(ctx context.Context) bool { return true }
func (m *mockSyncEngine) RemoteAvailable() bool                      { return true }
func (m *mockSyncEngine) State() domain.EngineState                  { return domain.EngineStateIdle }

func (m *mockSyncEngine) DrainQueue(ctx context.Context, maxItems int) (*domain.DrainResult, error) {
	return &domain.DrainResult{}, nil
}

func (m *mockSyncEngine) SyncRemoteToLocal(ctx context.Context, tables []string) (*domain.PullResult, error) {
	return &domain.PullResult{}, nil
}

func (m *mockSyncEngine) ForceSync(ctx context.Context, opts driving.SyncOptions) (*domain.SyncReport, error) {
	if m.forceSyncFn != nil {
		return m.forceSyncFn(ctx, opts)
	}
	return nil, errors.New("not implemented")
}

func (m *mockSyncEngine) Status(ctx context.Context) (*domain.SyncStatus, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx)
	}
	return nil, errors.New("not implemented")
}

type mockQueueAdmin struct {
	inspectFn       func(ctx context.Context, filter domain.QueueFilter) ([]*domain.QueueEntry, error)
	getEntryFn      func(ctx context.Context, id int64) (*domain.QueueEntry, error)
	resetFailedFn   func(ctx context.Context, ids []int64) (int64, error)
	purgeFn         func(ctx context.Context, status domain.QueueStatus, olderThan time.Time) (int64, error)
	syncOneWayFn    func(ctx context.Context, dir domain.Direction) (*domain.SyncReport, error)
	healthFn        func(ctx context.Context) (*domain.HealthReport, error)
	refreshSchemaFn func(ctx context.Context, table string) error
}

func (m *mockQueueAdmin) Inspect(ctx context.Context, filter domain.QueueFilter) ([]*domain.QueueEntry, error) {
	if m.inspectFn != nil {
		return m.inspectFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockQueueAdmin) GetEntry(ctx context.Context, id int64) (*domain.QueueEntry, error) {
	if m.getEntryFn != nil {
		return m.getEntryFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockQueueAdmin) ResetFailed(ctx context.Context, ids []int64) (int64, error) {
	if m.resetFailedFn != nil {
		return m.resetFailedFn(ctx, ids)
	}
	return 0, nil
}

func (m *mockQueueAdmin) PurgeFailed(ctx context.Context, olderThan time.Time) (int64, error) {
	return m.Purge(ctx, domain.QueueStatusFailed, olderThan)
}

func (m *mockQueueAdmin) Purge(ctx context.Context, status domain.QueueStatus, olderThan time.Time) (int64, error) {
	if m.purgeFn != nil {
		return m.purgeFn(ctx, status, olderThan)
	}
	return 0, nil
}

func (m *mockQueueAdmin) SyncOneWay(ctx context.Context, dir domain.Direction) (*domain.SyncReport, error) {
	if m.syncOneWayFn != nil {
		return m.syncOneWayFn(ctx, dir)
	}
	return nil, errors.New("not implemented")
}

func (m *mockQueueAdmin) Health(ctx context.Context) (*domain.HealthReport, error) {
	if m.healthFn != nil {
		return m.healthFn(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockQueueAdmin) RefreshSchema(ctx context.Context, table string) error {
	if m.refreshSchemaFn != nil {
		return m.refreshSchemaFn(ctx, table)
	}
	return nil
}

func (m *mockQueueAdmin) Stats(ctx context.Context) (*domain.QueueStats, error) {
	return &domain.QueueStats{}, nil
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Test helpers

// tokenAuth accepts "admin-token" and "cashier-token"
func tokenAuth() *mockAuthService {
	return &mockAuthService{
		validateTokenFn: func(ctx context.Context, token string) (*domain.AuthContext, error) {
			switch token {
			case "admin-token":
				return &domain.AuthContext{OperatorID: "op-admin", Role: domain.RoleAdmin}, nil
			case "cashier-token":
				return &domain.AuthContext{OperatorID: "op-cashier", Role: domain.RoleCashier}, nil
			}
			return nil, domain.ErrTokenInvalid
		},
	}
}

type testDeps struct {
	auth   *mockAuthService
	engine *mockSyncEngine
	admin  *mockQueueAdmin
	local  Pinger
	remote Pinger
}

func newTestServer(d testDeps) http.Handler {
	if d.auth == nil {
		d.auth = tokenAuth()
	}
	if d.engine == nil {
		d.engine = &mockSyncEngine{}
	}
	if d.admin == nil {
		d.admin = &mockQueueAdmin{}
	}
	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	s := NewServer(cfg, Deps{
		AuthService: d.auth,
		Engine:      d.engine,
		QueueAdmin:  d.admin,
		Local:       d.local,
		Remote:      d.remote,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return s.Handler()
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

// Health endpoints

func TestHandleHealthAndVersion(t *testing.T) {
	h := newTestServer(testDeps{})

	rr := do(t, h, "GET", "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}

	rr = do(t, h, "GET", "/version", "", "")
	if got := decode[map[string]string](t, rr)["version"]; got != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %q", got)
	}
}

func TestHandleReady(t *testing.T) {
	ok := pingerFunc(func(ctx context.Context) error { return nil })
	down := pingerFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		local      Pinger
		remote     Pinger
		wantStatus int
		wantRemote string
	}{
		{name: "both up", local: ok, remote: ok, wantStatus: http.StatusOK, wantRemote: "ok"},
		{name: "offline is still ready", local: ok, remote: down, wantStatus: http.StatusOK, wantRemote: "unavailable"},
		{name: "no remote configured", local: ok, wantStatus: http.StatusOK, wantRemote: "not configured"},
		{name: "local down", local: down, remote: ok, wantStatus: http.StatusServiceUnavailable, wantRemote: "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(testDeps{local: tt.local, remote: tt.remote})
			rr := do(t, h, "GET", "/ready", "", "")

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if got := decode[ReadyResponse](t, rr).Remote; got != tt.wantRemote {
				t.Errorf("expected remote %q, got %q", tt.wantRemote, got)
			}
		})
	}
}

// Auth endpoints

func TestHandleLogin(t *testing.T) {
	auth := tokenAuth()
	auth.authenticateFn = func(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
		switch {
		case req.Email == "" || req.Password == "":
			return nil, domain.ErrInvalidInput
		case req.Email == "baja@tienda.mx":
			return nil, domain.ErrUnauthorized
		case req.Password != "secreto":
			return nil, domain.ErrInvalidCredentials
		}
		return &domain.LoginResponse{Token: "jwt", Operator: &domain.OperatorSummary{Email: req.Email}}, nil
	}
	h := newTestServer(testDeps{auth: auth})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "success", body: `{"email":"caja@tienda.mx","password":"secreto"}`, wantStatus: http.StatusOK},
		{name: "bad password", body: `{"email":"caja@tienda.mx","password":"x"}`, wantStatus: http.StatusUnauthorized},
		{name: "disabled", body: `{"email":"baja@tienda.mx","password":"secreto"}`, wantStatus: http.StatusUnauthorized},
		{name: "missing fields", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, "POST", "/api/v1/auth/login", "", tt.body)
			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHandleRefreshAndLogout(t *testing.T) {
	var loggedOut string
	auth := tokenAuth()
	auth.refreshTokenFn = func(ctx context.Context, req domain.RefreshRequest) (*domain.LoginResponse, error) {
		if req.RefreshToken != "r-1" {
			return nil, domain.ErrTokenInvalid
		}
		return &domain.LoginResponse{Token: "jwt-2", RefreshToken: "r-2"}, nil
	}
	auth.logoutFn = func(ctx context.Context, token string) error {
		loggedOut = token
		return nil
	}
	h := newTestServer(testDeps{auth: auth})

	rr := do(t, h, "POST", "/api/v1/auth/refresh", "", `{"refresh_token":"r-1"}`)
	if rr.Code != http.StatusOK || decode[domain.LoginResponse](t, rr).Token != "jwt-2" {
		t.Errorf("expected refreshed token, got %d %s", rr.Code, rr.Body.String())
	}
	rr = do(t, h, "POST", "/api/v1/auth/refresh", "", `{"refresh_token":"stale"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}

	rr = do(t, h, "POST", "/api/v1/auth/logout", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected logout to require a token, got %d", rr.Code)
	}
	rr = do(t, h, "POST", "/api/v1/auth/logout", "cashier-token", "")
	if rr.Code != http.StatusOK || loggedOut != "cashier-token" {
		t.Errorf("expected logout of cashier-token, got %d %q", rr.Code, loggedOut)
	}
}

// Sync endpoints

func TestHandleSyncStatus(t *testing.T) {
	engine := &mockSyncEngine{
		statusFn: func(ctx context.Context) (*domain.SyncStatus, error) {
			return &domain.SyncStatus{Pending: 3, RemoteAvailable: false, EngineState: domain.EngineStateIdle}, nil
		},
	}
	h := newTestServer(testDeps{engine: engine})

	if rr := do(t, h, "GET", "/api/v1/sync/status", "", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rr.Code)
	}

	rr := do(t, h, "GET", "/api/v1/sync/status", "cashier-token", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := decode[domain.SyncStatus](t, rr); got.Pending != 3 {
		t.Errorf("expected 3 pending, got %d", got.Pending)
	}
}

func TestHandleForceSync(t *testing.T) {
	var gotOpts driving.SyncOptions
	online := true
	engine := &mockSyncEngine{
		forceSyncFn: func(ctx context.Context, opts driving.SyncOptions) (*domain.SyncReport, error) {
			gotOpts = opts
			if opts.Direction == "sideways" {
				return nil, domain.ErrInvalidInput
			}
			return &domain.SyncReport{Direction: domain.DirectionBoth, Online: online, Success: online}, nil
		},
	}
	h := newTestServer(testDeps{engine: engine})

	if rr := do(t, h, "POST", "/api/v1/sync/force", "cashier-token", ""); rr.Code != http.StatusForbidden {
		t.Errorf("expected cashier to be refused, got %d", rr.Code)
	}

	rr := do(t, h, "POST", "/api/v1/sync/force", "admin-token", "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 with empty body, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = do(t, h, "POST", "/api/v1/sync/force", "admin-token", `{"direction":"pull","tables":["productos"]}`)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if gotOpts.Direction != domain.DirectionPull || len(gotOpts.Tables) != 1 || gotOpts.Tables[0] != "productos" {
		t.Errorf("unexpected options %+v", gotOpts)
	}

	if rr = do(t, h, "POST", "/api/v1/sync/force", "admin-token", `{"direction":"sideways"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	if rr = do(t, h, "POST", "/api/v1/sync/force", "admin-token", `{`); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", rr.Code)
	}

	online = false
	rr = do(t, h, "POST", "/api/v1/sync/force", "admin-token", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when offline, got %d", rr.Code)
	}
	if decode[domain.SyncReport](t, rr).Online {
		t.Error("expected report body with online=false")
	}
}

func TestHandleOneWaySync(t *testing.T) {
	var dirs []domain.Direction
	admin := &mockQueueAdmin{
		syncOneWayFn: func(ctx context.Context, dir domain.Direction) (*domain.SyncReport, error) {
			dirs = append(dirs, dir)
			return &domain.SyncReport{Direction: dir, Online: true, Success: true}, nil
		},
	}
	h := newTestServer(testDeps{admin: admin})

	for _, path := range []string{"/api/v1/sync/push", "/api/v1/sync/pull"} {
		if rr := do(t, h, "POST", path, "admin-token", ""); rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rr.Code)
		}
	}
	if len(dirs) != 2 || dirs[0] != domain.DirectionPush || dirs[1] != domain.DirectionPull {
		t.Errorf("expected push then pull, got %v", dirs)
	}
}

func TestHandleSyncHealth(t *testing.T) {
	admin := &mockQueueAdmin{
		healthFn: func(ctx context.Context) (*domain.HealthReport, error) {
			return &domain.HealthReport{Overall: domain.HealthGood, Score: 80}, nil
		},
	}
	h := newTestServer(testDeps{admin: admin})

	rr := do(t, h, "GET", "/api/v1/sync/health", "cashier-token", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := decode[domain.HealthReport](t, rr); got.Overall != domain.HealthGood || got.Score != 80 {
		t.Errorf("unexpected report %+v", got)
	}
}

// Queue endpoints

func TestHandleListQueue(t *testing.T) {
	var gotFilter domain.QueueFilter
	admin := &mockQueueAdmin{
		inspectFn: func(ctx context.Context, filter domain.QueueFilter) ([]*domain.QueueEntry, error) {
			gotFilter = filter
			return nil, nil
		},
	}
	h := newTestServer(testDeps{admin: admin})

	rr := do(t, h, "GET", "/api/v1/queue", "cashier-token", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %d %s", rr.Code, rr.Body.String())
	}
	if gotFilter.Limit != defaultQueuePageSize {
		t.Errorf("expected default limit, got %d", gotFilter.Limit)
	}

	rr = do(t, h, "GET", "/api/v1/queue?status=pending&table=ventas&exhausted=true&newest=1&limit=10000&offset=5", "cashier-token", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	want := domain.QueueFilter{
		Status:        domain.QueueStatusPending,
		TableName:     "ventas",
		ExhaustedOnly: true,
		Newest:        true,
		Limit:         maxQueuePageSize,
		Offset:        5,
	}
	if gotFilter != want {
		t.Errorf("expected filter %+v, got %+v", want, gotFilter)
	}

	for _, q := range []string{"status=bogus", "limit=0", "limit=x", "offset=-1", "exhausted=maybe"} {
		if rr := do(t, h, "GET", "/api/v1/queue?"+q, "cashier-token", ""); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rr.Code)
		}
	}
}

func TestHandleGetQueueEntry(t *testing.T) {
	admin := &mockQueueAdmin{
		getEntryFn: func(ctx context.Context, id int64) (*domain.QueueEntry, error) {
			if id != 7 {
				return nil, domain.ErrNotFound
			}
			return &domain.QueueEntry{ID: 7, TableName: "ventas", Operation: domain.OperationInsert}, nil
		},
	}
	h := newTestServer(testDeps{admin: admin})

	rr := do(t, h, "GET", "/api/v1/queue/7", "cashier-token", "")
	if rr.Code != http.StatusOK || decode[domain.QueueEntry](t, rr).TableName != "ventas" {
		t.Errorf("expected entry 7, got %d %s", rr.Code, rr.Body.String())
	}
	if rr = do(t, h, "GET", "/api/v1/queue/8", "cashier-token", ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
	if rr = do(t, h, "GET", "/api/v1/queue/abc", "cashier-token", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestHandleResetQueue(t *testing.T) {
	var gotIDs []int64
	admin := &mockQueueAdmin{
		resetFailedFn: func(ctx context.Context, ids []int64) (int64, error) {
			gotIDs = ids
			return 2, nil
		},
	}
	h := newTestServer(testDeps{admin: admin})

	if rr := do(t, h, "POST", "/api/v1/queue/reset", "cashier-token", ""); rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 for cashier, got %d", rr.Code)
	}

	rr := do(t, h, "POST", "/api/v1/queue/reset", "admin-token", `{"ids":[4,9]}`)
	if rr.Code != http.StatusOK || decode[CountResponse](t, rr).Count != 2 {
		t.Errorf("expected count 2, got %d %s", rr.Code, rr.Body.String())
	}
	if len(gotIDs) != 2 || gotIDs[0] != 4 || gotIDs[1] != 9 {
		t.Errorf("expected ids [4 9], got %v", gotIDs)
	}

	do(t, h, "POST", "/api/v1/queue/reset", "admin-token", "")
	if gotIDs != nil {
		t.Errorf("expected reset of all entries, got ids %v", gotIDs)
	}
}

func TestHandlePurgeQueue(t *testing.T) {
	var (
		gotStatus domain.QueueStatus
		gotCutoff time.Time
	)
	admin := &mockQueueAdmin{
		purgeFn: func(ctx context.Context, status domain.QueueStatus, olderThan time.Time) (int64, error) {
			if status == domain.QueueStatusPending {
				return 0, domain.ErrInvalidInput
			}
			gotStatus, gotCutoff = status, olderThan
			return 5, nil
		},
	}
	h := newTestServer(testDeps{admin: admin})

	rr := do(t, h, "DELETE", "/api/v1/queue", "admin-token", "")
	if rr.Code != http.StatusOK || decode[CountResponse](t, rr).Count != 5 {
		t.Errorf("expected count 5, got %d %s", rr.Code, rr.Body.String())
	}
	if gotStatus != domain.QueueStatusCompleted || !gotCutoff.IsZero() {
		t.Errorf("expected completed with no cutoff, got %s %v", gotStatus, gotCutoff)
	}

	before := time.Now()
	rr = do(t, h, "DELETE", "/api/v1/queue?status=failed&older_than=24h", "admin-token", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotStatus != domain.QueueStatusFailed {
		t.Errorf("expected failed, got %s", gotStatus)
	}
	if d := before.Sub(gotCutoff); d < 24*time.Hour || d > 24*time.Hour+time.Minute {
		t.Errorf("expected cutoff about 24h ago, got %v", d)
	}

	if rr = do(t, h, "DELETE", "/api/v1/queue?status=pending", "admin-token", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("expected pending purge refused, got %d", rr.Code)
	}
	if rr = do(t, h, "DELETE", "/api/v1/queue?older_than=soon", "admin-token", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad duration, got %d", rr.Code)
	}
}

func TestHandleRefreshSchema(t *testing.T) {
	var tables []string
	admin := &mockQueueAdmin{
		refreshSchemaFn: func(ctx context.Context, table string) error {
			tables = append(tables, table)
			return nil
		},
	}
	h := newTestServer(testDeps{admin: admin})

	if rr := do(t, h, "POST", "/api/v1/schema/productos/refresh", "admin-token", ""); rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if rr := do(t, h, "POST", "/api/v1/schema/all/refresh", "admin-token", ""); rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if len(tables) != 2 || tables[0] != "productos" || tables[1] != "" {
		t.Errorf("expected [productos \"\"], got %q", tables)
	}
}

func TestWriteServiceError(t *testing.T) {
	s := &Server{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	tests := []struct {
		err        error
		wantStatus int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrSyncInProgress, http.StatusConflict},
		{domain.ErrRemoteUnavailable, http.StatusServiceUnavailable},
		{domain.ErrForbidden, http.StatusForbidden},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rr := httptest.NewRecorder()
		s.writeServiceError(rr, tt.err)
		if rr.Code != tt.wantStatus {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.wantStatus, rr.Code)
		}
	}
}
