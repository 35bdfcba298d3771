package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QTMarketing/cps-sub000/internal/audit"
	"github.com/QTMarketing/cps-sub000/internal/auth"
	"github.com/QTMarketing/cps-sub000/internal/authz"
	"github.com/QTMarketing/cps-sub000/internal/common"
	"github.com/QTMarketing/cps-sub000/internal/cryptox"
	"github.com/QTMarketing/cps-sub000/internal/logging"
	"github.com/QTMarketing/cps-sub000/internal/models"
	"github.com/QTMarketing/cps-sub000/internal/protect"
	"github.com/QTMarketing/cps-sub000/internal/server/storage"
)

const testMasterSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	router    http.Handler
	handlers  *Handlers
	rawBanks  *storage.MemoryStore[models.BankAccount]
	rawChecks *storage.MemoryStore[models.Check]
	users     *storage.MemoryUsers
	auditRepo *audit.MemoryRepository
	tokens    *auth.TokenManager
	banks     protect.Store[models.BankAccount]
	checks    protect.Store[models.Check]
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logging.NewDiscardLogger()

	protector, err := protect.NewProtector(testMasterSecret, log, cryptox.WithIterations(16))
	require.NoError(t, err)

	rawBanks := storage.NewMemoryStore(
		func(b *models.BankAccount) *string { return &b.ID },
		func(b *models.BankAccount) *models.BankAccount {
			cp := *b
			cp.Degraded = append([]string(nil), b.Degraded...)
			return &cp
		},
	)
	rawChecks := storage.NewMemoryStore(
		func(c *models.Check) *string { return &c.ID },
		func(c *models.Check) *models.Check {
			cp := *c
			if c.Bank != nil {
				bank := *c.Bank
				bank.Degraded = append([]string(nil), c.Bank.Degraded...)
				cp.Bank = &bank
			}
			return &cp
		},
	)

	banks := protect.Wrap[models.BankAccount](rawBanks, protector)
	checks := protect.Wrap[models.Check](rawChecks, protector)

	users := storage.NewMemoryUsers()
	auditRepo := audit.NewMemoryRepository()
	auditSvc := audit.NewService(auditRepo, log)

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	authSvc := auth.NewService(users, tokens, auditSvc, log)
	gates := authz.NewGates(tokens, log)
	stepUp := auth.NewStepUpPolicy(0)

	h := NewHandlers(log, authSvc, tokens, gates, stepUp, banks, checks, users, auditSvc, nil)

	return &testEnv{
		router:    NewRouter(h),
		handlers:  h,
		rawBanks:  rawBanks,
		rawChecks: rawChecks,
		users:     users,
		auditRepo: auditRepo,
		tokens:    tokens,
		banks:     banks,
		checks:    checks,
	}
}

func (env *testEnv) addUser(t *testing.T, username string, role authz.Role, password string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	u := &models.User{Username: username, PasswordHash: hash, Role: role}
	require.NoError(t, env.users.Create(t.Context(), u))
	return u
}

func (env *testEnv) tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := env.tokens.IssueAccessToken(u.Principal())
	require.NoError(t, err)
	return tok
}

func (env *testEnv) reAuthFor(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := env.tokens.IssueReAuthToken(u.Principal())
	require.NoError(t, err)
	return tok
}

func (env *testEnv) do(t *testing.T, method, path string, body any, bearer, reauth string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+bearer)
	}
	if reauth != "" {
		req.Header.Set(common.ReAuthHeaderName, reauth)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "alice", authz.RoleManager, "pw123")

	rr := env.do(t, http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "wrong"}, "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/login", map[string]string{"username": "alice", "password": "pw123"}, "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody[map[string]string](t, rr)
	p, err := env.tokens.ParsePrincipal(body["token"])
	require.NoError(t, err)
	assert.Equal(t, authz.RoleManager, p.Role)

	// the failed attempt left a trace
	entries, err := env.auditRepo.Query(t.Context(), audit.Filter{Action: audit.ActionLoginFailed}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBankRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	manager := env.addUser(t, "alice", authz.RoleManager, "pw123")
	tok := env.tokenFor(t, manager)

	rr := env.do(t, http.MethodPost, "/api/banks", map[string]string{
		"storeId":       "s-1",
		"name":          "Main Operating",
		"accountNumber": "1234567890",
		"routingNumber": "021000021",
	}, tok, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	created := decodeBody[models.BankAccount](t, rr)
	assert.Equal(t, "1234567890", created.AccountNumber, "caller sees plaintext")

	// at rest the value is an envelope, not the account number
	stored, err := env.rawBanks.Find(t.Context(), created.ID)
	require.NoError(t, err)
	assert.True(t, cryptox.IsEncryptedForm(stored.AccountNumber))
	assert.True(t, cryptox.IsEncryptedForm(stored.RoutingNumber))

	rr = env.do(t, http.MethodGet, "/api/banks/"+created.ID, nil, tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeBody[models.BankAccount](t, rr)
	assert.Equal(t, "1234567890", got.AccountNumber)
	assert.Empty(t, got.Degraded)

	// the audit snapshot is masked
	entries, err := env.auditRepo.Query(t.Context(), audit.Filter{Action: audit.ActionCreateBank}, 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, string(entries[0].NewState), "******7890")
	assert.NotContains(t, string(entries[0].NewState), "1234567890")
}

func TestUpdateBankRequiresReAuth(t *testing.T) {
	env := newTestEnv(t)
	manager := env.addUser(t, "alice", authz.RoleManager, "pw123")
	tok := env.tokenFor(t, manager)

	require.NoError(t, env.banks.Create(t.Context(), &models.BankAccount{
		ID: "b-1", StoreID: "s-1", Name: "Main", AccountNumber: "1234567890", RoutingNumber: "021000021",
	}))

	update := map[string]string{"name": "Renamed", "accountNumber": "9876543210", "routingNumber": "021000021"}

	rr := env.do(t, http.MethodPut, "/api/banks/b-1", update, tok, "")
	require.Equal(t, http.StatusForbidden, rr.Code)
	body := decodeBody[map[string]string](t, rr)
	assert.Equal(t, "reauth_required", body["error"])
	assert.Equal(t, "confirm_password", body["hint"])

	rr = env.do(t, http.MethodPut, "/api/banks/b-1", update, tok, env.reAuthFor(t, manager))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	got, err := env.banks.Find(t.Context(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, "9876543210", got.AccountNumber)
}

func TestPermissionGates(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "bob", authz.RoleUser, "pw123")
	admin := env.addUser(t, "root", authz.RoleAdmin, "pw123")

	newUser := map[string]string{"username": "carol", "password": "pw456", "role": "USER"}

	rr := env.do(t, http.MethodPost, "/api/users", newUser, env.tokenFor(t, user), "")
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "forbidden", decodeBody[map[string]string](t, rr)["error"])

	rr = env.do(t, http.MethodPost, "/api/users", newUser, env.tokenFor(t, admin), "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// no token at all
	rr = env.do(t, http.MethodGet, "/api/checks", nil, "", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthenticated", decodeBody[map[string]string](t, rr)["error"])
}

func TestVoidCheckStepUpFlow(t *testing.T) {
	env := newTestEnv(t)
	manager := env.addUser(t, "alice", authz.RoleManager, "pw123")
	tok := env.tokenFor(t, manager)

	require.NoError(t, env.checks.Create(t.Context(), &models.Check{
		ID: "c-1", StoreID: "s-1", BankID: "b-1", Number: 101,
		Payee: "Acme Supply", AmountCents: 1_500_000, Status: models.CheckIssued,
	}))

	// no step-up credential
	rr := env.do(t, http.MethodPost, "/api/checks/c-1/void", nil, tok, "")
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "reauth_required", decodeBody[map[string]string](t, rr)["error"])

	// confirm the password to obtain one
	rr = env.do(t, http.MethodPost, "/api/reauth", map[string]string{"password": "pw123"}, tok, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	reauth := decodeBody[map[string]string](t, rr)["reauthToken"]
	require.NotEmpty(t, reauth)

	rr = env.do(t, http.MethodPost, "/api/checks/c-1/void", nil, tok, reauth)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	voided := decodeBody[models.Check](t, rr)
	assert.Equal(t, models.CheckVoid, voided.Status)

	// exactly one void entry in the trail
	entries, err := env.auditRepo.Query(t.Context(), audit.Filter{Action: audit.ActionVoidCheck}, 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, manager.ID, entries[0].ActorID)
	assert.Equal(t, "c-1", entries[0].EntityID)

	// voiding twice is a conflict
	rr = env.do(t, http.MethodPost, "/api/checks/c-1/void", nil, tok, env.reAuthFor(t, manager))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestVoidCheck_ReAuthFromAnotherUserRejected(t *testing.T) {
	env := newTestEnv(t)
	manager := env.addUser(t, "alice", authz.RoleManager, "pw123")
	other := env.addUser(t, "mallory", authz.RoleManager, "pw123")

	require.NoError(t, env.checks.Create(t.Context(), &models.Check{
		ID: "c-1", BankID: "b-1", Payee: "Acme", AmountCents: 100, Status: models.CheckIssued,
	}))

	rr := env.do(t, http.MethodPost, "/api/checks/c-1/void", nil, env.tokenFor(t, manager), env.reAuthFor(t, other))
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "reauth_required", decodeBody[map[string]string](t, rr)["error"])
}

func TestCreateCheckAmountThreshold(t *testing.T) {
	env := newTestEnv(t)
	user := env.addUser(t, "bob", authz.RoleUser, "pw123")
	tok := env.tokenFor(t, user)

	small := map[string]any{"bankId": "b-1", "payee": "Acme", "amountCents": 50_000, "number": 101}
	large := map[string]any{"bankId": "b-1", "payee": "Acme", "amountCents": 1_000_000, "number": 102}

	// below the limit: no step-up needed
	rr := env.do(t, http.MethodPost, "/api/checks", small, tok, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// at the limit: step-up enforced
	rr = env.do(t, http.MethodPost, "/api/checks", large, tok, "")
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "reauth_required", decodeBody[map[string]string](t, rr)["error"])

	rr = env.do(t, http.MethodPost, "/api/checks", large, tok, env.reAuthFor(t, user))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestDeleteUserStepUp(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addUser(t, "root", authz.RoleAdmin, "pw123")
	victim := env.addUser(t, "bob", authz.RoleUser, "pw123")
	tok := env.tokenFor(t, admin)

	rr := env.do(t, http.MethodDelete, "/api/users/"+victim.ID, nil, tok, "")
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodDelete, "/api/users/"+victim.ID, nil, tok, env.reAuthFor(t, admin))
	require.Equal(t, http.StatusNoContent, rr.Code)

	_, err := env.users.GetByID(t.Context(), victim.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	entries, err := env.auditRepo.Query(t.Context(), audit.Filter{Action: audit.ActionDeleteUser}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAuditEndpoints(t *testing.T) {
	env := newTestEnv(t)
	manager := env.addUser(t, "alice", authz.RoleManager, "pw123")
	admin := env.addUser(t, "root", authz.RoleAdmin, "pw123")

	// generate some activity
	rr := env.do(t, http.MethodPost, "/api/banks", map[string]string{
		"name": "Main", "accountNumber": "1234567890", "routingNumber": "021000021",
	}, env.tokenFor(t, manager), "")
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/audit", nil, env.tokenFor(t, manager), "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody[map[string][]audit.Entry](t, rr)
	assert.NotEmpty(t, body["entries"])

	rr = env.do(t, http.MethodGet, "/api/audit/summary?days=7", nil, env.tokenFor(t, manager), "")
	require.Equal(t, http.StatusOK, rr.Code)

	// export needs ADMIN
	rr = env.do(t, http.MethodGet, "/api/audit/export", nil, env.tokenFor(t, manager), "")
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/audit/export", nil, env.tokenFor(t, admin), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "id,actor_id,action")

	// the export itself was recorded
	entries, err := env.auditRepo.Query(t.Context(), audit.Filter{Action: audit.ActionExportAudit}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGetBank_Degraded(t *testing.T) {
	env := newTestEnv(t)
	manager := env.addUser(t, "alice", authz.RoleManager, "pw123")
	tok := env.tokenFor(t, manager)

	require.NoError(t, env.banks.Create(t.Context(), &models.BankAccount{
		ID: "b-1", Name: "Main", AccountNumber: "1234567890", RoutingNumber: "021000021",
	}))

	// corrupt the stored account number envelope
	stored, err := env.rawBanks.Find(t.Context(), "b-1")
	require.NoError(t, err)
	tampered := []byte(stored.AccountNumber)
	if tampered[len(tampered)-1] == 'a' {
		tampered[len(tampered)-1] = 'b'
	} else {
		tampered[len(tampered)-1] = 'a'
	}
	stored.AccountNumber = string(tampered)
	require.NoError(t, env.rawBanks.Update(t.Context(), stored))

	rr := env.do(t, http.MethodGet, "/api/banks/b-1", nil, tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeBody[models.BankAccount](t, rr)
	assert.Equal(t, protect.Redacted, got.AccountNumber)
	assert.Equal(t, []string{"account_number"}, got.Degraded)
	assert.Equal(t, "021000021", got.RoutingNumber)
}

func TestInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	manager := env.addUser(t, "alice", authz.RoleManager, "pw123")
	tok := env.tokenFor(t, manager)

	rr := env.do(t, http.MethodPost, "/api/banks", map[string]string{"name": "Main"}, tok, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/login", map[string]string{"username": "alice"}, "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/banks/ghost", nil, tok, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
