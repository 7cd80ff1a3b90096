package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-one/sovereign-core/pkg/consensus"
	"github.com/odyssey-one/sovereign-core/pkg/generator"
	"github.com/odyssey-one/sovereign-core/pkg/pipeline"
	"github.com/odyssey-one/sovereign-core/pkg/planner"
	"github.com/odyssey-one/sovereign-core/pkg/policy"
	"github.com/odyssey-one/sovereign-core/pkg/prompt"
	"github.com/odyssey-one/sovereign-core/pkg/schema"
	"github.com/odyssey-one/sovereign-core/pkg/store"
)

func testServer(t *testing.T, candidate string) (*Server, *store.MemoryAuditStore) {
	t.Helper()

	snapshot, err := schema.Default()
	require.NoError(t, err)

	rules, err := policy.NewRuleSet(policy.DefaultRules())
	require.NoError(t, err)
	roles := store.NewMemoryRoleStore()
	roles.Assign("usr-1", "org-1", policy.RoleOwner)
	roles.Assign("usr-2", "org-1", policy.RoleStaff)
	pol, err := policy.NewEngine(policy.DefaultMatrix(), rules, roles, slog.Default())
	require.NoError(t, err)

	backend := generator.NewStaticBackend("canned", func(ctx context.Context, p string) (string, error) {
		return candidate, nil
	})
	engine, err := consensus.New([]generator.Backend{backend}, time.Second, slog.Default())
	require.NoError(t, err)

	audit := store.NewMemoryAuditStore()
	orch, err := pipeline.New(snapshot, prompt.New(snapshot), engine, pol, planner.New(), audit, slog.Default())
	require.NoError(t, err)

	return NewServer(orch, audit, nil, slog.Default()), audit
}

const deleteCandidate = `{"action": "DELETE", "target": "PROJECT_TASK", "payload": {"taskName": "Deploy"}}`

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, deleteCandidate)
	rec := httptest.NewRecorder()
	srv.Routes(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestSubmitApproved(t *testing.T) {
	srv, audit := testServer(t, deleteCandidate)
	body := `{"intent": "delete the Deploy task", "actor_id": "usr-1", "organization_id": "org-1"}`

	rec := httptest.NewRecorder()
	srv.Routes(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/submit", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Approved)
	assert.NotNil(t, res.ExecutionPlan)
	assert.NotNil(t, res.RollbackPlan)

	// And the trail is readable back over HTTP.
	rec = httptest.NewRecorder()
	srv.Routes(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/"+res.CorrelationID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"returned"`)

	entries, err := audit.ByCorrelation(context.Background(), res.CorrelationID)
	require.NoError(t, err)
	assert.Len(t, entries, 7)
}

func TestSubmitDeniedIs422(t *testing.T) {
	srv, _ := testServer(t, deleteCandidate)
	body := `{"intent": "delete the Deploy task", "actor_id": "usr-2", "organization_id": "org-1"}`

	rec := httptest.NewRecorder()
	srv.Routes(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/submit", strings.NewReader(body)))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Approved)
	require.NotEmpty(t, res.Violations)
	assert.Equal(t, "ERR_PERMISSION_DENIED", res.Violations[0].Code)
}

func TestSubmitBadJSON(t *testing.T) {
	srv, _ := testServer(t, deleteCandidate)
	rec := httptest.NewRecorder()
	srv.Routes(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/submit", strings.NewReader("{{{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestSubmitMissingFields(t *testing.T) {
	srv, _ := testServer(t, deleteCandidate)
	rec := httptest.NewRecorder()
	srv.Routes(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/submit",
		strings.NewReader(`{"intent": "do something"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "actor and organization")
}

// failingAuditStore refuses every write; the pipeline treats that as an
// internal failure, never the caller's.
type failingAuditStore struct{}

func (failingAuditStore) Append(ctx context.Context, correlationID, stage string, payload any) (*store.AuditEntry, error) {
	return nil, errors.New("disk full")
}

func (failingAuditStore) ByCorrelation(ctx context.Context, correlationID string) ([]*store.AuditEntry, error) {
	return nil, errors.New("disk full")
}

func (failingAuditStore) LastByStage(ctx context.Context, correlationID, stage string) (*store.AuditEntry, error) {
	return nil, store.ErrEntryNotFound
}

func (failingAuditStore) VerifyChain(ctx context.Context) error {
	return errors.New("disk full")
}

func TestSubmitInternalFailureIs500(t *testing.T) {
	snapshot, err := schema.Default()
	require.NoError(t, err)
	rules, err := policy.NewRuleSet(policy.DefaultRules())
	require.NoError(t, err)
	roles := store.NewMemoryRoleStore()
	roles.Assign("usr-1", "org-1", policy.RoleOwner)
	pol, err := policy.NewEngine(policy.DefaultMatrix(), rules, roles, slog.Default())
	require.NoError(t, err)
	backend := generator.NewStaticBackend("canned", func(ctx context.Context, p string) (string, error) {
		return deleteCandidate, nil
	})
	engine, err := consensus.New([]generator.Backend{backend}, time.Second, slog.Default())
	require.NoError(t, err)
	orch, err := pipeline.New(snapshot, prompt.New(snapshot), engine, pol, planner.New(), failingAuditStore{}, slog.Default())
	require.NoError(t, err)
	srv := NewServer(orch, failingAuditStore{}, nil, slog.Default())

	body := `{"intent": "delete the Deploy task", "actor_id": "usr-1", "organization_id": "org-1"}`
	rec := httptest.NewRecorder()
	srv.Routes(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/submit", strings.NewReader(body)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
	assert.NotContains(t, rec.Body.String(), "disk full", "internal detail must not leak to the client")
}

func TestAuditUnknownCorrelation(t *testing.T) {
	srv, _ := testServer(t, deleteCandidate)
	rec := httptest.NewRecorder()
	srv.Routes(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/corr-ghost", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	srv, _ := testServer(t, deleteCandidate)
	handler := srv.Routes(NewRateLimiter(1, 2))

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
	assert.Equal(t, http.StatusTooManyRequests, codes[3])

	// A different client IP gets its own allowance.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.5:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
