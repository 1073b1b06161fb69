package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"adaptive-replication/internal/dctype"
	"adaptive-replication/internal/interdc"
	"adaptive-replication/internal/registry"
	"adaptive-replication/internal/replicamgr"
	"adaptive-replication/internal/strategy"
	"adaptive-replication/internal/valuestore"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type noPeers struct{ self dctype.DC }

func (p noPeers) AddressOf(dctype.DC) (string, bool) { return "", false }
func (p noPeers) All() []dctype.DC                   { return []dctype.DC{p.self} }

func newTestRouter(t *testing.T) *gin.Engine {
	vs, err := valuestore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { vs.Close() })

	rr := registry.New()
	se := strategy.NewEngine(map[string]strategy.Policy{"adaptive": strategy.AdaptiveDecay{}}, "adaptive")
	idm := interdc.NewManager("dc-a", noPeers{self: "dc-a"})
	rm := replicamgr.New("dc-a", vs, rr, se, idm, noPeers{self: "dc-a"}, "adaptive")
	idm.SetCallbacks(rm)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(rm).Register(router)
	return router
}

func TestCreateGetUpdateDelete_RoundTrip(t *testing.T) {
	router := newTestRouter(t)

	createBody, _ := json.Marshal(map[string]string{"value": "hello"})
	req := httptest.NewRequest(http.MethodPut, "/kv/greeting", bytes.NewReader(createBody)).WithContext(context.Background())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/kv/greeting", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var getResp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &getResp))
	require.Equal(t, "hello", getResp["value"])

	updateBody, _ := json.Marshal(map[string]string{"value": "updated"})
	req = httptest.NewRequest(http.MethodPost, "/kv/greeting", bytes.NewReader(updateBody))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/kv/greeting", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/kv/greeting", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code, "key evicted locally and unreachable remotely must 404")
}

func TestCreate_DuplicateKeyConflicts(t *testing.T) {
	router := newTestRouter(t)
	body, _ := json.Marshal(map[string]string{"value": "v"})

	req := httptest.NewRequest(http.MethodPut, "/kv/k", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/kv/k", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGet_UnknownKeyIsNotFound(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/kv/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreate_MissingValueIsBadRequest(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPut, "/kv/k", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
