package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plaque-dashboard/internal/client/backend"
	"plaque-dashboard/internal/repository"
	"plaque-dashboard/internal/service"
	"plaque-dashboard/internal/worker"
)

const testSecret = "test-secret"

type fakeGenerator struct{}

func (fakeGenerator) Generate(context.Context, string) (string, error) {
	return "Réponse", nil
}

type testEnv struct {
	router  *gin.Engine
	gallery *service.GalleryService
	session *service.DetectionSession
}

// fakeDetector mimics the Flask detection backend.
func fakeDetector(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy","message":"API is running"}`))
	})
	mux.HandleFunc("/detect", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","original_image":"T1JJRw==","detection_image":"REVU","detection":[{"plate_index":0,"plate_image":"UDA="}]}`))
	})
	mux.HandleFunc("/ocr", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","plate_text":"12345 | أ | 1","segmented_image":""}`))
	})
	mux.HandleFunc("/api/dashboard-stats", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/api/metrics", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detection":{"accuracy":0.9},"ocr":{"accuracy":0.8}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()

	srv := fakeDetector(t)
	client := backend.NewClient(srv.URL, 5*time.Second, log)

	galleryService := service.NewGalleryService(repository.NewMemoryGalleryRepository(), "gallery-storage", log)
	session := service.NewDetectionSession()
	detectionService := service.NewDetectionService(client, session, galleryService, "eng", log)
	chatService := service.NewChatService(fakeGenerator{}, log)
	poller := worker.NewPoller(client, time.Minute, log)

	h := NewHandler(galleryService, session, detectionService, chatService, client, poller, log)
	router := NewRouter(h, NewAuthMiddleware(testSecret, log), []string{"http://localhost:3000"}, log)

	return &testEnv{router: router, gallery: galleryService, session: session}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func signedToken(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParsePlate(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/plates/parse?text=90120+%7C+%D9%8A+%7C+72", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var rec map[string]string
	decodeData(t, w, &rec)
	assert.Equal(t, "90120", rec["plate_number"])
	assert.Equal(t, "ي", rec["arabic_letter"])
	assert.Equal(t, "Casablanca Ain-Chock", rec["region_name"])
}

func TestDetectImage(t *testing.T) {
	env := newTestEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "car.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/detection/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res service.ProcessResult
	decodeData(t, w, &res)
	assert.Equal(t, service.OutcomeSuccess, res.Outcome)
	assert.Equal(t, "12345 | أ | 1", res.PlateText)
	assert.Len(t, env.gallery.Items(), 3)
	assert.Equal(t, "12345 | أ | 1", env.gallery.Items()[0].PlateNumber)
}

func TestDetectImage_MissingFile(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/detection/image", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGallery_ListAndGet(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/gallery?favorites=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var items []map[string]interface{}
	decodeData(t, w, &items)
	require.Len(t, items, 1)
	assert.Equal(t, "mock-1", items[0]["id"])

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/gallery?favorites=maybe", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/gallery/mock-2", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/gallery/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGallery_ProtectedMutations(t *testing.T) {
	env := newTestEnv(t)

	t.Run("no token", func(t *testing.T) {
		w := env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/gallery/mock-1", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		_, ok := env.gallery.GetItemByID("mock-1")
		assert.True(t, ok)
	})

	t.Run("wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/gallery/mock-1", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "other", time.Now().Add(time.Hour)))
		w := env.do(req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/gallery/mock-1", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret, time.Now().Add(-time.Hour)))
		w := env.do(req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	token := "Bearer " + signedToken(t, testSecret, time.Now().Add(time.Hour))

	t.Run("favorite", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/gallery/mock-2/favorite", nil)
		req.Header.Set("Authorization", token)
		w := env.do(req)
		require.Equal(t, http.StatusOK, w.Code)

		item, _ := env.gallery.GetItemByID("mock-2")
		assert.True(t, item.IsFavorite)
	})

	t.Run("delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/gallery/mock-1", nil)
		req.Header.Set("Authorization", token)
		w := env.do(req)
		assert.Equal(t, http.StatusNoContent, w.Code)

		req = httptest.NewRequest(http.MethodDelete, "/api/v1/gallery/mock-1", nil)
		req.Header.Set("Authorization", token)
		w = env.do(req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGallery_ReanalyzeSeedWithoutImage(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/gallery/mock-1/reanalyze", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDetection_StateAndReset(t *testing.T) {
	env := newTestEnv(t)
	env.session.SetForReanalysis("img", "90120")

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/detection", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var st map[string]interface{}
	decodeData(t, w, &st)
	assert.Equal(t, "reanalysis-90120", st["upload_id"])

	w = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/detection/reset", nil))
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &st)
	assert.Nil(t, st["upload_id"])
	assert.Nil(t, st["original_image"])
}

func TestDetection_ReanalyzeNothingPending(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/detection/reanalyze", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var res map[string]interface{}
	decodeData(t, w, &res)
	assert.Equal(t, false, res["ran"])
}

func TestDashboard_FallsBackWithoutPoller(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Stats   backend.DashboardStats `json:"stats"`
		Gallery map[string]interface{} `json:"gallery"`
		Recent  []interface{}          `json:"recent"`
	}
	decodeData(t, w, &res)
	assert.Equal(t, backend.SourceFallback, res.Stats.Source)
	assert.Equal(t, float64(0), res.Gallery["total_detections"])
	assert.Len(t, res.Recent, 2)
}

func TestBackendHealth_Live(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/backend/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status worker.HealthStatus
	decodeData(t, w, &status)
	assert.True(t, status.Online)
	assert.Equal(t, "healthy", status.Status)
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var m backend.Metrics
	decodeData(t, w, &m)
	assert.InDelta(t, 0.9, m.Detection.Accuracy, 1e-9)
}

func TestChat(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewBufferString(`{"question":"Combien ?"}`))
	req.Header.Set("Content-Type", "application/json")
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var msg map[string]string
	decodeData(t, w, &msg)
	assert.Equal(t, "Réponse", msg["content"])

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/chat/history", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var history []service.ChatMessage
	decodeData(t, w, &history)
	assert.Len(t, history, 2)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w = env.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_ClearHistoryRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewBufferString(`{"question":"Combien ?"}`))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusOK, env.do(req).Code)

	historyLen := func() int {
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/chat/history", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var history []service.ChatMessage
		decodeData(t, w, &history)
		return len(history)
	}

	w := env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/chat/history", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 2, historyLen())

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/chat/history", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, testSecret, time.Now().Add(time.Hour)))
	w = env.do(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, historyLen())
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewAuthMiddleware("", zerolog.Nop())
	assert.False(t, m.Enabled())

	r := gin.New()
	r.GET("/x", m.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_SetsSubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewAuthMiddleware(testSecret, zerolog.Nop())

	r := gin.New()
	r.GET("/x", m.Handler(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(subjectKey))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "bearer "+signedToken(t, testSecret, time.Now().Add(time.Minute)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "operator", w.Body.String())
}

func TestCorsConfig(t *testing.T) {
	assert.True(t, corsConfig(nil).AllowAllOrigins)
	assert.True(t, corsConfig([]string{"*"}).AllowAllOrigins)

	cfg := corsConfig([]string{"http://localhost:3000"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.True(t, cfg.AllowCredentials)
}
