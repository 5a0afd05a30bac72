package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, zerolog.Nop(), opts...)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestHealthCheck(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		writeJSON(w, map[string]string{"status": "healthy", "message": "API is running"})
	}))

	resp, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "API is running", resp.Message)
}

func TestUploadImage_SendsMultipart(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect", r.URL.Path)
		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "car.jpg", header.Filename)
		assert.Equal(t, "jpeg-bytes", string(data))

		writeJSON(w, DetectionResponse{
			Status:         "success",
			OriginalImage:  "b3JpZw==",
			DetectionImage: "ZGV0",
			Detection:      []PlateDetection{{PlateIndex: 0, PlateImage: "cGxhdGU="}},
		})
	}))

	resp, err := c.UploadImage(context.Background(), "car.jpg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	require.Len(t, resp.Detection, 1)
	assert.Equal(t, "cGxhdGU=", resp.Detection[0].PlateImage)
}

func TestUploadVideo(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload_video", r.URL.Path)
		_, _, err := r.FormFile("video")
		require.NoError(t, err)
		writeJSON(w, VideoResponse{Status: "success", DetectionImage: "ZGV0", PlateImages: []string{"YQ==", "Yg=="}})
	}))

	resp, err := c.UploadVideo(context.Background(), "clip.mp4", strings.NewReader("video"))
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Len(t, resp.PlateImages, 2)
}

func TestPerformOCR(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ocr", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req OCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cGxhdGU=", req.PlateImage)
		assert.Equal(t, "eng", req.Lang)

		writeJSON(w, OCRResponse{Status: "success", PlateText: "90120 | ي | 72"})
	}))

	resp, err := c.PerformOCR(context.Background(), "cGxhdGU=", "")
	require.NoError(t, err)
	assert.Equal(t, "90120 | ي | 72", resp.PlateText)
}

func TestPerformOCRWithFile(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, err := r.FormFile("plate_image")
		require.NoError(t, err)
		assert.Equal(t, "ara", r.FormValue("lang"))
		writeJSON(w, OCRResponse{Status: "success", PlateText: "1 | أ | 1"})
	}))

	resp, err := c.PerformOCRWithFile(context.Background(), "plate.jpg", strings.NewReader("x"), "ara")
	require.NoError(t, err)
	assert.Equal(t, "1 | أ | 1", resp.PlateText)
}

func TestNon2xxReturnsAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "No image provided"}`, http.StatusBadRequest)
	}))

	_, err := c.UploadImage(context.Background(), "a.jpg", strings.NewReader(""))
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "/detect", apiErr.Endpoint)
	assert.Contains(t, apiErr.Body, "No image provided")
}

func TestFetchMetrics(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/metrics", r.URL.Path)
		_, _ = w.Write([]byte(`{"detection":{"accuracy":0.91,"roc_curve":{"auc":0.95}},"ocr":{"character_accuracy":0.88}}`))
	}))

	m, err := c.FetchMetrics(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.91, m.Detection.Accuracy, 1e-9)
	assert.InDelta(t, 0.95, m.Detection.ROCCurve.AUC, 1e-9)
	assert.InDelta(t, 0.88, m.OCR.CharacterAccuracy, 1e-9)
}

func TestFetchDashboardStats(t *testing.T) {
	t.Run("backend answer", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/dashboard-stats", r.URL.Path)
			_, _ = w.Write([]byte(`{"totalDetections":{"value":12,"change":"+1%","changeType":"positive"}}`))
		}))

		stats := c.FetchDashboardStats(context.Background())
		assert.Equal(t, SourceBackend, stats.Source)
		assert.Equal(t, 12.0, stats.TotalDetections.Value)
	})

	t.Run("server error falls back", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}), WithRandom(func() float64 { return 0 }))

		stats := c.FetchDashboardStats(context.Background())
		assert.Equal(t, SourceFallback, stats.Source)
		assert.Equal(t, 2500.0, stats.TotalDetections.Value)
		assert.Equal(t, 82.0, stats.AverageAccuracy.Value)
		assert.Equal(t, 1.0, stats.AverageTime.Value)
		assert.Equal(t, 94.0, stats.SuccessRate.Value)
		assert.Equal(t, "+5.0%", stats.TotalDetections.Change)
		assert.Equal(t, "-0.1s", stats.AverageTime.Change)
	})

	t.Run("unreachable backend falls back", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", time.Second, zerolog.Nop())
		stats := c.FetchDashboardStats(context.Background())
		assert.Equal(t, SourceFallback, stats.Source)
		assert.GreaterOrEqual(t, stats.TotalDetections.Value, 2500.0)
		assert.Less(t, stats.TotalDetections.Value, 3000.0)
	})

	t.Run("malformed body falls back", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		stats := c.FetchDashboardStats(context.Background())
		assert.Equal(t, SourceFallback, stats.Source)
	})

	t.Run("fallback disabled", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}), WithStatsFallback(false))

		stats := c.FetchDashboardStats(context.Background())
		assert.Equal(t, DashboardStats{Source: SourceUnavailable}, stats)
	})
}

func TestMockDashboardStats_Ranges(t *testing.T) {
	for i := 0; i < 50; i++ {
		stats := MockDashboardStats(defaultRandom)
		assert.GreaterOrEqual(t, stats.AverageAccuracy.Value, 82.0)
		assert.LessOrEqual(t, stats.AverageAccuracy.Value, 90.0)
		assert.GreaterOrEqual(t, stats.SuccessRate.Value, 94.0)
		assert.LessOrEqual(t, stats.SuccessRate.Value, 98.0)
		assert.Equal(t, ChangePositive, stats.SuccessRate.ChangeType)
	}
}
