package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bloodcell-inference-service/internal/core/domain"
	"bloodcell-inference-service/internal/core/services"
	"bloodcell-inference-service/internal/testutil"
)

var classLabels = []string{"basophil", "eosinophil", "lymphocyte", "monocyte", "neutrophil"}

type testEnv struct {
	router    *gin.Engine
	clf       *testutil.MockClassifier
	det       *testutil.MockDetector
	counter   *testutil.MockDetector
	annotator *testutil.MockAnnotator
	logs      *testutil.MockRequestLogStore
	history   *testutil.MockHistoryRepo
}

func setupRouter(t *testing.T, withHistory bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		clf:       new(testutil.MockClassifier),
		det:       new(testutil.MockDetector),
		counter:   new(testutil.MockDetector),
		annotator: new(testutil.MockAnnotator),
		logs:      new(testutil.MockRequestLogStore),
		history:   new(testutil.MockHistoryRepo),
	}

	catalog := domain.NewCatalog(domain.CatalogSpec{
		Dir:           "models",
		Classifiers:   map[string]string{"mobilenet-v2": "mobilenet.onnx", "resnet-50": "resnet.onnx"},
		DetectionFile: "yolo.onnx",
		CountFile:     "cells.onnx",
	})
	loader := new(testutil.MockModelLoader)
	loader.On("LoadClassifier", mock.Anything, mock.MatchedBy(func(e domain.ModelEntry) bool { return e.ID == "mobilenet-v2" })).Return(env.clf, nil)
	loader.On("LoadClassifier", mock.Anything, mock.Anything).Return(nil, domain.ErrModelFileNotFound)
	loader.On("LoadDetector", mock.Anything, mock.MatchedBy(func(e domain.ModelEntry) bool { return e.ID == domain.DetectionModelID }), mock.Anything).Return(env.det, nil)
	loader.On("LoadDetector", mock.Anything, mock.Anything, mock.Anything).Return(env.counter, nil)

	registry := services.NewModelRegistry(loader, catalog, []string{"RBC", "WBC"})
	registry.LoadAll(context.Background())

	env.logs.On("Create", mock.Anything, mock.Anything).Return(testutil.DiscardLog("20260101_000000_x_abcdef12.log"), nil).Maybe()

	predictSvc := services.NewPredictionService(registry, env.logs, env.annotator, services.PredictionOptions{
		DefaultClassifier: "mobilenet-v2",
		ClassLabels:       classLabels,
		CountLabels:       []string{"RBC", "WBC"},
		IoU:               0.7,
		MaxConcurrent:     2,
		QueueTimeout:      time.Second,
	})

	historySvc := services.NewHistoryService(nil)
	if withHistory {
		historySvc = services.NewHistoryService(env.history)
	}

	h := New(registry, predictSvc, services.NewLogService(env.logs), historySvc, Options{MaxUploadBytes: 1 << 20})
	r := gin.New()
	h.RegisterRoutes(r.Group("/"))
	env.router = r
	return env
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16))))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path string, image []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if image != nil {
		fw, err := mw.CreateFormFile("image", "cell.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestListModels(t *testing.T) {
	env := setupRouter(t, false)

	req, _ := http.NewRequest("GET", "/models", nil)
	w, resp := serve(env.router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	models := resp["models"].(map[string]interface{})
	assert.Equal(t, []interface{}{"mobilenet-v2"}, models["classification"])
	assert.Equal(t, true, models["detection"])
	assert.Equal(t, true, models["count"])
}

func TestListModels_NoRegistry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(nil, nil, nil, nil, Options{})
	r := gin.New()
	h.RegisterRoutes(r.Group("/"))

	req, _ := http.NewRequest("GET", "/models", nil)
	w, resp := serve(r, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, false, resp["success"])
}

func TestGetModel(t *testing.T) {
	env := setupRouter(t, false)
	env.clf.On("Info").Return(domain.ModelInfo{InputShape: []int64{1, 224, 224, 3}, Layout: domain.LayoutNHWC})

	req, _ := http.NewRequest("GET", "/models/mobilenet-v2", nil)
	w, resp := serve(env.router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	model := resp["model"].(map[string]interface{})
	assert.Equal(t, "mobilenet.onnx", model["file"])
	assert.Equal(t, "NHWC", model["layout"])

	req, _ = http.NewRequest("GET", "/models/alexnet", nil)
	w, _ = serve(env.router, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClassify(t *testing.T) {
	env := setupRouter(t, false)
	env.clf.On("Classify", mock.Anything, mock.Anything).Return([]float32{0.1, 0.6, 0.1, 0.1, 0.1}, nil)

	w, resp := serve(env.router, multipartRequest(t, "/predict/classification", pngImage(t), nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "classification", resp["task"])
	result := resp["result"].(map[string]interface{})
	assert.Equal(t, "eosinophil", result["predicted_class"])
	assert.Equal(t, "mobilenet-v2", result["model_used"])
	assert.Equal(t, "20260101_000000_x_abcdef12.log", result["log_file"])
	probs := result["probabilities"].(map[string]interface{})
	assert.Len(t, probs, 5)
}

func TestClassify_Errors(t *testing.T) {
	env := setupRouter(t, false)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"missing image", multipartRequest(t, "/predict/classification", nil, map[string]string{"model_id": "cnn"}), http.StatusBadRequest},
		{"unknown model", multipartRequest(t, "/predict/classification", pngImage(t), map[string]string{"model_id": "alexnet"}), http.StatusBadRequest},
		{"model not loaded", multipartRequest(t, "/predict/classification", pngImage(t), map[string]string{"model_id": "resnet-50"}), http.StatusServiceUnavailable},
		{"corrupt image", multipartRequest(t, "/predict/classification", []byte("garbage"), nil), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := serve(env.router, tt.req)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, false, resp["success"])
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestClassify_TooLarge(t *testing.T) {
	env := setupRouter(t, false)

	big := make([]byte, 2<<20)
	w, _ := serve(env.router, multipartRequest(t, "/predict/classification", big, nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestDetect(t *testing.T) {
	env := setupRouter(t, false)
	dets := []domain.Detection{{Class: "platelet", ClassID: 2, Confidence: 0.8, BBox: domain.BoundingBox{1, 1, 8, 8}}}
	env.det.On("Detect", mock.Anything, mock.Anything, mock.Anything).Return(dets, nil)
	env.annotator.On("Annotate", mock.Anything, mock.Anything, false).Return(image.NewRGBA(image.Rect(0, 0, 16, 16)), nil)

	w, resp := serve(env.router, multipartRequest(t, "/predict/detection", pngImage(t), map[string]string{
		"conf":        "0.5",
		"show_labels": "false",
	}))

	require.Equal(t, http.StatusOK, w.Code)
	result := resp["result"].(map[string]interface{})
	assert.Equal(t, float64(1), result["count"])
	assert.NotEmpty(t, result["annotated_image"])
	det := result["detections"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "platelet", det["class"])
	assert.Len(t, det["bbox"], 4)
}

func TestDetect_BadParams(t *testing.T) {
	env := setupRouter(t, false)

	w, _ := serve(env.router, multipartRequest(t, "/predict/detection", pngImage(t), map[string]string{"conf": "high"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = serve(env.router, multipartRequest(t, "/predict/detection", pngImage(t), map[string]string{"conf": "1.5"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = serve(env.router, multipartRequest(t, "/predict/detection", pngImage(t), map[string]string{"show_labels": "maybe"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCount(t *testing.T) {
	env := setupRouter(t, false)
	dets := []domain.Detection{
		{ClassID: 0, Confidence: 0.9, BBox: domain.BoundingBox{0, 0, 4, 4}},
		{ClassID: 1, Confidence: 0.8, BBox: domain.BoundingBox{5, 5, 9, 9}},
		{ClassID: 0, Confidence: 0.7, BBox: domain.BoundingBox{10, 10, 14, 14}},
	}
	env.counter.On("Detect", mock.Anything, mock.Anything, mock.Anything).Return(dets, nil)
	env.annotator.On("Annotate", mock.Anything, mock.Anything, true).Return(image.NewRGBA(image.Rect(0, 0, 16, 16)), nil)

	w, resp := serve(env.router, multipartRequest(t, "/predict/count", pngImage(t), nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "count", resp["task"])
	result := resp["result"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"RBC": float64(2), "WBC": float64(1)}, result["counts"])
	assert.Equal(t, float64(3), result["total_cells"])
}

func TestPredict_Unified(t *testing.T) {
	env := setupRouter(t, false)
	env.clf.On("Classify", mock.Anything, mock.Anything).Return([]float32{0, 0, 0, 1, 0}, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"image": "data:image/png;base64," + base64String(pngImage(t)),
		"task":  "classification",
	})
	req, _ := http.NewRequest("POST", "/predict", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w, resp := serve(env.router, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "classification", resp["task"])
	assert.Equal(t, "monocyte", resp["result"].(map[string]interface{})["predicted_class"])
}

func TestPredict_InvalidTask(t *testing.T) {
	env := setupRouter(t, false)

	body := []byte(`{"image": "aGVsbG8=", "task": "segmentation"}`)
	req, _ := http.NewRequest("POST", "/predict", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w, resp := serve(env.router, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp["error"], "invalid task")
}

func TestPredict_MissingFields(t *testing.T) {
	env := setupRouter(t, false)

	req, _ := http.NewRequest("POST", "/predict", bytes.NewReader([]byte(`{"task": "count"}`)))
	req.Header.Set("Content-Type", "application/json")
	w, _ := serve(env.router, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListLogs(t *testing.T) {
	env := setupRouter(t, false)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	env.logs.On("List").Return([]domain.LogFile{
		{Filename: "b.log", Size: 10, Created: now, Modified: now},
		{Filename: "a.log", Size: 5, Created: now.Add(-time.Hour), Modified: now.Add(-time.Hour)},
	}, nil)

	req, _ := http.NewRequest("GET", "/logs", nil)
	w, resp := serve(env.router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), resp["total_logs"])
	first := resp["logs"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "b.log", first["filename"])
	assert.Equal(t, "2026-01-02T03:04:05Z", first["modified"])
}

func TestGetLog(t *testing.T) {
	env := setupRouter(t, false)
	env.logs.On("Read", "a.log").Return("hello", nil)
	env.logs.On("Read", "missing.log").Return("", domain.ErrLogNotFound)
	env.logs.On("Read", "notes.txt").Return("", domain.ErrInvalidLogName)

	req, _ := http.NewRequest("GET", "/logs/a.log", nil)
	w, resp := serve(env.router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", resp["content"])

	req, _ = http.NewRequest("GET", "/logs/missing.log", nil)
	w, _ = serve(env.router, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req, _ = http.NewRequest("GET", "/logs/notes.txt", nil)
	w, _ = serve(env.router, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCleanupLogs(t *testing.T) {
	env := setupRouter(t, false)
	env.logs.On("Cleanup", 3).Return(2, nil)

	req, _ := http.NewRequest("DELETE", "/logs/cleanup?days=3", nil)
	w, resp := serve(env.router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cleaned up 2 log file(s) older than 3 days", resp["message"])
	assert.Equal(t, float64(2), resp["deleted_count"])

	req, _ = http.NewRequest("DELETE", "/logs/cleanup?days=abc", nil)
	w, _ = serve(env.router, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListHistory_ReportsNormalizedPage(t *testing.T) {
	env := setupRouter(t, true)
	rec := &domain.PredictionRecord{ID: uuid.New(), Task: domain.TaskDetection}
	env.history.On("List", mock.Anything, domain.HistoryFilter{Order: "desc", Limit: 20, Offset: 0}).
		Return([]*domain.PredictionRecord{rec}, 1, nil)

	req, _ := http.NewRequest("GET", "/history?limit=0&offset=-5", nil)
	w, resp := serve(env.router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(20), resp["page_size"])
	assert.Equal(t, float64(1), resp["next_offset"])
	env.history.AssertExpectations(t)
}

func TestHistory_Disabled(t *testing.T) {
	env := setupRouter(t, false)

	req, _ := http.NewRequest("GET", "/history", nil)
	w, _ := serve(env.router, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHistory(t *testing.T) {
	env := setupRouter(t, true)
	rec := &domain.PredictionRecord{ID: uuid.New(), Task: domain.TaskCount, Counts: map[string]int{"RBC": 4}}
	env.history.On("List", mock.Anything, mock.AnythingOfType("domain.HistoryFilter")).Return([]*domain.PredictionRecord{rec}, 1, nil)
	env.history.On("GetByID", mock.Anything, rec.ID).Return(rec, nil)
	env.history.On("Delete", mock.Anything, rec.ID).Return(nil)
	env.history.On("Stats", mock.Anything).Return(&domain.HistoryStats{TotalPredictions: 1}, nil)

	req, _ := http.NewRequest("GET", "/history?task=count", nil)
	w, resp := serve(env.router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["total"])

	req, _ = http.NewRequest("GET", "/history/"+rec.ID.String(), nil)
	w, _ = serve(env.router, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req, _ = http.NewRequest("GET", "/history/stats", nil)
	w, resp = serve(env.router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["stats"].(map[string]interface{})["total_predictions"])

	req, _ = http.NewRequest("DELETE", "/history/"+rec.ID.String(), nil)
	w, _ = serve(env.router, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req, _ = http.NewRequest("GET", "/history/not-a-uuid", nil)
	w, _ = serve(env.router, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	env := setupRouter(t, false)

	req, _ := http.NewRequest("GET", "/healthz", nil)
	w, resp := serve(env.router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp["status"])
}

func base64String(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
