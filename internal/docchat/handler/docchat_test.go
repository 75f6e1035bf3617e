package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/internal/docchat/handler"
	"github.com/kart-io/docchat/internal/docchat/router"
	"github.com/kart-io/docchat/internal/model"
)

// stubService records calls and returns canned results.
type stubService struct {
	uploadErr error
	queryErr  error

	lastUpload *biz.UploadInput
	lastQuery  *model.QueryRequest
	queryResp  *model.QueryResponse
}

func (s *stubService) Upload(_ context.Context, sessionID string, input *biz.UploadInput) (*model.UploadResult, error) {
	s.lastUpload = input
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return &model.UploadResult{
		SessionID:     sessionID,
		FileName:      input.FileName,
		FileSizeBytes: int64(len(input.Data)),
		FileType:      "txt",
		ChunkCount:    2,
	}, nil
}

func (s *stubService) Query(_ context.Context, sessionID string, req *model.QueryRequest) (*model.QueryResponse, error) {
	s.lastQuery = req
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	if s.queryResp != nil {
		return s.queryResp, nil
	}
	return &model.QueryResponse{
		Answer:  "stub answer",
		Results: []model.QueryResult{},
	}, nil
}

func (s *stubService) Reset(_ context.Context, sessionID string) (*model.ResetResult, error) {
	return &model.ResetResult{Status: "reset", SessionID: sessionID}, nil
}

func (s *stubService) Stats(_ context.Context, sessionID string) (*model.SessionStats, error) {
	return &model.SessionStats{SessionID: sessionID, ChunkCount: 3, StoreName: "memory"}, nil
}

func newTestRouter(svc biz.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	router.Register(engine, handler.New(svc))
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("x-session-id", sessionID)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, sessionID, fileName string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	return uploadRequestTyped(t, sessionID, fileName, "", content, fields)
}

// uploadRequestTyped builds a multipart upload; a non-empty contentType
// is set on the file part itself.
func uploadRequestTyped(t *testing.T, sessionID, fileName, contentType string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if fileName != "" {
		var fw io.Writer
		var err error
		if contentType != "" {
			header := make(textproto.MIMEHeader)
			header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
			header.Set("Content-Type", contentType)
			fw, err = mw.CreatePart(header)
		} else {
			fw, err = mw.CreateFormFile("file", fileName)
		}
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if sessionID != "" {
		req.Header.Set("x-session-id", sessionID)
	}
	return req
}

func TestMissingSessionHeader(t *testing.T) {
	engine := newTestRouter(&stubService{})

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/upload"},
		{http.MethodPost, "/query"},
		{http.MethodPost, "/session/reset"},
		{http.MethodGet, "/stats"},
		{http.MethodGet, "/health"},
	} {
		w := doJSON(t, engine, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, route.path)
		assert.JSONEq(t, `{"error":"Missing x-session-id header"}`, w.Body.String(), route.path)
	}
}

func TestHealth(t *testing.T) {
	engine := newTestRouter(&stubService{})

	w := doJSON(t, engine, http.MethodGet, "/health", "s1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestUpload_Success(t *testing.T) {
	svc := &stubService{}
	engine := newTestRouter(svc)

	req := uploadRequest(t, "s1", "doc.txt", []byte("document content"), map[string]string{
		"chunkSize":    "500",
		"chunkOverlap": "100",
	})
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result model.UploadResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "s1", result.SessionID)
	assert.Equal(t, "doc.txt", result.FileName)
	assert.Equal(t, 2, result.ChunkCount)

	require.NotNil(t, svc.lastUpload)
	assert.Equal(t, 500, svc.lastUpload.ChunkSize)
	assert.Equal(t, 100, svc.lastUpload.ChunkOverlap)
}

func TestUpload_PassesContentType(t *testing.T) {
	svc := &stubService{}
	engine := newTestRouter(svc)

	req := uploadRequestTyped(t, "s1", "noextension", "text/plain", []byte("plain body"), nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastUpload)
	assert.Equal(t, "text/plain", svc.lastUpload.ContentType)
}

func TestUpload_MissingFile(t *testing.T) {
	engine := newTestRouter(&stubService{})

	req := uploadRequest(t, "s1", "", nil, nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, w.Body.String())
}

func TestUpload_UnsupportedType(t *testing.T) {
	engine := newTestRouter(&stubService{uploadErr: biz.ErrUnsupportedFileType})

	req := uploadRequest(t, "s1", "image.png", []byte("bytes"), nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Only .pdf and .txt files are supported"}`, w.Body.String())
}

func TestUpload_MalformedChunkSize(t *testing.T) {
	engine := newTestRouter(&stubService{})

	req := uploadRequest(t, "s1", "doc.txt", []byte("content"), map[string]string{
		"chunkSize": "not-a-number",
	})
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuery_Success(t *testing.T) {
	svc := &stubService{
		queryResp: &model.QueryResponse{
			Answer: "the answer",
			Results: []model.QueryResult{
				{Chunk: model.StoredChunk{Text: "chunk text", Index: 0}, Score: 0.91},
			},
			Debug: model.QueryDebug{TotalStoredChunks: 4, RetrievedChunks: 1, TopScore: 0.91},
		},
	}
	engine := newTestRouter(svc)

	w := doJSON(t, engine, http.MethodPost, "/query", "s1", map[string]any{
		"query": "what is it?",
		"topK":  3,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "the answer", resp.Answer)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 0.91, resp.Results[0].Score)
	assert.Equal(t, 4, resp.Debug.TotalStoredChunks)

	require.NotNil(t, svc.lastQuery)
	require.NotNil(t, svc.lastQuery.TopK)
	assert.Equal(t, 3, *svc.lastQuery.TopK)
	assert.Nil(t, svc.lastQuery.SimilarityThreshold)
}

func TestQuery_NonStringQuery(t *testing.T) {
	engine := newTestRouter(&stubService{})

	w := doJSON(t, engine, http.MethodPost, "/query", "s1", map[string]any{
		"query": 12345,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuery_EmptyQuery(t *testing.T) {
	engine := newTestRouter(&stubService{queryErr: biz.ErrEmptyQuery})

	w := doJSON(t, engine, http.MethodPost, "/query", "s1", map[string]any{"query": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Query is required"}`, w.Body.String())
}

func TestQuery_TooLong(t *testing.T) {
	engine := newTestRouter(&stubService{queryErr: biz.ErrQueryTooLong})

	w := doJSON(t, engine, http.MethodPost, "/query", "s1", map[string]any{
		"query": strings.Repeat("q", 501),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Question is too long. Please keep it under 500 characters."}`, w.Body.String())
}

func TestQuery_EmbeddingUnavailable(t *testing.T) {
	engine := newTestRouter(&stubService{queryErr: biz.ErrEmbeddingUnavailable})

	w := doJSON(t, engine, http.MethodPost, "/query", "s1", map[string]any{"query": "anything"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestQuery_GenerationFailed(t *testing.T) {
	engine := newTestRouter(&stubService{queryErr: biz.ErrGenerationFailed})

	w := doJSON(t, engine, http.MethodPost, "/query", "s1", map[string]any{"query": "anything"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReset(t *testing.T) {
	engine := newTestRouter(&stubService{})

	w := doJSON(t, engine, http.MethodPost, "/session/reset", "session-42", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"reset","sessionId":"session-42"}`, w.Body.String())
}

func TestStats(t *testing.T) {
	engine := newTestRouter(&stubService{})

	w := doJSON(t, engine, http.MethodGet, "/stats", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats model.SessionStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, "s1", stats.SessionID)
	assert.Equal(t, 3, stats.ChunkCount)
}
