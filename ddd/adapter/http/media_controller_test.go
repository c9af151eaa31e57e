package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-service/ddd/application/cqe"
	"media-service/ddd/application/dto"
	"media-service/pkg/errno"
)

type stubUploadApp struct {
	lastReq    *cqe.UploadReq
	lastKey    string
	lastExpiry time.Duration
	uploadErr  error
	deleteErr  error
	manifest   *dto.UploadManifest
}

func (s *stubUploadApp) HandleUpload(_ context.Context, req *cqe.UploadReq) (*dto.UploadManifest, error) {
	s.lastReq = req
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.manifest, nil
}

func (s *stubUploadApp) Delete(_ context.Context, key string) error {
	s.lastKey = key
	return s.deleteErr
}

func (s *stubUploadApp) PresignedGet(_ context.Context, key string, expiry time.Duration) (*dto.PresignDTO, error) {
	s.lastKey, s.lastExpiry = key, expiry
	return &dto.PresignDTO{Key: key, URL: "http://s3/" + key + "?X-Amz-Signature=abc"}, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, stub *stubUploadApp, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	NewRouter(stub, 1<<20).Engine().ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func multipartUpload(t *testing.T, fields map[string][]string, filename, mime string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	if filename != "" {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", mime)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/media", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadBindsMultipartForm(t *testing.T) {
	stub := &stubUploadApp{manifest: &dto.UploadManifest{Storage: dto.StoragePrivateBucket, ImageKey: "private/reviews/r1/a.webp"}}
	req := multipartUpload(t, map[string][]string{
		"kind": {"image"}, "scope": {"review"}, "ids": {"r1"},
	}, "photo.jpg", "image/jpeg", []byte("jpeg-bytes"))
	req.Header.Set("X-Request-ID", "req-1")

	w, env := serve(t, stub, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
	assert.Equal(t, 200, env.Code)
	assert.JSONEq(t, `{"storage":"private-bucket","imageKey":"private/reviews/r1/a.webp"}`, string(env.Data))

	require.NotNil(t, stub.lastReq)
	assert.Equal(t, "photo.jpg", stub.lastReq.Filename)
	assert.Equal(t, "image/jpeg", stub.lastReq.MimeType)
	assert.Equal(t, []byte("jpeg-bytes"), stub.lastReq.Data)
	assert.Equal(t, []string{"r1"}, stub.lastReq.ScopeIDs)
}

func TestUploadSplitsCommaSeparatedIDs(t *testing.T) {
	stub := &stubUploadApp{manifest: &dto.UploadManifest{}}
	req := multipartUpload(t, map[string][]string{
		"kind": {"video"}, "scope": {"lesson_module"}, "ids": {"l1, m1"},
	}, "a.mp4", "video/mp4", []byte("x"))

	w, _ := serve(t, stub, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"l1", "m1"}, stub.lastReq.ScopeIDs)
}

func TestUploadWithoutFileIsBadRequest(t *testing.T) {
	stub := &stubUploadApp{}
	req := multipartUpload(t, map[string][]string{"kind": {"image"}, "scope": {"review"}, "ids": {"r1"}}, "", "", nil)

	w, env := serve(t, stub, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errno.ErrMissingParam.Code, env.Code)
	assert.Nil(t, stub.lastReq)
}

func TestUploadEmptyFileIsBadRequest(t *testing.T) {
	stub := &stubUploadApp{}
	req := multipartUpload(t, map[string][]string{"kind": {"image"}, "scope": {"review"}, "ids": {"r1"}}, "empty.png", "image/png", nil)

	w, env := serve(t, stub, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errno.ErrEmptyFile.Code, env.Code)
	assert.Contains(t, env.Message, "file")
}

func TestUploadMapsEncoderFailure(t *testing.T) {
	stub := &stubUploadApp{uploadErr: &errno.EncoderError{Op: "webp", ExitCode: 1, Stderr: "Invalid data"}}
	req := multipartUpload(t, map[string][]string{"kind": {"image"}, "scope": {"review"}, "ids": {"r1"}}, "a.png", "image/png", []byte("x"))

	w, env := serve(t, stub, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, errno.ErrEncoderFailed.Code, env.Code)
}

func TestDeleteRequiresKey(t *testing.T) {
	stub := &stubUploadApp{}
	w, _ := serve(t, stub, httptest.NewRequest(http.MethodDelete, "/api/v1/media", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = serve(t, stub, httptest.NewRequest(http.MethodDelete, "/api/v1/media?key=private%2Fa.webp", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "private/a.webp", stub.lastKey)
}

func TestDeleteMapsStorageFailure(t *testing.T) {
	stub := &stubUploadApp{deleteErr: &errno.StorageError{Op: "delete", Key: "k", StatusCode: 403, Body: "AccessDenied"}}
	w, env := serve(t, stub, httptest.NewRequest(http.MethodDelete, "/api/v1/media?key=k", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, env.Message, "AccessDenied")
}

func TestPresign(t *testing.T) {
	stub := &stubUploadApp{}
	w, env := serve(t, stub, httptest.NewRequest(http.MethodGet, "/api/v1/media/presign?key=private/a.webp&expires=900", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "private/a.webp", stub.lastKey)
	assert.Equal(t, 900*time.Second, stub.lastExpiry)
	assert.Contains(t, string(env.Data), "X-Amz-Signature")

	w, _ = serve(t, stub, httptest.NewRequest(http.MethodGet, "/api/v1/media/presign?key=a&expires=soon", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	NewRouter(&stubUploadApp{}, 0).Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
