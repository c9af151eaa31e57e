package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-service/ddd/application/cqe"
	"media-service/ddd/domain/gateway"
	"media-service/ddd/domain/port"
	"media-service/ddd/domain/service"
	"media-service/ddd/infrastructure/executor"
	"media-service/ddd/infrastructure/signer"
	"media-service/ddd/infrastructure/storage"
	"media-service/ddd/infrastructure/storage/storagetest"
	"media-service/pkg/config"
	"media-service/pkg/errno"
)

const (
	bucket = "lms-media"
	region = "us-east-1"
	access = "AKIDAPP"
	secret = "app-secret"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []gateway.ArtifactsStoredEvent
	err    error
}

func (p *recordingPublisher) PublishArtifactsStored(_ context.Context, e gateway.ArtifactsStoredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type encoderFunc func(port.EncodeJob) error

func (f encoderFunc) Encode(_ context.Context, job port.EncodeJob) (*port.EncodeResult, error) {
	if err := f(job); err != nil {
		return nil, err
	}
	return &port.EncodeResult{}, nil
}

type fixture struct {
	app       UploadApp
	srv       *storagetest.Server
	publisher *recordingPublisher
	tempRoot  string
}

func newFixture(t *testing.T, enc port.Encoder) *fixture {
	t.Helper()
	srv := storagetest.NewServer(bucket, region, access, secret)
	t.Cleanup(srv.Close)

	s, err := signer.New(signer.Credentials{AccessKey: access, SecretKey: secret, Region: region, Endpoint: srv.URL, Bucket: bucket})
	require.NoError(t, err)
	store := storage.NewS3Storage(s, storage.S3Options{})

	root := t.TempDir()
	svc := service.NewTranscodeService(store, executor.NewInlineRunner(enc), service.TranscodeOptions{TempDir: root})
	pub := &recordingPublisher{}
	return &fixture{
		app:       NewUploadApp(store, svc, pub, UploadOptions{Bucket: bucket}),
		srv:       srv,
		publisher: pub,
		tempRoot:  root,
	}
}

func writeOutputs(files map[string]string) encoderFunc {
	return func(job port.EncodeJob) error {
		for name, body := range files {
			if err := os.WriteFile(filepath.Join(job.Dir, name), []byte(body), 0o600); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestHandleUploadImage(t *testing.T) {
	f := newFixture(t, writeOutputs(map[string]string{"output.webp": "RIFF0000WEBP"}))

	m, err := f.app.HandleUpload(context.Background(), &cqe.UploadReq{
		Scope: "review", ScopeIDs: []string{"r-1"}, Kind: "image",
		Filename: "photo.jpg", MimeType: "image/jpeg", Data: []byte("jpeg"),
	})
	require.NoError(t, err)
	assert.Equal(t, "private-bucket", m.Storage)
	assert.True(t, strings.HasPrefix(m.ImageKey, "private/reviews/r-1/"))
	assert.Empty(t, m.PlaylistKey)

	obj, ok := f.srv.Object(m.ImageKey)
	require.True(t, ok)
	assert.Equal(t, "private", obj.ACL)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, m.ImageKey, f.publisher.events[0].ImageKey)
	assert.Equal(t, "image", f.publisher.events[0].Kind)
}

func TestHandleUploadVideo(t *testing.T) {
	f := newFixture(t, writeOutputs(map[string]string{
		"index.m3u8":     "#EXTM3U\n#EXTINF:6,\nsegment_000.ts\n#EXTINF:6,\nsegment_001.ts\n#EXT-X-ENDLIST\n",
		"segment_000.ts": "a",
		"segment_001.ts": "b",
	}))

	m, err := f.app.HandleUpload(context.Background(), &cqe.UploadReq{
		Scope: "lesson_module", ScopeIDs: []string{"l1", "m1"},
		Filename: "lesson.mp4", MimeType: "video/mp4", Data: []byte("mp4"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(m.PlaylistKey, "private/courses/l1/modules/m1/"))
	assert.Len(t, m.SegmentKeys, 2)
	for _, k := range append([]string{m.PlaylistKey}, m.SegmentKeys...) {
		_, ok := f.srv.Object(k)
		assert.True(t, ok, k)
	}

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"storage":"private-bucket"`)
	assert.Contains(t, string(b), `"playlistKey":`)
	assert.NotContains(t, string(b), `"imageKey"`)
}

func TestHandleUploadRawPublic(t *testing.T) {
	f := newFixture(t, encoderFunc(func(port.EncodeJob) error { t.Fatal("encoder must not run"); return nil }))

	m, err := f.app.HandleUpload(context.Background(), &cqe.UploadReq{
		Scope: "course_thumbnail", ScopeIDs: []string{"c1"}, Kind: "raw", Visibility: "public",
		Filename: "syllabus.pdf", MimeType: "application/pdf", Data: []byte("%PDF"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(m.SourceURL, f.srv.URL+"/"+bucket+"/public/courses/c1/thumbnail/"))
	assert.True(t, strings.HasSuffix(m.SourceURL, ".pdf"))

	keys := f.srv.Keys()
	require.Len(t, keys, 1)
	obj, _ := f.srv.Object(keys[0])
	assert.Equal(t, "public-read", obj.ACL)
	assert.Equal(t, "application/pdf", obj.ContentType)
}

func TestHandleUploadRejectsEmptyFile(t *testing.T) {
	called := false
	f := newFixture(t, encoderFunc(func(port.EncodeJob) error { called = true; return nil }))

	_, err := f.app.HandleUpload(context.Background(), &cqe.UploadReq{Scope: "review", ScopeIDs: []string{"r"}, Kind: "image"})
	var valErr *errno.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "file", valErr.Field)
	assert.False(t, called)
	assert.Empty(t, f.srv.Requests())
}

func TestHandleUploadRejectsUnknownKindAndScope(t *testing.T) {
	f := newFixture(t, writeOutputs(nil))
	_, err := f.app.HandleUpload(context.Background(), &cqe.UploadReq{Scope: "review", ScopeIDs: []string{"r"}, Kind: "audio", Data: []byte("x")})
	var valErr *errno.ValidationError
	require.True(t, errors.As(err, &valErr))

	_, err = f.app.HandleUpload(context.Background(), &cqe.UploadReq{Scope: "order", ScopeIDs: []string{"o"}, Kind: "raw", Data: []byte("x")})
	require.True(t, errors.As(err, &valErr))
}

func TestHandleUploadPublishFailureIsBestEffort(t *testing.T) {
	f := newFixture(t, writeOutputs(map[string]string{"output.webp": "w"}))
	f.publisher.err = errors.New("broker down")

	_, err := f.app.HandleUpload(context.Background(), &cqe.UploadReq{Scope: "review", ScopeIDs: []string{"r"}, Kind: "image", Filename: "a.png", Data: []byte("p")})
	require.NoError(t, err)
}

func TestHandleUploadEncoderFailureSurfaces(t *testing.T) {
	f := newFixture(t, encoderFunc(func(port.EncodeJob) error {
		return &errno.EncoderError{Op: "hls", ExitCode: 1, Stderr: "moov atom not found"}
	}))

	_, err := f.app.HandleUpload(context.Background(), &cqe.UploadReq{Scope: "review", ScopeIDs: []string{"r"}, Kind: "video", Filename: "a.mp4", Data: []byte("x")})
	var encErr *errno.EncoderError
	require.True(t, errors.As(err, &encErr))
	assert.Empty(t, f.publisher.events)
	entries, _ := os.ReadDir(f.tempRoot)
	assert.Empty(t, entries)
}

func TestDeleteAcceptsKeyOrURL(t *testing.T) {
	f := newFixture(t, writeOutputs(nil))
	f.srv.Put("public/reviews/r1/a.webp", storagetest.Object{Body: []byte("x")})
	f.srv.Put("private/reviews/r1/b.webp", storagetest.Object{Body: []byte("y")})

	require.NoError(t, f.app.Delete(context.Background(), f.srv.URL+"/"+bucket+"/public/reviews/r1/a.webp"))
	require.NoError(t, f.app.Delete(context.Background(), "/private/reviews/r1/b.webp"))
	assert.Empty(t, f.srv.Keys())

	var valErr *errno.ValidationError
	require.True(t, errors.As(f.app.Delete(context.Background(), "   "), &valErr))
}

func TestDeleteKeepsInteriorBucketSegment(t *testing.T) {
	f := newFixture(t, writeOutputs(nil))
	f.srv.Put("private/reviews/lms-media/abc.webp", storagetest.Object{Body: []byte("x")})
	f.srv.Put("abc.webp", storagetest.Object{Body: []byte("decoy")})

	require.NoError(t, f.app.Delete(context.Background(), "https://cdn.example.com/private/reviews/lms-media/abc.webp"))
	assert.Equal(t, []string{"abc.webp"}, f.srv.Keys())
}

func TestDeleteRejectsURLNestedInKey(t *testing.T) {
	f := newFixture(t, writeOutputs(nil))
	err := f.app.Delete(context.Background(), f.srv.URL+"/"+bucket+"/http%3A%2F%2Fother.example.com%2Fa.webp")
	var valErr *errno.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Empty(t, f.srv.Requests())
}

func TestPresignedGetDefaultsToOneHour(t *testing.T) {
	f := newFixture(t, writeOutputs(nil))
	f.srv.Put("private/reviews/r1/a.webp", storagetest.Object{Body: []byte("x")})

	p, err := f.app.PresignedGet(context.Background(), "private/reviews/r1/a.webp", 0)
	require.NoError(t, err)
	assert.Contains(t, p.URL, "X-Amz-Expires=3600")
	u, err := url.Parse(p.URL)
	require.NoError(t, err)
	signedAt, err := time.Parse("20060102T150405Z", u.Query().Get("X-Amz-Date"))
	require.NoError(t, err)
	assert.True(t, signedAt.Add(time.Hour).Equal(p.ExpiresAt), "expires at %s", p.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), p.ExpiresAt, 5*time.Second)

	resp, err := http.Get(p.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func onePixelPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestOnePixelPNGWithFFmpeg(t *testing.T) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	if out, err := exec.Command(bin, "-hide_banner", "-encoders").Output(); err != nil || !bytes.Contains(out, []byte("libwebp")) {
		t.Skip("ffmpeg built without libwebp")
	}

	f := newFixture(t, executor.NewFFmpegExecutor(config.FFmpegConfig{BinaryPath: bin, Timeout: time.Minute}))
	m, err := f.app.HandleUpload(context.Background(), &cqe.UploadReq{
		Scope: "review", ScopeIDs: []string{"r-1"}, Kind: "image",
		Filename: "dot.png", MimeType: "image/png", Data: onePixelPNG(t),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(m.ImageKey, "private/"))
	assert.True(t, strings.HasSuffix(m.ImageKey, ".webp"))
	require.Len(t, f.srv.Keys(), 1)

	p, err := f.app.PresignedGet(context.Background(), m.ImageKey, 0)
	require.NoError(t, err)
	u, err := url.Parse(p.URL)
	require.NoError(t, err)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))

	entries, _ := os.ReadDir(f.tempRoot)
	assert.Empty(t, entries)
}

func TestSignedExpiry(t *testing.T) {
	at, ok := signedExpiry("http://s3/b/k?X-Amz-Date=20240524T134507Z&X-Amz-Expires=900&X-Amz-Signature=x")
	require.True(t, ok)
	assert.True(t, time.Date(2024, 5, 24, 14, 0, 7, 0, time.UTC).Equal(at), "got %s", at)

	_, ok = signedExpiry("http://s3/b/public/a.webp")
	assert.False(t, ok)
}
