package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"media-service/ddd/domain/gateway"
	"media-service/ddd/domain/vo"
	"media-service/ddd/infrastructure/signer"
	"media-service/pkg/errno"
	"media-service/pkg/logger"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxErrorBody          = 64 << 10
)

// S3Options tunes an S3Storage.
type S3Options struct {
	PublicBase     string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// S3Storage talks to any S3-compatible store over path-style URLs, signing
// each request with the shared signer.
type S3Storage struct {
	signer     *signer.Signer
	client     *http.Client
	publicBase string
	timeout    time.Duration
}

func NewS3Storage(s *signer.Signer, opts S3Options) *S3Storage {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &S3Storage{
		signer:     s,
		client:     client,
		publicBase: strings.TrimRight(strings.TrimSpace(opts.PublicBase), "/"),
		timeout:    timeout,
	}
}

var _ gateway.StorageGateway = (*S3Storage)(nil)

func (s *S3Storage) Put(ctx context.Context, artifact gateway.Artifact) error {
	key := artifact.Key.String()
	contentType := artifact.ContentType
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}
	acl := artifact.ACL
	if acl == "" {
		acl = vo.ACLForKey(artifact.Key)
	}
	sr, err := s.signer.SignHeaderRequest(http.MethodPut, key, artifact.Body, map[string]string{
		"content-type": contentType,
		"x-amz-acl":    string(acl),
	})
	if err != nil {
		return &errno.StorageError{Op: "put", Key: key, Err: err}
	}
	if err := s.do(ctx, "put", key, sr, artifact.Body); err != nil {
		return err
	}
	logger.WithContext(ctx).Debug("object stored", map[string]interface{}{
		"object_key":   key,
		"content_type": contentType,
		"acl":          string(acl),
		"size":         len(artifact.Body),
	})
	return nil
}

func (s *S3Storage) Delete(ctx context.Context, key vo.ObjectKey) error {
	sr, err := s.signer.SignHeaderRequest(http.MethodDelete, key.String(), nil, nil)
	if err != nil {
		return &errno.StorageError{Op: "delete", Key: key.String(), Err: err}
	}
	if err := s.do(ctx, "delete", key.String(), sr, nil); err != nil {
		return err
	}
	logger.WithContext(ctx).Info("object deleted", map[string]interface{}{"object_key": key.String()})
	return nil
}

// PresignedGet computes the URL locally; ctx is only checked for cancellation.
func (s *S3Storage) PresignedGet(ctx context.Context, key vo.ObjectKey, expiry time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	u, err := s.signer.PresignGet(key.String(), expiry)
	if err != nil {
		return "", &errno.StorageError{Op: "presign", Key: key.String(), Err: err}
	}
	return u, nil
}

func (s *S3Storage) PublicURL(key vo.ObjectKey) string {
	if s.publicBase == "" {
		return s.signer.ObjectURL(key.String())
	}
	return s.publicBase + "/" + signer.EncodeSegment(s.signer.Credentials().Bucket) + "/" +
		signer.EncodePath(strings.TrimLeft(key.String(), "/"))
}

func (s *S3Storage) do(ctx context.Context, op, key string, sr *signer.SignedRequest, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := sr.NewHTTPRequest(ctx, payload)
	if err != nil {
		return &errno.StorageError{Op: op, Key: key, Err: fmt.Errorf("create request: %w", err)}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("no response within %s: %w", s.timeout, err)
		}
		return &errno.StorageError{Op: op, Key: key, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.WithContext(ctx).Warn("object store rejected request", map[string]interface{}{
			"op":          op,
			"object_key":  key,
			"status_code": resp.StatusCode,
		})
		return &errno.StorageError{Op: op, Key: key, StatusCode: resp.StatusCode, Body: string(b)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
