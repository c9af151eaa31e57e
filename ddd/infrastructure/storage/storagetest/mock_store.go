// Package storagetest provides an in-memory S3-compatible server that
// verifies SigV4 signatures with the AWS SDK signer before accepting a call.
package storagetest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

const amzDateFormat = "20060102T150405Z"

// Object is a stored object with the metadata the gateway sets.
type Object struct {
	Body        []byte
	ContentType string
	ACL         string
}

// Request is one call the server received, accepted or not.
type Request struct {
	Method string
	Key    string
	Status int
}

// Server is an httptest S3 endpoint with a single bucket.
type Server struct {
	*httptest.Server

	Bucket    string
	Region    string
	AccessKey string
	secretKey string

	mu       sync.Mutex
	objects  map[string]Object
	requests []Request
	failKeys map[string]int
}

// NewServer starts a mock store. Call Close when done.
func NewServer(bucket, region, accessKey, secretKey string) *Server {
	s := &Server{
		Bucket:    bucket,
		Region:    region,
		AccessKey: accessKey,
		secretKey: secretKey,
		objects:   make(map[string]Object),
		failKeys:  make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// FailKey makes every request for key answer with status.
func (s *Server) FailKey(key string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failKeys[key] = status
}

// Object returns the stored object for key.
func (s *Server) Object(key string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[key]
	return o, ok
}

// Put seeds an object without going through the signed path.
func (s *Server) Put(key string, obj Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = obj
}

// Keys lists stored keys in order.
func (s *Server) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Requests returns every call received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	key, ok := s.objectKey(r.URL)
	if !ok {
		s.reply(w, r, "", http.StatusNotFound, "NoSuchBucket", "bucket does not exist")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.reply(w, r, key, http.StatusBadRequest, "IncompleteBody", err.Error())
		return
	}

	if r.URL.Query().Get("X-Amz-Signature") != "" {
		err = s.verifyPresigned(r)
	} else {
		err = s.verifyHeaders(r, body)
	}
	if err != nil {
		s.reply(w, r, key, http.StatusForbidden, "SignatureDoesNotMatch", err.Error())
		return
	}

	s.mu.Lock()
	status, failing := s.failKeys[key]
	s.mu.Unlock()
	if failing {
		s.reply(w, r, key, status, "InternalError", "injected failure")
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.mu.Lock()
		s.objects[key] = Object{Body: body, ContentType: r.Header.Get("Content-Type"), ACL: r.Header.Get("X-Amz-Acl")}
		s.mu.Unlock()
		s.record(r, key, http.StatusOK)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		s.mu.Lock()
		delete(s.objects, key)
		s.mu.Unlock()
		s.record(r, key, http.StatusNoContent)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		obj, found := s.Object(key)
		if !found {
			s.reply(w, r, key, http.StatusNotFound, "NoSuchKey", "key does not exist")
			return
		}
		s.record(r, key, http.StatusOK)
		w.Header().Set("Content-Type", obj.ContentType)
		_, _ = w.Write(obj.Body)
	default:
		s.reply(w, r, key, http.StatusMethodNotAllowed, "MethodNotAllowed", r.Method)
	}
}

func (s *Server) objectKey(u *url.URL) (string, bool) {
	p := strings.TrimPrefix(u.Path, "/")
	prefix := s.Bucket + "/"
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	return strings.TrimPrefix(p, prefix), true
}

func (s *Server) verifyHeaders(r *http.Request, body []byte) error {
	auth := r.Header.Get("Authorization")
	signedHeaders, err := authField(auth, "SignedHeaders")
	if err != nil {
		return err
	}
	credential, err := authField(auth, "Credential")
	if err != nil {
		return err
	}
	if err := s.checkCredential(credential); err != nil {
		return err
	}
	signingTime, err := time.Parse(amzDateFormat, r.Header.Get("X-Amz-Date"))
	if err != nil {
		return fmt.Errorf("bad x-amz-date: %w", err)
	}
	payloadHash := r.Header.Get("X-Amz-Content-Sha256")
	sum := sha256.Sum256(body)
	if payloadHash != hex.EncodeToString(sum[:]) {
		return fmt.Errorf("payload hash mismatch")
	}

	check, err := http.NewRequest(r.Method, "http://"+r.Host+r.URL.EscapedPath(), nil)
	if err != nil {
		return err
	}
	for _, name := range strings.Split(signedHeaders, ";") {
		if name == "host" {
			continue
		}
		check.Header.Set(name, r.Header.Get(name))
	}
	err = s.sdkSigner().SignHTTP(context.Background(), s.credentials(), check, payloadHash, "s3", s.Region, signingTime)
	if err != nil {
		return err
	}
	if check.Header.Get("Authorization") != auth {
		return fmt.Errorf("the request signature we calculated does not match the signature you provided")
	}
	return nil
}

func (s *Server) verifyPresigned(r *http.Request) error {
	q := r.URL.Query()
	if err := s.checkCredential(q.Get("X-Amz-Credential")); err != nil {
		return err
	}
	signingTime, err := time.Parse(amzDateFormat, q.Get("X-Amz-Date"))
	if err != nil {
		return fmt.Errorf("bad X-Amz-Date: %w", err)
	}
	check, err := http.NewRequest(r.Method,
		"http://"+r.Host+r.URL.EscapedPath()+"?X-Amz-Expires="+url.QueryEscape(q.Get("X-Amz-Expires")), nil)
	if err != nil {
		return err
	}
	signed, _, err := s.sdkSigner().PresignHTTP(context.Background(), s.credentials(), check, "UNSIGNED-PAYLOAD", "s3", s.Region, signingTime)
	if err != nil {
		return err
	}
	u, err := url.Parse(signed)
	if err != nil {
		return err
	}
	if u.Query().Get("X-Amz-Signature") != q.Get("X-Amz-Signature") {
		return fmt.Errorf("the request signature we calculated does not match the signature you provided")
	}
	return nil
}

func (s *Server) checkCredential(credential string) error {
	if !strings.HasPrefix(credential, s.AccessKey+"/") {
		return fmt.Errorf("unknown access key")
	}
	if !strings.Contains(credential, "/"+s.Region+"/s3/aws4_request") {
		return fmt.Errorf("credential scope mismatch: %s", credential)
	}
	return nil
}

func (s *Server) sdkSigner() *v4.Signer {
	return v4.NewSigner(func(o *v4.SignerOptions) { o.DisableURIPathEscaping = true })
}

func (s *Server) credentials() aws.Credentials {
	return aws.Credentials{AccessKeyID: s.AccessKey, SecretAccessKey: s.secretKey}
}

func (s *Server) record(r *http.Request, key string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{Method: r.Method, Key: key, Status: status})
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, key string, status int, code, msg string) {
	s.record(r, key, status)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><Key>%s</Key></Error>`,
		code, msg, key)
}

func authField(auth, name string) (string, error) {
	const algorithm = "AWS4-HMAC-SHA256 "
	if !strings.HasPrefix(auth, algorithm) {
		return "", fmt.Errorf("missing or unsupported authorization")
	}
	for _, part := range strings.Split(strings.TrimPrefix(auth, algorithm), ",") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, name+"="); ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("authorization has no %s", name)
}
