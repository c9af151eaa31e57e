// Package signer implements AWS Signature Version 4 for S3-compatible object stores.
//
// Two modes are supported: header signing for PUT/DELETE and query signing for
// presigned GET URLs. Both are pure computations over Credentials and a clock.
package signer

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	Algorithm       = "AWS4-HMAC-SHA256"
	Service         = "s3"
	UnsignedPayload = "UNSIGNED-PAYLOAD"

	amzDateFormat   = "20060102T150405Z"
	dateStampFormat = "20060102"

	// DefaultPresignExpiry is used when a non-positive expiry is requested.
	DefaultPresignExpiry = time.Hour
	// MaxPresignExpiry is the SigV4 upper bound for X-Amz-Expires.
	MaxPresignExpiry = 7 * 24 * time.Hour
)

// EmptyPayloadHash is the hex SHA-256 of the empty string.
var EmptyPayloadHash = SHA256Hex(nil)

var ErrEmptyKey = errors.New("signer: object key is empty")

// Credentials is the process-wide storage configuration. Treat it as immutable.
type Credentials struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Bucket    string
}

// HasKeys reports whether requests can be signed.
func (c Credentials) HasKeys() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// String never prints the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{AccessKey:%s Region:%s Endpoint:%s Bucket:%s SecretKey:[redacted]}",
		c.AccessKey, c.Region, c.Endpoint, c.Bucket)
}

// Signer signs requests for a single bucket.
type Signer struct {
	creds    Credentials
	endpoint *url.URL
	now      func() time.Time
}

// Option customizes a Signer.
type Option func(*Signer)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// New validates the endpoint and returns a Signer.
func New(creds Credentials, opts ...Option) (*Signer, error) {
	ep, err := ParseEndpoint(creds.Endpoint)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(creds.Bucket) == "" {
		return nil, errors.New("signer: bucket is required")
	}
	if creds.Region == "" {
		creds.Region = "us-east-1"
	}
	s := &Signer{creds: creds, endpoint: ep, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ParseEndpoint accepts "host:port" or a full http(s) URL.
func ParseEndpoint(endpoint string) (*url.URL, error) {
	e := strings.TrimSpace(endpoint)
	if e == "" {
		return nil, errors.New("signer: endpoint is required")
	}
	if !strings.HasPrefix(e, "http://") && !strings.HasPrefix(e, "https://") {
		e = "http://" + e
	}
	u, err := url.Parse(strings.TrimRight(e, "/"))
	if err != nil {
		return nil, fmt.Errorf("signer: parse endpoint: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("signer: endpoint %q has no host", endpoint)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// Credentials returns the configured credentials.
func (s *Signer) Credentials() Credentials { return s.creds }

// Host is the value signed as the host header.
func (s *Signer) Host() string { return s.endpoint.Host }

// CanonicalPath returns /{bucket}/{key} with every segment URI-encoded, prefixed
// with any path carried by the endpoint.
func (s *Signer) CanonicalPath(key string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(s.endpoint.EscapedPath(), "/"))
	b.WriteByte('/')
	b.WriteString(EncodeSegment(s.creds.Bucket))
	b.WriteByte('/')
	b.WriteString(EncodePath(strings.TrimLeft(key, "/")))
	return b.String()
}

// ObjectURL is the unsigned URL of an object.
func (s *Signer) ObjectURL(key string) string {
	return s.endpoint.Scheme + "://" + s.endpoint.Host + s.CanonicalPath(key)
}

// SignedRequest is everything needed to put one signed request on the wire.
// Headers holds exactly the signed headers other than host; Apply sends them verbatim.
type SignedRequest struct {
	Method           string
	URL              string
	Host             string
	AmzDate          string
	DateStamp        string
	CredentialScope  string
	ContentSHA256    string
	SignedHeaders    string
	Headers          map[string]string
	CanonicalRequest string
	StringToSign     string
	Signature        string
	Authorization    string
}

// Apply sets the signed headers and the Authorization header on req.
func (r *SignedRequest) Apply(req *http.Request) {
	req.Host = r.Host
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", r.Authorization)
}

// NewHTTPRequest builds a request whose headers are exactly the ones that were signed.
func (r *SignedRequest) NewHTTPRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, err
	}
	r.Apply(req)
	return req, nil
}

// SignHeaderRequest signs a PUT or DELETE of key with payload in the Authorization header.
// extraHeaders (for example content-type and x-amz-acl) become part of the signature.
func (s *Signer) SignHeaderRequest(method, key string, payload []byte, extraHeaders map[string]string) (*SignedRequest, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return nil, ErrEmptyKey
	}
	t := s.now().UTC().Truncate(time.Second)
	amzDate := t.Format(amzDateFormat)
	dateStamp := t.Format(dateStampFormat)
	payloadHash := SHA256Hex(payload)

	headers := make(map[string]string, len(extraHeaders)+2)
	for k, v := range extraHeaders {
		name := strings.ToLower(strings.TrimSpace(k))
		if name == "" || name == "host" || name == "authorization" {
			continue
		}
		headers[name] = canonicalHeaderValue(v)
	}
	headers["x-amz-content-sha256"] = payloadHash
	headers["x-amz-date"] = amzDate

	names := make([]string, 0, len(headers)+1)
	names = append(names, "host")
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)

	var canonicalHeaders strings.Builder
	for _, name := range names {
		canonicalHeaders.WriteString(name)
		canonicalHeaders.WriteByte(':')
		if name == "host" {
			canonicalHeaders.WriteString(s.Host())
		} else {
			canonicalHeaders.WriteString(headers[name])
		}
		canonicalHeaders.WriteByte('\n')
	}
	signedHeaders := strings.Join(names, ";")

	path := s.CanonicalPath(key)
	canonicalRequest := strings.Join([]string{
		strings.ToUpper(method),
		path,
		"",
		canonicalHeaders.String(),
		signedHeaders,
		payloadHash,
	}, "\n")

	scope := s.credentialScope(dateStamp)
	stringToSign := buildStringToSign(amzDate, scope, canonicalRequest)
	signature := hex.EncodeToString(hmacSHA256(s.signingKey(dateStamp), stringToSign))

	return &SignedRequest{
		Method:           strings.ToUpper(method),
		URL:              s.endpoint.Scheme + "://" + s.Host() + path,
		Host:             s.Host(),
		AmzDate:          amzDate,
		DateStamp:        dateStamp,
		CredentialScope:  scope,
		ContentSHA256:    payloadHash,
		SignedHeaders:    signedHeaders,
		Headers:          headers,
		CanonicalRequest: canonicalRequest,
		StringToSign:     stringToSign,
		Signature:        signature,
		Authorization: fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
			Algorithm, s.creds.AccessKey, scope, signedHeaders, signature),
	}, nil
}

// PresignGet returns a time-limited GET URL for key. Without credentials the
// plain object URL is returned, for buckets that are publicly readable.
func (s *Signer) PresignGet(key string, expiry time.Duration) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", ErrEmptyKey
	}
	if !s.creds.HasKeys() {
		return s.ObjectURL(key), nil
	}
	expiry = ClampExpiry(expiry)

	t := s.now().UTC().Truncate(time.Second)
	amzDate := t.Format(amzDateFormat)
	dateStamp := t.Format(dateStampFormat)
	scope := s.credentialScope(dateStamp)

	params := map[string]string{
		"X-Amz-Algorithm":     Algorithm,
		"X-Amz-Credential":    s.creds.AccessKey + "/" + scope,
		"X-Amz-Date":          amzDate,
		"X-Amz-Expires":       strconv.FormatInt(int64(expiry/time.Second), 10),
		"X-Amz-SignedHeaders": "host",
	}
	query := CanonicalQuery(params)

	path := s.CanonicalPath(key)
	canonicalRequest := strings.Join([]string{
		http.MethodGet,
		path,
		query,
		"host:" + s.Host() + "\n",
		"host",
		UnsignedPayload,
	}, "\n")

	stringToSign := buildStringToSign(amzDate, scope, canonicalRequest)
	signature := hex.EncodeToString(hmacSHA256(s.signingKey(dateStamp), stringToSign))

	return s.endpoint.Scheme + "://" + s.Host() + path + "?" + query + "&X-Amz-Signature=" + signature, nil
}

// ClampExpiry applies the default and the SigV4 maximum.
func ClampExpiry(expiry time.Duration) time.Duration {
	if expiry <= 0 {
		return DefaultPresignExpiry
	}
	if expiry < time.Second {
		return time.Second
	}
	if expiry > MaxPresignExpiry {
		return MaxPresignExpiry
	}
	return expiry.Truncate(time.Second)
}

func (s *Signer) credentialScope(dateStamp string) string {
	return strings.Join([]string{dateStamp, s.creds.Region, Service, "aws4_request"}, "/")
}

// signingKey derives the per-day key: HMAC chain over date, region, service, terminator.
func (s *Signer) signingKey(dateStamp string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+s.creds.SecretKey), dateStamp)
	kRegion := hmacSHA256(kDate, s.creds.Region)
	kService := hmacSHA256(kRegion, Service)
	return hmacSHA256(kService, "aws4_request")
}

func buildStringToSign(amzDate, scope, canonicalRequest string) string {
	return strings.Join([]string{Algorithm, amzDate, scope, SHA256Hex([]byte(canonicalRequest))}, "\n")
}

// CanonicalQuery encodes params sorted by name, each key and value URI-encoded.
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, EncodeSegment(k)+"="+EncodeSegment(params[k]))
	}
	return strings.Join(parts, "&")
}

// EncodePath URI-encodes each slash-separated segment independently.
func EncodePath(p string) string {
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = EncodeSegment(seg)
	}
	return strings.Join(segs, "/")
}

// EncodeSegment keeps RFC 3986 unreserved characters and percent-encodes the rest.
func EncodeSegment(s string) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

func canonicalHeaderValue(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

// SHA256Hex is the lower-case hex SHA-256 digest of b.
func SHA256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}
