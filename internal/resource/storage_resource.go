package resource

import (
	"context"
	"fmt"
	"strings"

	"media-service/ddd/domain/gateway"
	"media-service/ddd/infrastructure/signer"
	"media-service/ddd/infrastructure/storage"
	"media-service/pkg/config"
	"media-service/pkg/logger"
)

// StorageResource holds the process-wide credentials, signer and gateway.
// Built once at startup and passed by value or pointer from there on.
type StorageResource struct {
	creds        signer.Credentials
	signer       *signer.Signer
	gateway      gateway.StorageGateway
	minio        *MinioResource
	pathPrefixes []string
}

// CredentialsFromConfig copies the storage section into signing credentials.
func CredentialsFromConfig(cfg *config.Config) signer.Credentials {
	return signer.Credentials{
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Region:    cfg.Storage.Region,
		Endpoint:  cfg.Storage.Endpoint,
		Bucket:    cfg.Storage.Bucket,
	}
}

// OpenStorage validates cfg and builds the gateway for the configured driver.
func OpenStorage(cfg *config.Config) (*StorageResource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not initialized before storage resource")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	creds := CredentialsFromConfig(cfg)
	s, err := signer.New(creds)
	if err != nil {
		return nil, err
	}
	r := &StorageResource{creds: creds, signer: s, pathPrefixes: PathPrefixes(cfg.Storage)}

	switch cfg.Storage.Driver {
	case "minio":
		mr, err := NewMinioResource(cfg.Storage)
		if err != nil {
			return nil, err
		}
		r.minio = mr
		r.gateway = storage.NewMinioStorage(mr.GetClient(), mr.GetBucketName(), mr.GetPublicBase())
	default:
		r.gateway = storage.NewS3Storage(s, storage.S3Options{
			PublicBase:     cfg.Storage.PublicBase,
			RequestTimeout: cfg.Storage.RequestTimeout,
		})
	}

	if !creds.HasKeys() {
		logger.Warn("storage credentials not configured, presigned reads fall back to public URLs")
	}
	logger.Info("Storage resource initialized", map[string]interface{}{
		"driver":   cfg.Storage.Driver,
		"endpoint": creds.Endpoint,
		"bucket":   creds.Bucket,
		"region":   creds.Region,
	})
	return r, nil
}

// EnsureBucket creates the bucket when the minio driver is active; a no-op otherwise.
func (r *StorageResource) EnsureBucket(ctx context.Context) error {
	if r.minio == nil {
		return nil
	}
	return r.minio.EnsureBucket(ctx)
}

// PathPrefixes are the URL path prefixes stored URLs may carry before "{bucket}/".
func (r *StorageResource) PathPrefixes() []string { return r.pathPrefixes }

func (r *StorageResource) Credentials() signer.Credentials { return r.creds }
func (r *StorageResource) Signer() *signer.Signer          { return r.signer }
func (r *StorageResource) Gateway() gateway.StorageGateway { return r.gateway }

func (r *StorageResource) Close() {
	if r.minio != nil {
		r.minio.Close()
	}
}

// PathPrefixes collects the path part of the endpoint and of the public base,
// e.g. "https://gw.example.com/s3" gives "/s3". Hosts without a path add nothing.
func PathPrefixes(cfg config.StorageConfig) []string {
	var out []string
	for _, raw := range []string{cfg.Endpoint, cfg.PublicBase} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		u, err := signer.ParseEndpoint(raw)
		if err != nil {
			continue
		}
		if p := strings.Trim(u.EscapedPath(), "/"); p != "" {
			out = append(out, "/"+p)
		}
	}
	return out
}
