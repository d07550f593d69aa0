package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/kiko1842/vaultwire/internal/env"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchiveConfig points at the S3-compatible bucket that keeps run reports.
type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// ArchiveConfigFromEnv reads the archive settings. Archiving is disabled
// when VAULTWIRE_ARCHIVE_ENDPOINT is unset; ok reports whether it is on.
func ArchiveConfigFromEnv() (cfg ArchiveConfig, ok bool, err error) {
	endpoint := env.String("VAULTWIRE_ARCHIVE_ENDPOINT", "")
	if endpoint == "" {
		return ArchiveConfig{}, false, nil
	}
	useSSL, err := env.Bool("VAULTWIRE_ARCHIVE_USE_SSL", true)
	if err != nil {
		return ArchiveConfig{}, false, err
	}
	cfg = ArchiveConfig{
		Endpoint:  endpoint,
		AccessKey: env.String("VAULTWIRE_ARCHIVE_ACCESS_KEY", ""),
		SecretKey: env.String("VAULTWIRE_ARCHIVE_SECRET_KEY", ""),
		Region:    env.String("VAULTWIRE_ARCHIVE_REGION", ""),
		Bucket:    env.String("VAULTWIRE_ARCHIVE_BUCKET", "vaultwire-reports"),
		Prefix:    env.String("VAULTWIRE_ARCHIVE_PREFIX", "runs"),
		UseSSL:    useSSL,
	}
	if err := cfg.Validate(); err != nil {
		return ArchiveConfig{}, false, err
	}
	return cfg, true, nil
}

func (c ArchiveConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("VAULTWIRE_ARCHIVE_ENDPOINT is required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("VAULTWIRE_ARCHIVE_ACCESS_KEY and VAULTWIRE_ARCHIVE_SECRET_KEY are required")
	}
	if c.Bucket == "" {
		return errors.New("VAULTWIRE_ARCHIVE_BUCKET is required")
	}
	return nil
}

// MinioArchiver uploads YAML reports to object storage.
type MinioArchiver struct {
	client *minio.Client
	cfg    ArchiveConfig
}

// NewMinioArchiver creates the storage client. It does not contact the
// server.
func NewMinioArchiver(cfg ArchiveConfig) (*MinioArchiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating archive client: %w", err)
	}
	return &MinioArchiver{client: client, cfg: cfg}, nil
}

// Archive stores the report and returns its object key. The bucket is
// created on first use.
func (a *MinioArchiver) Archive(ctx context.Context, r Report) (string, error) {
	data, err := Marshal(r)
	if err != nil {
		return "", err
	}
	if err := a.ensureBucket(ctx); err != nil {
		return "", err
	}

	key := ObjectKey(a.cfg.Prefix, r)
	_, err = a.client.PutObject(ctx, a.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/yaml",
		UserMetadata: map[string]string{
			"run-id":  r.RunID,
			"network": r.Network,
			"outcome": string(r.Outcome),
		},
	})
	if err != nil {
		return "", fmt.Errorf("uploading report %s: %w", key, err)
	}
	return key, nil
}

func (a *MinioArchiver) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("archive bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.cfg.Bucket, minio.MakeBucketOptions{Region: a.cfg.Region}); err != nil {
		return fmt.Errorf("creating archive bucket: %w", err)
	}
	return nil
}

// ObjectKey places a report under <prefix>/<network>/<date>/<run id>.yaml.
func ObjectKey(prefix string, r Report) string {
	network := r.Network
	if network == "" {
		network = "unresolved"
	}
	return path.Join(prefix, network, r.GeneratedAt.UTC().Format("2006-01-02"), r.RunID+".yaml")
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
