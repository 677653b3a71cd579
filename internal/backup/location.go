package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrInvalidLocation is returned for malformed backup locations.
var ErrInvalidLocation = errors.New("invalid backup location")

const s3Scheme = "s3://"

// Location is a local path or, when Bucket is set, an S3 object key.
type Location struct {
	Bucket string
	Path   string
}

// ParseLocation accepts s3://bucket/key or a local filesystem path.
func ParseLocation(s string) (Location, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Location{}, fmt.Errorf("%w: empty", ErrInvalidLocation)
	}
	if !strings.HasPrefix(s, s3Scheme) {
		return Location{Path: s}, nil
	}
	bucket, key, _ := strings.Cut(strings.TrimPrefix(s, s3Scheme), "/")
	if bucket == "" {
		return Location{}, fmt.Errorf("%w: %s has no bucket", ErrInvalidLocation, s)
	}
	return Location{Bucket: bucket, Path: strings.Trim(key, "/")}, nil
}

// IsS3 reports whether l names an S3 object.
func (l Location) IsS3() bool { return l.Bucket != "" }

// Join appends name to the location path.
func (l Location) Join(name string) Location {
	if l.IsS3() {
		l.Path = path.Join(l.Path, name)
		return l
	}
	l.Path = filepath.Join(l.Path, name)
	return l
}

func (l Location) String() string {
	if l.IsS3() {
		return s3Scheme + l.Bucket + "/" + l.Path
	}
	return l.Path
}

// Store reads and writes snapshot blobs by key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// S3Config configures the S3 client. Empty credentials fall back to the
// default AWS credential chain.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool

	// HTTPClient replaces the SDK transport.
	HTTPClient *http.Client
}

// OpenStore returns the store serving l.
func OpenStore(ctx context.Context, l Location, cfg S3Config) (Store, error) {
	if !l.IsS3() {
		return DirStore{}, nil
	}
	return NewS3Store(ctx, l.Bucket, cfg)
}

// Save encodes snap and writes it to dest. A dest that is a directory or an
// S3 prefix receives a file named by FileName. It returns the location
// written.
func Save(ctx context.Context, dest string, snap Snapshot, cfg S3Config) (Location, error) {
	l, err := ParseLocation(dest)
	if err != nil {
		return Location{}, err
	}
	if !strings.HasSuffix(l.Path, ".json") {
		l = l.Join(FileName(snap.TakenAt))
	}
	st, err := OpenStore(ctx, l, cfg)
	if err != nil {
		return Location{}, err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		return Location{}, err
	}
	if err := st.Put(ctx, l.Path, buf.Bytes()); err != nil {
		return Location{}, fmt.Errorf("write %s: %w", l, err)
	}
	return l, nil
}

// Load reads the snapshot at src.
func Load(ctx context.Context, src string, cfg S3Config) (Snapshot, error) {
	l, err := ParseLocation(src)
	if err != nil {
		return Snapshot{}, err
	}
	st, err := OpenStore(ctx, l, cfg)
	if err != nil {
		return Snapshot{}, err
	}
	data, err := st.Get(ctx, l.Path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", l, err)
	}
	return Decode(bytes.NewReader(data))
}

// DirStore keeps snapshots on the local filesystem; keys are paths.
type DirStore struct{}

// Put writes data atomically through a temp file in the same directory.
func (DirStore) Put(_ context.Context, key string, data []byte) error {
	dir := filepath.Dir(key)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".vento-backup-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), key)
}

// Get reads the file at key.
func (DirStore) Get(_ context.Context, key string) ([]byte, error) {
	return os.ReadFile(key)
}

// S3Store keeps snapshots in one S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds an S3 client for bucket.
func NewS3Store(ctx context.Context, bucket string, cfg S3Config) (*S3Store, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return &S3Store{client: client, bucket: bucket}, nil
}

// Put uploads data under key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

// Get downloads the object at key.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
