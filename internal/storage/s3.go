package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/customs-dev/customs/internal/models"
	"github.com/customs-dev/customs/internal/upload"
	"github.com/google/uuid"
)

// BackendS3 names the object storage backend in FileInfo.Backend.
const BackendS3 = "s3"

// Object metadata keys.
const (
	metaFilename  = "original-filename"
	metaFieldName = "field-name"
	metaUploaded  = "upload-time"
)

// s3API is the subset of *s3.Client used by S3Store.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Options configures NewS3Store.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string // optional, for MinIO and other compatible services
	KeyID     string
	KeySecret string
	Prefix    string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// S3Store implements Store on an S3 compatible bucket. Metadata of files
// stored by this process is indexed in memory; other objects are looked up
// with HeadObject.
type S3Store struct {
	client s3API
	bucket string
	prefix string

	mu    sync.RWMutex
	files map[string]*models.FileInfo
}

// NewS3Store creates an S3Store from static credentials.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.KeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.KeyID, opts.KeySecret, "")))
	}
	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, opts.Bucket, opts.Prefix), nil
}

func newS3Store(client s3API, bucket, prefix string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		files:  make(map[string]*models.FileInfo),
	}
}

func (s *S3Store) key(id string) string {
	return s.prefix + id
}

// Adopt uploads the temporary file of f. The temporary file is left for the
// upload channel to clean up.
func (s *S3Store) Adopt(ctx context.Context, f *upload.File) (*models.FileInfo, error) {
	src, err := os.Open(f.ServerFile())
	if err != nil {
		return nil, &upload.ServerFault{FieldName: f.FieldName(), Reason: upload.ReasonMoveFailed, Err: err}
	}
	defer src.Close()

	info := &models.FileInfo{
		ID:          uuid.New().String(),
		Name:        f.ClientFilename(),
		FieldName:   f.FieldName(),
		ContentType: f.Type(),
		Size:        f.Size(),
		UploadedAt:  time.Now(),
		Status:      models.FileStatusStored,
		Backend:     BackendS3,
	}
	if err := s.put(ctx, info, src, f.Size()); err != nil {
		return nil, &upload.ServerFault{FieldName: f.FieldName(), Reason: upload.ReasonMoveFailed, Err: err}
	}
	return s.index(info), nil
}

func (s *S3Store) put(ctx context.Context, info *models.FileInfo, body io.Reader, size int64) error {
	key := s.key(info.ID)
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
		Metadata: map[string]string{
			metaFilename:  info.Name,
			metaFieldName: info.FieldName,
			metaUploaded:  info.UploadedAt.UTC().Format(time.RFC3339),
		},
	}
	if info.ContentType != "" {
		in.ContentType = aws.String(info.ContentType)
	}
	in.ContentLength = aws.Int64(size)

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	info.Location = fmt.Sprintf("s3://%s/%s", s.bucket, key)
	return nil
}

// index stores info and returns a copy of it.
func (s *S3Store) index(info *models.FileInfo) *models.FileInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[info.ID] = info
	cp := *info
	return &cp
}

func (s *S3Store) lookup(id string) (*models.FileInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.files[id]
	if !ok {
		return nil, false
	}
	cp := *info
	return &cp, true
}

// Get returns the metadata of a file, asking the bucket for objects this
// process has not stored.
func (s *S3Store) Get(ctx context.Context, id string) (*models.FileInfo, error) {
	if info, ok := s.lookup(id); ok {
		return info, nil
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return nil, s.mapError(id, err)
	}

	info := &models.FileInfo{
		ID:          id,
		Name:        head.Metadata[metaFilename],
		FieldName:   head.Metadata[metaFieldName],
		ContentType: aws.ToString(head.ContentType),
		Size:        aws.ToInt64(head.ContentLength),
		Status:      models.FileStatusStored,
		Backend:     BackendS3,
		Location:    fmt.Sprintf("s3://%s/%s", s.bucket, s.key(id)),
	}
	if t, err := time.Parse(time.RFC3339, head.Metadata[metaUploaded]); err == nil {
		info.UploadedAt = t
	} else if head.LastModified != nil {
		info.UploadedAt = *head.LastModified
	}
	return s.index(info), nil
}

// Open streams the object.
func (s *S3Store) Open(ctx context.Context, id string) (io.ReadCloser, *models.FileInfo, error) {
	info, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return nil, nil, s.mapError(id, err)
	}
	return out.Body, info, nil
}

// List returns the most recent files stored by this process.
func (s *S3Store) List(ctx context.Context, limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*models.FileInfo, 0, len(s.files))
	for _, info := range s.files {
		cp := *info
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Delete removes the object.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return s.mapError(id, err)
	}

	s.mu.Lock()
	delete(s.files, id)
	s.mu.Unlock()
	return nil
}

// Rename changes the display name kept in the index. The object metadata is
// not rewritten.
func (s *S3Store) Rename(ctx context.Context, id string, newName string) (*models.FileInfo, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	info.Name = newName
	cp := *info
	return &cp, nil
}

func (s *S3Store) mapError(id string, err error) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fmt.Errorf("s3 request for %s: %w", id, err)
}

var _ Store = (*S3Store)(nil)
