// Package docstore stores fetched original judgments (PDFs and text files)
// in S3-compatible object storage and extracts plain text from them.
package docstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	StoredAt    time.Time
}

// ObjectStore is the storage contract. Keys are deterministic per document
// so re-storing overwrites instead of duplicating.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, ObjectInfo, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// OriginalKey is the canonical object key for a judgment's original filing.
func OriginalKey(docID int, contentType string) string {
	ext := ".bin"
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return fmt.Sprintf("origdoc/%d%s", docID, ext)
}

// MinIOConfig holds S3-compatible storage settings.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// minioStore implements ObjectStore on MinIO/S3. Safe for concurrent use.
type minioStore struct {
	client *minio.Client
	bucket string
}

// NewMinIO creates an S3-compatible store and ensures the bucket exists.
func NewMinIO(cfg MinIOConfig) (ObjectStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &minioStore{client: cli, bucket: cfg.Bucket}, nil
}

func (m *minioStore) Put(ctx context.Context, key string, data []byte, contentType string) (ObjectInfo, error) {
	info, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("put %s: %w", key, err)
	}
	return ObjectInfo{
		Key:         key,
		Size:        info.Size,
		ContentType: contentType,
		StoredAt:    time.Now(),
	}, nil
}

func (m *minioStore) Get(ctx context.Context, key string) ([]byte, ObjectInfo, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()

	st, err := obj.Stat()
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("read %s: %w", key, err)
	}
	return data, ObjectInfo{
		Key:         key,
		Size:        st.Size,
		ContentType: st.ContentType,
		StoredAt:    st.LastModified,
	}, nil
}

func (m *minioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MemoryStore is an in-process ObjectStore used in tests and when no object
// storage is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data []byte
	info ObjectInfo
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) (ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := ObjectInfo{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType,
		StoredAt:    time.Now(),
	}
	s.objects[key] = memoryObject{data: append([]byte(nil), data...), info: info}
	return info, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, ObjectInfo{}, fmt.Errorf("object %s not found", key)
	}
	return append([]byte(nil), obj.data...), obj.info, nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

// Len reports the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
