package services

import (
  "context"
  "fmt"
  "io"
  "os"
  "time"

  "cloud.google.com/go/storage"
  "github.com/google/uuid"
  "google.golang.org/api/option"

  "github.com/schemeworks/sow-backend/internal/logger"
)

// BucketService is the blob store behind the payload codec's external path.
// Satisfies codec.BlobStore.
type BucketService interface {
  Put(ctx context.Context, data []byte) (string, error)
  Get(ctx context.Context, handle string) ([]byte, error)
  GetPublicURL(key string) string
}

type bucketService struct {
  log           *logger.Logger
  storageClient *storage.Client
  bucketName    string
  cdnDomain     string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
  serviceLog := log.With("service", "BucketService")
  bucket := os.Getenv("GCS_BUCKET_NAME")
  if bucket == "" {
    return nil, fmt.Errorf("missing env var GCS_BUCKET_NAME")
  }
  cdnDomain := os.Getenv("CDN_DOMAIN")
  saPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")
  if saPath == "" {
    serviceLog.Warn("GOOGLE_APPLICATION_CREDENTIALS_JSON not set; falling back to ADC")
  }
  ctx := context.Background()
  var stClient *storage.Client
  var err error
  if saPath != "" {
    stClient, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadWrite))
  } else {
    stClient, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
  }
  if err != nil {
    return nil, fmt.Errorf("failed to create storage client: %w", err)
  }
  return &bucketService{
    log:           serviceLog,
    storageClient: stClient,
    bucketName:    bucket,
    cdnDomain:     cdnDomain,
  }, nil
}

func (bs *bucketService) Put(ctx context.Context, data []byte) (string, error) {
  ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
  defer cancel()

  key := fmt.Sprintf("schemes/%s", uuid.NewString())
  w := bs.storageClient.Bucket(bs.bucketName).Object(key).NewWriter(ctx)
  w.ContentType = "application/octet-stream"
  if _, err := w.Write(data); err != nil {
    _ = w.Close()
    return "", fmt.Errorf("failed to write data to GCS: %w", err)
  }
  if err := w.Close(); err != nil {
    return "", fmt.Errorf("failed to close GCS writer: %w", err)
  }
  return key, nil
}

func (bs *bucketService) Get(ctx context.Context, handle string) ([]byte, error) {
  ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
  defer cancel()

  rc, err := bs.storageClient.Bucket(bs.bucketName).Object(handle).NewReader(ctx)
  if err != nil {
    return nil, fmt.Errorf("failed to open GCS object %q: %w", handle, err)
  }
  defer rc.Close()

  data, err := io.ReadAll(rc)
  if err != nil {
    return nil, fmt.Errorf("failed to read GCS object %q: %w", handle, err)
  }
  return data, nil
}

func (bs *bucketService) GetPublicURL(key string) string {
  if bs.cdnDomain != "" {
    return fmt.Sprintf("https://%s/%s", bs.cdnDomain, key)
  }
  return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.bucketName, key)
}
