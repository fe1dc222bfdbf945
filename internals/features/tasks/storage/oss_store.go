package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/google/uuid"

	"schoolcrm_backend/internals/configs"
	"schoolcrm_backend/internals/constants"
)

// OSSStore keeps blobs in an Aliyun OSS bucket using the same key layout as
// LocalStore.
type OSSStore struct {
	Client *oss.Client
	Bucket *oss.Bucket
}

func NewOSSStore(cfg configs.StorageConfig) (*OSSStore, error) {
	if cfg.OSSEndpoint == "" || cfg.OSSAccessKey == "" || cfg.OSSSecretKey == "" || cfg.OSSBucket == "" {
		return nil, fmt.Errorf("missing env: ALI_OSS_ENDPOINT/ACCESS_KEY/SECRET_KEY/BUCKET")
	}

	var (
		client *oss.Client
		err    error
	)
	if cfg.OSSSecurityTok != "" {
		client, err = oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey, oss.SecurityToken(cfg.OSSSecurityTok))
	} else {
		client, err = oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	}
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}

	bkt, err := client.Bucket(cfg.OSSBucket)
	if err != nil {
		return nil, fmt.Errorf("client.Bucket: %w", err)
	}

	if loc, err := client.GetBucketLocation(cfg.OSSBucket); err != nil {
		if se, ok := err.(oss.ServiceError); ok && se.StatusCode == 403 && se.Code == "AccessDenied" {
			log.Printf("[OSS] skip location check due to AccessDenied (bucket=%s)", cfg.OSSBucket)
		} else {
			return nil, fmt.Errorf("verify bucket: %w", err)
		}
	} else {
		log.Printf("[OSS] bucket %s location: %s", cfg.OSSBucket, loc)
	}

	return &OSSStore{Client: client, Bucket: bkt}, nil
}

func (s *OSSStore) Put(ctx context.Context, taskID uuid.UUID, login string, r io.Reader, originalName string) (StoredFile, error) {
	key := ObjectKey(taskID, login, originalName)
	cr := &countingReader{r: r}
	err := s.Bucket.PutObject(key, cr,
		oss.WithContext(ctx),
		oss.ContentType(constants.ContentTypeFromName(originalName)),
		oss.ContentDisposition("attachment"),
	)
	if err != nil {
		return StoredFile{}, err
	}
	return StoredFile{Key: key, Size: cr.n}, nil
}

func (s *OSSStore) Copy(ctx context.Context, srcKey string, taskID uuid.UUID, login, originalName string) (StoredFile, error) {
	src, err := cleanKey(srcKey)
	if err != nil {
		return StoredFile{}, err
	}
	dst := ObjectKey(taskID, login, originalName)
	if _, err := s.Bucket.CopyObject(src, dst, oss.WithContext(ctx)); err != nil {
		if isNoSuchKey(err) {
			return StoredFile{}, ErrObjectNotFound
		}
		return StoredFile{}, err
	}

	meta, err := s.Bucket.GetObjectMeta(dst, oss.WithContext(ctx))
	if err != nil {
		return StoredFile{}, err
	}
	size, _ := strconv.ParseInt(meta.Get("Content-Length"), 10, 64)
	return StoredFile{Key: dst, Size: size}, nil
}

func (s *OSSStore) Exists(ctx context.Context, key string) (bool, error) {
	c, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	return s.Bucket.IsObjectExist(c, oss.WithContext(ctx))
}

func (s *OSSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	c, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	body, err := s.Bucket.GetObject(c, oss.WithContext(ctx))
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return body, nil
}

func isNoSuchKey(err error) bool {
	if se, ok := err.(oss.ServiceError); ok {
		return se.StatusCode == 404 || strings.EqualFold(se.Code, "NoSuchKey")
	}
	return false
}
