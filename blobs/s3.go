package blobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	termcore "github.com/clinterm/termcore"
)

type s3Store struct {
	S3Client   *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
}

// NewS3Store returns a Store backed by an S3 bucket. Transfers go through the
// transfer manager so release files of any size stage fine.
func NewS3Store(s3Client *s3.Client) (Store, error) {
	if s3Client == nil {
		return nil, fmt.Errorf("s3Client parameter can't be nil")
	}
	return &s3Store{
		S3Client:   s3Client,
		uploader:   manager.NewUploader(s3Client),
		downloader: manager.NewDownloader(s3Client),
	}, nil
}

func (s *s3Store) Add(ctx context.Context, bucketName, key string, data []byte) error {
	return termcore.Retry(ctx, func(ctx context.Context) error {
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucketName),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		if err != nil {
			return termcore.RetryableError(fmt.Errorf("couldn't upload %s to bucket %s, details: %v", key, bucketName, err))
		}
		return nil
	}, func(ctx context.Context) {
		log.Error("giving up uploading blob", "bucket", bucketName, "key", key)
	})
}

func (s *s3Store) Fetch(ctx context.Context, bucketName, key string) ([]byte, error) {
	var data []byte
	err := termcore.Retry(ctx, func(ctx context.Context) error {
		buf := manager.NewWriteAtBuffer([]byte{})
		_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
			Bucket: aws.String(bucketName),
			Key:    aws.String(key),
		})
		if err != nil {
			var nsk *types.NoSuchKey
			if errors.As(err, &nsk) {
				return termcore.Errorf(termcore.Validation, "blob %s not found in bucket %s", key, bucketName)
			}
			return termcore.RetryableError(fmt.Errorf("couldn't download %s from bucket %s, details: %v", key, bucketName, err))
		}
		data = buf.Bytes()
		return nil
	}, func(ctx context.Context) {
		log.Error("giving up downloading blob", "bucket", bucketName, "key", key)
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *s3Store) List(ctx context.Context, bucketName, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.S3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucketName),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("couldn't list bucket %s under %s, details: %v", bucketName, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, *obj.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *s3Store) Remove(ctx context.Context, bucketName string, keys ...string) error {
	objects := make([]types.ObjectIdentifier, len(keys))
	for i, key := range keys {
		objects[i] = types.ObjectIdentifier{Key: aws.String(key)}
	}
	_, err := s.S3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucketName),
		Delete: &types.Delete{Objects: objects},
	})
	if err != nil {
		return fmt.Errorf("couldn't remove %d blobs from bucket %s, details: %v", len(keys), bucketName, err)
	}
	return nil
}
