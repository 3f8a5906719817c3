package objectstorage

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/ilovetoast/jackpot-firehorse-sub012/config"
	log "github.com/ilovetoast/jackpot-firehorse-sub012/pkg/logger"
)

type ObjectStorageI interface {
	GetClient() *minio.Client
	// uploadFile
	UploadFile(ctx context.Context, filePathName string, content []byte, fileMimeType string) (err error)
	// getFile
	GetFile(ctx context.Context, filePathName string) ([]byte, error)
	// deleteFile
	DeleteFile(ctx context.Context, filePathName string) (err error)
	// fileExists
	FileExists(ctx context.Context, filePathName string) (bool, error)
	// promoteFile moves a staging object to its permanent path
	PromoteFile(ctx context.Context, stagingPath, permanentPath string) (err error)
}

type ObjectStorage struct {
	client *minio.Client
	bucket string
}

func NewObjectStorageClientAndInitBucket(ctx context.Context, cfg config.MinioConfig) (*ObjectStorage, error) {
	logger, err := log.GetZapLogger(ctx)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Host+":"+cfg.Port, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.RootUser, cfg.RootPwd, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		logger.Error("cannot connect to minio",
			zap.String("host:port", cfg.Host+":"+cfg.Port),
			zap.String("user", cfg.RootUser), zap.Error(err))
		return nil, err
	}
	err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{})
	if err != nil {
		exists, errBucketExists := client.BucketExists(ctx, cfg.BucketName)
		if errBucketExists == nil && exists {
			logger.Info("Bucket already exists", zap.String("bucket", cfg.BucketName))
		} else {
			logger.Error("cannot create bucket", zap.String("bucket", cfg.BucketName), zap.Error(err))
			return nil, err
		}
	} else {
		logger.Info("Successfully created bucket", zap.String("bucket", cfg.BucketName))
	}
	return &ObjectStorage{client: client, bucket: cfg.BucketName}, nil
}

func (m *ObjectStorage) GetClient() *minio.Client {
	return m.client
}

func (m *ObjectStorage) UploadFile(ctx context.Context, filePathName string, content []byte, fileMimeType string) (err error) {
	logger, err := log.GetZapLogger(ctx)
	if err != nil {
		return err
	}
	_, err = m.client.PutObject(ctx, m.bucket, filePathName,
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: fileMimeType})
	if err != nil {
		logger.Error("Failed to upload file to MinIO", zap.String("path", filePathName), zap.Error(err))
		return err
	}
	return nil
}

func (m *ObjectStorage) GetFile(ctx context.Context, filePathName string) ([]byte, error) {
	logger, err := log.GetZapLogger(ctx)
	if err != nil {
		return nil, err
	}
	obj, err := m.client.GetObject(ctx, m.bucket, filePathName, minio.GetObjectOptions{})
	if err != nil {
		logger.Error("Failed to get file from MinIO", zap.String("path", filePathName), zap.Error(err))
		return nil, err
	}
	defer obj.Close()
	content, err := io.ReadAll(obj)
	if err != nil {
		logger.Error("Failed to read file from MinIO", zap.String("path", filePathName), zap.Error(err))
		return nil, err
	}
	return content, nil
}

// delete the file from minio
func (m *ObjectStorage) DeleteFile(ctx context.Context, filePathName string) (err error) {
	logger, err := log.GetZapLogger(ctx)
	if err != nil {
		return err
	}
	err = m.client.RemoveObject(ctx, m.bucket, filePathName, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("Failed to delete file from MinIO", zap.String("path", filePathName), zap.Error(err))
		return err
	}
	return nil
}

func (m *ObjectStorage) FileExists(ctx context.Context, filePathName string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, filePathName, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PromoteFile copies the staging object to its permanent path, then removes
// the staging object. Re-running after a partial earlier attempt succeeds:
// a missing source with the destination already in place counts as done.
func (m *ObjectStorage) PromoteFile(ctx context.Context, stagingPath, permanentPath string) (err error) {
	logger, err := log.GetZapLogger(ctx)
	if err != nil {
		return err
	}

	srcExists, err := m.FileExists(ctx, stagingPath)
	if err != nil {
		return err
	}
	if !srcExists {
		dstExists, err := m.FileExists(ctx, permanentPath)
		if err != nil {
			return err
		}
		if dstExists {
			logger.Info("Promotion already done", zap.String("path", permanentPath))
			return nil
		}
		logger.Error("Staging object missing", zap.String("path", stagingPath))
		return minio.ErrorResponse{Code: "NoSuchKey", Message: "staging object missing: " + stagingPath}
	}

	_, err = m.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: m.bucket, Object: permanentPath},
		minio.CopySrcOptions{Bucket: m.bucket, Object: stagingPath})
	if err != nil {
		logger.Error("Failed to copy file in MinIO",
			zap.String("src", stagingPath), zap.String("dst", permanentPath), zap.Error(err))
		return err
	}
	return m.DeleteFile(ctx, stagingPath)
}
