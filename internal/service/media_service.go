package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/adnaan-2/contentflow/internal/models"
	"github.com/adnaan-2/contentflow/internal/repository"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type MediaService interface {
	Upload(ctx context.Context, userID int64, files []*multipart.FileHeader) ([]*models.MediaAsset, error)
	List(ctx context.Context, userID int64) ([]*models.MediaAsset, error)
	Remove(ctx context.Context, userID, assetID int64) error
}

type mediaService struct {
	ma repository.MediaAssetRepository
	r2 *R2Service
}

func NewMediaService(ma repository.MediaAssetRepository, r2 *R2Service) MediaService {
	return &mediaService{
		ma: ma,
		r2: r2,
	}
}

// Upload sniffs each file's real type, stores it in R2 under a random key
// and records a media asset row pointing at the public URL.
func (s *mediaService) Upload(ctx context.Context, userID int64, files []*multipart.FileHeader) ([]*models.MediaAsset, error) {
	allowedTypes := map[string]struct{}{
		"mp4": {}, "mov": {}, "jpeg": {}, "png": {}, "jpg": {},
	}

	assets := make([]*models.MediaAsset, 0, len(files))
	for _, file := range files {
		fileContent, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("error opening file: %w", err)
		}

		fileBytes, err := io.ReadAll(fileContent)
		fileContent.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading file content: %w", err)
		}

		fileType, err := filetype.Match(fileBytes)
		if err != nil || fileType == types.Unknown {
			return nil, errors.New("unsupported file type")
		}
		if _, ok := allowedTypes[fileType.Extension]; !ok {
			return nil, fmt.Errorf("file type %s is not allowed", fileType.Extension)
		}

		asset, err := s.saveFile(ctx, userID, fileType.MIME.Value, int64(len(fileBytes)), fileBytes)
		if err != nil {
			return nil, fmt.Errorf("error uploading file: %w", err)
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func (s *mediaService) saveFile(ctx context.Context, userID int64, fileType string, size int64, file []byte) (*models.MediaAsset, error) {
	key, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	if err := s.r2.UploadToR2(ctx, key, file, fileType); err != nil {
		return nil, err
	}

	ma := &models.MediaAsset{
		UserID:   userID,
		FileName: key,
		FileType: fileType,
		FileSize: size,
		FileURL:  s.r2.FileURL(key),
	}

	ma.ID, err = s.ma.Create(ctx, ma)
	if err != nil {
		return nil, err
	}
	return ma, nil
}

func (s *mediaService) List(ctx context.Context, userID int64) ([]*models.MediaAsset, error) {
	return s.ma.ListByUserID(ctx, userID)
}

func (s *mediaService) Remove(ctx context.Context, userID, assetID int64) error {
	exists, err := s.ma.CheckByUserID(ctx, assetID, userID)
	if err != nil {
		return err
	}
	if !exists {
		return errors.New("media asset not found")
	}
	return s.ma.Remove(ctx, assetID)
}
