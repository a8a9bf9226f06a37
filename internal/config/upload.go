package config

import (
	"os"
	"strconv"
)

type UploadConfig struct {
	// MaxImages caps the number of pages per submission
	MaxImages int
	// MaxSizeMB caps a single image file
	MaxSizeMB int
}

func NewUploadConfig() *UploadConfig {
	maxImages, err := strconv.Atoi(os.Getenv("UPLOAD_MAX_IMAGES"))
	if err != nil || maxImages <= 0 {
		maxImages = 10
	}
	maxSize, err := strconv.Atoi(os.Getenv("UPLOAD_MAX_SIZE_MB"))
	if err != nil || maxSize <= 0 {
		maxSize = 10
	}
	return &UploadConfig{
		MaxImages: maxImages,
		MaxSizeMB: maxSize,
	}
}
