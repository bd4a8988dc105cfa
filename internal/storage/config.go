package storage

import (
	"strings"

	"stemworker/internal/config"
)

// NewFromConfig builds a Router with local and gsutil backends always
// available and S3 enabled when an endpoint is configured.
func NewFromConfig(cfg *config.Config) (*Router, error) {
	router := &Router{
		Local: Local{},
		GS:    Gsutil{Binary: cfg.Storage.GsutilPath},
	}
	if strings.TrimSpace(cfg.Storage.S3Endpoint) != "" {
		s3, err := NewS3(S3Options{
			Endpoint:  cfg.Storage.S3Endpoint,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
			Region:    cfg.Storage.S3Region,
			Secure:    cfg.Storage.S3Secure,
		})
		if err != nil {
			return nil, err
		}
		router.S3 = s3
	}
	return router, nil
}
