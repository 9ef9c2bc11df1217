package face

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/emosense/internal/classifier"
	"github.com/saturnino-fabrica-de-software/emosense/internal/config"
	"github.com/saturnino-fabrica-de-software/emosense/internal/provider"
	"github.com/saturnino-fabrica-de-software/emosense/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/emosense/internal/provider/local"
	"github.com/saturnino-fabrica-de-software/emosense/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/emosense/internal/provider/rekognition"
)

// ProviderType defines supported emotion provider types
type ProviderType string

const (
	// ProviderTypeLocal is the in-process CNN (default)
	ProviderTypeLocal ProviderType = local.Name
	// ProviderTypeDeepFace is the DeepFace service
	ProviderTypeDeepFace ProviderType = deepface.Name
	// ProviderTypeRekognition is the AWS Rekognition provider (cloud)
	ProviderTypeRekognition ProviderType = rekognition.Name
	// ProviderTypeMock is a deterministic provider for development
	ProviderTypeMock ProviderType = mock.Name
)

// NewEmotionProvider creates an EmotionProvider instance based on configuration.
// model is only used by the local provider and may be nil, in which case the
// provider reports domain.ErrModelUnavailable on every call.
//
// Environment variables:
//   - EMOTION_PROVIDER: "local", "deepface", "rekognition" or "mock" (default: "local")
//   - DEEPFACE_URL: DeepFace API URL (default: "http://localhost:5005")
//   - AWS_REGION: AWS region for Rekognition (default: "us-east-1")
//   - AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY: via the AWS SDK credential chain
func NewEmotionProvider(ctx context.Context, cfg *config.Config, model *classifier.Model) (provider.EmotionProvider, error) {
	switch ProviderType(cfg.EmotionProvider) {
	case ProviderTypeLocal, "":
		return local.NewProvider(model), nil

	case ProviderTypeDeepFace:
		return createDeepFaceProvider(cfg), nil

	case ProviderTypeRekognition:
		return createRekognitionProvider(ctx, cfg)

	case ProviderTypeMock:
		return mock.New(), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s, %s, %s)",
			cfg.EmotionProvider, ProviderTypeLocal, ProviderTypeDeepFace, ProviderTypeRekognition, ProviderTypeMock)
	}
}

// createRekognitionProvider creates an AWS Rekognition provider instance
func createRekognitionProvider(ctx context.Context, cfg *config.Config) (provider.EmotionProvider, error) {
	rekogConfig := rekognition.DefaultConfig()
	if cfg.AWSRegion != "" {
		rekogConfig.Region = cfg.AWSRegion
	}

	prov, err := rekognition.NewProvider(ctx, rekogConfig)
	if err != nil {
		return nil, fmt.Errorf("create rekognition provider: %w", err)
	}

	return prov, nil
}

// createDeepFaceProvider creates a DeepFace provider instance
func createDeepFaceProvider(cfg *config.Config) provider.EmotionProvider {
	deepfaceConfig := deepface.DefaultConfig()

	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}

	return deepface.NewProvider(deepfaceConfig)
}
