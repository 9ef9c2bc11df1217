package rekognition

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/provider"
)

const (
	Name = "rekognition"

	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100
)

// emotionMap maps Rekognition emotion types onto the seven labels. Types
// without a counterpart count as Neutral.
var emotionMap = map[types.EmotionName]domain.Emotion{
	types.EmotionNameAngry:     domain.Angry,
	types.EmotionNameDisgusted: domain.Disgust,
	types.EmotionNameFear:      domain.Fear,
	types.EmotionNameHappy:     domain.Happy,
	types.EmotionNameCalm:      domain.Neutral,
	types.EmotionNameConfused:  domain.Neutral,
	types.EmotionNameUnknown:   domain.Neutral,
	types.EmotionNameSad:       domain.Sad,
	types.EmotionNameSurprised: domain.Surprise,
}

// Provider implements provider.EmotionProvider using AWS Rekognition DetectFaces
type Provider struct {
	api    DetectFacesAPI
	config Config
}

var _ provider.EmotionProvider = (*Provider)(nil)

// NewProvider creates a Rekognition provider backed by the AWS SDK client
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}
	return NewProviderWithAPI(client, cfg), nil
}

// NewProviderWithAPI wraps any DetectFacesAPI implementation
func NewProviderWithAPI(api DetectFacesAPI, cfg Config) *Provider {
	return &Provider{api: api, config: cfg}
}

func (p *Provider) Name() string { return Name }

// Ready is a no-op: credentials are only checked on the first call
func (p *Provider) Ready(ctx context.Context) error {
	if p.api == nil {
		return ErrInvalidCredentials
	}
	return ctx.Err()
}

// validateImage checks if image data is valid for Rekognition processing
func validateImage(image []byte) error {
	if len(image) == 0 {
		return ErrInvalidImage
	}
	if len(image) < minImageSize {
		return fmt.Errorf("%w: image too small (%d bytes, minimum %d)", ErrInvalidImage, len(image), minImageSize)
	}
	if len(image) > maxImageSize {
		return fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrInvalidImage, len(image), maxImageSize)
	}
	return nil
}

// DetectEmotion classifies the most confidently detected face
func (p *Provider) DetectEmotion(ctx context.Context, image []byte) (domain.Prediction, error) {
	if err := validateImage(image); err != nil {
		return domain.Prediction{}, err
	}

	input := &rekognition.DetectFacesInput{
		Image: &types.Image{
			Bytes: image,
		},
		Attributes: []types.Attribute{types.AttributeAll},
	}

	output, err := p.api.DetectFaces(ctx, input)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("detect faces: %w", ParseAPIError(err))
	}

	face, ok := p.bestFace(output.FaceDetails)
	if !ok {
		return domain.Prediction{}, ErrNoFaceDetected
	}

	return MapEmotions(face.Emotions)
}

func (p *Provider) bestFace(details []types.FaceDetail) (types.FaceDetail, bool) {
	var (
		best  types.FaceDetail
		score float32 = -1
	)
	for _, d := range details {
		var c float32
		if d.Confidence != nil {
			c = *d.Confidence
		}
		if c < p.config.MinFaceConfidence {
			continue
		}
		if c > score {
			best, score = d, c
		}
	}
	return best, score >= 0
}

// MapEmotions folds Rekognition emotion confidences into a Prediction
func MapEmotions(emotions []types.Emotion) (domain.Prediction, error) {
	var vec [domain.NumEmotions]float64
	var any bool
	for _, e := range emotions {
		if e.Confidence == nil {
			continue
		}
		label, ok := emotionMap[e.Type]
		if !ok {
			label = domain.Neutral
		}
		vec[label] += float64(*e.Confidence)
		any = true
	}
	if !any {
		return domain.Prediction{}, ErrNoEmotions
	}

	pred, err := domain.NormalizeScores(vec)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("%w: %v", ErrNoEmotions, err)
	}
	return pred, nil
}
