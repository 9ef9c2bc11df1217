package rekognition

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
	"github.com/saturnino-fabrica-de-software/emosense/internal/provider"
)

func TestProviderImplementsInterface(t *testing.T) {
	var _ provider.EmotionProvider = (*Provider)(nil)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, float32(50), cfg.MinFaceConfidence)
}

func validImage() []byte {
	return make([]byte, 1024)
}

func face(confidence float32, emotions ...types.Emotion) types.FaceDetail {
	return types.FaceDetail{Confidence: aws.Float32(confidence), Emotions: emotions}
}

func emotion(name types.EmotionName, confidence float32) types.Emotion {
	return types.Emotion{Type: name, Confidence: aws.Float32(confidence)}
}

func TestProvider_DetectEmotion(t *testing.T) {
	tests := []struct {
		name      string
		faces     []types.FaceDetail
		wantLabel domain.Emotion
		wantConf  float32
		wantErr   error
	}{
		{
			name:      "single happy face",
			faces:     []types.FaceDetail{face(99, emotion(types.EmotionNameHappy, 90), emotion(types.EmotionNameSad, 10))},
			wantLabel: domain.Happy,
			wantConf:  0.9,
		},
		{
			name: "calm and confused fold into neutral",
			faces: []types.FaceDetail{face(99,
				emotion(types.EmotionNameCalm, 30),
				emotion(types.EmotionNameConfused, 30),
				emotion(types.EmotionNameFear, 40),
			)},
			wantLabel: domain.Neutral,
			wantConf:  0.6,
		},
		{
			name: "most confident face wins",
			faces: []types.FaceDetail{
				face(70, emotion(types.EmotionNameAngry, 100)),
				face(98, emotion(types.EmotionNameSurprised, 100)),
			},
			wantLabel: domain.Surprise,
			wantConf:  1,
		},
		{
			name:    "no faces",
			wantErr: ErrNoFaceDetected,
		},
		{
			name:    "faces below minimum confidence",
			faces:   []types.FaceDetail{face(10, emotion(types.EmotionNameHappy, 100))},
			wantErr: ErrNoFaceDetected,
		},
		{
			name:    "face without emotions",
			faces:   []types.FaceDetail{face(99)},
			wantErr: ErrNoEmotions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockRekognitionAPI{
				detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
					assert.Equal(t, []types.Attribute{types.AttributeAll}, params.Attributes)
					require.NotNil(t, params.Image)
					return &rekognition.DetectFacesOutput{FaceDetails: tt.faces}, nil
				},
			}
			p := NewProviderWithAPI(api, DefaultConfig())

			pred, err := p.DetectEmotion(context.Background(), validImage())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, pred.Label)
			assert.InDelta(t, tt.wantConf, pred.Confidence, 1e-5)
			assert.Equal(t, 1, api.calls)
		})
	}
}

func TestProvider_ValidateImage(t *testing.T) {
	api := &mockRekognitionAPI{}
	p := NewProviderWithAPI(api, DefaultConfig())

	for _, img := range [][]byte{nil, make([]byte, 10), make([]byte, maxImageSize+1)} {
		_, err := p.DetectEmotion(context.Background(), img)
		assert.ErrorIs(t, err, ErrInvalidImage)
	}
	assert.Zero(t, api.calls)
}

func TestProvider_APIErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{
			name:    "access denied",
			err:     &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "invalid image format",
			err:     &smithy.GenericAPIError{Code: "InvalidImageFormatException", Message: "bad format"},
			wantErr: ErrInvalidImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockRekognitionAPI{
				detectFacesFunc: func(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
					return nil, tt.err
				},
			}
			_, err := NewProviderWithAPI(api, DefaultConfig()).DetectEmotion(context.Background(), validImage())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	other := errors.New("network down")
	assert.Equal(t, other, ParseAPIError(other))
	assert.NoError(t, ParseAPIError(nil))
}

func TestMapEmotions_UnmappedTypesCountAsNeutral(t *testing.T) {
	pred, err := MapEmotions([]types.Emotion{
		emotion(types.EmotionName("CONTEMPT"), 80),
		emotion(types.EmotionNameHappy, 20),
		{Type: types.EmotionNameSad},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Neutral, pred.Label)
	assert.InDelta(t, 0.8, pred.Confidence, 1e-5)
}

func TestProvider_Ready(t *testing.T) {
	p := NewProviderWithAPI(&mockRekognitionAPI{}, DefaultConfig())
	assert.NoError(t, p.Ready(context.Background()))
	assert.Equal(t, "rekognition", p.Name())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Ready(ctx), context.Canceled)
}
