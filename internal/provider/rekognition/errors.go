package rekognition

import "errors"

var (
	// ErrInvalidCredentials indicates that AWS credentials are invalid or missing
	ErrInvalidCredentials = errors.New("invalid or missing AWS credentials")

	// ErrNoFaceDetected indicates that no face was found in the provided image
	ErrNoFaceDetected = errors.New("no face detected in image")

	// ErrInvalidImage indicates an image Rekognition will not accept
	ErrInvalidImage = errors.New("invalid image for rekognition")

	// ErrNoEmotions indicates a face without emotion attributes
	ErrNoEmotions = errors.New("rekognition face has no emotion attributes")
)
