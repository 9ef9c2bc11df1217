package repository

import (
	"errors"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

// isUniqueViolation checks if the error is a unique constraint violation
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "23505") ||
		strings.Contains(errMsg, "unique") ||
		strings.Contains(errMsg, "duplicate key")
}

// probabilityVector stores the distribution as vector(7). Degraded
// predictions have no distribution and are stored as NULL.
func probabilityVector(p domain.Prediction, degraded bool) *pgvector.Vector {
	if degraded {
		return nil
	}
	vec := pgvector.NewVector(p.Probabilities[:])
	return &vec
}

func predictionFromVector(vec *pgvector.Vector, mood domain.Emotion, confidence float32) domain.Prediction {
	p := domain.Prediction{Label: mood, Confidence: confidence}
	if vec != nil {
		copy(p.Probabilities[:], vec.Slice())
	}
	return p
}

func nullableCause(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}

func causeFromText(s *string) error {
	if s == nil || *s == "" {
		return nil
	}
	return errors.New(*s)
}
