package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LabelSetVersion identifies the class-index assignment below. It is stored in
// every parameter artifact and must match on load.
const LabelSetVersion = "fer7-v1"

// Emotion is a class index of the classifier output vector.
type Emotion int

const (
	Angry Emotion = iota
	Disgust
	Fear
	Happy
	Neutral
	Sad
	Surprise
)

// NumEmotions is the width of the classifier output layer
const NumEmotions = 7

var emotionNames = [NumEmotions]string{
	"Angry",
	"Disgust",
	"Fear",
	"Happy",
	"Neutral",
	"Sad",
	"Surprise",
}

// Emotions returns all labels in class-index order
func Emotions() []Emotion {
	out := make([]Emotion, NumEmotions)
	for i := range out {
		out[i] = Emotion(i)
	}
	return out
}

// EmotionNames returns the label names in class-index order
func EmotionNames() []string {
	out := make([]string, NumEmotions)
	copy(out, emotionNames[:])
	return out
}

func (e Emotion) Valid() bool {
	return e >= 0 && int(e) < NumEmotions
}

func (e Emotion) String() string {
	if !e.Valid() {
		return fmt.Sprintf("Emotion(%d)", int(e))
	}
	return emotionNames[e]
}

// ParseEmotion maps a label or corpus directory name to its class index.
// Matching is case-insensitive so "happy" and "Happy" are the same class.
func ParseEmotion(name string) (Emotion, error) {
	trimmed := strings.TrimSpace(name)
	for i, n := range emotionNames {
		if strings.EqualFold(n, trimmed) {
			return Emotion(i), nil
		}
	}
	return Neutral, fmt.Errorf("unknown emotion label %q", name)
}

func (e Emotion) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *Emotion) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseEmotion(name)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// MarshalText lets YAML encoders and map keys use the label name
func (e Emotion) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Emotion) UnmarshalText(data []byte) error {
	parsed, err := ParseEmotion(string(data))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
