package training

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/saturnino-fabrica-de-software/emosense/internal/classifier"
	"github.com/saturnino-fabrica-de-software/emosense/internal/domain"
)

type trainingResult struct {
	Epochs             int       `yaml:"epochs"`
	Interrupted        bool      `yaml:"interrupted"`
	TrainLoss          []float64 `yaml:"trainLoss"`
	TrainAccuracy      []float64 `yaml:"trainAccuracy"`
	ValidationLoss     []float64 `yaml:"validationLoss"`
	ValidationAccuracy []float64 `yaml:"validationAccuracy"`
}

// Report is the YAML summary written beside a trained model
type Report struct {
	Model               string         `yaml:"model"`
	LabelSet            string         `yaml:"labelSet"`
	Labels              []string       `yaml:"labels"`
	InputShape          []int          `yaml:"inputShape"`
	BatchSize           int            `yaml:"batchSize"`
	LearningRate        float64        `yaml:"learningRate"`
	Seed                int64          `yaml:"seed"`
	TrainSamples        int            `yaml:"trainSamples"`
	ValidationSamples   int            `yaml:"validationSamples"`
	ValidationPartition string         `yaml:"validationPartition"`
	TrainingResult      trainingResult `yaml:"trainingResult"`
	History             []EpochMetrics `yaml:"history"`
	FinishedAt          time.Time      `yaml:"finishedAt"`
}

// ReportPath is the report location for a model path
func ReportPath(modelPath string) string {
	return modelPath + ".yaml"
}

func NewReport(cfg Config, res *Result, trainSamples, valSamples int) *Report {
	r := &Report{
		Model:               filepath.Base(cfg.ModelPath),
		LabelSet:            domain.LabelSetVersion,
		Labels:              domain.EmotionNames(),
		InputShape:          classifier.InputShape(),
		BatchSize:           cfg.BatchSize,
		LearningRate:        cfg.LearningRate,
		Seed:                cfg.Seed,
		TrainSamples:        trainSamples,
		ValidationSamples:   valSamples,
		ValidationPartition: string(cfg.ValidationPartition),
		History:             res.History,
		FinishedAt:          time.Now().UTC(),
	}
	r.TrainingResult.Epochs = res.Epochs
	r.TrainingResult.Interrupted = res.Interrupted
	for _, m := range res.History {
		r.TrainingResult.TrainLoss = append(r.TrainingResult.TrainLoss, m.TrainLoss)
		r.TrainingResult.TrainAccuracy = append(r.TrainingResult.TrainAccuracy, m.TrainAccuracy)
		r.TrainingResult.ValidationLoss = append(r.TrainingResult.ValidationLoss, m.ValidationLoss)
		r.TrainingResult.ValidationAccuracy = append(r.TrainingResult.ValidationAccuracy, m.ValidationAccuracy)
	}
	return r
}

func (r *Report) Write(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal training report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write training report: %w", err)
	}
	return nil
}

// ReadReport loads a report written by Write
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read training report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse training report: %w", err)
	}
	return &r, nil
}
