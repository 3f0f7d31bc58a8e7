package semantic

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CalibrationParams are the weights of the logistic confidence model
type CalibrationParams struct {
	Bias        float64 `yaml:"bias"`
	Combined    float64 `yaml:"w_combined"`
	Title       float64 `yaml:"w_title"`
	Description float64 `yaml:"w_description"`
	Choices     float64 `yaml:"w_choices"`
	Agreement   float64 `yaml:"w_agreement"`
	Importance  float64 `yaml:"w_importance"`
}

// DefaultCalibration returns the built-in weights
func DefaultCalibration() CalibrationParams {
	return CalibrationParams{
		Bias:        -2.4,
		Combined:    3.0,
		Title:       1.8,
		Description: 1.4,
		Choices:     1.2,
		Agreement:   0.8,
		Importance:  0.6,
	}
}

// LoadCalibration reads weights from a YAML file. Keys missing from the file
// keep their default value.
func LoadCalibration(path string) (CalibrationParams, error) {
	p := DefaultCalibration()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read calibration: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return DefaultCalibration(), fmt.Errorf("parse calibration: %w", err)
	}
	return p, nil
}

// Features are the per-place inputs to the calibrator
type Features struct {
	Combined    float64
	Title       float64
	Description float64
	Choices     float64
	Agreement   float64
	Importance  float64
}

// Calibrator maps features to a confidence in [0,1]
type Calibrator struct {
	params CalibrationParams
}

// NewCalibrator creates a calibrator with the given weights
func NewCalibrator(p CalibrationParams) *Calibrator {
	return &Calibrator{params: p}
}

// Confidence returns sigmoid(bias + w·features)
func (c *Calibrator) Confidence(f Features) float64 {
	p := c.params
	z := p.Bias +
		p.Combined*f.Combined +
		p.Title*f.Title +
		p.Description*f.Description +
		p.Choices*f.Choices +
		p.Agreement*f.Agreement +
		p.Importance*f.Importance
	return clamp01(sigmoid(z))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
