package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/bcdannyboy/localvol/models"
)

// Wing holds one side of the anchor grid, given either as levels or as
// transformed-variable points.
type Wing struct {
	Levels []float64 `yaml:"levels"`
	X      []float64 `yaml:"x"`
	Slopes []float64 `yaml:"slopes" validate:"required,min=1"`
}

// ControlsFile overrides fields of models.DefaultControls.
type ControlsFile struct {
	MaxCalibrationIters         *int     `yaml:"max_calibration_iters" validate:"omitempty,gte=0"`
	OnlyForwardCalibrationIters *int     `yaml:"only_forward_calibration_iters" validate:"omitempty,gte=0"`
	AdjustATM                   *bool    `yaml:"adjust_atm"`
	EnableLogging               *bool    `yaml:"enable_logging"`
	UseInitialMu                *bool    `yaml:"use_initial_mu"`
	InitialMu                   *float64 `yaml:"initial_mu"`
	ExtrapolationStdevs         *float64 `yaml:"extrapolation_stdevs" validate:"omitempty,gt=0"`
	Sigma0Tol                   *float64 `yaml:"sigma0_tol" validate:"omitempty,gt=0"`
	S0Tol                       *float64 `yaml:"s0_tol" validate:"omitempty,gt=0"`
}

// ModelFile is the on-disk description of a single-expiry model.
type ModelFile struct {
	Expiry   float64       `yaml:"expiry" validate:"gt=0"`
	Forward  float64       `yaml:"forward" validate:"gt=0"`
	SigmaATM float64       `yaml:"sigma_atm" validate:"gt=0"`
	Sigma0   float64       `yaml:"sigma0" validate:"gte=0"`
	Upper    Wing          `yaml:"upper"`
	Lower    Wing          `yaml:"lower"`
	Controls *ControlsFile `yaml:"controls"`
}

// LoadModelFile reads and validates a YAML model file.
func LoadModelFile(path string) (*ModelFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseModelFile(data)
}

// ParseModelFile decodes and validates YAML model anchors.
func ParseModelFile(data []byte) (*ModelFile, error) {
	var mf ModelFile
	if err := yaml.UnmarshalStrict(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse model file: %w", err)
	}
	if err := mf.validate(); err != nil {
		return nil, err
	}
	return &mf, nil
}

// UsesX reports whether the anchors are given in the transformed variable.
func (mf *ModelFile) UsesX() bool {
	return len(mf.Upper.X) > 0 || len(mf.Lower.X) > 0
}

func (mf *ModelFile) validate() error {
	if err := validate.Struct(mf); err != nil {
		return fmt.Errorf("model file validation failed: %w", err)
	}
	for name, w := range map[string]Wing{"upper": mf.Upper, "lower": mf.Lower} {
		if len(w.Levels) > 0 && len(w.X) > 0 {
			return fmt.Errorf("model file: %s wing sets both levels and x", name)
		}
	}
	if mf.UsesX() {
		if len(mf.Upper.Levels) > 0 || len(mf.Lower.Levels) > 0 {
			return fmt.Errorf("model file: x and level anchors cannot be mixed")
		}
		if !(mf.Sigma0 > 0) {
			return fmt.Errorf("model file: sigma0 must be positive with x anchors")
		}
	}
	return nil
}

// ModelControls applies the file's overrides on top of the defaults.
func (mf *ModelFile) ModelControls(log *slog.Logger) models.Controls {
	c := models.DefaultControls()
	c.Logger = log
	o := mf.Controls
	if o == nil {
		return c
	}
	if o.MaxCalibrationIters != nil {
		c.MaxCalibrationIters = *o.MaxCalibrationIters
	}
	if o.OnlyForwardCalibrationIters != nil {
		c.OnlyForwardCalibrationIters = *o.OnlyForwardCalibrationIters
	}
	if o.AdjustATM != nil {
		c.AdjustATM = *o.AdjustATM
	}
	if o.EnableLogging != nil {
		c.EnableLogging = *o.EnableLogging
	}
	if o.UseInitialMu != nil {
		c.UseInitialMu = *o.UseInitialMu
	}
	if o.InitialMu != nil {
		c.InitialMu = *o.InitialMu
	}
	if o.ExtrapolationStdevs != nil {
		c.ExtrapolationStdevs = *o.ExtrapolationStdevs
	}
	if o.Sigma0Tol != nil {
		c.Sigma0Tol = *o.Sigma0Tol
	}
	if o.S0Tol != nil {
		c.S0Tol = *o.S0Tol
	}
	return c
}

// Build constructs and calibrates the model the file describes.
func (mf *ModelFile) Build(log *slog.Logger) (*models.VanillaLocalVolModel, error) {
	controls := mf.ModelControls(log)
	if mf.UsesX() {
		return models.NewVanillaLocalVolModelFromX(mf.Expiry, mf.Forward, mf.SigmaATM, mf.Sigma0,
			mf.Upper.X, mf.Lower.X, mf.Upper.Slopes, mf.Lower.Slopes, controls)
	}
	return models.NewVanillaLocalVolModel(mf.Expiry, mf.Forward, mf.SigmaATM,
		mf.Upper.Levels, mf.Lower.Levels, mf.Upper.Slopes, mf.Lower.Slopes, controls)
}
