// Package config loads the server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"mushroomnet/dataset"
	"mushroomnet/ml"
)

// Config is the root of config.yaml.
type Config struct {
	Dataset struct {
		Source string `yaml:"source"`
	} `yaml:"dataset"`
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Log      Log `yaml:"log"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Model Model `yaml:"model"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
}

// Log configures the logger and its optional rotating file.
type Log struct {
	Debug      bool   `yaml:"debug"`
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxAge     int    `yaml:"max_age"`
	MaxBackups int    `yaml:"max_backups"`
}

// Model selects and tunes the classifier.
type Model struct {
	Type         string  `yaml:"type"`
	Iterations   int     `yaml:"iterations"`
	ErrorThresh  float64 `yaml:"error_thresh"`
	Log          bool    `yaml:"log"`
	LogPeriod    int     `yaml:"log_period"`
	LearningRate float64 `yaml:"learning_rate"`
	Momentum     float64 `yaml:"momentum"`
	HiddenLayers []int   `yaml:"hidden_layers"`
	Seed         int64   `yaml:"seed"`
	MaxTreeDepth int     `yaml:"max_tree_depth"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var c Config
	c.Dataset.Source = dataset.DefaultSource
	c.Http.Port = 8080
	c.Http.Timeout = 30 * time.Second
	c.Http.AllowedOrigins = []string{"*"}
	c.Log.MaxSize = 100
	c.Database.Path = "mushroomnet.db"
	c.Cache.Size = 1024

	opts := ml.DefaultTrainOptions()
	c.Model = Model{
		Type:         ml.ModelNeuralNetwork,
		Iterations:   opts.Iterations,
		ErrorThresh:  opts.ErrorThresh,
		Log:          opts.Log,
		LogPeriod:    opts.LogPeriod,
		LearningRate: opts.LearningRate,
		Momentum:     opts.Momentum,
		Seed:         opts.Seed,
		MaxTreeDepth: opts.MaxTreeDepth,
	}
	return &c
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("error decoding config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Dataset.Source == "" {
		return errors.New("dataset.source is required")
	}
	if c.Http.Port <= 0 {
		return fmt.Errorf("invalid http.port %d", c.Http.Port)
	}
	if _, err := ml.NewTrainer(c.Model.Type); err != nil {
		return fmt.Errorf("model.type: %w", err)
	}
	if c.Model.Iterations <= 0 {
		return errors.New("model.iterations must be positive")
	}
	if c.Model.ErrorThresh <= 0 || c.Model.ErrorThresh >= 1 {
		return fmt.Errorf("model.error_thresh must be in (0, 1), got %g", c.Model.ErrorThresh)
	}
	for _, size := range c.Model.HiddenLayers {
		if size <= 0 {
			return errors.New("model.hidden_layers sizes must be positive")
		}
	}
	if c.Cache.Size < 0 {
		return errors.New("cache.size must not be negative")
	}
	return nil
}

// TrainOptions converts the model section into trainer options.
func (m Model) TrainOptions() ml.TrainOptions {
	return ml.TrainOptions{
		Iterations:   m.Iterations,
		ErrorThresh:  m.ErrorThresh,
		Log:          m.Log,
		LogPeriod:    m.LogPeriod,
		LearningRate: m.LearningRate,
		Momentum:     m.Momentum,
		HiddenLayers: m.HiddenLayers,
		Seed:         m.Seed,
		MaxTreeDepth: m.MaxTreeDepth,
	}
}
