// Package config provides configuration loading for cube-action commands.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Default robot configuration.
const (
	DefaultRobotIP   = "192.168.68.75"
	DefaultRobotPort = "8000"
)

// Config holds process settings read from the environment.
// None of these change controller behavior; they only say where the
// robot daemon lives and how the process presents itself.
type Config struct {
	RobotIP   string `env:"ROBOT_IP" envDefault:"192.168.68.75"`
	RobotPort string `env:"ROBOT_PORT" envDefault:"8000"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	ViewerEnabled bool   `env:"VIEWER_ENABLED" envDefault:"true"`
	ViewerPort    string `env:"VIEWER_PORT" envDefault:"8181"`

	PhotoPath     string `env:"PHOTO_PATH" envDefault:"portrait.png"`
	AnimationsDir string `env:"ANIMATIONS_DIR" envDefault:"animations"`

	// FaceModelPath enables local YuNet face finding when set.
	FaceModelPath string `env:"FACE_MODEL_PATH"`
}

// Load parses the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// RobotAPIURL returns the robot daemon HTTP API URL.
func (c Config) RobotAPIURL() string {
	return fmt.Sprintf("http://%s:%s", c.RobotIP, c.RobotPort)
}

// RobotEventsURL returns the robot daemon event stream URL.
func (c Config) RobotEventsURL() string {
	return fmt.Sprintf("ws://%s:%s/api/events", c.RobotIP, c.RobotPort)
}
