package main

import (
	"fmt"
	"log"
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v2"

	"github.com/openrover/telerover/control"
)

// EnvConfig carries the environment overrides. File config wins for
// anything not set here.
type EnvConfig struct {
	HOST    string `env:"ROVER_HOST"`
	TOKEN   string `env:"ROVER_TOKEN"`
	CONFIG  string `env:"ROVER_CONFIG" envDefault:"./rover.yaml"`
	TRIPLOG string `env:"ROVER_TRIPLOG"`
	DEBUG   bool   `env:"DEBUG" envDefault:"0"`
}

// RoverConfig is the yaml config file: where the rover lives, the shared
// auth token and the gesture tuning.
type RoverConfig struct {
	Host        string                `yaml:"host"`
	CommandPort int                   `yaml:"command_port"`
	VideoPort   int                   `yaml:"video_port"`
	Token       string                `yaml:"token"`
	Gestures    control.GestureConfig `yaml:"gestures"`
}

func LoadRoverConfig(path string) (*RoverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := &RoverConfig{
		CommandPort: 9000,
		VideoPort:   8080,
		Gestures:    control.DefaultGestureConfig(),
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("unable to unmarshal yaml: %v", err)
	}

	// partial gesture sections fall back to the defaults
	defaults := control.DefaultGestureConfig()
	if config.Gestures.HoldDelayMs <= 0 {
		config.Gestures.HoldDelayMs = defaults.HoldDelayMs
	}
	if config.Gestures.DoubleTapMs <= 0 {
		config.Gestures.DoubleTapMs = defaults.DoubleTapMs
	}
	if config.Gestures.MoveThresholdPx <= 0 {
		config.Gestures.MoveThresholdPx = defaults.MoveThresholdPx
	}
	if config.Gestures.SwipeThresholdPx <= 0 {
		config.Gestures.SwipeThresholdPx = defaults.SwipeThresholdPx
	}

	return config, nil
}

// VideoURL is the MJPEG feed endpoint.
func (c *RoverConfig) VideoURL() string {
	return fmt.Sprintf("http://%s:%d/stream", c.Host, c.VideoPort)
}

// watchConfig re-reads the yaml file whenever it changes and hands the
// result to apply. Threshold tuning takes effect without a restart.
func watchConfig(path string, apply func(*RoverConfig)) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				config, err := LoadRoverConfig(path)
				if err != nil {
					log.Printf("config: reload failed: %v", err)
					continue
				}
				log.Printf("config: reloaded %s", path)
				apply(config)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("config: watch error: %v", err)
			}
		}
	}()

	return watcher, nil
}
