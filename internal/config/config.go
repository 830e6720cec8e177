// Package config provides configuration structures and defaults for CSI Monitor
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Serial    SerialConfig    `mapstructure:"serial" yaml:"serial"`       // Serial device settings
	Monitor   MonitorConfig   `mapstructure:"monitor" yaml:"monitor"`     // Sampling loop settings
	Plot      PlotConfig      `mapstructure:"plot" yaml:"plot"`           // Magnitude plot output
	Waterfall WaterfallConfig `mapstructure:"waterfall" yaml:"waterfall"` // Waterfall image output
	Recording RecordingConfig `mapstructure:"recording" yaml:"recording"` // SQLite recording
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`       // Live view server
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`     // Logging configuration
}

// SerialConfig contains serial port parameters for the CSI source
type SerialConfig struct {
	Port        string        `mapstructure:"port" yaml:"port"`                 // Serial device path
	BaudRate    int           `mapstructure:"baud_rate" yaml:"baud_rate"`       // Serial communication baud rate
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"` // Timeout for a single line read
	Input       string        `mapstructure:"input" yaml:"input"`               // Read records from this file instead of a device
}

// MonitorConfig contains sampling loop parameters
type MonitorConfig struct {
	Interval  time.Duration `mapstructure:"interval" yaml:"interval"`     // Tick interval between reads
	Window    int           `mapstructure:"window" yaml:"window"`         // Plot buffer capacity
	MaxFrames int           `mapstructure:"max_frames" yaml:"max_frames"` // Stop after this many accepted frames (0 = unlimited)
}

// PlotConfig contains magnitude plot parameters
type PlotConfig struct {
	OutputFile  string `mapstructure:"output_file" yaml:"output_file"`   // PNG path, empty disables the PNG plot
	Width       int    `mapstructure:"width" yaml:"width"`               // Image width in pixels
	Height      int    `mapstructure:"height" yaml:"height"`             // Image height in pixels
	ASCII       bool   `mapstructure:"ascii" yaml:"ascii"`               // Redraw an ASCII plot on the terminal
	ASCIIHeight int    `mapstructure:"ascii_height" yaml:"ascii_height"` // ASCII plot height in lines
}

// WaterfallConfig contains waterfall image parameters
type WaterfallConfig struct {
	OutputFile string `mapstructure:"output_file" yaml:"output_file"` // PNG path, empty disables the waterfall
	Depth      int    `mapstructure:"depth" yaml:"depth"`             // Number of frames kept in the history
	Scale      int    `mapstructure:"scale" yaml:"scale"`             // Pixels per cell
}

// RecordingConfig contains recording parameters
type RecordingConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"` // Persist accepted frames
	DBPath  string `mapstructure:"db_path" yaml:"db_path"` // SQLite database path
}

// ServerConfig contains live view server parameters
type ServerConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"` // Listen address, empty disables the server
}

// LoggingConfig contains logging configuration parameters
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // Log level (debug, info, warn, error)
	File  string `mapstructure:"file" yaml:"file"`   // Log file path, empty logs to stderr
}

// DefaultConfig returns a configuration with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:        "/dev/ttyUSB0",   // Common ESP32 USB-UART device path
			BaudRate:    9600,             // MonitorCSI sketch baud rate
			ReadTimeout: 10 * time.Second, // 10 second readline timeout
		},
		Monitor: MonitorConfig{
			Interval: 50 * time.Millisecond,
			Window:   52, // One frame of subcarriers
		},
		Plot: PlotConfig{
			OutputFile:  "csi.png",
			Width:       800,
			Height:      480,
			ASCIIHeight: 16,
		},
		Waterfall: WaterfallConfig{
			Depth: 120,
			Scale: 4,
		},
		Recording: RecordingConfig{
			DBPath: "csi.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for values the monitor cannot run with
func (c *Config) Validate() error {
	if c.Serial.Input == "" && c.Serial.Port == "" {
		return fmt.Errorf("serial port not specified")
	}
	if c.Serial.Input == "" && c.Serial.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %d", c.Serial.BaudRate)
	}
	if c.Serial.ReadTimeout < 0 {
		return fmt.Errorf("invalid read timeout: %v", c.Serial.ReadTimeout)
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("invalid tick interval: %v", c.Monitor.Interval)
	}
	if c.Monitor.Window <= 0 {
		return fmt.Errorf("invalid window size: %d", c.Monitor.Window)
	}
	if c.Monitor.MaxFrames < 0 {
		return fmt.Errorf("invalid max frames: %d", c.Monitor.MaxFrames)
	}
	// The live view draws /plot.png at the plot size too
	if (c.Plot.OutputFile != "" || c.Server.Listen != "") && (c.Plot.Width <= 0 || c.Plot.Height <= 0) {
		return fmt.Errorf("invalid plot size: %dx%d", c.Plot.Width, c.Plot.Height)
	}
	if c.Plot.ASCII && c.Plot.ASCIIHeight < 2 {
		return fmt.Errorf("invalid ASCII plot height: %d (must be at least 2)", c.Plot.ASCIIHeight)
	}
	if c.Waterfall.OutputFile != "" && (c.Waterfall.Depth <= 0 || c.Waterfall.Scale <= 0) {
		return fmt.Errorf("invalid waterfall geometry: depth %d, scale %d", c.Waterfall.Depth, c.Waterfall.Scale)
	}
	if c.Recording.Enabled && c.Recording.DBPath == "" {
		return fmt.Errorf("recording enabled but no database path given")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be 'debug', 'info', 'warn', or 'error')", c.Logging.Level)
	}
	return nil
}
