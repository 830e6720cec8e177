// CSI Monitor - live magnitude plot of WiFi channel state information
// This program reads CSI records printed by an ESP32 over a serial port
// and plots the per-subcarrier magnitude of the most recent frame.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"csi-monitor/internal/config"
	"csi-monitor/internal/logging"
	"csi-monitor/internal/monitor"
	"csi-monitor/internal/render"
	"csi-monitor/internal/serialport"
	"csi-monitor/internal/server"
	"csi-monitor/internal/storage"
	"csi-monitor/internal/version"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Command line flag variables
var (
	cfgFile string // Configuration file path
	verbose bool   // Enable debug logging
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "csi-monitor",
	Short: "Live magnitude plot of ESP32 CSI records",
	Long: `CSI Monitor reads channel state information records from an ESP32
serial console, one line of 52 "real,imag" pairs per frame, and plots the
magnitude of every subcarrier as frames arrive.`,
	Version:      version.GetFullVersion(),
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runMonitor(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// portsCmd lists serial ports so the right device can be picked
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available serial ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := serialport.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
			return nil
		}
		for _, p := range ports {
			if p.IsUSB {
				fmt.Printf("%-20s USB %s:%s %s %s\n", p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
			} else {
				fmt.Printf("%s\n", p.Name)
			}
		}
		return nil
	},
}

// init initializes the CLI flags and configuration
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.SetVersionTemplate(version.GetVersionInfo("csi-monitor") + "\n")

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Serial source
	rootCmd.Flags().StringP("port", "p", "/dev/ttyUSB0", "serial device")
	rootCmd.Flags().IntP("baud", "b", 9600, "serial baud rate")
	rootCmd.Flags().Duration("timeout", 10*time.Second, "serial read timeout")
	rootCmd.Flags().String("input", "", "read records from a captured file instead of a serial port")

	// Sampling loop
	rootCmd.Flags().Duration("interval", 50*time.Millisecond, "tick interval")
	rootCmd.Flags().Int("max-frames", 0, "stop after this many frames (0 = unlimited)")

	// Outputs
	rootCmd.Flags().StringP("plot", "o", "csi.png", "magnitude plot PNG file (empty to disable)")
	rootCmd.Flags().Bool("ascii", false, "draw the plot on the terminal")
	rootCmd.Flags().String("waterfall", "", "waterfall PNG file")
	rootCmd.Flags().Bool("record", false, "record frames into the SQLite database")
	rootCmd.Flags().String("db", "csi.db", "SQLite database path")
	rootCmd.Flags().String("listen", "", "serve a live view on this address, e.g. :8080")

	// Bind command line flags to viper configuration keys
	viper.BindPFlag("serial.port", rootCmd.Flags().Lookup("port"))
	viper.BindPFlag("serial.baud_rate", rootCmd.Flags().Lookup("baud"))
	viper.BindPFlag("serial.read_timeout", rootCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("serial.input", rootCmd.Flags().Lookup("input"))
	viper.BindPFlag("monitor.interval", rootCmd.Flags().Lookup("interval"))
	viper.BindPFlag("monitor.max_frames", rootCmd.Flags().Lookup("max-frames"))
	viper.BindPFlag("plot.output_file", rootCmd.Flags().Lookup("plot"))
	viper.BindPFlag("plot.ascii", rootCmd.Flags().Lookup("ascii"))
	viper.BindPFlag("waterfall.output_file", rootCmd.Flags().Lookup("waterfall"))
	viper.BindPFlag("recording.enabled", rootCmd.Flags().Lookup("record"))
	viper.BindPFlag("recording.db_path", rootCmd.Flags().Lookup("db"))
	viper.BindPFlag("server.listen", rootCmd.Flags().Lookup("listen"))

	rootCmd.AddCommand(portsCmd)
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config.yaml in current directory
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	// CSI_SERIAL_PORT and friends
	viper.SetEnvPrefix("csi")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, config file, environment and flags
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runMonitor is the main application logic
func runMonitor() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logCloser.Close()

	var device *serialport.Device
	if cfg.Serial.Input != "" {
		device, err = serialport.OpenFile(cfg.Serial.Input, logger)
	} else {
		device, err = serialport.Open(serialport.Config{
			Port:        cfg.Serial.Port,
			BaudRate:    cfg.Serial.BaudRate,
			ReadTimeout: cfg.Serial.ReadTimeout,
		}, logger)
	}
	if err != nil {
		return err
	}

	m := monitor.NewMonitor(cfg.Monitor, device, logger)
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := addSinks(ctx, cfg, m, device.Name(), logger); err != nil {
		return err
	}

	fmt.Printf("CSI Monitor starting...\n")
	fmt.Printf("Source: %s\n", device.Name())
	if cfg.Serial.Input == "" {
		fmt.Printf("Baud rate: %d\n", cfg.Serial.BaudRate)
	}
	if cfg.Plot.OutputFile != "" {
		fmt.Printf("Plot: %s\n", cfg.Plot.OutputFile)
	}
	if cfg.Waterfall.OutputFile != "" {
		fmt.Printf("Waterfall: %s\n", cfg.Waterfall.OutputFile)
	}
	if cfg.Server.Listen != "" {
		fmt.Printf("Live view: http://%s/\n", cfg.Server.Listen)
	}

	runErr := m.Run(ctx)

	stats := m.Stats()
	fmt.Printf("\nFrames: %s accepted, %s dropped, %s lines read in %v\n",
		humanize.Comma(int64(stats.Frames)),
		humanize.Comma(int64(stats.Dropped)),
		humanize.Comma(int64(stats.Ticks)),
		time.Since(stats.Started).Round(time.Millisecond))
	if stats.Errors > 0 {
		fmt.Printf("Render errors: %s\n", humanize.Comma(int64(stats.Errors)))
	}

	return runErr
}

// addSinks attaches every enabled output to the monitor
func addSinks(ctx context.Context, cfg *config.Config, m *monitor.Monitor, source string, logger *slog.Logger) error {
	if cfg.Plot.OutputFile != "" {
		m.AddSink(render.NewPlot(cfg.Plot.OutputFile, cfg.Plot.Width, cfg.Plot.Height))
	}

	if cfg.Plot.ASCII {
		m.AddSink(render.NewASCII(os.Stdout, cfg.Plot.ASCIIHeight, true))
	}

	if cfg.Waterfall.OutputFile != "" {
		wf, err := render.NewWaterfall(cfg.Waterfall.OutputFile, cfg.Waterfall.Depth, cfg.Waterfall.Scale)
		if err != nil {
			return fmt.Errorf("failed to create waterfall: %w", err)
		}
		m.AddSink(wf)
	}

	if cfg.Recording.Enabled {
		store := storage.NewSqliteStore(cfg.Recording.DBPath)
		rec, err := storage.NewRecorder(ctx, store, source, cfg.Serial.BaudRate)
		if err != nil {
			store.Close()
			return err
		}
		fmt.Printf("Recording session %s into %s\n", rec.Session().ID, cfg.Recording.DBPath)
		m.AddSink(rec)
	}

	if cfg.Server.Listen != "" {
		srv := server.NewServer(cfg.Server.Listen, render.NewPlot("", cfg.Plot.Width, cfg.Plot.Height), logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("live view server failed", "error", err)
			}
		}()
		m.AddSink(srv)
	}

	return nil
}

// main is the entry point of the application
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
