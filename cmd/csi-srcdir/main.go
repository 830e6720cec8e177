// CSI Srcdir - prints the firmware source directory for a PlatformIO project,
// honouring the custom_src_dir option so one project can build several
// sketches (e.g. the CSI monitor example) from the same tree.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"csi-monitor/internal/buildopt"
	"csi-monitor/internal/version"

	"github.com/spf13/cobra"
)

var (
	projectDir  string
	envName     string
	configPath  string
	showVersion bool
)

var rootCmd = &cobra.Command{
	Use:   "csi-srcdir",
	Short: "Resolve the firmware source directory of a PlatformIO project",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersionInfo("CSI Srcdir"))
			return
		}

		dir, err := filepath.Abs(projectDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		srcDir, err := buildopt.ResolveSrcDir(dir, configPath, envName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(srcDir)
	},
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")
	rootCmd.Flags().StringVarP(&projectDir, "project-dir", "d", ".", "project directory")
	rootCmd.Flags().StringVarP(&envName, "env", "e", "", "build environment name")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "project file (default is <project-dir>/platformio.ini)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
