package buildopt

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// ProjectConfig is a parsed platformio.ini. Options resolve from the
// selected [env:<name>] section first, then [env], then [platformio].
type ProjectConfig struct {
	envName string
	file    *ini.File
}

// loadOptions follow PlatformIO: indented continuation lines, and inline
// comments only after whitespace so URLs with '#' survive.
var loadOptions = ini.LoadOptions{
	AllowPythonMultilineValues: true,
	SpaceBeforeInlineComment:   true,
}

// LoadProjectConfig parses the project file at path for environment envName.
// envName may be empty, in which case only [env] and [platformio] apply.
func LoadProjectConfig(path, envName string) (*ProjectConfig, error) {
	f, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load project config %s: %w", path, err)
	}
	return newProjectConfig(f, envName)
}

// ParseProjectConfig reads project file text from r.
func ParseProjectConfig(r io.Reader, envName string) (*ProjectConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse project config: %w", err)
	}
	return newProjectConfig(f, envName)
}

func newProjectConfig(f *ini.File, envName string) (*ProjectConfig, error) {
	if keys := f.Section(ini.DefaultSection).KeyStrings(); len(keys) > 0 {
		return nil, fmt.Errorf("option %q outside of a section", keys[0])
	}
	return &ProjectConfig{envName: envName, file: f}, nil
}

// GetProjectOption implements Options
func (pc *ProjectConfig) GetProjectOption(name string) (string, bool) {
	for _, section := range pc.lookupOrder() {
		s, err := pc.file.GetSection(section)
		if err != nil || !s.HasKey(name) {
			continue
		}
		return normalizeValue(s.Key(name).String()), true
	}
	return "", false
}

// normalizeValue trims every line of a multi-line value and drops blanks
func normalizeValue(v string) string {
	var lines []string
	for _, line := range strings.Split(v, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func (pc *ProjectConfig) lookupOrder() []string {
	order := make([]string, 0, 3)
	if pc.envName != "" {
		order = append(order, "env:"+pc.envName)
	}
	return append(order, "env", "platformio")
}

// Envs lists the [env:<name>] environments in the file
func (pc *ProjectConfig) Envs() []string {
	var envs []string
	for _, section := range pc.file.SectionStrings() {
		if name, ok := strings.CutPrefix(section, "env:"); ok {
			envs = append(envs, name)
		}
	}
	return envs
}

// Env returns the build directories for a project rooted at projectDir,
// before any custom_src_dir redirection.
func (pc *ProjectConfig) Env(projectDir string) *Env {
	srcDir := DefaultSrcDir
	if s, err := pc.file.GetSection("platformio"); err == nil {
		if v := normalizeValue(s.Key("src_dir").String()); v != "" {
			srcDir = v
		}
	}
	if !filepath.IsAbs(srcDir) {
		srcDir = filepath.Join(projectDir, srcDir)
	}
	return &Env{ProjectDir: projectDir, ProjectSrcDir: srcDir}
}

// ResolveSrcDir loads the project file and returns the effective source
// directory for envName.
func ResolveSrcDir(projectDir, configPath, envName string) (string, error) {
	if configPath == "" {
		configPath = filepath.Join(projectDir, "platformio.ini")
	}
	pc, err := LoadProjectConfig(configPath, envName)
	if err != nil {
		return "", err
	}
	env := pc.Env(projectDir)
	ApplyCustomSrcDir(env, pc)
	return env.ProjectSrcDir, nil
}
