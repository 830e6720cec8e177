// Package buildopt redirects a firmware project's source directory from
// the custom_src_dir option in its PlatformIO style project file.
package buildopt

import (
	"path/filepath"
)

// CustomSrcDirOption is the project option that overrides the source dir
const CustomSrcDirOption = "custom_src_dir"

// DefaultSrcDir is used when the project sets no src_dir
const DefaultSrcDir = "src"

// Options looks up project options by name
type Options interface {
	GetProjectOption(name string) (string, bool)
}

// Env holds the directories a build step works with
type Env struct {
	ProjectDir    string
	ProjectSrcDir string
}

// ApplyCustomSrcDir points env.ProjectSrcDir at custom_src_dir joined onto
// the project directory. An absolute option value is used as is. When the
// option is missing or empty env is left untouched and false is returned.
func ApplyCustomSrcDir(env *Env, opts Options) bool {
	value, ok := opts.GetProjectOption(CustomSrcDirOption)
	if !ok || value == "" {
		return false
	}

	if filepath.IsAbs(value) {
		env.ProjectSrcDir = filepath.Clean(value)
	} else {
		env.ProjectSrcDir = filepath.Join(env.ProjectDir, value)
	}
	return true
}

// MapOptions is an in-memory option set
type MapOptions map[string]string

// GetProjectOption implements Options
func (m MapOptions) GetProjectOption(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}
