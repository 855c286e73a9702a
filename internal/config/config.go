package config

import (
	"embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed pbw.toml
var configFile embed.FS

// Config is the build manifest. The embedded default carries the DC data
// migration build: one windowed, single-file executable with an icon and
// two embedded data files.
type Config struct {
	Project  Project   `toml:"project"`
	Python   Python    `toml:"python"`
	Bundle   Bundle    `toml:"bundle"`
	Targets  []Target  `toml:"target"`
	Rules    Rules     `toml:"rules"`
	Timeouts Timeouts  `toml:"timeouts"`
	Publish  Publish   `toml:"publish"`
}

type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

type Python struct {
	Interpreter  string   `toml:"interpreter"`
	Requirements string   `toml:"requirements"`
	PipArgs      []string `toml:"pip_args"`
}

// Bundle holds the bundler options shared by every target. Target fields
// override these per executable.
type Bundle struct {
	OneFile   bool       `toml:"onefile"`
	Windowed  bool       `toml:"windowed"`
	Clean     bool       `toml:"clean"`
	NoConfirm bool       `toml:"noconfirm"`
	Icon      string     `toml:"icon"`
	SpecDir   string     `toml:"spec_dir"`
	WorkDir   string     `toml:"work_dir"`
	DistDir   string     `toml:"dist_dir"`
	Data      []DataSpec `toml:"data"`
}

// DataSpec is one file embedded into the executable: Src relative to the
// project directory, Dest relative to the bundle root ("." for the root).
type DataSpec struct {
	Src  string `toml:"src"`
	Dest string `toml:"dest"`
}

type Target struct {
	Name      string     `toml:"name"`
	Entry     string     `toml:"entry"`
	Icon      string     `toml:"icon"`
	Windowed  *bool      `toml:"windowed"`
	OneFile   *bool      `toml:"onefile"`
	ExtraArgs []string   `toml:"extra_args"`
	Data      []DataSpec `toml:"data"`
}

// Rules names the migration rules file to lint before it is embedded.
// Empty disables the check for projects that embed no rules file.
type Rules struct {
	File string `toml:"file"`
}

type Timeouts struct {
	Install Duration `toml:"install"`
	Bundle  Duration `toml:"bundle"`
}

type Publish struct {
	URL      string `toml:"url"`
	TokenEnv string `toml:"token_env"`
	Project  string `toml:"project"`
}

// Duration decodes TOML strings like "10m" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func LoadEmbeddedConfig() Config {
	data, err := configFile.ReadFile("pbw.toml")
	if err != nil {
		log.Fatalf("Failed to read embedded manifest: %v", err)
	}
	config, err := Parse(data)
	if err != nil {
		log.Fatalf("Failed to parse embedded manifest: %v", err)
	}
	return config
}

// LoadConfigFromFile reads and validates a manifest from disk. Unlike the
// embedded fallback this returns errors, a bad file is an operator mistake
// and not a build defect.
func LoadConfigFromFile(filePath string) (Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Config{}, fmt.Errorf("read manifest: %w", err)
	}
	config, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("manifest %s: %w", filePath, err)
	}
	return config, nil
}

// Parse decodes a manifest, applies defaults and validates it.
func Parse(data []byte) (Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("decode manifest: %w", err)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Python.Requirements == "" {
		c.Python.Requirements = "requirements.txt"
	}
	if c.Bundle.SpecDir == "" {
		c.Bundle.SpecDir = "spec"
	}
	if c.Bundle.WorkDir == "" {
		c.Bundle.WorkDir = "build"
	}
	if c.Bundle.DistDir == "" {
		c.Bundle.DistDir = "dist"
	}
	if c.Timeouts.Install == 0 {
		c.Timeouts.Install = Duration(15 * time.Minute)
	}
	if c.Timeouts.Bundle == 0 {
		c.Timeouts.Bundle = Duration(10 * time.Minute)
	}
}

// Validate rejects manifests the pipeline cannot act on. Workspace
// directories must stay inside the project, so absolute paths are refused.
func (c *Config) Validate() error {
	if c.Project.Name == "" {
		return fmt.Errorf("manifest: project.name is required")
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("manifest: at least one [[target]] is required")
	}
	for _, dir := range []string{c.Bundle.SpecDir, c.Bundle.WorkDir, c.Bundle.DistDir} {
		if filepath.IsAbs(dir) {
			return fmt.Errorf("manifest: workspace directory %q must be relative to the project", dir)
		}
	}
	seen := make(map[string]bool)
	for i, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("manifest: target %d has no name", i+1)
		}
		if t.Entry == "" {
			return fmt.Errorf("manifest: target %q has no entry script", t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("manifest: duplicate target name %q", t.Name)
		}
		seen[t.Name] = true
		for _, d := range append(append([]DataSpec{}, c.Bundle.Data...), t.Data...) {
			if d.Src == "" {
				return fmt.Errorf("manifest: target %q has a data entry with an empty src", t.Name)
			}
		}
	}
	return nil
}

// EffectiveWindowed resolves the per-target override against the bundle
// default. Same for EffectiveOneFile, EffectiveIcon and EffectiveData.
func (c *Config) EffectiveWindowed(t Target) bool {
	if t.Windowed != nil {
		return *t.Windowed
	}
	return c.Bundle.Windowed
}

func (c *Config) EffectiveOneFile(t Target) bool {
	if t.OneFile != nil {
		return *t.OneFile
	}
	return c.Bundle.OneFile
}

func (c *Config) EffectiveIcon(t Target) string {
	if t.Icon != "" {
		return t.Icon
	}
	return c.Bundle.Icon
}

func (c *Config) EffectiveData(t Target) []DataSpec {
	data := make([]DataSpec, 0, len(c.Bundle.Data)+len(t.Data))
	data = append(data, c.Bundle.Data...)
	data = append(data, t.Data...)
	return data
}

// AssetPaths lists every project-relative file the manifest references, for
// preflight checks: requirements manifest, entry scripts, icons, data files
// and the rules file.
func (c *Config) AssetPaths() []string {
	var paths []string
	add := func(p string) {
		if p == "" {
			return
		}
		for _, existing := range paths {
			if existing == p {
				return
			}
		}
		paths = append(paths, p)
	}

	add(c.Python.Requirements)
	add(c.Rules.File)
	for _, t := range c.Targets {
		add(t.Entry)
		add(c.EffectiveIcon(t))
		for _, d := range c.EffectiveData(t) {
			add(d.Src)
		}
	}
	return paths
}
