package config

import (
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"megaton-build-go/internal/flags"
	"megaton-build-go/internal/system"
)

// ProfileNone selects the base configuration without any profile override.
const ProfileNone = "none"

// Config is the parsed Megaton.toml.
type Config struct {
	Module Module  `toml:"module"`
	Build  Build   `toml:"build"`
	Check  *Check  `toml:"check"`
	Clangd *Clangd `toml:"clangd"`
}

type Module struct {
	Name    string `toml:"name" validate:"required"`
	TitleID uint64 `toml:"title-id" validate:"required"`
	// DefaultProfile is used when no profile is given on the command line.
	// An empty string forces the user to pick one.
	DefaultProfile *string `toml:"default-profile"`
}

type Build struct {
	Entry     string            `toml:"entry"`
	Sources   []string          `toml:"sources"`
	Includes  []string          `toml:"includes"`
	LibPaths  []string          `toml:"libpaths"`
	Libraries []string          `toml:"libraries"`
	LdScripts []string          `toml:"ldscripts"`
	Flags     flags.Set         `toml:"flags"`
	Profiles  map[string]*Build `toml:"profiles"`
}

type Check struct {
	Ignore                 []string          `toml:"ignore"`
	Symbols                []string          `toml:"symbols"`
	DisallowedInstructions []string          `toml:"disallowed-instructions"`
	Profiles               map[string]*Check `toml:"profiles"`
}

// Clangd asks the build to maintain a .clangd file pointing at the
// compile_commands.json of the selected profile.
type Clangd struct {
	Output string   `toml:"output"`
	Remove []string `toml:"remove"`
}

// Load reads and validates <root>/Megaton.toml. The returned keys are the
// ones present in the file but unknown to the schema.
func Load(root string) (*Config, []string, error) {
	path := filepath.Join(root, system.ConfigFile)
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, nil, system.PathError(system.KindConfig, "cannot parse", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, nil, system.PathError(system.KindConfig, "invalid configuration in", path, err)
	}
	var unknown []string
	for _, k := range md.Undecoded() {
		unknown = append(unknown, k.String())
	}
	return &cfg, unknown, nil
}

var validate = validator.New()

func Validate(cfg *Config) error {
	return validate.Struct(cfg)
}

// SelectProfile maps the command-line profile onto the profile to build.
func (c *Config) SelectProfile(name string) (string, error) {
	if name != ProfileNone {
		return name, nil
	}
	if c.Module.DefaultProfile == nil {
		return ProfileNone, nil
	}
	if *c.Module.DefaultProfile == "" {
		return "", system.ErrNoProfile
	}
	return *c.Module.DefaultProfile, nil
}

// Profile returns the base build section with the named profile merged in.
// Lists are concatenated, flag lists merged, the entry point overridden.
func (b *Build) Profile(name string) *Build {
	merged := *b
	merged.Profiles = nil
	p, ok := b.Profiles[name]
	if name == ProfileNone || !ok || p == nil {
		return &merged
	}
	if p.Entry != "" {
		merged.Entry = p.Entry
	}
	merged.Sources = concat(b.Sources, p.Sources)
	merged.Includes = concat(b.Includes, p.Includes)
	merged.LibPaths = concat(b.LibPaths, p.LibPaths)
	merged.Libraries = concat(b.Libraries, p.Libraries)
	merged.LdScripts = concat(b.LdScripts, p.LdScripts)
	merged.Flags = b.Flags.Extend(p.Flags)
	return &merged
}

func (c *Check) Profile(name string) *Check {
	merged := *c
	merged.Profiles = nil
	p, ok := c.Profiles[name]
	if name == ProfileNone || !ok || p == nil {
		return &merged
	}
	merged.Ignore = concat(c.Ignore, p.Ignore)
	merged.Symbols = concat(c.Symbols, p.Symbols)
	merged.DisallowedInstructions = concat(c.DisallowedInstructions, p.DisallowedInstructions)
	return &merged
}

// HasProfile reports whether any section defines the named profile.
func (c *Config) HasProfile(name string) bool {
	if name == ProfileNone {
		return true
	}
	if _, ok := c.Build.Profiles[name]; ok {
		return true
	}
	if c.Check != nil {
		if _, ok := c.Check.Profiles[name]; ok {
			return true
		}
	}
	return false
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
