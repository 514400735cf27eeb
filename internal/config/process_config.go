package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/mattn/go-shellwords"
	"gopkg.in/yaml.v3"
)

// ConfigPlaceholder in args is replaced with the document path.
const ConfigPlaceholder = "{config}"

// ProcessConfig describes how to launch the frp client.
type ProcessConfig struct {
	Name        string            `yaml:"name"`
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args,omitempty"`
	Directory   string            `yaml:"directory,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	AutoStart   bool              `yaml:"autostart"`
	StopSignal  string            `yaml:"stopsignal,omitempty"`
	StopTimeout int               `yaml:"stoptimeout,omitempty"`

	// DocumentPath is the frpc.toml handed to the client. Not read from YAML.
	DocumentPath string `yaml:"-"`
}

type SupervisorConfig struct {
	Client ProcessConfig `yaml:"client"`
}

// LoadProcessConfig reads the YAML process config at path. A missing file is
// not an error; the defaults apply.
func LoadProcessConfig(path string) (*SupervisorConfig, error) {
	var cfg SupervisorConfig

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Resolve fills in defaults relative to the managed document and applies
// environment overrides. overrides.ExtraArgs is split like a shell would.
func (c *ProcessConfig) Resolve(documentPath string, overrides ClientOverrides) error {
	abs, err := filepath.Abs(documentPath)
	if err != nil {
		return fmt.Errorf("resolve document path: %w", err)
	}
	c.DocumentPath = abs
	docDir := filepath.Dir(abs)

	if c.Name == "" {
		c.Name = "frpc"
	}
	if overrides.Binary != "" {
		c.Command = overrides.Binary
	}
	if c.Command == "" {
		bin := "frpc"
		if runtime.GOOS == "windows" {
			bin += ".exe"
		}
		c.Command = filepath.Join(docDir, bin)
	}
	if len(c.Args) == 0 {
		c.Args = []string{"-c", ConfigPlaceholder}
	}
	for i, a := range c.Args {
		if a == ConfigPlaceholder {
			c.Args[i] = abs
		}
	}
	if overrides.ExtraArgs != "" {
		extra, err := shellwords.Parse(overrides.ExtraArgs)
		if err != nil {
			return fmt.Errorf("parse extra client args: %w", err)
		}
		c.Args = append(c.Args, extra...)
	}
	if c.Directory == "" {
		c.Directory = docDir
	}
	if c.StopSignal == "" {
		c.StopSignal = "SIGTERM"
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = 10
	}
	return nil
}

func (c ProcessConfig) Signal() syscall.Signal {
	switch c.StopSignal {
	case "SIGKILL":
		return syscall.SIGKILL
	case "SIGINT":
		return syscall.SIGINT
	case "SIGQUIT":
		return syscall.SIGQUIT
	case "SIGHUP":
		return syscall.SIGHUP
	default:
		return syscall.SIGTERM
	}
}

func (c ProcessConfig) StopGrace() time.Duration {
	return time.Duration(c.StopTimeout) * time.Second
}

// Env returns the child environment, or nil to inherit the parent's.
func (c ProcessConfig) Env() []string {
	if len(c.Environment) == 0 {
		return nil
	}
	out := os.Environ()
	for k, v := range c.Environment {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}
