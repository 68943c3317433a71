package upgrade

import (
	"runtime"

	"github.com/oneconcern/migrator/pkg/model"
	"github.com/oneconcern/migrator/pkg/ocfl"
	"github.com/oneconcern/migrator/pkg/upgrade/status"
)

// Defaults
const (
	DefaultDigestAlgorithm   = "sha512"
	DefaultFedoraUser        = "fedoraAdmin"
	DefaultFedoraUserAddress = "info:fedora/fedoraAdmin"
)

// Config of an upgrade run. It is immutable once the manager is created.
type Config struct {
	SourceVersion     model.Version `json:"sourceVersion" yaml:"sourceVersion" mapstructure:"source-version"`
	TargetVersion     model.Version `json:"targetVersion" yaml:"targetVersion" mapstructure:"target-version"`
	SourceDir         string        `json:"sourceDir" yaml:"sourceDir" mapstructure:"source-dir"`
	OutputDir         string        `json:"outputDir" yaml:"outputDir" mapstructure:"output-dir"`
	Threads           int           `json:"threads" yaml:"threads" mapstructure:"threads"`
	QueueSize         int           `json:"queueSize" yaml:"queueSize" mapstructure:"queue-size"`
	DigestAlgorithm   string        `json:"digestAlgorithm" yaml:"digestAlgorithm" mapstructure:"digest-algorithm"`
	FedoraUser        string        `json:"fedoraUser" yaml:"fedoraUser" mapstructure:"fedora-user"`
	FedoraUserAddress string        `json:"fedoraUserAddress" yaml:"fedoraUserAddress" mapstructure:"fedora-user-address"`
	DryRun            bool          `json:"dryRun" yaml:"dryRun" mapstructure:"dry-run"`
}

// Transition requested by this configuration
func (c Config) Transition() model.Transition {
	return model.Transition{Source: c.SourceVersion, Target: c.TargetVersion}
}

// User authoring commits
func (c Config) User() model.Contributor {
	return model.Contributor{Name: c.FedoraUser, Email: c.FedoraUserAddress}
}

// WithDefaults returns a copy of the configuration with unset values defaulted.
// A queue size of zero or less selects the default, twice the number of threads.
func (c Config) WithDefaults() Config {
	if c.Threads <= 0 {
		c.Threads = runtime.NumCPU()
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 2 * c.Threads
	}
	if c.DigestAlgorithm == "" {
		c.DigestAlgorithm = DefaultDigestAlgorithm
	}
	if c.FedoraUser == "" {
		c.FedoraUser = DefaultFedoraUser
	}
	if c.FedoraUserAddress == "" {
		c.FedoraUserAddress = DefaultFedoraUserAddress
	}
	return c
}

// Validate the configuration for an upgrade path. The check performs no I/O.
func (c Config) Validate(path Path, hasSource bool) error {
	if !hasSource && c.SourceDir == "" {
		return status.ErrConfiguration.Wrapf("a source directory is required for %v", path)
	}
	if path != F5ToF6 {
		return nil
	}
	if c.OutputDir == "" {
		return status.ErrConfiguration.Wrapf("an output directory is required for %v", path)
	}
	if c.Threads <= 0 {
		return status.ErrConfiguration.Wrapf("the number of threads must be positive, got %d", c.Threads)
	}
	if _, err := ocfl.DigestAlgorithmFromName(c.DigestAlgorithm); err != nil {
		return status.ErrConfiguration.Wrap(err)
	}
	if c.FedoraUser == "" {
		return status.ErrConfiguration.Wrapf("a fedora user is required to author commits")
	}
	return nil
}
