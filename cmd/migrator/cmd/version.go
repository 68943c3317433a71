package cmd

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/oneconcern/migrator/pkg/ocfl"
	"github.com/oneconcern/migrator/pkg/upgrade"
)

// Build information, set at link time
var (
	Version   string
	BuildDate string
	GitCommit string
	GitState  string
)

const flagJSON = "json"

// VersionInfo describes the build of the migrator binary and the upgrades it knows about
type VersionInfo struct {
	Version          string   `json:"version,omitempty"`
	BuildDate        string   `json:"buildDate,omitempty"`
	GitCommit        string   `json:"gitCommit,omitempty"`
	GitState         string   `json:"gitState,omitempty"`
	Upgrades         []string `json:"upgrades"`
	DigestAlgorithms []string `json:"digestAlgorithms"`
}

// NewVersionInfo collects build information
func NewVersionInfo() VersionInfo {
	ver := VersionInfo{
		Version:          "dev",
		BuildDate:        BuildDate,
		GitCommit:        GitCommit,
		DigestAlgorithms: ocfl.DigestAlgorithmNames(),
	}
	for _, t := range upgrade.Paths() {
		ver.Upgrades = append(ver.Upgrades, t.String())
	}
	if Version != "" {
		ver.Version = Version
		ver.GitState = "clean"
	}
	if GitState != "" {
		ver.GitState = GitState
	}
	return ver
}

func (v VersionInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version: %s\n", v.Version)
	fmt.Fprintf(&b, "Build date: %s\n", v.BuildDate)
	fmt.Fprintf(&b, "Commit: %s\n", v.GitCommit)
	fmt.Fprintf(&b, "Working tree: %s\n", v.GitState)
	fmt.Fprintf(&b, "Upgrades: %s\n", strings.Join(v.Upgrades, ", "))
	fmt.Fprintf(&b, "Digest algorithms: %s\n", strings.Join(v.DigestAlgorithms, ", "))
	return b.String()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "prints the version of migrator",
	Long: `Prints the version of migrator. It includes the following components:
	* Semver (output of git describe --tags)
	* Build Date (date at which the binary was built)
	* Git Commit (the git commit hash this binary was built from)
	* Git State (when dirty there were uncommitted changes during the build)
	* the supported upgrades and digest algorithms
`,
	Run: func(cmd *cobra.Command, args []string) {
		info := NewVersionInfo()
		asJSON, _ := cmd.Flags().GetBool(flagJSON)
		if !asJSON {
			logStdOut("%s", info.String())
			return
		}
		data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(info, "", "  ")
		if err != nil {
			osExit(failWithCodef(exitConfiguration, "cannot encode version: %v", err))
			return
		}
		logStdOut("%s\n", data)
	},
}

func init() {
	versionCmd.Flags().Bool(flagJSON, false, "Print version information as JSON")
	rootCmd.AddCommand(versionCmd)
}
