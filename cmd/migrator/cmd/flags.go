package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/oneconcern/migrator/pkg/dlogger"
	"github.com/oneconcern/migrator/pkg/ocfl"
	"github.com/oneconcern/migrator/pkg/upgrade"
)

// flag names, also used as configuration keys
const (
	flagSourceVersion     = "source-version"
	flagTargetVersion     = "target-version"
	flagSourceDir         = "source-dir"
	flagOutputDir         = "output-dir"
	flagThreads           = "threads"
	flagQueueSize         = "queue-size"
	flagDigestAlgorithm   = "digest-algorithm"
	flagFedoraUser        = "fedora-user"
	flagFedoraUserAddress = "fedora-user-address"
	flagDryRun            = "dry-run"
	flagLogLevel          = "log-level"
	flagLogFile           = "log-file"
	flagMetricsTextfile   = "metrics-textfile"
)

func addVersionFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagSourceVersion, "", "The version of the source repository, e.g. 4.7.5 or 5+")
	cmd.Flags().String(flagTargetVersion, "", "The version of the target repository, e.g. 5+ or 6+")
}

func addSourceDirFlag(cmd *cobra.Command) string {
	cmd.Flags().String(flagSourceDir, "", "The directory holding the repository export")
	return flagSourceDir
}

func addOutputDirFlag(cmd *cobra.Command) string {
	cmd.Flags().String(flagOutputDir, "", "The directory receiving the OCFL storage root, with its work and staging directories")
	return flagOutputDir
}

func addConcurrencyFlags(cmd *cobra.Command) {
	cmd.Flags().Int(flagThreads, 0, "The number of resources migrated concurrently. Defaults to the number of CPUs")
	cmd.Flags().Int(flagQueueSize, 0, "The number of discovered resources waiting for a worker. Defaults to twice the number of threads")
}

func addDigestAlgorithmFlag(cmd *cobra.Command) string {
	cmd.Flags().String(flagDigestAlgorithm, upgrade.DefaultDigestAlgorithm,
		"The digest algorithm addressing content. One of: "+strings.Join(ocfl.DigestAlgorithmNames(), ", "))
	return flagDigestAlgorithm
}

func addFedoraUserFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagFedoraUser, upgrade.DefaultFedoraUser, "The user recorded as the author of migrated versions")
	cmd.Flags().String(flagFedoraUserAddress, upgrade.DefaultFedoraUserAddress, "The address of the user recorded as the author of migrated versions")
}

func addDryRunFlag(cmd *cobra.Command) string {
	cmd.Flags().Bool(flagDryRun, false, "Only log the changes of an in-place upgrade")
	return flagDryRun
}

func addLogLevelFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().String(flagLogLevel, dlogger.LogLevelInfo, "The logging level. Levels by increasing order of verbosity: none, error, warn, info, debug")
	return flagLogLevel
}

func addLogFileFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().String(flagLogFile, "", "Write logs to this file instead of stderr")
	return flagLogFile
}

func addMetricsTextfileFlag(cmd *cobra.Command) string {
	cmd.Flags().String(flagMetricsTextfile, "", "Export run metrics to this file, in the prometheus text format")
	return flagMetricsTextfile
}

// bindFlags lets configuration files and environment variables provide flag values
func bindFlags(flags ...*pflag.FlagSet) {
	for _, fs := range flags {
		fs.VisitAll(func(f *pflag.Flag) {
			_ = viper.BindPFlag(f.Name, f)
		})
	}
}
