// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/oneconcern/migrator/pkg/dlogger"
	"github.com/oneconcern/migrator/pkg/metrics"
	"github.com/oneconcern/migrator/pkg/upgrade"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade a repository from a version to the next",
	Long: `Upgrade a repository from a source version to a target version.

Supported upgrades:
	* 4.7.5 -> 5+ renames the technical metadata of all binaries, in place
	* 5+ -> 6+ recreates all resources of an export as objects of a new OCFL storage root

The command exits with status 1 when the configuration is invalid or the upgrade is not supported,
and with status 2 when some resources could not be upgraded. Failed resources are listed, so that
they may be investigated and migrated again.
`,
	Example: `# Migrate an export to OCFL, using 8 workers
% migrator upgrade --source-version 5+ --target-version 6+ --source-dir ./export --output-dir ./fcrepo-home --threads 8

# Check which properties an in-place upgrade would rename
% migrator upgrade --source-version 4.7.5 --target-version 5+ --source-dir ./export --dry-run`,
	Run: func(cmd *cobra.Command, args []string) {
		osExit(runUpgrade(cmd.Context()))
	},
}

// upgradeConfig collects the configuration from flags, environment and configuration file
func upgradeConfig() (upgrade.Config, error) {
	transition, err := upgrade.ParseTransition(viper.GetString(flagSourceVersion), viper.GetString(flagTargetVersion))
	if err != nil {
		return upgrade.Config{}, err
	}
	return upgrade.Config{
		SourceVersion:     transition.Source,
		TargetVersion:     transition.Target,
		SourceDir:         viper.GetString(flagSourceDir),
		OutputDir:         viper.GetString(flagOutputDir),
		Threads:           viper.GetInt(flagThreads),
		QueueSize:         viper.GetInt(flagQueueSize),
		DigestAlgorithm:   viper.GetString(flagDigestAlgorithm),
		FedoraUser:        viper.GetString(flagFedoraUser),
		FedoraUserAddress: viper.GetString(flagFedoraUserAddress),
		DryRun:            viper.GetBool(flagDryRun),
	}, nil
}

func runUpgrade(parent context.Context) int {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := upgradeConfig()
	if err != nil {
		return failWithCodef(exitConfiguration, "invalid configuration: %v", err)
	}

	logOpts := []dlogger.Option{dlogger.WithConsole()}
	if logFile := viper.GetString(flagLogFile); logFile != "" {
		logOpts = append(logOpts, dlogger.WithOutputPaths(logFile))
	}
	logger, err := dlogger.GetLogger(viper.GetString(flagLogLevel), logOpts...)
	if err != nil {
		return failWithCodef(exitConfiguration, "invalid log level: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	textfile := viper.GetString(flagMetricsTextfile)
	var m *metrics.Metrics
	if textfile != "" {
		m = metrics.New()
	}

	manager, err := upgrade.Create(cfg, upgrade.Dependencies{Logger: logger, Metrics: m})
	if err != nil {
		return failWithCodef(exitConfiguration, "cannot upgrade: %v", err)
	}

	ctx, stop := registerSignalHandler(parent, logger)
	defer stop()
	res, runErr := manager.Run(ctx)

	infoLogger.Println(res.Summary())
	if len(res.Aggregate.Failures) > 0 {
		infoLogger.Println(color.YellowString("failed resources:"))
		for _, f := range res.Aggregate.Failures {
			infoLogger.Printf("  %s: %v", color.RedString(f.ResourceID), f.Err)
		}
	}
	if textfile != "" {
		if err = m.WriteTextfile(textfile); err != nil {
			logger.Warn("could not export metrics", zap.String("textfile", textfile), zap.Error(err))
		}
	}

	switch {
	case runErr != nil:
		return failWithCodef(exitPartial, "upgrade %v did not complete: %v", manager.Path(), runErr)
	case res.Aggregate.Failed > 0:
		return failWithCodef(exitPartial, "upgrade %v failed for %d resources: %s",
			manager.Path(), res.Aggregate.Failed, strings.Join(res.Aggregate.FailedIDs(), ", "))
	default:
		return exitOK
	}
}

func init() {
	addVersionFlags(upgradeCmd)
	addSourceDirFlag(upgradeCmd)
	addOutputDirFlag(upgradeCmd)
	addConcurrencyFlags(upgradeCmd)
	addDigestAlgorithmFlag(upgradeCmd)
	addFedoraUserFlags(upgradeCmd)
	addDryRunFlag(upgradeCmd)
	addMetricsTextfileFlag(upgradeCmd)
	bindFlags(upgradeCmd.Flags())

	addLogLevelFlag(rootCmd)
	addLogFileFlag(rootCmd)
	bindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(upgradeCmd)
}
