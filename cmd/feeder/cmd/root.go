// Package cmd implements the feeder CLI commands.
package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	feeder "github.com/viruscoding/log-feeder"
)

// Build info set from main.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo sets the version info from build-time ldflags.
func SetVersionInfo(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
}

type rootOptions struct {
	cfgFile  string
	envFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "feeder",
		Short: "feeder generates synthetic logs and delivers them to a transport",
		Long: "feeder generates synthetic log records and sends them through one of its\n" +
			"transports (file, message queues, UDP, search index, log SaaS endpoints,\n" +
			"document store), then reports how many records arrived.",
		SilenceUsage: true,
		// no Run, prints help
	}
	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "YAML run configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with FEEDER_* overrides (ignored when missing)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.Version = buildVersion
	root.SetVersionTemplate(fmt.Sprintf("feeder version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))

	root.AddCommand(newSendCmd(opts))
	root.AddCommand(newKindsCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// setupLogger configures the logger shared with the transports. Logs go to
// w so that standard output stays free for the stream transport.
func setupLogger(level string, w io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	feeder.SetLogger(l)
	return l, nil
}
