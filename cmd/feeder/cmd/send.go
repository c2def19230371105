package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	feeder "github.com/viruscoding/log-feeder"
	"github.com/viruscoding/log-feeder/internal/generator"
)

type sendOptions struct {
	transport string
	records   int
	format    string
	retries   int
	backoff   time.Duration
	set       map[string]string
}

func newSendCmd(root *rootOptions) *cobra.Command {
	opts := &sendOptions{}
	c := &cobra.Command{
		Use:   "send",
		Short: "Generate records and deliver them through a transport",
		Long: "Generate synthetic records, deliver them through the selected transport and\n" +
			"print the delivery report of transports that can verify what arrived.",
		Example: "  feeder send --transport file --records 1000 --set file=/tmp/feed.log\n" +
			"  feeder send --config feeder.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSend(cmd, root, opts)
		},
	}
	c.Flags().StringVarP(&opts.transport, "transport", "t", "", "transport name (overrides config)")
	c.Flags().IntVarP(&opts.records, "records", "n", 0, "number of records to send (overrides config)")
	c.Flags().StringVar(&opts.format, "format", "", "record format: text or json (overrides config)")
	c.Flags().IntVar(&opts.retries, "retries", 0, "send attempts per record (overrides config)")
	c.Flags().DurationVar(&opts.backoff, "backoff", 0, "initial backoff between send attempts (overrides config)")
	c.Flags().StringToStringVar(&opts.set, "set", nil, "transport option key=value, repeatable")
	return c
}

func runSend(cmd *cobra.Command, root *rootOptions, opts *sendOptions) error {
	log, err := setupLogger(root.logLevel, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("feeder send: %w", err)
	}

	cfg, err := loadRunConfig(root.cfgFile, root.envFile)
	if err != nil {
		return fmt.Errorf("feeder send: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("transport") {
		cfg.Transport = opts.transport
	}
	if flags.Changed("records") {
		cfg.Records = opts.records
	}
	if flags.Changed("format") {
		cfg.Format = opts.format
	}
	if flags.Changed("retries") {
		cfg.Retries = opts.retries
	}
	if flags.Changed("backoff") {
		cfg.Backoff = opts.backoff
	}
	for k, v := range opts.set {
		cfg.Options[k] = v
	}

	registry := feeder.NewRegistry()
	transport, err := registry.Build(cfg.Transport, cfg.Options)
	if err != nil {
		return fmt.Errorf("feeder send: %w", err)
	}

	gen, err := generator.New(generator.Options{
		Count:  cfg.Records,
		Format: generator.Format(cfg.Format),
	})
	if err != nil {
		return fmt.Errorf("feeder send: %w", err)
	}

	entry := log.WithField("transport", cfg.Transport)
	entry.WithField("records", cfg.Records).Info("delivery started")
	res, err := feeder.Deliver(cmd.Context(), transport, gen.Records(),
		feeder.WithRetry(cfg.Retries, cfg.Backoff),
		feeder.WithDriverLogger(entry),
	)
	if err != nil {
		return fmt.Errorf("feeder send: %w", err)
	}

	printReport(cmd.OutOrStdout(), cfg.Transport, res)
	return nil
}
