package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	service "github.com/okian/crmflow/internal/app"
	"github.com/okian/crmflow/internal/config"
	"github.com/okian/crmflow/internal/domain/model"
	"github.com/okian/crmflow/internal/domain/pipeline"
	"github.com/okian/crmflow/internal/domain/rules"
	"github.com/okian/crmflow/pkg/logger"
)

var (
	errProcessFailed = errors.New("payload failed processing")
	errNotObject     = errors.New("payload must be a JSON object")
)

const defaultListLimit = 50

type options struct {
	configPath string
	logLevel   string
	rulesPath  string
	limit      int
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "crmflowctl",
		Short: "Inspect and exercise the crmflow pipeline",
		Long: `crmflowctl works on the same configuration as the crmflow server.

Example:
  crmflowctl process payload.json
  crmflowctl rules validate rules.yaml
  crmflowctl rules show --config crmflow.yaml
  crmflowctl deadletter list --limit 10
  crmflowctl deadletter show deadletter-2025-04-05T06-07-08-009Z-<id>.json`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(); err != nil {
				return err
			}
			logger.SetOutput(cmd.ErrOrStderr())
			if opts.configPath != "" {
				if err := os.Setenv(config.EnvFile, opts.configPath); err != nil {
					return err
				}
			}
			return logger.SetLevelString(opts.logLevel)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (default $"+config.EnvFile+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(newProcessCmd(opts), newRulesCmd(opts), newDeadLetterCmd(opts))
	return root
}

func newProcessCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <payload.json|->",
		Short: "Run a payload through the pipeline without touching the CRM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openRules(cmd, opts)
			if err != nil {
				return err
			}
			payload, err := readPayload(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			res := pipeline.New(store).Process(payload)
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("%w: %s", errProcessFailed, res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.rulesPath, "rules", "r", "", "rules file (default: rules_path from the configuration)")
	return cmd
}

func newRulesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Validate and show rule sets",
	}

	validate := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a rules file compiles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, warnings, err := rules.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, w := range warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			fmt.Fprintf(out, "%s: ok\n", args[0])
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the active rule set as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openRules(cmd, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"path":    store.Path(),
				"builtIn": store.Path() == "",
				"rules":   store.Current(),
			})
		},
	}
	show.Flags().StringVarP(&opts.rulesPath, "rules", "r", "", "rules file (default: rules_path from the configuration)")

	cmd.AddCommand(validate, show)
	return cmd
}

func newDeadLetterCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deadletter",
		Aliases: []string{"dl"},
		Short:   "Inspect stored dead letters",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List dead letters, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			st, err := service.OpenDeadLetters(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			names, err := st.List(cmd.Context(), opts.limit)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	list.Flags().IntVarP(&opts.limit, "limit", "n", defaultListLimit, "maximum number of names, 0 for all")

	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Print one dead letter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			st, err := service.OpenDeadLetters(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			l, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), l)
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func openRules(cmd *cobra.Command, opts *options) (*rules.Store, error) {
	path := opts.rulesPath
	if path == "" {
		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return nil, err
		}
		path = cfg.RulesPath
	}
	store, warnings, err := rules.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	return store, nil
}

func readPayload(stdin io.Reader, name string) (model.Payload, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	var payload model.Payload
	if err := json.Unmarshal(data, &payload); err != nil || payload == nil {
		return nil, errNotObject
	}
	return payload, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
