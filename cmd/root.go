// Package cmd implements the meetings command line.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cfg "github.com/maastricht-university/meeting-intelligence/config"
)

type rootOptions struct {
	configPath string
	logLevel   string
	conf       *cfg.Root
}

// NewRootCmd builds the command tree. Configuration is loaded once before
// any subcommand runs.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:           "meetings",
		Short:         "Process meeting recordings and answer questions about them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := cfg.Load(o.configPath)
			if err != nil {
				return err
			}
			if o.logLevel != "" {
				conf.Pipeline.LogLvl = o.logLevel
			}
			if err := conf.ConfigureLogging(); err != nil {
				return err
			}
			o.conf = conf
			logrus.WithFields(logrus.Fields{"pipeline": conf.Pipeline.Name, "version": conf.Pipeline.Version}).Debug("config loaded")
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "config file (default config/$CONFIG_ENV/config.yaml)")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "override pipeline.log_level")

	root.AddCommand(
		newProcessCmd(o),
		newSearchCmd(o),
		newContextCmd(o),
		newAskCmd(o),
		newStatsCmd(o),
		newLabelCmd(o),
		newListCmd(o),
		newExportCmd(o),
		newServeCmd(o),
		newConfigCmd(o),
	)
	return root
}

func Execute() error { return NewRootCmd().Execute() }

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func meetingArg(args []string) (string, error) {
	if !cfg.ValidMeetingID(args[0]) {
		return "", fmt.Errorf("invalid meeting id %q (letters, digits, _ and - only)", args[0])
	}
	return args[0], nil
}
