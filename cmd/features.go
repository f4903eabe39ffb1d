package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fgrehm/dcvet/internal/config"
	"github.com/fgrehm/dcvet/internal/inspect"
)

var (
	featuresFormat  string
	featuresOffline bool
)

var featuresCmd = &cobra.Command{
	Use:   "features [PATH]",
	Short: "Resolve features and show their install order",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rc != nil && !cmd.Flags().Changed("offline") {
			featuresOffline = rc.Offline
		}
		featuresFormat = rcFormat(cmd, featuresFormat, "text", "json")
		if err := checkFormat(featuresFormat, "text", "json"); err != nil {
			return err
		}

		target, err := resolveTarget(args)
		if err != nil {
			return err
		}
		doc, err := config.Load(target.ConfigPath)
		if err != nil {
			return err
		}
		if doc.Config == nil {
			return fmt.Errorf("%s: %w", target.ConfigPath, doc.DecodeErr)
		}

		resolver, err := newResolver(featuresOffline)
		if err != nil {
			return err
		}
		features, orderErr := inspect.ResolveFeatures(cmd.Context(), doc.Config, resolver)
		if err := cmd.Context().Err(); err != nil {
			return err
		}

		if featuresFormat == "json" {
			out := struct {
				Features []inspect.Feature `json:"features"`
				Error    string            `json:"error,omitempty"`
			}{Features: features}
			if out.Features == nil {
				out.Features = []inspect.Feature{}
			}
			if orderErr != nil {
				out.Error = orderErr.Error()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
		} else {
			u := newUI(cmd)
			if len(features) == 0 {
				u.Dim("no features")
				return nil
			}
			inspect.PrintFeatures(u, features)
			if orderErr != nil {
				u.Warn(orderErr.Error())
			}
		}

		for _, f := range features {
			if f.Error != "" {
				return errFindings
			}
		}
		if orderErr != nil {
			return errFindings
		}
		return nil
	},
}

func init() {
	featuresCmd.Flags().StringVar(&featuresFormat, "format", "text", "output format: text or json")
	featuresCmd.Flags().BoolVar(&featuresOffline, "offline", false, "do not download features; use cached ones only")
}
