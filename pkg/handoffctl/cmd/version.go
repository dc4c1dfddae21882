package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/handoff-sh/handoff/pkg/handoffctl/output"
	"github.com/handoff-sh/handoff/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show handoffctl version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			info := version.GetBuildInfo()
			switch rt.Format() {
			case output.FormatJSON, output.FormatYAML:
				return output.WriteObject(rt.Writer(), rt.Format(), info)
			default:
				_, _ = fmt.Fprintf(rt.Writer(), "handoffctl %s (commit %s, built %s, %s %s)\n",
					info.Version, info.GitCommit, info.BuildDate, info.GoVersion, info.Platform)
				return nil
			}
		},
	}
}
