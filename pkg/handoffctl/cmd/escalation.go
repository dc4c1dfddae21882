package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/handoff-sh/handoff/pkg/handoffctl/output"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending escalations, most urgent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			records, err := apiClient.Escalations().ListPending(context.Background())
			if err != nil {
				return err
			}
			switch rt.Format() {
			case output.FormatJSON, output.FormatYAML:
				return output.WriteObject(rt.Writer(), rt.Format(), records)
			case output.FormatTable:
				output.WriteEscalationTable(rt.Writer(), records)
				return nil
			default:
				return fmt.Errorf("unknown output format: %s", rt.Format())
			}
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a single escalation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			rec, err := apiClient.Escalations().Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			format := rt.Format()
			if format == output.FormatTable {
				format = output.FormatYAML
			}
			return output.WriteObject(rt.Writer(), format, rec)
		},
	}
}

func newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve ID RESPONSE...",
		Short: "Submit the human decision for a pending escalation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			response := strings.Join(args[1:], " ")
			rec, err := apiClient.Escalations().Resolve(context.Background(), args[0], response)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Escalation %s resolved\n", rec.ID)
			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Withdraw a pending escalation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}
			if err := apiClient.Escalations().Delete(context.Background(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Escalation %s deleted\n", args[0])
			return nil
		},
	}
}
