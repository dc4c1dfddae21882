package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/handoff-sh/handoff/pkg/broker"
	"github.com/handoff-sh/handoff/pkg/handoffctl/output"
)

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream escalation lifecycle events until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			apiClient, err := buildClient(rt)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stream, err := apiClient.OperatorStream(ctx)
			if err != nil {
				return err
			}
			defer stream.Close()

			for {
				select {
				case ev, ok := <-stream.Events():
					if !ok {
						_, _ = fmt.Fprintln(rt.Writer(), "Stream closed by broker")
						return nil
					}
					if err := printEvent(rt, ev); err != nil {
						return err
					}
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
}

func printEvent(rt *runtimeState, ev broker.Event) error {
	if rt.Format() == output.FormatJSON || rt.Format() == output.FormatYAML {
		return output.WriteObject(rt.Writer(), rt.Format(), ev)
	}

	switch ev.Type {
	case broker.EventInitialState:
		_, _ = fmt.Fprintf(rt.Writer(), "-- %d pending escalation(s) --\n", len(ev.Escalations))
		output.WriteEscalationTable(rt.Writer(), ev.Escalations)
	case broker.EventNewEscalation:
		if ev.Escalation != nil {
			_, _ = fmt.Fprintf(rt.Writer(), "NEW      %s  [%s/%s]  %s\n",
				ev.Escalation.ID, ev.Escalation.Urgency, ev.Escalation.Category, ev.Escalation.Reason)
		}
	case broker.EventEscalationResolved:
		if ev.Escalation != nil {
			_, _ = fmt.Fprintf(rt.Writer(), "RESOLVED %s  %s\n", ev.Escalation.ID, ev.Escalation.HumanResponse)
		}
	case broker.EventEscalationDeleted:
		_, _ = fmt.Fprintf(rt.Writer(), "DELETED  %s\n", ev.ID)
	}
	return nil
}
