package cmd

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/handoff-sh/handoff/pkg/client"
	"github.com/handoff-sh/handoff/pkg/handoffctl/output"
	"github.com/handoff-sh/handoff/pkg/version"
)

const defaultServer = "http://localhost:8080"

type Config struct {
	OutputWriter io.Writer
}

type runtimeState struct {
	server       string
	outputFormat string
	caFile       string
	insecure     bool
	writer       io.Writer
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{OutputWriter: os.Stdout}
}

// NewRootCommand builds the handoffctl command tree. The broker address
// comes from --server or HANDOFF_SERVER.
func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{writer: cfg.OutputWriter}

	root := &cobra.Command{
		Use:           "handoffctl",
		Short:         "Operator CLI for the handoff escalation broker",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.server == "" {
				rt.server = os.Getenv("HANDOFF_SERVER")
			}
			if rt.server == "" {
				rt.server = defaultServer
			}
			if rt.outputFormat == "" {
				rt.outputFormat = string(output.FormatTable)
			}
		},
	}

	root.PersistentFlags().StringVar(&rt.server, "server", "", "Broker base URL (default HANDOFF_SERVER or "+defaultServer+")")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, json, yaml")
	root.PersistentFlags().StringVar(&rt.caFile, "ca-file", "", "CA bundle for the broker's TLS certificate")
	root.PersistentFlags().BoolVar(&rt.insecure, "insecure-skip-tls-verify", false, "Skip TLS certificate verification")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		newListCommand(),
		newGetCommand(),
		newResolveCommand(),
		newDeleteCommand(),
		newWatchCommand(),
		NewVersionCommand(),
	)
	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("command runtime not initialized")
	}
	return rt, nil
}

func buildClient(rt *runtimeState) (*client.Client, error) {
	opts := []client.Option{
		client.WithServer(rt.server),
		client.WithUserAgent(version.UserAgent("handoffctl")),
	}
	if rt.caFile != "" || rt.insecure {
		opts = append(opts, client.WithTLSConfig(rt.caFile, rt.insecure))
	}
	return client.New(opts...)
}

func (rt *runtimeState) Writer() io.Writer {
	return rt.writer
}

func (rt *runtimeState) Format() output.Format {
	return output.Format(rt.outputFormat)
}
