package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	httpadapter "github.com/scttfrdmn/decisionkit/decisionkit-go/adapter/http"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/config"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

type rootOptions struct {
	configFile string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "decisionkit",
		Short: "Business intelligence assistant for management questions",
		Long: `decisionkit classifies management questions by business domain and
answers them with a specialist agent that reads the marketing, sales,
logistics and collection datasets.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is .env when present)")

	root.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newClassifyCmd(opts),
		newRefreshCmd(opts),
		newStatusCmd(opts),
	)
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		host  string
		port  int
		debug bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, buildOptions{agents: true, telemetry: true})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			a.warmData(ctx)
			schedulerDone := a.data.StartScheduler(ctx, cfg.RefreshEvery())

			srv := httpadapter.NewServer(a.router, a.data, httpadapter.Options{
				Addr:           cfg.Addr(),
				CORSOrigins:    cfg.CORSOriginList(),
				RequestTimeout: cfg.RequestTimeout,
				Debug:          cfg.Debug,
				Gatherer:       a.registry,
				Audit:          a.audit,
				Logger:         a.logger,
			})
			err = srv.Run(ctx)
			stop()
			<-schedulerDone
			return err
		},
	}
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "listen host")
	cmd.Flags().IntVar(&port, "port", 5000, "listen port")
	cmd.Flags().BoolVar(&debug, "debug", false, "debug logging and error details")
	return cmd
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg, buildOptions{agents: true})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			result, err := a.router.ProcessQuery(ctx, strings.Join(args, " "), conversationID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "[%s] %s\n", result.Domain, result.Response)
			fmt.Fprintf(out, "conversation: %s\n", result.ConversationID)
			return result.Err
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "continue an existing conversation")
	return cmd
}

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <question>",
		Short: "Show how a question would be routed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg, buildOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.Background())
			return writeIndented(cmd.OutOrStdout(), a.router.Classifier().Analyze(strings.Join(args, " ")))
		},
	}
}

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "refresh [domain]",
		Short:     "Refresh one or all datasets and update the cache",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"marketing", "sales", "logistics", "collection"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg, buildOptions{})
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			if len(args) == 0 {
				err := a.data.RefreshAll(ctx)
				a.audit.LogDataRefresh(ctx, "", err)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Data refreshed successfully")
				return nil
			}

			domain, err := decisionkit.ParseDomain(args[0])
			if err != nil {
				return err
			}
			ds, err := a.data.Refresh(ctx, domain)
			a.audit.LogDataRefresh(ctx, string(domain), err)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s data refreshed at %s\n", domain, ds.LastUpdated())
			return nil
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show agents and data freshness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg, buildOptions{agents: true})
			if err != nil {
				return err
			}
			defer a.close(context.Background())
			a.data.LoadCached(ctx)

			status := a.router.SystemStatus(ctx)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "AGENT\tDOMAIN\tAVAILABLE")
			for _, agent := range status.Agents {
				fmt.Fprintf(w, "%s\t%s\t%t\n", agent.Name, agent.Domain, agent.Available)
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "DOMAIN\tLAST UPDATED")
			for _, domain := range decisionkit.AllDomains() {
				fmt.Fprintf(w, "%s\t%s\n", domain, status.DataFreshness[string(domain)])
			}
			return w.Flush()
		},
	}
}

func writeIndented(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
