package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/common"
	"github.com/jamesbringetto/atlassian-bug-dashboard/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyFlagOverrides(cmd)
		ctx := cmd.Context()

		a, err := buildApp(ctx, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.settings.ServerAddr
		}

		handler := server.New(a.store, a.reconciler,
			a.settings.TriageAvailable(), a.settings.GitHubAvailable())

		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("%s %s (project %s)\n", cyan("Listening on"), addr, a.settings.JiraProject)
		if !a.settings.TriageAvailable() {
			fmt.Println(color.YellowString("Triage disabled: no Anthropic API key configured"))
		}
		if !a.settings.GitHubAvailable() {
			fmt.Println(color.YellowString("GitHub sync disabled: owner/repo/token not configured"))
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-stop:
			common.Logger().Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
