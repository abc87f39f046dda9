package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newServeCommand(_ *rootOptions) *cobra.Command {
	var noMonitor bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer host commands read line by line from stdin",
		Long: `serve reads one command per line in the form "COMMAND|arg|arg" and
writes one response per line, e.g. ["ok", ...] or ["error", "..."].`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if !noMonitor {
				if err := a.monitor.Start(); err != nil {
					a.logger.Warn("Status monitor not started", "error", err)
				}
			}
			a.logger.Info("Serving host commands", "version", version)

			out := cmd.OutOrStdout()
			sc := bufio.NewScanner(cmd.InOrStdin())
			sc.Buffer(make([]byte, 64*1024), 1024*1024)
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				if line == "" {
					continue
				}
				if _, err := fmt.Fprintln(out, a.bridge.Call(line)); err != nil {
					return err
				}
			}
			return sc.Err()
		},
	}

	cmd.Flags().BoolVar(&noMonitor, "no-monitor", false, "do not write the periodic status file")
	return cmd
}
