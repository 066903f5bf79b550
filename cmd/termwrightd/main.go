// Command termwrightd spawns a program under a PTY-backed session and
// serves the termwright daemon protocol over a Unix socket, either in
// the foreground or detached into the background.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fcoury/termwright/internal/config"
	"github.com/fcoury/termwright/internal/daemon"
	"github.com/fcoury/termwright/internal/launcher"
	"github.com/fcoury/termwright/internal/logx"
	"github.com/fcoury/termwright/internal/session"
	"github.com/fcoury/termwright/internal/socketdir"
)

var buildVersion = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		cols, rows   int
		socketPath   string
		configPath   string
		background   bool
		logPath      string
		daemonHidden bool
	)

	cmd := &cobra.Command{
		Use:     "termwrightd -- <command> [args...]",
		Short:   "Spawn a program under a PTY-backed automation session.",
		Version: buildVersion,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logx.Configure(cfg.LogLevel)

			if cols == 0 {
				cols = cfg.Cols
			}
			if rows == 0 {
				rows = cfg.Rows
			}
			if cols == 0 || rows == 0 {
				if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
					if cols == 0 {
						cols = w
					}
					if rows == 0 {
						rows = h
					}
				}
			}
			if cols == 0 {
				cols = config.DefaultCols
			}
			if rows == 0 {
				rows = config.DefaultRows
			}
			if socketPath == "" {
				socketPath = socketdir.DefaultPath()
			}

			if background && !daemonHidden {
				daemonArgs := append([]string{"--daemon", "--socket", socketPath,
					"--cols", fmt.Sprint(cols), "--rows", fmt.Sprint(rows)}, "--")
				daemonArgs = append(daemonArgs, args...)
				proc, err := launcher.Fork(launcher.Options{Args: daemonArgs, SocketPath: socketPath, LogPath: logPath})
				if err != nil {
					return err
				}
				fmt.Printf("daemon started, pid=%d socket=%s\n", proc.Pid, socketPath)
				return nil
			}

			return runForeground(cols, rows, socketPath, args)
		},
	}

	cmd.Flags().IntVar(&cols, "cols", 0, "terminal columns (default from config, else 80)")
	cmd.Flags().IntVar(&rows, "rows", 0, "terminal rows (default from config, else 24)")
	cmd.Flags().StringVar(&socketPath, "socket", "", "control socket path (default: $TMPDIR/termwright-<pid>.sock)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to an ambient daemon config YAML file")
	cmd.Flags().BoolVar(&background, "background", false, "fork the daemon into the background and return immediately")
	cmd.Flags().StringVar(&logPath, "log-file", "", "redirect the background daemon's stdout/stderr to this file")
	cmd.Flags().BoolVar(&daemonHidden, "daemon", false, "internal: run as the re-exec'd background daemon process")
	cmd.Flags().MarkHidden("daemon")

	return cmd
}

func runForeground(cols, rows int, socketPath string, args []string) error {
	command, cmdArgs := args[0], args[1:]

	sess, err := session.Spawn(command, cmdArgs, session.Options{Cols: cols, Rows: rows})
	if err != nil {
		return err
	}

	d, err := daemon.Listen(socketPath, sess, logx.Logger)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = d.Serve(ctx)
	sess.Kill()
	if err == daemon.ErrClosing || err == nil {
		return nil
	}
	return err
}
