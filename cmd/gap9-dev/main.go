// Package main is used for the gap9-dev development environment tool.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/McbyX/Deeploy/internal/config"
	"github.com/McbyX/Deeploy/internal/session"
)

var version = "dev"

type cmdGlobal struct {
	flagImage         string
	flagWorkDir       string
	flagCacheDir      string
	flagSSHKey        string
	flagUSBIPHost     string
	flagVendorID      string
	flagProductID     string
	flagPlatform      string
	flagShell         string
	flagWatchInterval time.Duration
}

func (c *cmdGlobal) orchestrator() (*session.Orchestrator, error) {
	cfg, err := config.Resolve(config.Flags{
		Image:         c.flagImage,
		WorkDir:       c.flagWorkDir,
		CacheDir:      c.flagCacheDir,
		SSHKey:        c.flagSSHKey,
		USBIPHost:     c.flagUSBIPHost,
		VendorID:      c.flagVendorID,
		ProductID:     c.flagProductID,
		Platform:      c.flagPlatform,
		Shell:         c.flagShell,
		WatchInterval: c.flagWatchInterval,
	})
	if err != nil {
		return nil, err
	}

	return session.New(cfg), nil
}

func main() {
	// Prepare a logger.
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Global flags.
	globalCmd := cmdGlobal{}

	app := &cobra.Command{
		Use:               "gap9-dev",
		Short:             "GAP9 development environment orchestrator",
		Long:              "gap9-dev manages the GAP9 board development environment:\nthe USB/IP host server exporting the JTAG probe, the privileged\ndevice manager container and the interactive workspace container.",
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	app.PersistentFlags().StringVar(&globalCmd.flagImage, "image", "", "Container image for the workspace and device manager")
	app.PersistentFlags().StringVar(&globalCmd.flagWorkDir, "work-dir", "", "Source tree mounted into the workspace container")
	app.PersistentFlags().StringVar(&globalCmd.flagCacheDir, "cache-dir", "", "Cache directory for toolchain and build state")
	app.PersistentFlags().StringVar(&globalCmd.flagSSHKey, "ssh-key", "", "SSH key mounted read-only into the workspace")
	app.PersistentFlags().StringVar(&globalCmd.flagUSBIPHost, "usbip-host", "", "Address of the USB/IP host exporting the board")
	app.PersistentFlags().StringVar(&globalCmd.flagVendorID, "usb-vendor", "", "USB vendor ID of the JTAG probe")
	app.PersistentFlags().StringVar(&globalCmd.flagProductID, "usb-product", "", "USB product ID of the JTAG probe")
	app.PersistentFlags().StringVar(&globalCmd.flagPlatform, "platform", "", "Container platform")
	app.PersistentFlags().StringVar(&globalCmd.flagShell, "shell", "", "Shell started in the workspace container")
	app.PersistentFlags().DurationVar(&globalCmd.flagWatchInterval, "watch-interval", 0, "Re-attach check period for the watch command")

	app.AddCommand(
		cmdStart(&globalCmd),
		cmdStop(&globalCmd),
		cmdStartTmux(&globalCmd),
		cmdStartUSBIPHost(&globalCmd),
		cmdSetupUSBIPHost(&globalCmd),
		cmdStartGAP9(&globalCmd),
		cmdStartUSBIPDaemon(&globalCmd),
		cmdAttachUSBIP(&globalCmd),
		cmdDetachUSBIP(&globalCmd),
		cmdStopUSBIPDaemon(&globalCmd),
		cmdWatch(&globalCmd),
	)

	// Run the main command and handle errors.
	err := app.Execute()
	if err != nil {
		// Carry an interactive child's exit code through unchanged.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}

		slog.Error(err.Error())
		os.Exit(1)
	}
}

func cmdStart(global *cmdGlobal) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon, attach the board and open the workspace",
		RunE: func(_ *cobra.Command, _ []string) error {
			o, err := global.orchestrator()
			if err != nil {
				return err
			}

			return o.Start(context.Background())
		},
	}
}

func cmdStop(global *cmdGlobal) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Tear down the environment (always safe to run)",
		RunE: func(_ *cobra.Command, _ []string) error {
			o, err := global.orchestrator()
			if err != nil {
				return err
			}

			return o.Stop(context.Background())
		},
	}
}

func cmdStartTmux(global *cmdGlobal) *cobra.Command {
	return &cobra.Command{
		Use:   "start-tmux",
		Short: "Run host service, device attach and workspace in a tmux session",
		RunE: func(_ *cobra.Command, _ []string) error {
			o, err := global.orchestrator()
			if err != nil {
				return err
			}

			return o.StartTmux(context.Background())
		},
	}
}

func cmdStartUSBIPHost(global *cmdGlobal) *cobra.Command {
	return &cobra.Command{
		Use:   "start-usbip-host",
		Short: "Run the USB/IP host server in the foreground",
		RunE: func(_ *cobra.Command, _ []string) error {
			o, err := global.orchestrator()
			if err != nil {
				return err
			}

			ctx := context.Background()

			err = o.Host.EnsureSetup(ctx)
			if err != nil {
				return err
			}

			return o.Host.RunForeground(ctx)
		},
	}
}

func cmdSetupUSBIPHost(global *cmdGlobal) *cobra.Command {
	return &cobra.Command{
		Use:   "setup-usbip-host",
		Short: "Fetch the USB/IP host server and prepare its environment",
		RunE: func(_ *cobra.Command, _ []string) error {
			o, err := global.orchestrator()
			if err != nil {
				return err
			}

			return o.Host.EnsureSetup(context.Background())
		},
	}
}

func cmdStartGAP9(global *cmdGlobal) *cobra.Command {
	return &cobra.Command{
		Use:   "start-gap9",
		Short: "Start only the interactive workspace container",
		RunE: func(_ *cobra.Command, _ []string) error {
			o, err := global.orchestrator()
			if err != nil {
				return err
			}

			return o.Workspace.Start(context.Background())
		},
	}
}

func cmdStartUSBIPDaemon(global *cmdGlobal) *cobra.Command {
	return &cobra.Command{
		Use:   "start-usbip-daemon",
		Short: "Start the privileged device manager container",
		RunE: func(_ *cobra.Command, _ []string) error {
			o, err := global.orchestrator()
			if err != nil {
				return err
			}

			return o.Devices.EnsureDaemon(context.Background())
		},
	}
}

func cmdAttachUSBIP(global *cmdGlobal) *cobra.Command {
	return &cobra.Command{
		Use:   "attach-usbip",
		Short: "Attach the board's USB device from the USB/IP host",
		RunE: func(_ *cobra.Command, _ []string) error {
			o, err := global.orchestrator()
			if err != nil {
				return err
			}

			return o.Devices.Attach(context.Background())
		},
	}
}

func cmdDetachUSBIP(global *cmdGlobal) *cobra.Command {
	return &cobra.Command{
		Use:   "detach-usbip",
		Short: "Detach the board's USB device (warns if not attached)",
		RunE: func(_ *cobra.Command, _ []string) error {
			o, err := global.orchestrator()
			if err != nil {
				return err
			}

			o.Devices.Detach(context.Background())

			return nil
		},
	}
}

func cmdStopUSBIPDaemon(global *cmdGlobal) *cobra.Command {
	return &cobra.Command{
		Use:   "stop-usbip-daemon",
		Short: "Detach the device and stop the device manager container",
		RunE: func(_ *cobra.Command, _ []string) error {
			o, err := global.orchestrator()
			if err != nil {
				return err
			}

			ctx := context.Background()

			err = o.Devices.StopDaemon(ctx)
			if err != nil {
				// Teardown stays best-effort.
				slog.WarnContext(ctx, "Unable to stop device manager", "error", err)
			}

			return nil
		},
	}
}

func cmdWatch(global *cmdGlobal) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the board attached, re-attaching after host drops",
		RunE: func(_ *cobra.Command, _ []string) error {
			o, err := global.orchestrator()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return o.Watch(ctx)
		},
	}
}
