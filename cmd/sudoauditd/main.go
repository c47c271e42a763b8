// Command sudoauditd runs the network audit log server: it accepts
// client connections, drives each through the session state machine in
// internal/session, and persists or relays the resulting audit trail
// per the configuration file given with -f.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mustafacco7/sudoauditd/internal/config"
	"github.com/mustafacco7/sudoauditd/internal/server"
	"github.com/mustafacco7/sudoauditd/pkg/logger"
	loglvl "github.com/mustafacco7/sudoauditd/pkg/logger/level"
)

var version = "dev"

type flags struct {
	configFile  string
	noFork      bool
	randomDrop  float64
	showVersion bool
}

func main() {
	f := &flags{}

	root := &cobra.Command{
		Use:   "sudoauditd",
		Short: "Network audit log server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.showVersion {
				fmt.Println("sudoauditd " + version)
				return nil
			}
			return run(f)
		},
		SilenceUsage: true,
	}

	root.Flags().StringVarP(&f.configFile, "file", "f", "/etc/sudoauditd/sudoauditd.yaml", "path to configuration file")
	root.Flags().BoolVarP(&f.noFork, "no-fork", "n", false, "run in the foreground")
	root.Flags().Float64VarP(&f.randomDrop, "random-drop", "R", 0, "override the configured I/O-log drop percentage, for fault injection testing")
	root.Flags().BoolVarP(&f.showVersion, "version", "V", false, "print version and exit")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(f *flags) error {
	cfgFile, err := config.Load(f.configFile)
	if err != nil {
		return err
	}

	log := buildLogger(cfgFile.Log)
	defer log.Close()

	if cfgFile.PidFile != "" {
		if err := writePidFile(cfgFile.PidFile); err != nil {
			log.Entry("main").WithError(err).Warn("could not write pid file")
		}
		defer os.Remove(cfgFile.PidFile)
	}

	srvCfg, err := cfgFile.ToServerConfig()
	if err != nil {
		return err
	}
	if f.randomDrop > 0 {
		srvCfg.RandomDropProbability = f.randomDrop / 100
	}

	srv := server.New(srvCfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	signal.Ignore(syscall.SIGPIPE)

	go func() {
		for s := range sig {
			switch s {
			case syscall.SIGHUP:
				log.Entry("main").Info("reload requested")
				fresh, err := config.Load(f.configFile)
				if err != nil {
					log.Entry("main").WithError(err).Error("reload failed, keeping running configuration")
					continue
				}
				reloadCfg, err := fresh.ToServerConfig()
				if err != nil {
					log.Entry("main").WithError(err).Error("reload failed, keeping running configuration")
					continue
				}
				if err := srv.Reload(ctx, reloadCfg); err != nil {
					log.Entry("main").WithError(err).Error("reload failed")
				}
			case syscall.SIGINT, syscall.SIGTERM:
				log.Entry("main").Info("shutdown requested")
				srv.Shutdown()
				cancel()
				return
			}
		}
	}()

	return srv.Run(ctx)
}

func buildLogger(cfg config.Log) logger.Logger {
	log := logger.New()
	lvl := loglvl.Parse(cfg.Level)
	log.SetLevel(lvl)

	if cfg.Stdout {
		logger.AddStdout(log, lvl)
	}
	if cfg.Stderr {
		logger.AddStderr(log, lvl)
	}
	if cfg.File != "" {
		mode := cfg.FileMode
		if mode == 0 {
			mode = 0600
		}
		if err := logger.AddFile(log, cfg.File, mode, lvl); err != nil {
			fmt.Fprintf(os.Stderr, "sudoauditd: could not attach file log hook: %v\n", err)
		}
	}
	if cfg.Syslog != "" {
		network, addr := splitSyslogTarget(cfg.Syslog)
		if err := logger.AddSyslog(log, network, addr, cfg.SyslogTag, lvl); err != nil {
			fmt.Fprintf(os.Stderr, "sudoauditd: could not attach syslog hook: %v\n", err)
		}
	}

	return log
}

func splitSyslogTarget(s string) (network, addr string) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' && i+2 < len(s) && s[i+1] == '/' && s[i+2] == '/' {
			return s[:i], s[i+3:]
		}
	}
	return "udp", s
}

func writePidFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}
