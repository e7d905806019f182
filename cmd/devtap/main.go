// devtap ships structured log output to a running devtools server. It
// reads stdin and forwards every line as one log record, which makes it
// both a smoke-test tool for servers and a reference for embedding the
// client in an application.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/codefionn/devtap/internal/config"
	"github.com/codefionn/devtap/internal/devtools"
	"github.com/codefionn/devtap/internal/logger"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.DefaultPath(), "path to the config file")
	host := flag.String("host", "", "devtools server host (overrides config)")
	port := flag.Int("port", 0, "devtools server port (overrides config)")
	logLevel := flag.String("log-level", "", "diagnostic log level: debug, info, warn, error, none")
	logFile := flag.String("log-file", "", "diagnostic log file (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}

	var diag *logger.Logger
	if cfg.LogFile != "" {
		diag, err = logger.New(logger.ParseLevel(cfg.LogLevel), cfg.LogFile, "devtap")
		if err != nil {
			return err
		}
		defer diag.Close()
	}

	clientCfg := devtools.DefaultConfig()
	clientCfg.Host = cfg.Host
	clientCfg.Port = cfg.Port
	clientCfg.QueueSize = cfg.QueueSize
	clientCfg.Logger = diag

	client := devtools.NewClientWithConfig(clientCfg)
	client.SetConnectionLostCallback(func(err error) {
		fmt.Fprintln(os.Stderr, warnStyle.Render(fmt.Sprintf("connection lost: %v", err)))
	})

	if err := client.Connect(context.Background()); err != nil {
		return err
	}
	defer client.Disconnect()

	fmt.Fprintln(os.Stderr, okStyle.Render(fmt.Sprintf("connected to %s", client.URL())))
	fmt.Fprintln(os.Stderr, dimStyle.Render("reading stdin, one log record per line (^D to finish)"))

	scanner := bufio.NewScanner(os.Stdin)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		client.LogAt("stdin", lineNo, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}

	fmt.Fprintln(os.Stderr, dimStyle.Render(
		fmt.Sprintf("shipped %d lines, %d dropped under backpressure", lineNo, client.Spillover())))
	return nil
}
