// Package main is the lspdial command: it connects to a running language
// server, performs the initialize handshake, prints the server's
// capabilities, and then streams server notifications until interrupted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lspwire/lspwire/internal/client"
	"github.com/lspwire/lspwire/internal/config"
	"github.com/lspwire/lspwire/internal/protocol"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  string
		target      string
		rootPath    string
		timeout     time.Duration
		logLevel    string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&target, "target", "", "Server address: tcp:host:port, unix:/path, or ws:// URL")
	flag.StringVar(&target, "t", "", "Server address (shorthand)")
	flag.StringVar(&rootPath, "root", "", "Workspace root directory")
	flag.DurationVar(&timeout, "timeout", 0, "Per-request timeout (overrides config)")
	flag.StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, off)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "lspdial - connect to a language server and watch its traffic\n\n")
		fmt.Fprintf(os.Stderr, "Usage: lspdial [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lspdial -t tcp:localhost:9999 -root ./project\n")
		fmt.Fprintf(os.Stderr, "  lspdial -t unix:/tmp/gopls.sock\n")
		fmt.Fprintf(os.Stderr, "  lspdial -c lspdial.toml\n")
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("lspdial %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		return 0
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	// Flags win over file and env.
	if target != "" {
		cfg.Target = target
	}
	if rootPath != "" {
		cfg.RootPath = rootPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []client.Option{
		client.WithLogger(log),
		client.WithSink(printingSink(log)),
	}
	if timeout > 0 {
		opts = append(opts, client.WithRequestTimeout(timeout))
	} else if cfg.Timeout() > 0 {
		opts = append(opts, client.WithRequestTimeout(cfg.Timeout()))
	}

	c, err := client.Dial(ctx, cfg.Target, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: connecting to %s: %v\n", cfg.Target, err)
		return 1
	}
	defer c.Close()

	initOpts := protocol.InitializeOptions{
		ClientName:    cfg.ClientName,
		ClientVersion: cfg.ClientVersion,
	}
	if cfg.RootPath != "" {
		initOpts.RootURI = protocol.FilePathToURI(cfg.RootPath)
		initOpts.WorkspaceFolders = []protocol.WorkspaceFolder{
			protocol.WorkspaceFolderFromPath(cfg.RootPath),
		}
	}

	result, err := c.Initialize(ctx, initOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: initialize failed: %v\n", err)
		return 1
	}
	if err := c.Initialized(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	printCapabilities(result)
	log.Info().Str("target", cfg.Target).Msg("connected; streaming server traffic (ctrl-c to quit)")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	return 0
}

// newLogger builds a console logger at the requested level.
func newLogger(level string) (zerolog.Logger, error) {
	if level == "off" {
		return zerolog.Nop(), nil
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q", level)
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// printingSink logs every server-initiated message as it arrives.
func printingSink(log zerolog.Logger) client.SinkFuncs {
	return client.SinkFuncs{
		OnNotification: func(method string, params json.RawMessage) {
			log.Info().Str("method", method).RawJSON("params", nonEmpty(params)).Msg("notification")
		},
		OnServerRequest: func(req *protocol.Request) {
			log.Info().Stringer("id", req.ID).Str("method", req.Method).
				RawJSON("params", nonEmpty(req.Params)).Msg("server request")
		},
	}
}

func nonEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

// printCapabilities pretty-prints the initialize result to stdout.
func printCapabilities(result json.RawMessage) {
	var buf map[string]any
	if err := json.Unmarshal(result, &buf); err != nil {
		fmt.Println(string(result))
		return
	}
	pretty, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		fmt.Println(string(result))
		return
	}
	fmt.Println(string(pretty))
}
