package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-module-shell/internal/config"
	"github.com/jrsteele09/go-module-shell/server"
	"github.com/jrsteele09/go-module-shell/shell"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	overrides, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	for {
		if err := run(overrides); err != nil {
			log.Error().Err(err).Msg("Error running shell")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Shell stopped")
}

// parseFlags maps command-line flags onto the environment keys the
// config reads, so flags win over the process environment.
func parseFlags(args []string) (config.MapEnv, error) {
	flagSet := pflag.NewFlagSet("shell", pflag.ContinueOnError)
	port := flagSet.StringP("port", "p", "", "listen port (PORT)")
	data := flagSet.String("data", "", "data folder holding remotes.json and defaults (FOLDER)")
	registryURL := flagSet.String("registry-url", "", "registry document URL (REGISTRY_URL)")
	shellURL := flagSet.String("shell-url", "", "canonical shell origin (SHELL_URL)")
	logLevel := flagSet.String("log-level", "", "zerolog level (LOG_LEVEL)")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	overrides := config.MapEnv{}
	for key, value := range map[string]string{
		"PORT":             *port,
		"FOLDER":           *data,
		"REGISTRY_URL":     *registryURL,
		config.ShellURLVar: *shellURL,
		"LOG_LEVEL":        *logLevel,
	} {
		if value != "" {
			overrides[key] = value
		}
	}
	return overrides, nil
}

func run(overrides config.MapEnv) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.NewFromEnv(config.Layered(overrides, config.OSEnv{}))
	setupLogging(c)
	displayAppname(c.GetAppName())

	sh, err := shell.New(c)
	if err != nil {
		return fmt.Errorf("[main run] %w", err)
	}
	defer sh.Stop()

	httpServer := &http.Server{Addr: c.GetPort(), Handler: server.New(c, sh)}
	listener, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("[main run] listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- serve(httpServer, listener)
	}()

	// The registry document may be served by this process, so discovery
	// starts once the listener is up.
	if err := sh.Start(context.Background()); err != nil {
		return fmt.Errorf("[main run] %w", err)
	}

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func setupLogging(c config.Config) {
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		log.Warn().Str("configured_level", c.GetLogLevel()).Msg("Invalid log level, defaulting to info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func serve(server *http.Server, listener net.Listener) error {
	log.Info().Str("addr", server.Addr).Msg("Shell listening")
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.Serve %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
