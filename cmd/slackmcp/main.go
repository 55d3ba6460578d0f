// Copyright (c) 2021-2026 Rustam Gilyazov and Contributors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Command slackmcp is a Model Context Protocol server that exposes Slack
// workspace operations as tools.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"runtime/trace"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/rusq/osenv/v2"

	"github.com/rusq/slackmcp/internal/client"
	"github.com/rusq/slackmcp/internal/config"
	"github.com/rusq/slackmcp/internal/mcp"
	"github.com/rusq/slackmcp/internal/observe"
	"github.com/rusq/slackmcp/internal/osext"
)

const (
	envSlackToken   = "SLACK_BOT_TOKEN"
	envTransport    = "SLACKMCP_TRANSPORT"
	envListen       = "SLACKMCP_LISTEN"
	envTimezone     = "SLACKMCP_TZ"
	envConfig       = "SLACKMCP_CONFIG"
	envOTELEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envLogFile      = "LOG_FILE"
	envJSONLog      = "JSON_LOG"
	envTraceFile    = "TRACE_FILE"
	envDebug        = "DEBUG"

	serviceName       = "slackmcp"
	defaultDigestName = "slack_read_digest"
	shutdownTimeout   = 5 * time.Second
)

// exit statuses
const (
	sNoError           = 0
	sApplicationError  = 1
	sInvalidParameters = 2
)

var (
	version = "dev"
	commit  = "placeholder"
	date    = "unknown"
)

var secrets = []string{".env", ".env.txt", "secrets.txt"}

type params struct {
	token        string
	transport    string
	listen       string
	tz           string
	configFile   string
	otelEndpoint string

	digestChannel string
	digestUser    string
	digestName    string

	list     bool
	call     string
	callArgs string

	logFile   string
	jsonLog   bool
	traceFile string
	verbose   bool

	printVersion bool
}

func main() {
	loadSecrets(secrets)

	p, err := parseCmdLine(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(sNoError)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(sInvalidParameters)
	}
	if p.printVersion {
		fmt.Printf("%s %s (commit: %s) built on: %s\n", serviceName, version, commit, date)
		return
	}

	lg, logStop, err := initLog(p.logFile, p.jsonLog, p.verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(sApplicationError)
	}
	traceStop := initTrace(p.traceFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := execute(ctx, lg, p, os.Stdout)
	stop()
	traceStop()
	logStop()
	os.Exit(status)
}

// execute builds the configuration and runs the server or the one-shot
// command.  It returns the exit status.
func execute(ctx context.Context, lg *slog.Logger, p params, stdout io.Writer) (status int) {
	defer func() {
		if r := recover(); r != nil {
			lg.Error("unexpected panic", "panic", r, "stack", string(debug.Stack()))
			status = sApplicationError
		}
	}()

	cfg, err := p.config()
	if err != nil {
		lg.Error("invalid configuration", "error", err)
		return sInvalidParameters
	}
	if err := run(ctx, lg, p, cfg, stdout); err != nil {
		lg.Error("application error", "error", err)
		return exitStatus(err)
	}
	return sNoError
}

// exitStatus maps the error to the process exit status.
func exitStatus(err error) int {
	switch {
	case err == nil:
		return sNoError
	case errors.Is(err, config.ErrNoToken),
		errors.Is(err, config.ErrInvalid),
		errors.Is(err, mcp.ErrDuplicateCapability),
		errors.Is(err, errInvalidCall):
		return sInvalidParameters
	default:
		return sApplicationError
	}
}

func loadSecrets(files []string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// parseCmdLine parses the command line arguments.
func parseCmdLine(args []string) (params, error) {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(
			fs.Output(),
			"slackmcp %s\n\n"+
				"slackmcp is a Model Context Protocol server for Slack.  It exposes\n"+
				"messaging, channel, user and search operations as tools, plus\n"+
				"optional channel digests.\n\n"+
				"Usage:  %s [flags]\n\n"+
				"flags:\n",
			version, filepath.Base(os.Args[0]))
		fs.PrintDefaults()
	}

	var p params
	fs.StringVar(&p.token, "token", osenv.Secret(envSlackToken, ""), "Slack bot `token` (environment: "+envSlackToken+")")
	fs.StringVar(&p.transport, "transport", osenv.Value(envTransport, ""), "transport `type`: stdio or http (default: stdio)")
	fs.StringVar(&p.listen, "listen", osenv.Value(envListen, ""), "listen `address` for the http transport (default: "+config.DefaultListen+")")
	fs.StringVar(&p.tz, "tz", osenv.Value(envTimezone, ""), "IANA time `zone` for digest workday windows (default: local)")
	fs.StringVar(&p.configFile, "config", osenv.Value(envConfig, ""), "TOML configuration `file`")
	fs.StringVar(&p.otelEndpoint, "otel-endpoint", osenv.Value(envOTELEndpoint, ""), "OTLP/HTTP traces endpoint `URL`")

	fs.StringVar(&p.digestChannel, "digest-channel", "", "add a digest tool for the channel `ID`")
	fs.StringVar(&p.digestUser, "digest-user", "", "limit the -digest-channel digest to the user `ID`")
	fs.StringVar(&p.digestName, "digest-name", defaultDigestName, "tool `name` of the -digest-channel digest")

	fs.BoolVar(&p.list, "list", false, "list the tools and exit")
	fs.StringVar(&p.call, "call", "", "call the tool `name` once, print the result and exit")
	fs.StringVar(&p.callArgs, "args", "{}", "JSON `object` with the -call tool arguments")

	fs.StringVar(&p.logFile, "log", osenv.Value(envLogFile, ""), "log `file`, if not specified, messages are printed to STDERR")
	fs.BoolVar(&p.jsonLog, "log-json", osenv.Value(envJSONLog, false), "log in JSON format")
	fs.StringVar(&p.traceFile, "trace", osenv.Value(envTraceFile, ""), "trace `file` (optional)")
	fs.BoolVar(&p.verbose, "v", osenv.Value(envDebug, false), "verbose messages")
	fs.BoolVar(&p.printVersion, "V", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return p, err
	}
	if fs.NArg() > 0 {
		return p, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if p.digestUser != "" && p.digestChannel == "" {
		return p, errors.New("-digest-user requires -digest-channel")
	}
	return p, nil
}

// config returns the validated configuration.  Values set with flags or
// environment variables override the configuration file, which overrides
// the defaults.
func (p *params) config() (config.Config, error) {
	cfg := config.Default()
	if p.configFile != "" {
		var err error
		if cfg, err = config.Load(p.configFile); err != nil {
			return config.Config{}, err
		}
	}
	cfg.Token = p.token
	override(&cfg.Transport, p.transport)
	override(&cfg.Listen, p.listen)
	override(&cfg.TZ, p.tz)
	override(&cfg.OTELEndpoint, p.otelEndpoint)
	if p.digestChannel != "" {
		cfg.Digests = append(cfg.Digests, config.Digest{
			Name:    p.digestName,
			Channel: p.digestChannel,
			User:    p.digestUser,
		})
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if _, err := cfg.Location(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func override(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

// run connects to Slack, builds the tool registry and then either runs the
// one-shot command or serves the selected transport until ctx is
// cancelled.
func run(ctx context.Context, lg *slog.Logger, p params, cfg config.Config, stdout io.Writer, copts ...client.Option) error {
	ctx, task := trace.NewTask(ctx, "main.run")
	defer task.End()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	tel, err := observe.Setup(ctx, observe.Config{
		Endpoint:       cfg.OTELEndpoint,
		ServiceName:    serviceName,
		ServiceVersion: version,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			lg.Warn("telemetry shutdown", "error", err)
		}
	}()
	obs, err := tel.Observer()
	if err != nil {
		return err
	}

	copts = append([]client.Option{client.WithDebug(p.verbose)}, copts...)
	cl, err := client.New(ctx, cfg.Token, copts...)
	if err != nil {
		return fmt.Errorf("failed to connect to Slack: %w", err)
	}
	wi := cl.WorkspaceInfo()
	lg.InfoContext(ctx, "connected", "team", wi.Team, "user", wi.User)

	digests := make([]config.Digest, len(cfg.Digests))
	for i, d := range cfg.Digests {
		d.MaxResults = cfg.DigestMaxResults(d)
		digests[i] = d
	}
	reg, err := mcp.NewRegistry(cl,
		mcp.WithDigests(digests...),
		mcp.WithLocation(loc),
		mcp.WithRegistryLogger(lg),
	)
	if err != nil {
		return err
	}
	srv := mcp.New(reg,
		mcp.WithLogger(lg),
		mcp.WithObserver(obs),
		mcp.WithVersion(version),
		mcp.WithWorkspace(wi.Team),
		mcp.WithMetricsHandler(tel.Handler()),
	)

	switch {
	case p.list:
		return listTools(stdout, srv)
	case p.call != "":
		return callTool(ctx, stdout, srv, p.call, p.callArgs)
	}

	lg.InfoContext(ctx, "starting server", "transport", cfg.Transport, "tools", reg.Len())
	switch cfg.Transport {
	case config.TransportHTTP:
		return srv.ServeHTTP(ctx, cfg.Listen)
	default:
		if osext.IsTerminal(os.Stdin) {
			lg.Warn("stdin is a terminal, the stdio transport expects an MCP client on the other end")
		}
		return srv.ServeStdio(ctx)
	}
}

var (
	errInvalidCall = errors.New("invalid -args value")
	errToolFailed  = errors.New("tool execution failed")
)

// listTools prints the tool names and descriptions.
func listTools(w io.Writer, srv *mcp.Server) error {
	for _, t := range srv.Tools() {
		if _, err := fmt.Fprintf(w, "%-28s %s\n", t.Name, t.Description); err != nil {
			return err
		}
	}
	return nil
}

// callTool invokes the tool once and prints the text content of the
// result.  A failed invocation is printed as well and reported as
// errToolFailed.
func callTool(ctx context.Context, w io.Writer, srv *mcp.Server, name string, rawArgs string) error {
	var args map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return fmt.Errorf("%w: %s", errInvalidCall, err)
	}
	res := srv.Invoke(ctx, name, args)
	for _, c := range res.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			if _, err := fmt.Fprintln(w, tc.Text); err != nil {
				return err
			}
		}
	}
	if res.IsError {
		return errToolFailed
	}
	return nil
}
