// Command arixa runs the tool mediator: as a server (HTTP and line stream),
// or as an interactive chat on the terminal, optionally driving the tools of
// a remote arixa over its line stream.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/arixa/arixa/internal/agent"
	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/config"
	"github.com/arixa/arixa/internal/protocol"
	"github.com/arixa/arixa/internal/server"
	"github.com/arixa/arixa/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("arixa failed")
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("arixa", flag.ContinueOnError)
	var (
		chat     = fs.Bool("chat", false, "Chat on the terminal instead of serving")
		message  = fs.String("m", "", "Send one message, print the reply and exit")
		remote   = fs.String("remote", "", "Invoke tools on a remote arixa line stream at this address")
		provider = fs.String("provider", "", "AI backend: claude, chatgpt, gemini, local or mock")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *provider != "" {
		cfg.Provider = *provider
	}
	setupLogging(cfg)

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		return err
	}

	if !*chat && *message == "" {
		return server.New(app).Run(ctx)
	}
	defer app.Close()

	conv, err := newConversation(ctx, app, *remote)
	if err != nil {
		return err
	}
	if *message != "" {
		return send(ctx, conv, *message, os.Stdout)
	}
	return repl(ctx, conv, os.Stdin, os.Stdout)
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// newConversation drives the local catalog, or with addr set, the catalog of
// a remote arixa through the stream client.
func newConversation(ctx context.Context, app *server.App, addr string) (*agent.Conversation, error) {
	if addr == "" {
		return app.Manager.Get(ctx, "")
	}

	client, err := protocol.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	specs, err := client.ListTools(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("list remote tools: %w", err)
	}
	mirror := catalog.New()
	for _, s := range specs {
		if err := mirror.Register(catalog.FromSpec(s)); err != nil {
			log.Warn().Err(err).Str("tool", s.Name).Msg("skipping remote tool")
		}
	}
	log.Info().Str("remote", addr).Int("tools", mirror.Len()).Msg("using remote tools")
	context.AfterFunc(ctx, func() { client.Close() })
	return agent.New(app.Backend, mirror, client, session.New(""),
		agent.WithMaxIterations(app.Config.MaxIterations),
		agent.WithPromptInfo(agent.PromptInfo{ProjectPath: app.Config.DefaultProjectPath}),
	), nil
}

func send(ctx context.Context, conv *agent.Conversation, msg string, out io.Writer) error {
	res, err := conv.Execute(ctx, msg)
	fmt.Fprintln(out, res.Reply())
	if len(res.ToolsUsed) > 0 {
		fmt.Fprintf(out, "(%d iterations, tools: %s)\n", res.Iterations, strings.Join(res.ToolsUsed, ", "))
	}
	return err
}

func repl(ctx context.Context, conv *agent.Conversation, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "arixa (%s). Type \"clear\" to reset, \"exit\" to quit.\n", conv.Backend().Name())
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "clear":
			if err := conv.Reset(ctx); err != nil {
				fmt.Fprintf(out, "clear failed: %v\n", err)
			}
			continue
		}
		if err := send(ctx, conv, line, out); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}
