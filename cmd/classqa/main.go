// Command classqa is the terminal client for classroom Q&A sessions.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/stemsi/classqa/internal/clientstate"
	"github.com/stemsi/classqa/internal/config"
	"github.com/stemsi/classqa/internal/logger"
	"github.com/stemsi/classqa/internal/view"
	"golang.org/x/term"
)

const usage = `Usage: classqa <command> [flags] [args]

Commands:
  login    -name NAME [-email EMAIL] [-role student|professor]
  host     CLASS NAME        start a class and watch it (professor)
  join     CODE              join a class by its code
  ask      TEXT              ask an anonymous question
  answer   -q QUESTION TEXT  answer a question
  like     ANSWER            like an answer
  watch                      follow the joined class live
  theme    light|dark|plain  set the output theme
  logout                     forget the stored identity
`

var errUsage = errors.New("usage")

// app carries what every command needs.
type app struct {
	cfg   *config.ClientConfig
	store *clientstate.Store
	log   zerolog.Logger
	out   io.Writer
	// tty reports whether out is an interactive terminal.
	tty bool
}

func (a *app) renderer() *view.Renderer {
	theme := a.store.Theme()
	if !a.tty {
		theme = clientstate.ThemePlain
	}
	return view.NewRenderer(theme, nil)
}

func main() {
	cfg := config.LoadClient()
	log := logger.New(os.Stderr, cfg.LogLevel, "pretty")

	a := &app{
		cfg:   cfg,
		store: clientstate.Open(cfg.StatePath, log),
		log:   log,
		out:   os.Stdout,
		tty:   term.IsTerminal(int(os.Stdout.Fd())),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "host":
		return a.host(ctx, rest)
	case "join":
		return a.join(ctx, rest)
	case "ask":
		return a.ask(ctx, rest)
	case "answer":
		return a.answer(ctx, rest)
	case "like":
		return a.like(ctx, rest)
	case "watch":
		return a.watch(ctx)
	case "theme":
		return a.theme(rest)
	case "logout":
		return a.logout()
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		return errUsage
	}
}
