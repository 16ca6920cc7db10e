package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/stemsi/classqa/internal/clientstate"
	"github.com/stemsi/classqa/internal/model"
	"github.com/stemsi/classqa/internal/realtime"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// login registers a participant with the server and stores its ticket.
func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "optional email")
	role := fs.String("role", string(model.UserTypeStudent), "student or professor")
	if err := fs.Parse(args); err != nil || strings.TrimSpace(*name) == "" {
		return errUsage
	}
	userType := model.UserType(*role)
	if !userType.Valid() {
		return fmt.Errorf("unknown role %q", *role)
	}

	api := newAPIClient(a.cfg.ServerURL, "")
	resp, err := api.createParticipant(ctx, model.CreateParticipantRequest{
		Name:  strings.TrimSpace(*name),
		Email: strings.TrimSpace(*email),
		Type:  userType,
	})
	if err != nil {
		return err
	}
	if err := a.saveIdentity(resp); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s).\n", resp.User.Name, resp.User.Type)
	return nil
}

func (a *app) saveIdentity(resp model.ParticipantResponse) error {
	if err := a.store.Logout(); err != nil {
		return err
	}
	if err := a.store.SaveUser(clientstate.StoredUser{
		ID:       resp.User.ID,
		Email:    resp.User.Email,
		Name:     resp.User.Name,
		UserType: resp.User.Type,
	}); err != nil {
		return err
	}
	return a.store.Set(clientstate.KeyTicket, resp.Ticket)
}

// host generates a class code and follows the new session.
func (a *app) host(ctx context.Context, args []string) error {
	className := strings.TrimSpace(strings.Join(args, " "))
	if className == "" {
		return errUsage
	}
	u, ticket, err := a.identity()
	if err != nil {
		return err
	}
	if u.UserType != model.UserTypeProfessor {
		return fmt.Errorf("only professors can host a class")
	}

	l, err := a.connect(ctx, ticket)
	if err != nil {
		return err
	}
	defer l.Close()

	codes := make(chan string, 1)
	binding := realtime.NewBinding(l.client, realtime.Handlers{
		OnCodeGenerated: func(c, _ string) {
			select {
			case codes <- c:
			default:
			}
		},
	})
	if err := binding.Mount(); err != nil {
		return err
	}
	changes := notify(binding)
	if err := binding.GenerateClassCode(ctx, u.ID, className); err != nil {
		return err
	}
	err = settled(ctx, binding, changes, binding.IsGenerating)
	if err != nil {
		binding.Unmount()
		return err
	}
	// The flag clears just before the callback runs.
	var code string
	select {
	case code = <-codes:
	case <-time.After(a.cfg.Timeout):
	}
	binding.Unmount()
	if code == "" {
		return realtime.ErrInvalidResponse
	}

	if err := a.store.SetJoinedClass(code); err != nil {
		a.log.Warn().Err(err).Msg("Saving joined class failed")
	}
	if err := a.renderer().ClassCode(a.out, code, className); err != nil {
		return err
	}

	update, err := a.enter(ctx, l, code)
	if err != nil {
		return err
	}
	return a.follow(ctx, l, ticket, update)
}

// join validates a class code, joins it and remembers it.
func (a *app) join(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	_, ticket, err := a.identity()
	if err != nil {
		return err
	}
	l, err := a.connect(ctx, ticket)
	if err != nil {
		return err
	}
	defer l.Close()

	update, err := a.enter(ctx, l, args[0])
	if err != nil {
		return err
	}
	if err := a.store.SetJoinedClass(update.Code); err != nil {
		return err
	}
	return a.renderer().Session(a.out, update)
}

func (a *app) ask(ctx context.Context, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return errUsage
	}
	l, _, _, err := a.joined(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	binding := realtime.NewBinding(l.client, realtime.Handlers{})
	if err := binding.Mount(); err != nil {
		return err
	}
	defer binding.Unmount()

	changes := notify(binding)
	if err := binding.SendQuestion(ctx, text); err != nil {
		return err
	}
	if err := settled(ctx, binding, changes, binding.IsSending); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Question sent.")
	return nil
}

func (a *app) answer(ctx context.Context, args []string) error {
	fs := newFlagSet("answer")
	questionID := fs.String("q", "", "question being answered")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		return errUsage
	}

	l, _, _, err := a.joined(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	binding := realtime.NewBinding(l.client, realtime.Handlers{})
	if err := binding.Mount(); err != nil {
		return err
	}
	defer binding.Unmount()

	changes := notify(binding)
	if err := binding.SendAnswer(ctx, model.Answer{Text: text, ActiveQuestionID: *questionID}); err != nil {
		return err
	}
	if err := settled(ctx, binding, changes, binding.IsSending); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Answer sent.")
	return nil
}

func (a *app) like(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	l, _, _, err := a.joined(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	liked, err := l.client.AwaitLike(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Liked. The answer now has %d like(s).\n", liked.Likes)
	return nil
}

func (a *app) watch(ctx context.Context) error {
	l, _, update, err := a.joined(ctx)
	if err != nil {
		return err
	}
	defer l.Close()
	_, ticket, _ := a.identity()
	return a.follow(ctx, l, ticket, update)
}

func (a *app) theme(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := a.store.SetTheme(clientstate.Theme(args[0])); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Theme set to %s.\n", args[0])
	return nil
}

func (a *app) logout() error {
	if err := a.store.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}
