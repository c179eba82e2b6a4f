// Command fsmctl creates entities, applies transitions and reads audit
// history against the configured lifecycle store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/dmitrymomot/contractflow/pkg/config"
	"github.com/dmitrymomot/contractflow/pkg/fsm"
	"github.com/dmitrymomot/contractflow/pkg/logger"
	"github.com/dmitrymomot/contractflow/pkg/requestid"
	"github.com/dmitrymomot/contractflow/pkg/tracing"
	"github.com/dmitrymomot/contractflow/svc/lifecycle"
)

type cli struct {
	LogLevel string `help:"Log level." default:"warn" env:"LOG_LEVEL"`
	Env      string `help:"Deployment environment (development, staging, production)." default:"development" env:"APP_ENV"`

	Create     createCmd     `cmd:"" help:"Create an entity at its initial or given state."`
	Transition transitionCmd `cmd:"" help:"Move an entity to a new state."`
	Available  availableCmd  `cmd:"" help:"List transitions a role may take from the current state."`
	History    historyCmd    `cmd:"" help:"Print the audit history of an entity."`
	States     statesCmd     `cmd:"" help:"List the states of an entity type."`
}

type app struct {
	svc *lifecycle.Service
	out io.Writer
}

type entityRef struct {
	Type string `arg:"" enum:"prime_contract,modification,nda,mou" help:"Entity type (${enum})."`
	ID   string `arg:"" help:"Entity id."`
}

func (r entityRef) entityType() fsm.EntityType { return fsm.EntityType(r.Type) }

type createCmd struct {
	entityRef
	State string `arg:"" optional:"" help:"Starting state; defaults to the type's initial state."`
}

func (c *createCmd) Run(ctx context.Context, a *app) error {
	state := c.State
	if state == "" {
		state, _ = lifecycle.InitialState(c.entityType())
	}
	if err := a.svc.Create(ctx, c.entityType(), c.ID, state); err != nil {
		return err
	}
	_, err := fmt.Fprintf(a.out, "%s %s created at %s\n", c.Type, c.ID, state)
	return err
}

type transitionCmd struct {
	entityRef
	To     string `arg:"" help:"Target state."`
	User   string `required:"" help:"Acting user id."`
	Role   string `required:"" enum:"system,contracts_team,contracts_manager" help:"Acting role (${enum})."`
	Reason string `help:"Reason recorded on the audit event."`
}

func (c *transitionCmd) Run(ctx context.Context, a *app) error {
	var opts []lifecycle.TransitionOption
	if c.Reason != "" {
		opts = append(opts, lifecycle.WithReason(c.Reason))
	}
	next, err := a.svc.Transition(ctx, c.entityType(), c.ID, c.To, c.User, fsm.Role(c.Role), opts...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "%s %s is now %s\n", c.Type, c.ID, next)
	return err
}

type availableCmd struct {
	entityRef
	Role string `required:"" enum:"system,contracts_team,contracts_manager" help:"Acting role (${enum})."`
}

func (c *availableCmd) Run(ctx context.Context, a *app) error {
	edges, err := a.svc.GetAvailableTransitions(ctx, c.entityType(), c.ID, fsm.Role(c.Role))
	if err != nil {
		return err
	}
	for _, e := range edges {
		if _, err := fmt.Fprintf(a.out, "%s\t%s\n", e.To, e.RequiredRole); err != nil {
			return err
		}
	}
	return nil
}

type historyCmd struct {
	entityRef
}

func (c *historyCmd) Run(ctx context.Context, a *app) error {
	entries, err := a.svc.GetHistory(ctx, c.entityType(), c.ID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

type statesCmd struct {
	Type string `arg:"" enum:"prime_contract,modification,nda,mou" help:"Entity type (${enum})."`
}

func (c *statesCmd) Run(a *app) error {
	engines, err := lifecycle.NewEngines()
	if err != nil {
		return err
	}
	for _, m := range engines.Machines() {
		if string(m.EntityType()) != c.Type {
			continue
		}
		for _, s := range m.States() {
			if _, err := fmt.Fprintln(a.out, s); err != nil {
				return err
			}
		}
	}
	return nil
}

func main() {
	var c cli
	kctx := kong.Parse(&c,
		kong.Name("fsmctl"),
		kong.Description("Drive contract lifecycle state machines."),
		kong.UsageOnError(),
	)

	if err := run(kctx, c); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code := fsm.CodeOf(err); code != "" {
			fmt.Fprintf(os.Stderr, "Code: %s\n", code)
		}
		os.Exit(1)
	}
}

func run(kctx *kong.Context, c cli) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(
		logger.WithEnvironment(c.Env, "fsmctl"),
		logger.WithLevelString(c.LogLevel),
		logger.WithOutput(os.Stderr),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)

	cfg, err := lifecycle.LoadConfig()
	if err != nil {
		return err
	}

	var tcfg tracing.Config
	if err := config.Load(&tcfg); err != nil {
		return fmt.Errorf("load tracing config: %w", err)
	}
	shutdown, err := tracing.Setup(ctx, tcfg)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Error("failed to flush traces", logger.Error(err))
		}
	}()

	rt, err := lifecycle.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Error("failed to close lifecycle runtime", logger.Error(err))
		}
	}()

	ctx, _ = requestid.Ensure(ctx)
	kctx.BindTo(ctx, (*context.Context)(nil))
	return kctx.Run(&app{svc: rt.Service, out: os.Stdout})
}
