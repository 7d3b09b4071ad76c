package shareconfig

import (
	"context"
	"strings"

	"go.uber.org/multierr"

	"github.com/rmacdonaldsmith/pshare-go/pkg/relay"
)

// Registrar accepts parsed routes
type Registrar interface {
	AddOutputRoute(ctx context.Context, route relay.OutputRoute) error
	AddInputRoute(ctx context.Context, route relay.InputRoute) error
}

// CommandKind is the direction named by a command's cmd field
type CommandKind string

const (
	CommandOutput CommandKind = "output"
	CommandInput  CommandKind = "input"
)

// Command is a parsed "cmd=output,..." or "cmd=input,..." string
type Command struct {
	Kind    CommandKind
	Outputs []relay.OutputRoute
	Inputs  []relay.InputRoute
}

// CommandVar returns the command variable of an application, "<APPNAME>_CMD"
func CommandVar(appName string) string {
	return strings.ToUpper(appName) + "_CMD"
}

// ParseCommand parses a runtime command through the same path as
// configuration lines
func (p *Parser) ParseCommand(ctx context.Context, command string) (Command, error) {
	const op = "parse command"

	fields, err := parseFields(command)
	if err != nil {
		return Command{}, relay.Wrap(relay.KindConfig, op, err)
	}

	switch kind := CommandKind(strings.ToLower(fields["cmd"])); kind {
	case CommandOutput:
		routes, err := p.ParseLongOutput(ctx, command)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: kind, Outputs: routes}, nil

	case CommandInput:
		routes, err := p.ParseLongInput(ctx, command)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: kind, Inputs: routes}, nil

	case "":
		return Command{}, relay.Errorf(relay.KindConfig, op, "%q: missing cmd field", command)

	default:
		return Command{}, relay.Errorf(relay.KindConfig, op, "%q: unknown cmd %q", command, kind)
	}
}

// ApplyCommand parses command and registers its routes with r.
// Nothing is registered when parsing fails.
func ApplyCommand(ctx context.Context, p *Parser, r Registrar, command string) error {
	cmd, err := p.ParseCommand(ctx, command)
	if err != nil {
		return err
	}
	return register(ctx, r, cmd.Outputs, cmd.Inputs)
}

// Apply registers every output and input line of s with r. A bad line is
// skipped and its error collected; the remaining lines are still applied.
func Apply(ctx context.Context, p *Parser, r Registrar, s *Settings) error {
	var errs error

	for _, line := range s.Outputs {
		routes, err := p.ParseOutput(ctx, line)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		errs = multierr.Append(errs, register(ctx, r, routes, nil))
	}

	for _, line := range s.Inputs {
		routes, err := p.ParseInput(ctx, line)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		errs = multierr.Append(errs, register(ctx, r, nil, routes))
	}

	return errs
}

func register(ctx context.Context, r Registrar, outputs []relay.OutputRoute, inputs []relay.InputRoute) error {
	var errs error
	for _, out := range outputs {
		errs = multierr.Append(errs, r.AddOutputRoute(ctx, out))
	}
	for _, in := range inputs {
		errs = multierr.Append(errs, r.AddInputRoute(ctx, in))
	}
	return errs
}
