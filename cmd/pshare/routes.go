package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/pshare-go/internal/localbus"
	"github.com/rmacdonaldsmith/pshare-go/internal/relay"
	"github.com/rmacdonaldsmith/pshare-go/internal/routereport"
	"github.com/rmacdonaldsmith/pshare-go/internal/shareconfig"
	"github.com/rmacdonaldsmith/pshare-go/pkg/endpoint"
	"github.com/rmacdonaldsmith/pshare-go/pkg/peerlink"
	relaypkg "github.com/rmacdonaldsmith/pshare-go/pkg/relay"
)

func newRoutesCommand() *cobra.Command {
	var flags settingsFlags

	cmd := &cobra.Command{
		Use:   "routes [mission-file] [app-name]",
		Short: "Print the configured routes without starting the relay",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, args, &flags)
			if err != nil {
				return err
			}

			report, err := planRoutes(cmd.Context(), settings)
			if err != nil {
				return err
			}
			routereport.Print(cmd.OutOrStdout(), report)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// planRoutes resolves the configured routes into a report. Output routes go
// through an engine whose sockets discard everything; inputs are only
// resolved, so no port is bound.
func planRoutes(ctx context.Context, s *shareconfig.Settings) (relaypkg.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	community, err := localbus.NewCommunity(&localbus.Config{Name: s.AppName})
	if err != nil {
		return relaypkg.Report{}, err
	}
	defer community.Close()

	bus, err := community.Connect(s.AppName)
	if err != nil {
		return relaypkg.Report{}, err
	}

	cfg := relay.NewConfig(s.AppName)
	cfg.Aliases = s.Aliases()
	cfg.OpenSender = func(_ context.Context, dest endpoint.Endpoint, multicast bool) (peerlink.Sender, error) {
		return &discardSender{dest: dest, multicast: multicast}, nil
	}
	engine, err := relay.NewEngine(cfg, bus)
	if err != nil {
		return relaypkg.Report{}, err
	}
	defer engine.Close()

	p := &planner{engine: engine, aliases: s.Aliases()}
	if err := shareconfig.Apply(ctx, engine.Parser(), p, s); err != nil {
		return relaypkg.Report{}, err
	}

	report := engine.Report()
	report.Inputs = p.inputs
	report.Generated = time.Now()
	return report, nil
}

// planner forwards output routes to the engine and records input routes
type planner struct {
	engine  *relay.Engine
	aliases endpoint.Aliases
	inputs  []relaypkg.ListenerInfo
}

func (p *planner) AddOutputRoute(ctx context.Context, route relaypkg.OutputRoute) error {
	return p.engine.AddOutputRoute(ctx, route)
}

func (p *planner) AddInputRoute(_ context.Context, route relaypkg.InputRoute) error {
	info := relaypkg.ListenerInfo{
		Address:   route.Local.String(),
		Multicast: route.Multicast,
		Whitelist: route.Whitelist,
		State:     "Configured",
	}
	if route.Multicast && route.Local.Host == p.aliases.Base.Host {
		if alias, err := p.aliases.AliasOf(route.Local); err == nil {
			info.Alias = alias
		}
	}
	p.inputs = append(p.inputs, info)
	return nil
}

type discardSender struct {
	dest      endpoint.Endpoint
	multicast bool
}

func (s *discardSender) Endpoint() endpoint.Endpoint { return s.dest }
func (s *discardSender) Multicast() bool             { return s.multicast }
func (s *discardSender) Send([]byte) error           { return nil }
func (s *discardSender) Close() error                { return nil }
