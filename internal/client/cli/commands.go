package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iudanet/agromarket/internal/client/iocli"
	"github.com/iudanet/agromarket/internal/config"
	"github.com/iudanet/agromarket/internal/logger"
)

// annotationStandalone помечает команды, которым не нужно хранилище
const annotationStandalone = "standalone"

// Program is the command tree together with the resources opened for one run
type Program struct {
	root       *cobra.Command
	io         iocli.IO
	viper      *viper.Viper
	app        *App
	cli        *Cli
	logCloser  io.Closer
	logOutput  io.Writer
	info       BuildInfo
	configFile string
}

// NewProgram builds the agromarket command tree writing to io
func NewProgram(info BuildInfo, out iocli.IO) *Program {
	p := &Program{
		io:        out,
		viper:     viper.New(),
		info:      info,
		logOutput: os.Stderr,
	}
	p.root = p.rootCommand()
	return p
}

// SetLogOutput redirects logs written without a log file
func (p *Program) SetLogOutput(w io.Writer) {
	p.logOutput = w
}

// Execute runs the command line and releases the store and log file afterwards
func (p *Program) Execute(ctx context.Context, args []string) error {
	p.root.SetArgs(args)
	err := p.root.ExecuteContext(ctx)
	return errors.Join(err, p.close())
}

func (p *Program) close() error {
	var errs []error
	if p.app != nil {
		errs = append(errs, p.app.Close())
		p.app = nil
	}
	if p.logCloser != nil {
		errs = append(errs, p.logCloser.Close())
		p.logCloser = nil
	}
	return errors.Join(errs...)
}

// setup загружает конфигурацию и открывает хранилище перед командой
func (p *Program) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[annotationStandalone] == "true" || cmd.Name() == "help" {
		return nil
	}

	cfg, err := config.Load(p.viper, p.configFile)
	if err != nil {
		return err
	}
	if cfg.ClientVersion == "dev" && p.info.Version != "" {
		cfg.ClientVersion = p.info.Version
	}

	log, closer, err := logger.New(cfg.LoggerOptions(), p.logOutput)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	p.logCloser = closer

	app, err := Open(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	p.app = app
	p.cli = New(p.io, app.Sync, app.Conflicts, app.API, cfg, log)

	return nil
}

func (p *Program) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:               "agromarket",
		Short:             "Offline-first marketplace client",
		Long:              "Records marketplace actions locally and synchronizes them with the server when it is reachable.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: p.setup,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(p.io)
	root.SetErr(p.io)

	flags := root.PersistentFlags()
	flags.StringVar(&p.configFile, "config", "", "Path to YAML config file")
	flags.String("server", "", "Server URL (default http://localhost:8080)")
	flags.String("token", "", "Bearer token for the sync API")
	flags.String("db", "", "Path to local database (default agromarket-client.db)")
	flags.String("driver", "", "Storage driver: bolt or sqlite (default bolt)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: auto, text, json")

	for key, flag := range map[string]string{
		config.KeyServerURL:     "server",
		config.KeyToken:         "token",
		config.KeyStoragePath:   "db",
		config.KeyStorageDriver: "driver",
		config.KeyLogLevel:      "log-level",
		config.KeyLogFormat:     "log-format",
	} {
		_ = p.viper.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		p.recordCommand(),
		p.cartCommand(),
		p.orderCommand(),
		p.reviewCommand(),
		p.statusCommand(),
		p.pushCommand(),
		p.pullCommand(),
		p.conflictsCommand(),
		p.daemonCommand(),
		p.versionCommand(),
	)

	return root
}

func (p *Program) recordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "record <CREATE|UPDATE|DELETE> <entity-type> <entity-id> <json>",
		Short: "Queue a raw operation",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return p.cli.runRecord(cmd.Context(), args[0], args[1], args[2], args[3])
		},
	}
}

func (p *Program) cartCommand() *cobra.Command {
	cart := &cobra.Command{
		Use:   "cart",
		Short: "Manage cart items",
	}

	cart.AddCommand(
		&cobra.Command{
			Use:   "add <product-id> <quantity>",
			Short: "Add a product to the cart",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				productID, err := parseProductID(args[0])
				if err != nil {
					return err
				}
				quantity, err := parseInt("quantity", args[1])
				if err != nil {
					return err
				}
				return p.cli.runCartAdd(cmd.Context(), productID, quantity)
			},
		},
		&cobra.Command{
			Use:   "update <cart-item-id> <product-id> <quantity>",
			Short: "Change the quantity of a cart item",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				productID, err := parseProductID(args[1])
				if err != nil {
					return err
				}
				quantity, err := parseInt("quantity", args[2])
				if err != nil {
					return err
				}
				return p.cli.runCartUpdate(cmd.Context(), args[0], productID, quantity)
			},
		},
		&cobra.Command{
			Use:   "remove <cart-item-id>",
			Short: "Remove an item from the cart",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return p.cli.runCartRemove(cmd.Context(), args[0])
			},
		},
	)

	return cart
}

func (p *Program) orderCommand() *cobra.Command {
	order := &cobra.Command{
		Use:   "order",
		Short: "Place orders",
	}

	var comment string
	place := &cobra.Command{
		Use:   "place <product-id:quantity>...",
		Short: "Place an order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return p.cli.runOrderPlace(cmd.Context(), args, comment)
		},
	}
	place.Flags().StringVar(&comment, "comment", "", "Order comment")

	order.AddCommand(place)
	return order
}

func (p *Program) reviewCommand() *cobra.Command {
	review := &cobra.Command{
		Use:   "review",
		Short: "Review products",
	}

	var comment string
	add := &cobra.Command{
		Use:   "add <product-id> <rating>",
		Short: "Submit a product review (rating 1-5)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := parseProductID(args[0])
			if err != nil {
				return err
			}
			rating, err := parseInt("rating", args[1])
			if err != nil {
				return err
			}
			return p.cli.runReviewAdd(cmd.Context(), productID, rating, comment)
		},
	}
	add.Flags().StringVar(&comment, "comment", "", "Review text")

	review.AddCommand(add)
	return review
}

func (p *Program) statusCommand() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pending operations, conflicts and sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return p.cli.runStatus(cmd.Context(), verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List pending operations")
	return cmd
}

func (p *Program) pushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Push pending operations to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return p.cli.runPush(cmd.Context())
		},
	}
}

func (p *Program) pullCommand() *cobra.Command {
	var since int64
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download operations from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return p.cli.runPull(cmd.Context(), since)
		},
	}
	cmd.Flags().Int64Var(&since, "since", -1, "Lamport timestamp to pull from (default: stored high-water mark)")
	return cmd
}

func (p *Program) conflictsCommand() *cobra.Command {
	conflicts := &cobra.Command{
		Use:   "conflicts",
		Short: "Review and resolve rejected operations",
	}

	var merged string
	resolve := &cobra.Command{
		Use:   "resolve <conflict-id> [local|remote|merged]",
		Short: "Resolve a conflict",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			choice := ""
			if len(args) == 2 {
				choice = args[1]
			}
			return p.cli.runConflictsResolve(cmd.Context(), args[0], choice, merged)
		},
	}
	resolve.Flags().StringVar(&merged, "data", "", "Merged JSON payload for the merged resolution")

	conflicts.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List unresolved conflicts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return p.cli.runConflictsList(cmd.Context())
			},
		},
		resolve,
		&cobra.Command{
			Use:   "auto <local|remote>",
			Short: "Resolve every conflict with one policy",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return p.cli.runConflictsAuto(cmd.Context(), args[0])
			},
		},
	)

	return conflicts
}

func (p *Program) daemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Push in the background while the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return p.cli.runDaemon(cmd.Context())
		},
	}
}

func (p *Program) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationStandalone: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			p.io.Println("AgroMarket Client")
			p.io.Printf("Version:    %s\n", p.info.Version)
			p.io.Printf("Build Date: %s\n", p.info.BuildDate)
			p.io.Printf("Git Commit: %s\n", p.info.GitCommit)
		},
	}
}

func parseProductID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid product id %q: %w", s, err)
	}
	return id, nil
}

func parseInt(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return n, nil
}
