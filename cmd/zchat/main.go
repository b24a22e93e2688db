// Command zchat is a terminal chat client for the z-chat HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-chat/internal/api"
	"github.com/zhouzirui/z-chat/internal/config"
	"github.com/zhouzirui/z-chat/internal/logging"
	chatService "github.com/zhouzirui/z-chat/internal/service/chat"
	"github.com/zhouzirui/z-chat/internal/service/auth"
	"github.com/zhouzirui/z-chat/internal/service/profile"
	"github.com/zhouzirui/z-chat/internal/store/session"
	"github.com/zhouzirui/z-chat/internal/ui"
)

// app holds the wired client-side services for one command run.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *session.Store
	client   *api.Client
	auth     *auth.Manager
	profiles *profile.Resolver
	chat     *chatService.Service
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	store, err := session.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	client := api.New(cfg.API, logger)
	mgr := auth.New(ctx, client, store, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		client:   client,
		auth:     mgr,
		profiles: profile.NewResolver(client, mgr, logger),
		chat:     chatService.NewService(client, mgr, logger, chatService.Seed(time.Now())),
	}, nil
}

// Close drains pending logout notifications before releasing the store.
func (a *app) Close() error {
	a.auth.Wait()
	err := a.store.Close()
	_ = a.logger.Sync()
	return err
}

type rootOptions struct {
	apiURL  string
	store   string
	verbose bool
}

// newRootCmd builds the command tree. The returned func releases whatever the
// run opened and must be called after Execute, including on error.
func newRootCmd() (*cobra.Command, func() error) {
	var (
		opts    rootOptions
		current *app
	)

	getApp := func() *app { return current }

	rootCmd := &cobra.Command{
		Use:   "zchat",
		Short: "Terminal chat client for the z-chat backend",
		Long: `zchat talks to a z-chat compatible backend over HTTP.

Run without arguments to start the interactive chat interface. The session is
kept between runs, so "zchat login" once and every later command reuses it.

Configuration comes from the environment (or a .env file):
  ZCHAT_API_URL          backend base URL (default http://localhost:8000)
  ZCHAT_CHAT_PATH        chat endpoint path (default /api/v1/chat)
  ZCHAT_REQUEST_TIMEOUT  request timeout in seconds (default 30)
  ZCHAT_STORE            session store: file, sqlite or memory (default file)
  ZCHAT_STORE_PATH       session store location
  ZCHAT_LOG_LEVEL        debug, info, warn or error (default warn)
  ZCHAT_LOG_FILE         write logs to a rotating file instead of stderr;
                         the chat interface only logs when this is set`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is fine; the environment alone is enough.
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if opts.apiURL != "" {
				cfg.API.BaseURL = strings.TrimRight(opts.apiURL, "/")
			}
			if opts.store != "" {
				if cfg.Store, err = config.StoreFor(opts.store); err != nil {
					return err
				}
			}
			if opts.verbose {
				cfg.Log.Level = "debug"
			}

			newLogger := logging.New
			if cmd == cmd.Root() {
				// the chat interface owns the terminal
				newLogger = logging.NewInteractive
			}
			logger, err := newLogger(cfg.Log)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			current, err = newApp(cmd.Context(), cfg, logger)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractiveChat(cmd.Context(), getApp())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api-url", "", "backend base URL (overrides ZCHAT_API_URL)")
	flags.StringVar(&opts.store, "store", "", "session store driver: file, sqlite or memory")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		newLoginCmd(getApp),
		newRegisterCmd(getApp),
		newLogoutCmd(getApp),
		newWhoamiCmd(getApp),
		newSendCmd(getApp),
	)

	closeApp := func() error {
		if current == nil {
			return nil
		}
		err := current.Close()
		current = nil
		return err
	}
	return rootCmd, closeApp
}

func runInteractiveChat(ctx context.Context, a *app) error {
	model := ui.New(ctx, a.auth, a.profiles, a.chat, ui.Options{})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("chat interface: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd, closeApp := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	if cerr := closeApp(); cerr != nil && err == nil {
		fmt.Fprintln(os.Stderr, "Error:", cerr)
		err = cerr
	}
	if err != nil {
		os.Exit(1)
	}
}
