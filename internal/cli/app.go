package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/glucolink/internal/config"
	"github.com/dmitrijs2005/glucolink/internal/keystore"
	"github.com/dmitrijs2005/glucolink/internal/linkup"
	"github.com/dmitrijs2005/glucolink/internal/logging"
	"github.com/dmitrijs2005/glucolink/internal/services"
	"github.com/dmitrijs2005/glucolink/internal/session"
	"github.com/dmitrijs2005/glucolink/internal/storage"
)

// KeyCustody reports how the master key is currently held. Satisfied by
// keystore.Custodian.
type KeyCustody interface {
	Degraded() bool
}

type App struct {
	config       *config.Config
	sessions     session.Manager
	creds        storage.CredentialStore
	measurements services.MeasurementService
	keys         KeyCustody
	reader       *bufio.Reader
	out          io.Writer
}

// NewApp builds the full client stack: key custody, encrypted stores, the
// upstream client, the session manager and the measurement service.
func NewApp(cfg *config.Config, logger logging.Logger) *App {
	custodian := keystore.NewCustodian(keystore.NewSystemStore(), cfg.DataDir, logger)
	creds := storage.NewCredentialStore(cfg.DataDir, custodian, logger)
	tokens := storage.NewTokenStore(cfg.DataDir, custodian, logger)
	api := linkup.NewClient(cfg.Product, cfg.ClientVersion, logger)
	sessions := session.NewManager(cfg, creds, tokens, api, logger)

	return &App{
		config:       cfg,
		sessions:     sessions,
		creds:        creds,
		measurements: services.NewMeasurementService(sessions, api, cfg, logger),
		keys:         custodian,
		reader:       bufio.NewReader(os.Stdin),
		out:          os.Stdout,
	}
}

// Run migrates any legacy plaintext credential file and starts the REPL.
// It blocks until the user exits.
func (a *App) Run(ctx context.Context) {
	if err := a.creds.MigrateLegacy(ctx); err != nil {
		fmt.Fprintf(a.out, "Warning: legacy credential file not migrated: %v\n", err)
	}

	fmt.Fprintln(a.out, "glucolink CLI (type 'help' for commands)")
	runREPL(ctx, a, a.statusLine, bufio.NewScanner(os.Stdin))
}

func (a *App) isAuthenticated() bool {
	return a.sessions.Status().Authenticated
}

// statusLine renders the prompt suffix, e.g. "(eu signed-in)".
func (a *App) statusLine() string {
	region := a.config.Region
	if region == "" {
		region = "auto"
	}
	state := "signed-out"
	if a.isAuthenticated() {
		state = "signed-in"
	}
	return fmt.Sprintf("(%s %s)", region, state)
}
