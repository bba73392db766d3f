package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mustafazeydani/NotUyarX/internal/chrono"
	"github.com/mustafazeydani/NotUyarX/lib/captcha"
	"github.com/mustafazeydani/NotUyarX/lib/configutil"
	"github.com/mustafazeydani/NotUyarX/lib/notify"
	"github.com/mustafazeydani/NotUyarX/lib/sqliteutil"
	"github.com/mustafazeydani/NotUyarX/services/keychain"
	keychaindb "github.com/mustafazeydani/NotUyarX/services/keychain/db"
	"github.com/mustafazeydani/NotUyarX/services/marks"
	marksdb "github.com/mustafazeydani/NotUyarX/services/marks/db"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "notuyarx",
	Short: "notuyarx watches a university OBS portal and notifies on new grades.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	// University is the OBS portal origin, e.g. "https://obs.example.edu.tr".
	University string `json:"university"`

	KeychainDb string `json:"keychain_db"`
	StateDb    string `json:"state_db"`

	Captcha captcha.Config     `json:"captcha"`
	Ntfy    *notify.NtfyConfig `json:"ntfy"`
	Smtp    *notify.SmtpConfig `json:"smtp"`

	IntervalMinutes         int `json:"interval_minutes"`
	SessionStalenessMinutes int `json:"session_staleness_minutes"`
}

func readConfig() (Config, error) {
	config, err := configutil.ReadConfig[Config]("notuyarx.json5")
	if err != nil {
		return Config{}, fmt.Errorf("read notuyarx.json5: %w", err)
	}
	if config.KeychainDb == "" {
		config.KeychainDb = "keychain.db"
	}
	if config.StateDb == "" {
		config.StateDb = "state.db"
	}
	if config.IntervalMinutes == 0 {
		config.IntervalMinutes = 15
	}
	return config, nil
}

func (config Config) notifier() notify.Notifier {
	switch {
	case config.Ntfy != nil:
		return notify.NewNtfy(*config.Ntfy)
	case config.Smtp != nil:
		return notify.NewSmtp(*config.Smtp)
	default:
		return notify.Slog{}
	}
}

// openService wires the full engine. the scheduler is only spun up for
// the watch command, one-shot commands pass withScheduler=false.
func openService(config Config, withScheduler bool) (*marks.Service, func(), error) {
	keychainSqlite, err := sqliteutil.OpenDB(keychaindb.Schema, config.KeychainDb)
	if err != nil {
		return nil, nil, fmt.Errorf("open keychain db: %w", err)
	}
	stateSqlite, err := sqliteutil.OpenDB(marksdb.Schema, config.StateDb)
	if err != nil {
		keychainSqlite.Close()
		return nil, nil, fmt.Errorf("open state db: %w", err)
	}

	var scheduler marks.Scheduler
	var stopScheduler func()
	if withScheduler {
		cronScheduler := chrono.NewScheduler()
		scheduler = cronScheduler
		stopScheduler = cronScheduler.Stop
	}

	service := marks.NewService(stateSqlite, marks.Options{
		Keychain:         keychain.NewService(keychainSqlite),
		Notifier:         config.notifier(),
		Scheduler:        scheduler,
		NewPortal:        marks.NewPortalFactory(captcha.NewClient(config.Captcha)),
		SessionStaleness: time.Duration(config.SessionStalenessMinutes) * time.Minute,
	})

	cleanup := func() {
		if stopScheduler != nil {
			stopScheduler()
		}
		stateSqlite.Close()
		keychainSqlite.Close()
	}
	return service, cleanup, nil
}
