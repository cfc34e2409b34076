package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/Hynox-org/aharraa-server/internal/bootstrap"
	"github.com/Hynox-org/aharraa-server/pkg/db"
	"github.com/Hynox-org/aharraa-server/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", "", "goose migrations directory (empty uses the embedded set)")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if handled, err := runFileCommand(opts); handled {
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", opts.cmd, err)
			os.Exit(1)
		}
		return
	}

	proc := bootstrap.Start("migrate")
	ctx := proc.Logger.WithFields(context.Background(), map[string]any{
		"env":    proc.Config.App.Env,
		"cmd":    opts.cmd,
		"dir":    opts.dir,
		"sqlite": proc.Config.FeatureFlags.UseSQLite,
	})

	client, err := db.New(ctx, proc.Config.DB, proc.Config.FeatureFlags, proc.Logger)
	proc.Must("database", err)
	proc.OnClose("database", client.Close)

	sqlDB, err := client.DB().DB()
	proc.Must("sql database", err)

	proc.Logger.Info(ctx, "migrate ready")
	if proc.Config.FeatureFlags.UseSQLite {
		if opts.cmd != "up" {
			err = errors.New("sqlite only supports -cmd=up")
		} else {
			err = migrate.BootstrapSQLite(ctx, sqlDB)
		}
		proc.Finish(ctx, err)
		return
	}

	src := migrate.Source{Dir: opts.dir, Dialect: migrate.DialectPostgres}
	switch opts.cmd {
	case "up", "down", "status":
		err = migrate.Run(ctx, sqlDB, src, opts.cmd)
	case "version":
		if opts.version == "" {
			err = errors.New("missing -version for version command")
			break
		}
		err = migrate.MigrateToVersion(ctx, sqlDB, src, opts.version)
	default:
		err = fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
	proc.Finish(ctx, err)
}

// runFileCommand handles the commands that only touch migration files and
// never need config or a database.
func runFileCommand(opts options) (bool, error) {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return true, errors.New("missing -name")
		}
		dir := opts.dir
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(dir, opts.name)
		if err == nil {
			fmt.Println("created migration:", path)
		}
		return true, err
	case "validate":
		err := migrate.ValidateDir(opts.dir)
		if err == nil {
			fmt.Println("migration validation passed")
		}
		return true, err
	}
	return false, nil
}
