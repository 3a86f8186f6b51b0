package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/stemsi/exstem-admin/internal/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply or roll back the database schema",
		SilenceUsage: true,
	}
	f := root.PersistentFlags()
	f.String("path", "migrations", "Path to migration files")
	f.String("database", "", "Database URL (defaults to DATABASE_URL)")

	root.AddCommand(
		&cobra.Command{
			Use:   "up [N]",
			Short: "Apply all or N pending migrations",
			Args:  cobra.MaximumNArgs(1),
			RunE: withMigrate(func(m *migrate.Migrate, args []string) error {
				n, err := optionalSteps(args)
				if err != nil {
					return err
				}
				if n == 0 {
					return ignoreNoChange(m.Up())
				}
				return ignoreNoChange(m.Steps(n))
			}),
		},
		&cobra.Command{
			Use:   "down [N]",
			Short: "Roll back N migrations (default 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: withMigrate(func(m *migrate.Migrate, args []string) error {
				n, err := optionalSteps(args)
				if err != nil {
					return err
				}
				if n == 0 {
					n = 1
				}
				return ignoreNoChange(m.Steps(-n))
			}),
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: withMigrate(func(m *migrate.Migrate, _ []string) error {
				return ignoreNoChange(m.Down())
			}),
		},
		&cobra.Command{
			Use:   "goto VERSION",
			Short: "Migrate up or down to VERSION",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrate(func(m *migrate.Migrate, args []string) error {
				v, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return ignoreNoChange(m.Migrate(uint(v)))
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set VERSION without running migrations and clear the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrate(func(m *migrate.Migrate, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return m.Force(v)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: withMigrate(func(m *migrate.Migrate, _ []string) error {
				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					fmt.Println("Version: none")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Printf("Version: %d, Dirty: %t\n", version, dirty)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "create NAME",
			Short: "Write an empty up/down pair with the next sequence number",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				dir, _ := cmd.Flags().GetString("path")
				files, err := createMigration(dir, args[0])
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Println(f)
				}
				return nil
			},
		},
	)
	return root
}

// withMigrate opens the migrator from the command's flags, runs fn, and
// closes it.
func withMigrate(fn func(m *migrate.Migrate, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		dbURL, _ := cmd.Flags().GetString("database")
		if dbURL == "" {
			dbURL = config.Load().DatabaseURL
		}
		if dbURL == "" {
			return errors.New("DATABASE_URL is not set")
		}

		m, err := migrate.New("file://"+path, dbURL)
		if err != nil {
			return fmt.Errorf("initialize migrations: %w", err)
		}
		defer m.Close()

		if err := fn(m, args); err != nil {
			return err
		}
		fmt.Printf("%s: done\n", cmd.Name())
		return nil
	}
}

func optionalSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid step count %q", args[0])
	}
	return n, nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

var (
	migrationFile = regexp.MustCompile(`^(\d+)_.+\.(up|down)\.sql$`)
	migrationName = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// createMigration writes NNNNNN_name.{up,down}.sql in dir, numbered one past
// the highest existing version.
func createMigration(dir, name string) ([]string, error) {
	if !migrationName.MatchString(name) {
		return nil, fmt.Errorf("invalid migration name %q: use lowercase letters, digits and underscores", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var last uint64
	for _, e := range entries {
		m := migrationFile.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if v, err := strconv.ParseUint(m[1], 10, 64); err == nil && v > last {
			last = v
		}
	}

	base := fmt.Sprintf("%06d_%s", last+1, name)
	var created []string
	for _, dirn := range []string{"up", "down"} {
		path := filepath.Join(dir, base+"."+dirn+".sql")
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return created, err
		}
		if err := f.Close(); err != nil {
			return created, err
		}
		created = append(created, path)
	}
	return created, nil
}
