// Package migrate applies the goose SQL migrations, either the copy embedded
// in every binary or a directory on disk.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var Embedded embed.FS

// Source is a filesystem with the .sql files at its root.
type Source struct {
	Name string
	FS   fs.FS
}

func EmbeddedSource() Source {
	sub, err := fs.Sub(Embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return Source{Name: "embedded", FS: sub}
}

func DirSource(dir string) Source {
	return Source{Name: dir, FS: os.DirFS(dir)}
}

// Step is one migration applied or reported by a command.
type Step struct {
	Version int64
	Path    string
	State   string
}

// Runner executes goose commands for one database and source.
type Runner struct {
	provider *goose.Provider
}

func NewRunner(db *sql.DB, src Source) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if src.FS == nil {
		return nil, errors.New("migration source is required")
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, src.FS)
	if err != nil {
		return nil, fmt.Errorf("goose provider (%s): %w", src.Name, err)
	}
	return &Runner{provider: p}, nil
}

func (r *Runner) Up(ctx context.Context) ([]Step, error) {
	results, err := r.provider.Up(ctx)
	return resultSteps(results...), wrap("up", err)
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) ([]Step, error) {
	result, err := r.provider.Down(ctx)
	if result == nil {
		return nil, wrap("down", err)
	}
	return resultSteps(result), wrap("down", err)
}

func (r *Runner) Status(ctx context.Context) ([]Step, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, wrap("status", err)
	}
	steps := make([]Step, 0, len(statuses))
	for _, s := range statuses {
		steps = append(steps, Step{Version: s.Source.Version, Path: s.Source.Path, State: string(s.State)})
	}
	return steps, nil
}

// To moves the schema up or down until version is the newest applied.
func (r *Runner) To(ctx context.Context, version string) ([]Step, error) {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("version %q is not YYYYMMDDHHMMSS: %w", version, err)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, wrap("version", err)
	}
	switch {
	case current == target:
		return nil, nil
	case current < target:
		results, err := r.provider.UpTo(ctx, target)
		return resultSteps(results...), wrap("up-to", err)
	default:
		results, err := r.provider.DownTo(ctx, target)
		return resultSteps(results...), wrap("down-to", err)
	}
}

// Exec dispatches a CLI command name.
func (r *Runner) Exec(ctx context.Context, command, version string) ([]Step, error) {
	switch command {
	case "up":
		return r.Up(ctx)
	case "down":
		return r.Down(ctx)
	case "status":
		return r.Status(ctx)
	case "version":
		if version == "" {
			return nil, errors.New("version command needs a target version")
		}
		return r.To(ctx, version)
	default:
		return nil, fmt.Errorf("unknown migrate command %q", command)
	}
}

func resultSteps(results ...*goose.MigrationResult) []Step {
	steps := make([]Step, 0, len(results))
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		steps = append(steps, Step{Version: res.Source.Version, Path: res.Source.Path, State: res.Direction})
	}
	return steps
}

func wrap(command string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("goose %s: %w", command, err)
}
