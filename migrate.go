package contacts

import (
	"context"
	"io/fs"
	"path"
	"sort"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RunMigrations applies the embedded schema files for the given dialect in
// filename order. Every statement is idempotent, so running at each boot is
// safe.
func RunMigrations(ctx context.Context, db *bun.DB, dialect string) error {
	root := path.Join("data/sql/migrations", dialect)

	entries, err := fs.ReadDir(migrationsFS, root)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read migrations for dialect "+dialect)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := fs.ReadFile(migrationsFS, path.Join(root, name))
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read migration "+name)
		}

		if _, err := db.ExecContext(ctx, string(raw)); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migration "+name)
		}
	}

	return nil
}
