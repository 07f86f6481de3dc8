package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// record is the installed-package ledger row plus its child rows,
// grounded on PackageDbRecord / PackageDbConnection in
// original_source/pahkat-client-core/src/package_store/prefix.rs.
type record struct {
	id           int64
	url          string
	version      string
	files        []string
	dependencies []string
}

// findByURL looks up a record by its canonical package-key string.
func findByURL(conn *sqlite.Conn, url string) (*record, error) {
	var rec *record
	err := sqlitex.Execute(conn,
		`SELECT id, version FROM packages WHERE url = ? LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{url},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rec = &record{
					id:      stmt.ColumnInt64(0),
					url:     url,
					version: stmt.ColumnText(1),
				}
				return nil
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("store: querying package row: %w", err)
	}
	if rec == nil {
		return nil, nil
	}

	files, err := queryStrings(conn,
		`SELECT file_path FROM packages_files WHERE package_id = ?`, rec.id)
	if err != nil {
		return nil, fmt.Errorf("store: querying package files: %w", err)
	}
	rec.files = files

	deps, err := queryStrings(conn,
		`SELECT dependency_id FROM packages_dependencies WHERE package_id = ?`, rec.id)
	if err != nil {
		return nil, fmt.Errorf("store: querying package dependencies: %w", err)
	}
	rec.dependencies = deps

	return rec, nil
}

func queryStrings(conn *sqlite.Conn, query string, arg int64) ([]string, error) {
	var out []string
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{arg},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out = append(out, stmt.ColumnText(0))
			return nil
		},
	})
	return out, err
}

// replace upserts rec's packages row and replaces its files/dependencies
// child rows, in a single transaction: any prior row with the same url
// has its files and dependencies rows deleted and reinserted.
func replace(conn *sqlite.Conn, rec *record) (err error) {
	endSavepoint := sqlitex.Save(conn)
	defer endSavepoint(&err)

	if err = sqlitex.Execute(conn,
		`INSERT INTO packages(url, version) VALUES (?, ?)
		 ON CONFLICT(url) DO UPDATE SET version = excluded.version`,
		&sqlitex.ExecOptions{Args: []any{rec.url, rec.version}},
	); err != nil {
		return fmt.Errorf("store: upserting package row: %w", err)
	}

	id, err := packageIDByURL(conn, rec.url)
	if err != nil {
		return err
	}
	rec.id = id

	if err = sqlitex.Execute(conn,
		`DELETE FROM packages_files WHERE package_id = ?`,
		&sqlitex.ExecOptions{Args: []any{id}},
	); err != nil {
		return fmt.Errorf("store: clearing package files: %w", err)
	}
	if err = sqlitex.Execute(conn,
		`DELETE FROM packages_dependencies WHERE package_id = ?`,
		&sqlitex.ExecOptions{Args: []any{id}},
	); err != nil {
		return fmt.Errorf("store: clearing package dependencies: %w", err)
	}

	for _, path := range rec.files {
		if err = sqlitex.Execute(conn,
			`INSERT INTO packages_files(package_id, file_path) VALUES (?, ?)`,
			&sqlitex.ExecOptions{Args: []any{id, path}},
		); err != nil {
			return fmt.Errorf("store: inserting package file: %w", err)
		}
	}
	for _, dep := range rec.dependencies {
		if err = sqlitex.Execute(conn,
			`INSERT INTO packages_dependencies(package_id, dependency_id) VALUES (?, ?)`,
			&sqlitex.ExecOptions{Args: []any{id, dep}},
		); err != nil {
			return fmt.Errorf("store: inserting package dependency: %w", err)
		}
	}

	return nil
}

func packageIDByURL(conn *sqlite.Conn, url string) (int64, error) {
	var id int64
	var found bool
	err := sqlitex.Execute(conn,
		`SELECT id FROM packages WHERE url = ?`,
		&sqlitex.ExecOptions{
			Args: []any{url},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id = stmt.ColumnInt64(0)
				found = true
				return nil
			},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("store: looking up package id: %w", err)
	}
	if !found {
		return 0, fmt.Errorf("store: no package row for url %q after upsert", url)
	}
	return id, nil
}

// remove deletes rec's packages row and its child rows in a single
// transaction.
func remove(conn *sqlite.Conn, rec *record) (err error) {
	endSavepoint := sqlitex.Save(conn)
	defer endSavepoint(&err)

	if err = sqlitex.Execute(conn,
		`DELETE FROM packages_files WHERE package_id = ?`,
		&sqlitex.ExecOptions{Args: []any{rec.id}},
	); err != nil {
		return fmt.Errorf("store: deleting package files: %w", err)
	}
	if err = sqlitex.Execute(conn,
		`DELETE FROM packages_dependencies WHERE package_id = ?`,
		&sqlitex.ExecOptions{Args: []any{rec.id}},
	); err != nil {
		return fmt.Errorf("store: deleting package dependencies: %w", err)
	}
	if err = sqlitex.Execute(conn,
		`DELETE FROM packages WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{rec.id}},
	); err != nil {
		return fmt.Errorf("store: deleting package row: %w", err)
	}

	return nil
}
