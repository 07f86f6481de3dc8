package store

// schemaSQL creates the installed-files ledger. Applied once per prefix,
// idempotently, when a PrefixStore is opened.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS packages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT UNIQUE NOT NULL,
	version TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS packages_files (
	package_id INTEGER NOT NULL REFERENCES packages(id),
	file_path TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS packages_dependencies (
	package_id INTEGER NOT NULL REFERENCES packages(id),
	dependency_id TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS packages_files_package_id ON packages_files(package_id);
CREATE INDEX IF NOT EXISTS packages_dependencies_package_id ON packages_dependencies(package_id);
`
