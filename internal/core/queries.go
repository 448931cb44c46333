package core

// SQL used against the user store and the per-database migration tracker.
const (
	CreateUsersTable = `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		username_hash TEXT NOT NULL UNIQUE,
		username_password_hash TEXT NOT NULL
	);`

	CreateUsersDatabaseAccessTable = `
	CREATE TABLE IF NOT EXISTS users_database_access (
		id INTEGER PRIMARY KEY,
		database TEXT NOT NULL,
		access_right INTEGER NOT NULL DEFAULT 1,
		username_hash TEXT NOT NULL,
		UNIQUE(database, username_hash),
		FOREIGN KEY (username_hash)
		REFERENCES users (username_hash)
			ON UPDATE CASCADE
			ON DELETE CASCADE
	);`

	GetUsersAndAccess = `
	SELECT
		u.username,
		u.username_hash,
		u.username_password_hash,
		a.database,
		a.access_right
	FROM users u INNER JOIN users_database_access a USING(username_hash);`

	InsertUser = `
	INSERT OR IGNORE INTO users(
		username,
		username_hash,
		username_password_hash
	) VALUES(?, ?, ?);`

	UpsertUserDatabaseAccess = `
	INSERT INTO users_database_access(
		database,
		access_right,
		username_hash
	) VALUES(?, ?, ?)
	ON CONFLICT(database, username_hash)
	DO UPDATE SET access_right = excluded.access_right;`

	CreateMigrationsTable = `
	CREATE TABLE IF NOT EXISTS __migrations_tracker_t__ (
		id INTEGER PRIMARY KEY,
		name TEXT UNIQUE,
		sql TEXT
	);`

	InsertMigration = `
	INSERT INTO __migrations_tracker_t__(
		name,
		sql
	) VALUES(?, ?);`
)
