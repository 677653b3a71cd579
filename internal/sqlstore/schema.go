package sqlstore

// Schema DDL. Statements are idempotent so Open can run them on every start.
// Owners are stored as the lowercased username.
const (
	createProductsSQLite = `CREATE TABLE IF NOT EXISTS products (
    owner TEXT NOT NULL,
    id INTEGER NOT NULL,
    name TEXT NOT NULL,
    price REAL NOT NULL,
    quantity INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (owner, id)
);`

	createUsersSQLite = `CREATE TABLE IF NOT EXISTS users (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    username_key TEXT NOT NULL UNIQUE,
    username TEXT NOT NULL,
    password TEXT NOT NULL,
    created_at TEXT NOT NULL,
    is_admin INTEGER NOT NULL DEFAULT 0
);`

	createProductsPostgres = `CREATE TABLE IF NOT EXISTS products (
    owner TEXT NOT NULL,
    id BIGINT NOT NULL,
    name TEXT NOT NULL,
    price DOUBLE PRECISION NOT NULL,
    quantity BIGINT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (owner, id)
);`

	createUsersPostgres = `CREATE TABLE IF NOT EXISTS users (
    seq BIGSERIAL PRIMARY KEY,
    username_key TEXT NOT NULL UNIQUE,
    username TEXT NOT NULL,
    password TEXT NOT NULL,
    created_at TEXT NOT NULL,
    is_admin INTEGER NOT NULL DEFAULT 0
);`
)

// Index DDL shared by both dialects.
const (
	idxProductsOwner = `CREATE INDEX IF NOT EXISTS idx_products_owner ON products(owner);`
)

// sqlitePragmas run on every new SQLite connection.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
}

// schemaDDL returns the statements for the dialect in execution order.
func schemaDDL(d dialect) []string {
	if d == dialectPostgres {
		return []string{createProductsPostgres, createUsersPostgres, idxProductsOwner}
	}
	return []string{createProductsSQLite, createUsersSQLite, idxProductsOwner}
}
