// blob is the persistence collaborator: a single-table sqlite database
// holding the serialized "users" and "posts" snapshots as named blobs.
package blob

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

const (
	UsersBlob = "users"
	PostsBlob = "posts"
)

type DB struct {
	db *sql.DB
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, err
	}
	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate() error {
	_, err := d.db.ExecContext(context.Background(), `CREATE TABLE IF NOT EXISTS blobs(
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);`)
	return err
}

func (d *DB) Save(name string, data []byte) error {
	_, err := d.db.Exec(`INSERT INTO blobs(name,data,updated_at) VALUES(?,?,?)
		ON CONFLICT(name) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`,
		name, data, time.Now())
	return err
}

// Load returns nil data when the blob has never been saved, which the
// store treats as create-empty.
func (d *DB) Load(name string) ([]byte, error) {
	var data []byte
	err := d.db.QueryRow(`SELECT data FROM blobs WHERE name = ?`, name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
