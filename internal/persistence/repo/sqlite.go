// Package repo is the durable entity store. Every mutation is committed
// before it is considered visible to other sessions; the pickup and respawn
// paths rely on the transactional helpers here for their atomicity.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"mossvale/internal/sim/model"
)

// ErrNotFound is returned when a looked-up entity does not exist.
var ErrNotFound = errors.New("repo: not found")

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: sqlite has a single writer anyway and this keeps
	// read-modify-write helpers serialized without busy retries.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Handle exposes the underlying database for collaborators that keep their
// own tables (the local identity provider).
func (s *Store) Handle() *sql.DB { return s.db }

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS users (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS entities (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS instanced_entities (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	x         REAL NOT NULL,
	y         REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS actors (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id             INTEGER NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
	instanced_entity_id INTEGER NOT NULL UNIQUE REFERENCES instanced_entities(id) ON DELETE CASCADE,
	avatar_id           INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL,
	item_type   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS world_items (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	x       REAL NOT NULL,
	y       REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS inventories (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	actor_id INTEGER NOT NULL REFERENCES actors(id) ON DELETE CASCADE,
	item_id  INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
	quantity INTEGER NOT NULL DEFAULT 1,
	UNIQUE(actor_id, item_id)
);
`
	_, err := db.Exec(schema)
	return err
}

func (s *Store) GetOrCreateUser(ctx context.Context, username string) (*model.User, error) {
	u := &model.User{Username: username}
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&u.ID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (username) VALUES (?)`, username)
	if err != nil {
		return nil, err
	}
	u.ID, err = res.LastInsertId()
	return u, err
}

func (s *Store) CreateEntity(ctx context.Context, name string) (*model.Entity, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO entities (name) VALUES (?)`, name)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.Entity{ID: id, Name: name}, nil
}

func (s *Store) CreateInstancedEntity(ctx context.Context, e *model.Entity, x, y float64) (*model.InstancedEntity, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO instanced_entities (entity_id, x, y) VALUES (?, ?, ?)`, e.ID, x, y)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.InstancedEntity{ID: id, X: x, Y: y, Entity: e}, nil
}

func (s *Store) CreateActor(ctx context.Context, user *model.User, ie *model.InstancedEntity, avatarID int64) (*model.Actor, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO actors (user_id, instanced_entity_id, avatar_id) VALUES (?, ?, ?)`,
		user.ID, ie.ID, avatarID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.Actor{ID: id, UserID: user.ID, InstancedEntity: ie, AvatarID: avatarID}, nil
}

// ActorByUser resolves the actor owned by a user, with its instanced entity
// and entity loaded. ErrNotFound when the user has no character.
func (s *Store) ActorByUser(ctx context.Context, userID int64) (*model.Actor, error) {
	a := &model.Actor{
		UserID:          userID,
		InstancedEntity: &model.InstancedEntity{Entity: &model.Entity{}},
	}
	ie := a.InstancedEntity
	err := s.db.QueryRowContext(ctx, `
SELECT a.id, a.avatar_id, ie.id, ie.x, ie.y, e.id, e.name
FROM actors a
JOIN instanced_entities ie ON ie.id = a.instanced_entity_id
JOIN entities e ON e.id = ie.entity_id
WHERE a.user_id = ?`, userID).
		Scan(&a.ID, &a.AvatarID, &ie.ID, &ie.X, &ie.Y, &ie.Entity.ID, &ie.Entity.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// SavePosition persists an instanced entity's coordinates.
func (s *Store) SavePosition(ctx context.Context, ie *model.InstancedEntity) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE instanced_entities SET x = ?, y = ? WHERE id = ?`, ie.X, ie.Y, ie.ID)
	return err
}

// GetOrCreateItem resolves a catalog item by name, creating it on first use.
// The bool reports whether the row was created.
func (s *Store) GetOrCreateItem(ctx context.Context, name, description, itemType string) (*model.Item, bool, error) {
	it := &model.Item{Name: name, Description: description, ItemType: itemType}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, description, item_type FROM items WHERE name = ?`, name).
		Scan(&it.ID, &it.Description, &it.ItemType)
	if err == nil {
		return it, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO items (name, description, item_type) VALUES (?, ?, ?)`,
		name, description, itemType)
	if err != nil {
		return nil, false, err
	}
	it.ID, err = res.LastInsertId()
	return it, true, err
}

// WorldItems lists every placed item with its catalog entry loaded.
func (s *Store) WorldItems(ctx context.Context) ([]*model.WorldItem, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT wi.id, wi.x, wi.y, i.id, i.name, i.description, i.item_type
FROM world_items wi
JOIN items i ON i.id = wi.item_id
ORDER BY wi.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.WorldItem
	for rows.Next() {
		wi := &model.WorldItem{Item: &model.Item{}}
		if err := rows.Scan(&wi.ID, &wi.X, &wi.Y,
			&wi.Item.ID, &wi.Item.Name, &wi.Item.Description, &wi.Item.ItemType); err != nil {
			return nil, err
		}
		out = append(out, wi)
	}
	return out, rows.Err()
}

func (s *Store) WorldItemByID(ctx context.Context, id int64) (*model.WorldItem, error) {
	wi := &model.WorldItem{ID: id, Item: &model.Item{}}
	err := s.db.QueryRowContext(ctx, `
SELECT wi.x, wi.y, i.id, i.name, i.description, i.item_type
FROM world_items wi
JOIN items i ON i.id = wi.item_id
WHERE wi.id = ?`, id).
		Scan(&wi.X, &wi.Y, &wi.Item.ID, &wi.Item.Name, &wi.Item.Description, &wi.Item.ItemType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return wi, nil
}

// SpawnWorldItemIfAbsent places a world item for the catalog entry unless one
// already exists anywhere in the world. The existence check and insert run in
// one transaction, so concurrent respawn timers spawn at most one instance.
func (s *Store) SpawnWorldItemIfAbsent(ctx context.Context, item *model.Item, x, y float64) (*model.WorldItem, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM world_items WHERE item_id = ?`, item.ID).Scan(&n); err != nil {
		return nil, false, err
	}
	if n > 0 {
		return nil, false, nil
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO world_items (item_id, x, y) VALUES (?, ?, ?)`, item.ID, x, y)
	if err != nil {
		return nil, false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &model.WorldItem{ID: id, Item: item, X: x, Y: y}, true, nil
}

// ConsumeWorldItem removes a world item and credits it to the actor's
// inventory in one transaction. A concurrent consume of the same id sees
// zero rows deleted and gets ErrNotFound, so a pickup can never double-count
// or double-remove.
func (s *Store) ConsumeWorldItem(ctx context.Context, worldItemID, actorID int64) (*model.InventoryEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	item := &model.Item{}
	err = tx.QueryRowContext(ctx, `
SELECT i.id, i.name, i.description, i.item_type
FROM world_items wi
JOIN items i ON i.id = wi.item_id
WHERE wi.id = ?`, worldItemID).
		Scan(&item.ID, &item.Name, &item.Description, &item.ItemType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM world_items WHERE id = ?`, worldItemID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO inventories (actor_id, item_id, quantity) VALUES (?, ?, 1)
ON CONFLICT(actor_id, item_id) DO UPDATE SET quantity = quantity + 1`,
		actorID, item.ID); err != nil {
		return nil, err
	}

	entry := &model.InventoryEntry{ActorID: actorID, Item: item}
	if err := tx.QueryRowContext(ctx,
		`SELECT id, quantity FROM inventories WHERE actor_id = ? AND item_id = ?`,
		actorID, item.ID).Scan(&entry.ID, &entry.Quantity); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return entry, nil
}

// InventoryFor lists the actor's inventory entries with catalog items loaded.
func (s *Store) InventoryFor(ctx context.Context, actorID int64) ([]*model.InventoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT inv.id, inv.quantity, i.id, i.name, i.description, i.item_type
FROM inventories inv
JOIN items i ON i.id = inv.item_id
WHERE inv.actor_id = ?
ORDER BY inv.id`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.InventoryEntry
	for rows.Next() {
		e := &model.InventoryEntry{ActorID: actorID, Item: &model.Item{}}
		if err := rows.Scan(&e.ID, &e.Quantity,
			&e.Item.ID, &e.Item.Name, &e.Item.Description, &e.Item.ItemType); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
