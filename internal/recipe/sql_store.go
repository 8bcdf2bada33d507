package recipe

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"recipelab/internal/config"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS recipes (
		id BIGINT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		ingredients TEXT NOT NULL DEFAULT '[]',
		instructions TEXT NOT NULL,
		image TEXT,
		author TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS scans (
		media_hash TEXT PRIMARY KEY,
		draft TEXT NOT NULL
	)`,
}

const recipeColumns = "id, title, description, ingredients, instructions, image, author"

// recipeRow is the database shape of a Recipe. Ingredients are stored as a
// JSON array so the same schema works on postgres and sqlite.
type recipeRow struct {
	ID           int64          `db:"id"`
	Title        string         `db:"title"`
	Description  string         `db:"description"`
	Ingredients  string         `db:"ingredients"`
	Instructions string         `db:"instructions"`
	Image        sql.NullString `db:"image"`
	Author       string         `db:"author"`
}

func (row *recipeRow) recipe() (*Recipe, error) {
	r := &Recipe{
		ID:           row.ID,
		Title:        row.Title,
		Description:  row.Description,
		Instructions: row.Instructions,
		Author:       row.Author,
	}
	if row.Image.Valid {
		img := row.Image.String
		r.Image = &img
	}
	if err := json.Unmarshal([]byte(row.Ingredients), &r.Ingredients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingredients: %w", err)
	}
	r.normalize()
	return r, nil
}

func rowFromRecipe(r *Recipe) (*recipeRow, error) {
	ingredients := r.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}
	data, err := json.Marshal(ingredients)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ingredients: %w", err)
	}
	row := &recipeRow{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Ingredients:  string(data),
		Instructions: r.Instructions,
		Author:       r.Author,
	}
	if r.Image != nil && *r.Image != "" {
		row.Image = sql.NullString{String: *r.Image, Valid: true}
	}
	return row, nil
}

// SQLStore implements Store on PostgreSQL or SQLite through sqlx.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore connects to the database and creates the schema if needed.
func NewSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if driver == config.DriverSQLite {
		// sqlite allows a single writer, and each :memory: connection is a
		// separate database.
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLStore{db: db}, nil
}

// ListRecipes implements Store.
func (s *SQLStore) ListRecipes(ctx context.Context, query string) ([]*Recipe, error) {
	q := "SELECT " + recipeColumns + " FROM recipes"
	var args []any
	if term := strings.ToLower(strings.TrimSpace(query)); term != "" {
		q += ` WHERE LOWER(title) LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(term)+"%")
	}
	q += " ORDER BY id"

	var rows []recipeRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}

	recipes := make([]*Recipe, 0, len(rows))
	for i := range rows {
		r, err := rows[i].recipe()
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, r)
	}
	return recipes, nil
}

// GetRecipe implements Store.
func (s *SQLStore) GetRecipe(ctx context.Context, id int64) (*Recipe, error) {
	return getRecipe(ctx, s.db, id)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func getRecipe(ctx context.Context, q queryer, id int64) (*Recipe, error) {
	var row recipeRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind("SELECT "+recipeColumns+" FROM recipes WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recipe %d: %w", id, err)
	}
	return row.recipe()
}

// CreateRecipe implements Store.
func (s *SQLStore) CreateRecipe(ctx context.Context, r *Recipe) (*Recipe, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	created := r.Clone()
	created.normalize()

	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if lock := idLockStatement(tx.DriverName()); lock != "" {
			if _, err := tx.ExecContext(ctx, lock); err != nil {
				return fmt.Errorf("failed to lock recipes: %w", err)
			}
		}
		var maxID int64
		if err := tx.GetContext(ctx, &maxID, "SELECT COALESCE(MAX(id), 0) FROM recipes"); err != nil {
			return fmt.Errorf("failed to allocate recipe id: %w", err)
		}
		created.ID = maxID + 1

		row, err := rowFromRecipe(created)
		if err != nil {
			return err
		}
		_, err = tx.NamedExecContext(ctx,
			"INSERT INTO recipes ("+recipeColumns+") VALUES (:id, :title, :description, :ingredients, :instructions, :image, :author)",
			row,
		)
		if err != nil {
			return fmt.Errorf("failed to insert recipe: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateRecipe implements Store.
func (s *SQLStore) UpdateRecipe(ctx context.Context, id int64, p Patch) (*Recipe, error) {
	var updated *Recipe
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := getRecipe(ctx, tx, id)
		if err != nil || current == nil {
			return err
		}
		if err := p.Apply(current); err != nil {
			return err
		}

		row, err := rowFromRecipe(current)
		if err != nil {
			return err
		}
		_, err = tx.NamedExecContext(ctx,
			`UPDATE recipes SET title = :title, description = :description, ingredients = :ingredients,
				instructions = :instructions, image = :image WHERE id = :id`,
			row,
		)
		if err != nil {
			return fmt.Errorf("failed to update recipe %d: %w", id, err)
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteRecipe implements Store.
func (s *SQLStore) DeleteRecipe(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM recipes WHERE id = ?"), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete recipe %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete recipe %d: %w", id, err)
	}
	return n > 0, nil
}

// GetScan implements Store.
func (s *SQLStore) GetScan(ctx context.Context, mediaHash string) (*Draft, error) {
	var data string
	err := s.db.GetContext(ctx, &data, s.db.Rebind("SELECT draft FROM scans WHERE media_hash = ?"), mediaHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}

	var d Draft
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan: %w", err)
	}
	return &d, nil
}

// SaveScan implements Store.
func (s *SQLStore) SaveScan(ctx context.Context, mediaHash string, d *Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal scan: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO scans (media_hash, draft) VALUES (?, ?) ON CONFLICT (media_hash) DO UPDATE SET draft = excluded.draft"),
		mediaHash,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save scan: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// idLockStatement returns the statement that serializes id allocation on
// driver, or "" when its single-connection pool already does.
func idLockStatement(driver string) string {
	if driver == config.DriverPostgres {
		return "LOCK TABLE recipes IN SHARE ROW EXCLUSIVE MODE"
	}
	return ""
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
