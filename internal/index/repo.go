package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/gistblog/internal/apperr"
	"github.com/starford/gistblog/internal/models"
)

// PostRow is the summary of an indexed post.
type PostRow struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Checksum    string    `json:"-"`
	Tags        []string  `json:"tags"`
	WordCount   int       `json:"word_count"`
	ReadingTime string    `json:"reading_time"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// UpsertPost inserts or replaces a post, its FTS entry, and its tags within a transaction.
func (db *DB) UpsertPost(p models.Post, checksum string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("index: encode post: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO posts (id, title, description, url, checksum, tags, body, doc, word_count, reading_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title        = excluded.title,
			description  = excluded.description,
			url          = excluded.url,
			checksum     = excluded.checksum,
			tags         = excluded.tags,
			body         = excluded.body,
			doc          = excluded.doc,
			word_count   = excluded.word_count,
			reading_time = excluded.reading_time,
			created_at   = excluded.created_at,
			updated_at   = excluded.updated_at
	`, p.ID, p.Title, p.Description, p.URL, checksum, string(tagsJSON), p.Content, string(doc),
		p.WordCount, p.ReadingTime, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert post: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, p.ID, p.Title, p.Content, tags); err != nil {
		return err
	}

	// Replace tags: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM post_tags WHERE post_id = ?`, p.ID)
	if len(tags) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO post_tags (post_id, tag) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare tag insert: %w", err)
		}
		defer stmt.Close()
		for _, tag := range tags {
			if _, err := stmt.Exec(p.ID, tag); err != nil {
				return fmt.Errorf("index: insert tag: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeletePost removes a post, its FTS entry, and its tags.
func (db *DB) DeletePost(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM post_tags WHERE post_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM posts WHERE id = ?`, id)

	return tx.Commit()
}

// GetPost returns the full stored post or apperr.ErrNotFound.
func (db *DB) GetPost(id string) (*models.Post, error) {
	var doc string
	err := db.conn.QueryRow(`SELECT doc FROM posts WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get post: %w", err)
	}
	var p models.Post
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("index: decode post %s: %w", id, err)
	}
	return &p, nil
}

// ListPosts returns a newest-first page of posts, optionally filtered by tag,
// together with the total number of matching posts.
func (db *DB) ListPosts(limit, offset int, tag string) ([]PostRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []any{}
	if tag != "" {
		where = `WHERE id IN (SELECT post_id FROM post_tags WHERE tag = ?)`
		args = append(args, tag)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM posts `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count posts: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, title, description, url, checksum, tags, word_count, reading_time, created_at, updated_at
		FROM posts `+where+`
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list posts: %w", err)
	}
	defer rows.Close()

	out := []PostRow{}
	for rows.Next() {
		var (
			r        PostRow
			tagsJSON string
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.URL, &r.Checksum, &tagsJSON,
			&r.WordCount, &r.ReadingTime, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &r.Tags)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// AllChecksums returns the checksum of every indexed post keyed by id.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM posts`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}
