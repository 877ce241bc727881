// Package corpus loads and persists the immutable process-wide handles
// the retrieval pipeline reads from: query captions and entities,
// article entity payloads, and the Article<->Image relationship. Per
// SPEC_FULL's design notes, these are constructed once at startup and
// never mutated afterward; concurrent readers need no locking beyond
// what the backing SQLite connection pool provides.
package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
)

// Store is a read-mostly handle over the corpus tables: queries,
// articles (with their entities), and the article/image relationship.
type Store struct {
	mu sync.RWMutex
	db *sql.DB

	articleImages map[string][]string // article ID -> image IDs
	imageArticle  map[string]string   // image ID -> article ID
}

// Open creates or opens a SQLite-backed corpus store at path. An empty
// path opens an in-memory database, useful for tests and small batch
// runs.
func Open(path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	} else if _, err := os.Stat(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("corpus: stat %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("corpus: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // single-writer WAL pattern; readers go through this handle too

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("corpus: enable WAL: %w", err)
	}

	s := &Store{db: db, articleImages: make(map[string][]string), imageArticle: make(map[string]string)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadRelationship(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS articles (
			id TEXT PRIMARY KEY
		);
		CREATE TABLE IF NOT EXISTS article_entities (
			article_id TEXT NOT NULL,
			text TEXT NOT NULL,
			label TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS images (
			id TEXT PRIMARY KEY,
			article_id TEXT NOT NULL REFERENCES articles(id)
		);
		CREATE INDEX IF NOT EXISTS idx_images_article ON images(article_id);
		CREATE INDEX IF NOT EXISTS idx_article_entities_article ON article_entities(article_id);
	`)
	if err != nil {
		return fmt.Errorf("corpus: migrate schema: %w", err)
	}
	return nil
}

func (s *Store) loadRelationship() error {
	rows, err := s.db.Query(`SELECT id, article_id FROM images`)
	if err != nil {
		return fmt.Errorf("corpus: load image relationship: %w", err)
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var imageID, articleID string
		if err := rows.Scan(&imageID, &articleID); err != nil {
			return fmt.Errorf("corpus: scan image row: %w", err)
		}
		s.imageArticle[imageID] = articleID
		s.articleImages[articleID] = append(s.articleImages[articleID], imageID)
	}
	return rows.Err()
}

// PutArticle inserts or replaces an article and its entity payload.
func (s *Store) PutArticle(ctx context.Context, articleID string, entities []model.Entity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("corpus: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO articles(id) VALUES (?)`, articleID); err != nil {
		return fmt.Errorf("corpus: insert article: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM article_entities WHERE article_id = ?`, articleID); err != nil {
		return fmt.Errorf("corpus: clear entities: %w", err)
	}
	for _, e := range entities {
		if _, err := tx.ExecContext(ctx, `INSERT INTO article_entities(article_id, text, label) VALUES (?, ?, ?)`,
			articleID, e.Text, string(e.Label)); err != nil {
			return fmt.Errorf("corpus: insert entity: %w", err)
		}
	}
	return tx.Commit()
}

// PutImage records that imageID belongs to articleID.
func (s *Store) PutImage(ctx context.Context, imageID, articleID string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO images(id, article_id) VALUES (?, ?)`, imageID, articleID); err != nil {
		return fmt.Errorf("corpus: insert image: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.imageArticle[imageID]; ok {
		s.articleImages[old] = removeString(s.articleImages[old], imageID)
	}
	s.imageArticle[imageID] = articleID
	s.articleImages[articleID] = appendUnique(s.articleImages[articleID], imageID)
	return nil
}

// ArticleEntities returns the entity payload indexed for an article.
func (s *Store) ArticleEntities(ctx context.Context, articleID string) ([]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT text, label FROM article_entities WHERE article_id = ?`, articleID)
	if err != nil {
		return nil, fmt.Errorf("corpus: query entities: %w", err)
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var text, label string
		if err := rows.Scan(&text, &label); err != nil {
			return nil, fmt.Errorf("corpus: scan entity: %w", err)
		}
		out = append(out, model.Entity{Text: text, Label: model.EntityLabel(label)})
	}
	return out, rows.Err()
}

// AllArticleIDs returns every article ID in the corpus.
func (s *Store) AllArticleIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM articles`)
	if err != nil {
		return nil, fmt.Errorf("corpus: query articles: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ImagesForArticles implements pipeline.Corpus: the candidate image-ID
// set belonging to any of the given articles.
func (s *Store) ImagesForArticles(articleIDs []string) map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool)
	for _, a := range articleIDs {
		for _, img := range s.articleImages[a] {
			out[img] = true
		}
	}
	return out
}

// ArticleForImage implements pipeline.Corpus: the owning article for an
// image, if known.
func (s *Store) ArticleForImage(imageID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.imageArticle[imageID]
	return a, ok
}

// CheckConsistency verifies the Image->Article totality invariant: every
// image must resolve to exactly one article, and every article it
// references must exist. It returns the orphaned image IDs, if any.
func (s *Store) CheckConsistency(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT images.id FROM images
		LEFT JOIN articles ON images.article_id = articles.id
		WHERE articles.id IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("corpus: consistency query: %w", err)
	}
	defer rows.Close()

	var orphans []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		orphans = append(orphans, id)
	}
	return orphans, rows.Err()
}

// Compact removes orphaned image rows (images whose article no longer
// exists) and returns how many were deleted. Call after bulk article
// deletions to keep ImagesForArticles/ArticleForImage accurate.
func (s *Store) Compact(ctx context.Context) (int, error) {
	orphans, err := s.CheckConsistency(ctx)
	if err != nil {
		return 0, err
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("corpus: begin compact tx: %w", err)
	}
	defer tx.Rollback()

	for _, imageID := range orphans {
		if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, imageID); err != nil {
			return 0, fmt.Errorf("corpus: delete orphan image %s: %w", imageID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("corpus: commit compact tx: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, imageID := range orphans {
		if articleID, ok := s.imageArticle[imageID]; ok {
			s.articleImages[articleID] = removeString(s.articleImages[articleID], imageID)
			delete(s.imageArticle, imageID)
		}
	}
	return len(orphans), nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func removeString(ss []string, target string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

func appendUnique(ss []string, v string) []string {
	for _, s := range ss {
		if s == v {
			return ss
		}
	}
	return append(ss, v)
}
