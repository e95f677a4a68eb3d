package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/brandhub/internal/model"
	"github.com/lib/pq"
)

const postColumns = `id, title, description, content, category, featured, date, read_time, author, tags, views, likes`

// ListPosts は全記事を登録順で返す。
func (r *PostgresStore) ListPosts(ctx context.Context) ([]model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// FindPost は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresStore) FindPost(ctx context.Context, id string) (*model.Post, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	return post, nil
}

// CreatePost は記事を作成する。一意制約違反はErrDuplicatePostに変換する。
func (r *PostgresStore) CreatePost(ctx context.Context, post *model.Post) error {
	if post.Tags == nil {
		post.Tags = []string{}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		post.ID, post.Title, post.Description, post.Content, post.Category, post.Featured,
		post.Date, post.ReadTime, post.Author, pq.Array(post.Tags), post.Views, post.Likes,
	)
	if isUniqueViolation(err) {
		return model.ErrDuplicatePost
	}
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

// UpdatePost は行ロックを取って記事を読み込み、パッチを適用して全カラムを書き戻す。
// JSONStoreと同じトップレベル単位のマージになる。
func (r *PostgresStore) UpdatePost(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	post, err := scanPost(tx.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1 FOR UPDATE`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}

	patch.Apply(post)

	_, err = tx.ExecContext(ctx,
		`UPDATE posts SET
		   title = $2, description = $3, content = $4, category = $5, featured = $6, date = $7,
		   read_time = $8, author = $9, tags = $10, views = $11, likes = $12, updated_at = now()
		 WHERE id = $1`,
		post.ID, post.Title, post.Description, post.Content, post.Category, post.Featured, post.Date,
		post.ReadTime, post.Author, pq.Array(post.Tags), post.Views, post.Likes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return post, nil
}

// DeletePost は記事を削除する。
func (r *PostgresStore) DeletePost(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanPost(row rowScanner) (*model.Post, error) {
	post := &model.Post{}
	var tags pq.StringArray
	err := row.Scan(
		&post.ID, &post.Title, &post.Description, &post.Content, &post.Category, &post.Featured,
		&post.Date, &post.ReadTime, &post.Author, &tags, &post.Views, &post.Likes,
	)
	if err != nil {
		return nil, err
	}
	post.Tags = []string(tags)
	if post.Tags == nil {
		post.Tags = []string{}
	}
	return post, nil
}
