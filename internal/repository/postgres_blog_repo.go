package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/quill/internal/model"
)

// blogColumns はblogsテーブルのSELECT対象カラム。スキャン順はscanBlogRowと一致させること。
const blogColumns = `id, title, content, excerpt, author_id, category, theme, tags,
	        is_published, views, media_urls, created_at, updated_at`

// PostgresBlogRepo はPostgreSQLを使用したブログリポジトリ。
type PostgresBlogRepo struct {
	db *sql.DB
}

// NewPostgresBlogRepo はPostgresBlogRepoを生成する。
func NewPostgresBlogRepo(db *sql.DB) *PostgresBlogRepo {
	return &PostgresBlogRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanBlogRow は1行をmodel.Blogにスキャンする。
func scanBlogRow(row rowScanner) (*model.Blog, error) {
	blog := &model.Blog{}
	var excerpt, category sql.NullString

	err := row.Scan(
		&blog.ID, &blog.Title, &blog.Content, &excerpt, &blog.AuthorID,
		&category, &blog.Theme, pq.Array(&blog.Tags),
		&blog.IsPublished, &blog.Views, pq.Array(&blog.MediaURLs),
		&blog.CreatedAt, &blog.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	blog.Excerpt = excerpt.String
	blog.Category = category.String
	if blog.Tags == nil {
		blog.Tags = []string{}
	}
	if blog.MediaURLs == nil {
		blog.MediaURLs = []string{}
	}
	return blog, nil
}

// isBlogID は文字列がblogs.id（UUID型）として妥当かを返す。
// 不正な形式をそのままクエリに渡すとpostgresが22P02を返し、
// 「未検出」と区別できなくなる。各メソッドは未検出と同じ扱いにする。
func isBlogID(id string) bool {
	return uuid.Validate(id) == nil
}

// FindByID は指定IDのブログを取得する。見つからない場合は(nil, nil)を返す。
func (r *PostgresBlogRepo) FindByID(ctx context.Context, id string) (*model.Blog, error) {
	if !isBlogID(id) {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+blogColumns+` FROM blogs WHERE id = $1`,
		id,
	)

	blog, err := scanBlogRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find blog by ID: %w", err)
	}
	return blog, nil
}

// FindByIDWithAuthor はブログと著者をJOINで取得する。
// ブログがない場合も著者を解決できない場合も(nil, nil)を返す。
func (r *PostgresBlogRepo) FindByIDWithAuthor(ctx context.Context, id string) (*model.BlogWithAuthor, error) {
	if !isBlogID(id) {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT b.id, b.title, b.content, b.excerpt, b.author_id, b.category, b.theme, b.tags,
		        b.is_published, b.views, b.media_urls, b.created_at, b.updated_at,
		        u.id, u.email, u.name, u.created_at
		 FROM blogs b
		 JOIN users u ON u.id = b.author_id
		 WHERE b.id = $1`,
		id,
	)

	result := &model.BlogWithAuthor{}
	var excerpt, category sql.NullString
	err := row.Scan(
		&result.Blog.ID, &result.Blog.Title, &result.Blog.Content, &excerpt, &result.Blog.AuthorID,
		&category, &result.Blog.Theme, pq.Array(&result.Blog.Tags),
		&result.Blog.IsPublished, &result.Blog.Views, pq.Array(&result.Blog.MediaURLs),
		&result.Blog.CreatedAt, &result.Blog.UpdatedAt,
		&result.Author.ID, &result.Author.Email, &result.Author.Name, &result.Author.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find blog with author: %w", err)
	}

	result.Blog.Excerpt = excerpt.String
	result.Blog.Category = category.String
	if result.Blog.Tags == nil {
		result.Blog.Tags = []string{}
	}
	if result.Blog.MediaURLs == nil {
		result.Blog.MediaURLs = []string{}
	}
	return result, nil
}

// ListByAuthor は指定著者の全ブログをupdated_at降順で返す。
func (r *PostgresBlogRepo) ListByAuthor(ctx context.Context, authorID string) ([]*model.Blog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+blogColumns+` FROM blogs WHERE author_id = $1 ORDER BY updated_at DESC`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list blogs by author: %w", err)
	}
	defer rows.Close()

	var result []*model.Blog
	for rows.Next() {
		blog, err := scanBlogRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blog row: %w", err)
		}
		result = append(result, blog)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blog rows: %w", err)
	}

	return result, nil
}

// ListPublished は公開済みブログを著者付きでcreated_at降順で返す。
// LIMIT/OFFSETはフィルタとソートの後に適用される。
func (r *PostgresBlogRepo) ListPublished(ctx context.Context, limit, offset int) ([]*model.BlogWithAuthor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.title, b.content, b.excerpt, b.author_id, b.category, b.theme, b.tags,
		        b.is_published, b.views, b.media_urls, b.created_at, b.updated_at,
		        u.id, u.email, u.name, u.created_at
		 FROM blogs b
		 JOIN users u ON u.id = b.author_id
		 WHERE b.is_published = TRUE
		 ORDER BY b.created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list published blogs: %w", err)
	}
	defer rows.Close()

	result := []*model.BlogWithAuthor{}
	for rows.Next() {
		item := &model.BlogWithAuthor{}
		var excerpt, category sql.NullString
		err := rows.Scan(
			&item.Blog.ID, &item.Blog.Title, &item.Blog.Content, &excerpt, &item.Blog.AuthorID,
			&category, &item.Blog.Theme, pq.Array(&item.Blog.Tags),
			&item.Blog.IsPublished, &item.Blog.Views, pq.Array(&item.Blog.MediaURLs),
			&item.Blog.CreatedAt, &item.Blog.UpdatedAt,
			&item.Author.ID, &item.Author.Email, &item.Author.Name, &item.Author.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan published blog row: %w", err)
		}
		item.Blog.Excerpt = excerpt.String
		item.Blog.Category = category.String
		if item.Blog.Tags == nil {
			item.Blog.Tags = []string{}
		}
		if item.Blog.MediaURLs == nil {
			item.Blog.MediaURLs = []string{}
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate published blog rows: %w", err)
	}

	return result, nil
}

// Create はブログを作成する。ID・タイムスタンプはここで採番し、
// 省略されたオプションフィールドはデフォルトに正規化する。
func (r *PostgresBlogRepo) Create(ctx context.Context, blog *model.BlogCreate) (*model.Blog, error) {
	now := time.Now()
	created := &model.Blog{
		ID:          uuid.New().String(),
		Title:       blog.Title,
		Content:     blog.Content,
		Excerpt:     blog.Excerpt,
		AuthorID:    blog.AuthorID,
		Category:    blog.Category,
		Theme:       blog.Theme,
		Tags:        blog.Tags,
		IsPublished: blog.IsPublished,
		Views:       0,
		MediaURLs:   blog.MediaURLs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	normalizeBlogDefaults(created)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO blogs (id, title, content, excerpt, author_id, category, theme, tags,
		                    is_published, views, media_urls, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		created.ID, created.Title, created.Content, nullIfEmpty(created.Excerpt),
		created.AuthorID, nullIfEmpty(created.Category), created.Theme,
		pq.Array(created.Tags), created.IsPublished, created.Views,
		pq.Array(created.MediaURLs), created.CreatedAt, created.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert blog: %w", err)
	}

	return created, nil
}

// Update は指定のあるカラムのみをSET句に積む部分更新を行い、
// updated_atを常に再設定する。IDが存在しない場合は(nil, nil)を返す。
func (r *PostgresBlogRepo) Update(ctx context.Context, id string, updates *model.BlogUpdate) (*model.Blog, error) {
	if !isBlogID(id) {
		return nil, nil
	}

	var set []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if updates.Title != nil {
		add("title", *updates.Title)
	}
	if updates.Content != nil {
		add("content", *updates.Content)
	}
	if updates.Excerpt != nil {
		add("excerpt", nullIfEmpty(*updates.Excerpt))
	}
	if updates.Category != nil {
		add("category", nullIfEmpty(*updates.Category))
	}
	if updates.Theme != nil {
		add("theme", *updates.Theme)
	}
	if updates.Tags != nil {
		add("tags", pq.Array(updates.Tags))
	}
	if updates.IsPublished != nil {
		add("is_published", *updates.IsPublished)
	}
	if updates.MediaURLs != nil {
		add("media_urls", pq.Array(updates.MediaURLs))
	}
	add("updated_at", time.Now())

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE blogs SET %s WHERE id = $%d RETURNING `+blogColumns,
		strings.Join(set, ", "), len(args),
	)

	row := r.db.QueryRowContext(ctx, query, args...)
	blog, err := scanBlogRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update blog: %w", err)
	}

	return blog, nil
}

// Delete はブログが存在し著者が一致する場合のみ削除する。
// WHERE句で著者一致まで判定するため、「未検出」と「著者不一致」は区別されない。
func (r *PostgresBlogRepo) Delete(ctx context.Context, id string, authorID string) (bool, error) {
	if !isBlogID(id) {
		return false, nil
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM blogs WHERE id = $1 AND author_id = $2`,
		id, authorID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete blog: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// IncrementViews は閲覧数を単一のUPDATE式でアトミックに1加算する。
// fetch-modify-storeの競合で更新が失われることはない。存在しないIDには何もしない。
func (r *PostgresBlogRepo) IncrementViews(ctx context.Context, id string) error {
	if !isBlogID(id) {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE blogs SET views = views + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to increment blog views: %w", err)
	}
	return nil
}

// nullIfEmpty は空文字列をNULLとして保存するためのヘルパー。
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ BlogRepository = (*PostgresBlogRepo)(nil)
