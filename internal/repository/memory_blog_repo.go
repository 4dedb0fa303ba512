package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/quill/internal/model"
)

// defaultExcerptLength はexcerpt未指定時にcontentから切り出す文字数。
const defaultExcerptLength = 150

// MemoryBlogRepo はプロセス内メモリを使用したブログリポジトリ。
// 著者の解決には注入されたUserRepositoryを使用する。
type MemoryBlogRepo struct {
	mu    sync.RWMutex
	blogs map[string]*model.Blog
	users UserRepository
}

// NewMemoryBlogRepo はMemoryBlogRepoを生成する。
func NewMemoryBlogRepo(users UserRepository) *MemoryBlogRepo {
	return &MemoryBlogRepo{
		blogs: make(map[string]*model.Blog),
		users: users,
	}
}

// FindByID は指定IDのブログを取得する。見つからない場合は(nil, nil)を返す。
func (r *MemoryBlogRepo) FindByID(ctx context.Context, id string) (*model.Blog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	blog, ok := r.blogs[id]
	if !ok {
		return nil, nil
	}
	return copyBlog(blog), nil
}

// FindByIDWithAuthor はブログと解決済みの著者を取得する。
// 著者を解決できない場合も(nil, nil)を返す。
func (r *MemoryBlogRepo) FindByIDWithAuthor(ctx context.Context, id string) (*model.BlogWithAuthor, error) {
	blog, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if blog == nil {
		return nil, nil
	}

	author, err := r.users.FindByID(ctx, blog.AuthorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, nil
	}

	return &model.BlogWithAuthor{Blog: *blog, Author: *author}, nil
}

// ListByAuthor は指定著者の全ブログをupdated_at降順で返す。
func (r *MemoryBlogRepo) ListByAuthor(ctx context.Context, authorID string) ([]*model.Blog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Blog
	for _, blog := range r.blogs {
		if blog.AuthorID == authorID {
			result = append(result, copyBlog(blog))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	return result, nil
}

// ListPublished は公開済みブログをcreated_at降順で返し、その安定順序の上で
// limit/offsetウィンドウを適用する。
func (r *MemoryBlogRepo) ListPublished(ctx context.Context, limit, offset int) ([]*model.BlogWithAuthor, error) {
	r.mu.RLock()
	var published []*model.Blog
	for _, blog := range r.blogs {
		if blog.IsPublished {
			published = append(published, copyBlog(blog))
		}
	}
	r.mu.RUnlock()

	sort.Slice(published, func(i, j int) bool {
		return published[i].CreatedAt.After(published[j].CreatedAt)
	})

	// 著者を解決できないレコードはウィンドウ適用前に除外する。
	// 除外後に切り出さないとページがその分だけ短くなり、
	// JOINで除外するpostgres実装とページングが一致しなくなる。
	joined := make([]*model.BlogWithAuthor, 0, len(published))
	for _, blog := range published {
		author, err := r.users.FindByID(ctx, blog.AuthorID)
		if err != nil {
			return nil, err
		}
		if author == nil {
			continue
		}
		joined = append(joined, &model.BlogWithAuthor{Blog: *blog, Author: *author})
	}

	if offset >= len(joined) {
		return []*model.BlogWithAuthor{}, nil
	}
	joined = joined[offset:]
	if limit < len(joined) {
		joined = joined[:limit]
	}

	return joined, nil
}

// Create はブログを作成し、省略されたオプションフィールドをデフォルトに正規化する。
func (r *MemoryBlogRepo) Create(ctx context.Context, blog *model.BlogCreate) (*model.Blog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

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

	r.blogs[created.ID] = created
	return copyBlog(created), nil
}

// Update は部分更新をマージし、UpdatedAtを再設定する。IDがない場合は(nil, nil)。
func (r *MemoryBlogRepo) Update(ctx context.Context, id string, updates *model.BlogUpdate) (*model.Blog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	blog, ok := r.blogs[id]
	if !ok {
		return nil, nil
	}

	if updates.Title != nil {
		blog.Title = *updates.Title
	}
	if updates.Content != nil {
		blog.Content = *updates.Content
	}
	if updates.Excerpt != nil {
		blog.Excerpt = *updates.Excerpt
	}
	if updates.Category != nil {
		blog.Category = *updates.Category
	}
	if updates.Theme != nil {
		blog.Theme = *updates.Theme
	}
	if updates.Tags != nil {
		blog.Tags = copyStrings(updates.Tags)
	}
	if updates.IsPublished != nil {
		blog.IsPublished = *updates.IsPublished
	}
	if updates.MediaURLs != nil {
		blog.MediaURLs = copyStrings(updates.MediaURLs)
	}
	blog.UpdatedAt = time.Now()

	return copyBlog(blog), nil
}

// Delete はブログが存在し著者が一致する場合のみ削除する。
// 「未検出」と「著者不一致」はどちらもfalse。
func (r *MemoryBlogRepo) Delete(ctx context.Context, id string, authorID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	blog, ok := r.blogs[id]
	if !ok || blog.AuthorID != authorID {
		return false, nil
	}

	delete(r.blogs, id)
	return true, nil
}

// IncrementViews は閲覧数をロック保持下で1加算する。存在しないIDには何もしない。
func (r *MemoryBlogRepo) IncrementViews(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if blog, ok := r.blogs[id]; ok {
		blog.Views++
	}
	return nil
}

// normalizeBlogDefaults は省略されたオプションフィールドを宣言済みデフォルトへ正規化する。
func normalizeBlogDefaults(blog *model.Blog) {
	if blog.Excerpt == "" {
		blog.Excerpt = excerptFromContent(blog.Content)
	}
	if blog.Theme == "" {
		blog.Theme = model.DefaultTheme
	}
	if blog.Tags == nil {
		blog.Tags = []string{}
	}
	if blog.MediaURLs == nil {
		blog.MediaURLs = []string{}
	}
}

// excerptFromContent はcontentの先頭からexcerptを切り出す。
// マルチバイト文字を壊さないようルーン単位で切る。
func excerptFromContent(content string) string {
	runes := []rune(content)
	if len(runes) <= defaultExcerptLength {
		return content
	}
	return string(runes[:defaultExcerptLength]) + "..."
}

// copyBlog は保存レコードと呼び出し元の間のエイリアシングを防ぐためのコピーを返す。
// スライスも複製する。正規化済みの空スライスをnilに退化させないこと。
func copyBlog(b *model.Blog) *model.Blog {
	c := *b
	c.Tags = copyStrings(b.Tags)
	c.MediaURLs = copyStrings(b.MediaURLs)
	return &c
}

// copyStrings はスライスを複製する。nilはnilのまま、空スライスは空スライスのまま返す。
func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// compile-time interface check
var _ BlogRepository = (*MemoryBlogRepo)(nil)
