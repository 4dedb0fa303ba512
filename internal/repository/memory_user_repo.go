package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/quill/internal/model"
)

// MemoryUserRepo はプロセス内メモリを使用したユーザーリポジトリ。
// 再起動でデータは消える。ローカル実行とテスト用。
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users: make(map[string]*model.User),
	}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合は(nil, nil)を返す。
func (r *MemoryUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return copyUser(user), nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合は(nil, nil)を返す。
func (r *MemoryUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}
	return nil, nil
}

// Create はユーザーを作成する。IDが空の場合はUUIDを採番する。
// メールアドレスの一意性はストア全体で保証される。
func (r *MemoryUserRepo) Create(ctx context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email {
			return nil, model.NewDuplicateEmailError(user.Email)
		}
	}

	created := copyUser(user)
	if created.ID == "" {
		created.ID = uuid.New().String()
	}
	created.CreatedAt = time.Now()

	r.users[created.ID] = created
	return copyUser(created), nil
}

// copyUser は保存レコードと呼び出し元の間のエイリアシングを防ぐためのコピーを返す。
func copyUser(u *model.User) *model.User {
	c := *u
	return &c
}

// compile-time interface check
var _ UserRepository = (*MemoryUserRepo)(nil)
