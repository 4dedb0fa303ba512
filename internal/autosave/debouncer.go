// Package autosave は編集中ブログの自動保存を提供する。
//
// エディタからの連続した部分更新を1つの保存にまとめる。キー入力のたびに
// 保存するのではなく、最後の変更から一定の静止時間が経過した時点で
// 1回だけ保存を実行する。変更が続く限りタイマーはリセットされ、
// 保存が積み重なることはない。
package autosave

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/quill/internal/model"
)

// DefaultQuietWindow は保存を発火するまでのデフォルトの静止時間。
const DefaultQuietWindow = 2000 * time.Millisecond

// saveTimeout はデバウンス発火時の保存処理のタイムアウト。
const saveTimeout = 10 * time.Second

// SaveFunc はデバウンス後に実行される保存処理。
type SaveFunc func(ctx context.Context, userID, blogID string, updates *model.BlogUpdate) error

// Debouncer はブログ単位で部分更新をまとめ、静止時間経過後に保存する。
// 全メソッドはスレッドセーフ。
type Debouncer struct {
	save  SaveFunc
	quiet time.Duration

	mu          sync.Mutex
	pending     map[string]*pendingSave
	lastFlushed map[string]string
	closed      bool

	wg sync.WaitGroup
}

// pendingSave は保存待ちの状態。
// genはタイマーを張り直すたびに進む世代番号。発火側は自分の世代と
// 一致する場合だけ保存する。
type pendingSave struct {
	timer   *time.Timer
	gen     uint64
	userID  string
	updates *model.BlogUpdate
}

// New はDebouncerを生成する。quietが0以下の場合はDefaultQuietWindowを使う。
func New(save SaveFunc, quiet time.Duration) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietWindow
	}
	return &Debouncer{
		save:        save,
		quiet:       quiet,
		pending:     make(map[string]*pendingSave),
		lastFlushed: make(map[string]string),
	}
}

// Enqueue は部分更新を保存待ちに積む。
// 同一ブログの保存待ちがあれば更新をマージし、タイマーをリセットする
// （タイマーが積み重なることはない）。
// マージ結果が直前に保存した内容と同一の場合は保存をスケジュールしない。
func (d *Debouncer) Enqueue(userID, blogID string, updates *model.BlogUpdate) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	entry, ok := d.pending[blogID]
	if ok {
		mergeUpdates(entry.updates, updates)
		entry.userID = userID
	} else {
		merged := &model.BlogUpdate{}
		mergeUpdates(merged, updates)
		entry = &pendingSave{userID: userID, updates: merged}
		d.pending[blogID] = entry
	}

	// 直前の保存内容から変化がなければ何もしない
	if fingerprint(entry.updates) == d.lastFlushed[blogID] {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(d.pending, blogID)
		return
	}

	// Resetは既に発火してロック待ちしているコールバックを止められない。
	// 世代を進めてタイマーを張り直し、旧世代の発火は無効化する。
	if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.gen++
	gen := entry.gen
	entry.timer = time.AfterFunc(d.quiet, func() {
		d.fire(blogID, gen)
	})
}

// Flush は指定ブログの保存待ちを即時に保存する。保存待ちがなければ何もしない。
func (d *Debouncer) Flush(ctx context.Context, blogID string) error {
	d.mu.Lock()
	entry, ok := d.pending[blogID]
	if !ok {
		d.mu.Unlock()
		return nil
	}
	entry.timer.Stop()
	delete(d.pending, blogID)
	d.lastFlushed[blogID] = fingerprint(entry.updates)
	d.mu.Unlock()

	if err := d.save(ctx, entry.userID, blogID, entry.updates); err != nil {
		return fmt.Errorf("failed to flush pending save: %w", err)
	}
	return nil
}

// Close は全ての保存待ちを同期的に保存し、以後のEnqueueを無効化する。
// 進行中のデバウンス保存の完了も待つ。
func (d *Debouncer) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true

	remaining := make(map[string]*pendingSave, len(d.pending))
	for blogID, entry := range d.pending {
		entry.timer.Stop()
		remaining[blogID] = entry
		d.lastFlushed[blogID] = fingerprint(entry.updates)
	}
	d.pending = make(map[string]*pendingSave)
	d.mu.Unlock()

	var firstErr error
	for blogID, entry := range remaining {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		err := d.save(ctx, entry.userID, blogID, entry.updates)
		cancel()
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to save on close: %w", err)
		}
	}

	d.wg.Wait()
	return firstErr
}

// fire はタイマー発火時の保存処理。世代が一致しない発火は、
// ロック待ちの間に後続のEnqueueで静止時間が延長されたものなので捨てる。
func (d *Debouncer) fire(blogID string, gen uint64) {
	d.mu.Lock()
	entry, ok := d.pending[blogID]
	if !ok || entry.gen != gen {
		// Flush/Close、または新しいタイマーに先を越された
		d.mu.Unlock()
		return
	}
	delete(d.pending, blogID)
	d.lastFlushed[blogID] = fingerprint(entry.updates)
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := d.save(ctx, entry.userID, blogID, entry.updates); err != nil {
		slog.Warn("autosave failed",
			slog.String("blog_id", blogID),
			slog.String("error", err.Error()),
		)
	}
}

// mergeUpdates はsrcの指定フィールドをdstに上書きマージする。
func mergeUpdates(dst, src *model.BlogUpdate) {
	if src.Title != nil {
		dst.Title = src.Title
	}
	if src.Content != nil {
		dst.Content = src.Content
	}
	if src.Excerpt != nil {
		dst.Excerpt = src.Excerpt
	}
	if src.Category != nil {
		dst.Category = src.Category
	}
	if src.Theme != nil {
		dst.Theme = src.Theme
	}
	if src.Tags != nil {
		dst.Tags = append([]string(nil), src.Tags...)
	}
	if src.IsPublished != nil {
		dst.IsPublished = src.IsPublished
	}
	if src.MediaURLs != nil {
		dst.MediaURLs = append([]string(nil), src.MediaURLs...)
	}
}

// fingerprint は保存内容の同一性判定用のキーを生成する。
func fingerprint(updates *model.BlogUpdate) string {
	b, err := json.Marshal(updates)
	if err != nil {
		return ""
	}
	return string(b)
}
