// Package memory はプロセス内メモリ上のストアを提供する。
// 開発時（DB_DRIVER=memory）とテストで使用する。プロセス終了で内容は失われる。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nao1215/taskhub/internal/auth"
	"github.com/nao1215/taskhub/internal/task"
)

// Store はauth.CredentialStoreとtask.Repositoryのメモリ実装。
type Store struct {
	mu         sync.RWMutex
	principals map[string]auth.Principal
	byEmail    map[string]string
	tasks      map[string]task.Task
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{
		principals: make(map[string]auth.Principal),
		byEmail:    make(map[string]string),
		tasks:      make(map[string]task.Task),
	}
}

// CreatePrincipal はプリンシパルを保存する。
func (s *Store) CreatePrincipal(_ context.Context, p auth.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[p.Email]; ok {
		return auth.ErrEmailTaken
	}
	s.principals[p.ID] = p
	s.byEmail[p.Email] = p.ID
	return nil
}

// PrincipalByID はIDでプリンシパルを取得する。
func (s *Store) PrincipalByID(_ context.Context, id string) (auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.principals[id]
	if !ok {
		return auth.Principal{}, auth.ErrPrincipalNotFound
	}
	return p, nil
}

// PrincipalByEmail はメールアドレスでプリンシパルを取得する。
func (s *Store) PrincipalByEmail(_ context.Context, email string) (auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return auth.Principal{}, auth.ErrPrincipalNotFound
	}
	return s.principals[id], nil
}

// List は条件に一致するタスクを作成日時の降順で返す。
func (s *Store) List(_ context.Context, ownerID string, pred task.Predicate, window task.Window) (task.Page, error) {
	s.mu.RLock()
	matched := make([]task.Task, 0)
	for _, t := range s.tasks {
		if t.OwnerID == ownerID && pred.Matches(t) {
			matched = append(matched, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := min(max(window.Offset, 0), len(matched))
	end := len(matched)
	if window.Limit > 0 {
		end = min(start+window.Limit, len(matched))
	}
	return task.Page{Tasks: matched[start:end], Total: total}, nil
}

// Get は所有者とIDに一致するタスクを返す。
func (s *Store) Get(_ context.Context, ownerID, id string) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return task.Task{}, task.ErrNotFound
	}
	return t, nil
}

// Create はタスクを保存する。
func (s *Store) Create(_ context.Context, t task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[t.ID] = t
	return nil
}

// Update は所有者とIDに一致するタスクを更新する。
func (s *Store) Update(_ context.Context, ownerID, id string, ch task.Changes) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return task.Task{}, task.ErrNotFound
	}
	t.Title = ch.Title
	t.Description = ch.Description
	if ch.Status != "" {
		t.Status = ch.Status
	}
	t.UpdatedAt = advance(t.UpdatedAt, ch.UpdatedAt)
	s.tasks[id] = t
	return t, nil
}

// Delete は所有者とIDに一致するタスクを削除する。
func (s *Store) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return task.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

// advance は直前の時刻より後になるよう更新日時を調整する。
func advance(prev, next time.Time) time.Time {
	if !next.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return next
}

// Ping は常に成功する。
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close は何もしない。
func (s *Store) Close() error {
	return nil
}
