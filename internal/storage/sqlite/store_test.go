package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nao1215/taskhub/internal/auth"
	"github.com/nao1215/taskhub/internal/task"
)

// base はテストで使う基準時刻。
var base = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// setupStore はテスト用のインメモリストアを作成する。
func setupStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), ":memory:", nil)
	if err != nil {
		t.Fatalf("ストアの作成に失敗: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// mustPrincipal はテスト用のプリンシパルを登録する。
func mustPrincipal(t *testing.T, s *Store, id, email string) {
	t.Helper()

	err := s.CreatePrincipal(context.Background(), auth.Principal{
		ID:           id,
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    base,
	})
	if err != nil {
		t.Fatalf("プリンシパルの登録に失敗: %v", err)
	}
}

// mustTask はテスト用のタスクを作成する。
func mustTask(t *testing.T, s *Store, id, ownerID, title, description string, status task.Status, createdAt time.Time) task.Task {
	t.Helper()

	tk := task.Task{
		ID:          id,
		Title:       title,
		Description: description,
		Status:      status,
		OwnerID:     ownerID,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if err := s.Create(context.Background(), tk); err != nil {
		t.Fatalf("タスクの作成に失敗: %v", err)
	}
	return tk
}

// TestPrincipal はプリンシパルの永続化を検証する。
func TestPrincipal(t *testing.T) {
	t.Parallel()

	t.Run("登録したプリンシパルをIDとメールアドレスで取得できること", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		mustPrincipal(t, s, "user-1", "alice@example.com")

		byID, err := s.PrincipalByID(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("PrincipalByID()でエラーが発生: %v", err)
		}
		if byID.Email != "alice@example.com" || byID.PasswordHash != "hash" {
			t.Errorf("PrincipalByID() = %+v", byID)
		}
		if !byID.CreatedAt.Equal(base) {
			t.Errorf("CreatedAt = %v, want %v", byID.CreatedAt, base)
		}

		byEmail, err := s.PrincipalByEmail(context.Background(), "alice@example.com")
		if err != nil {
			t.Fatalf("PrincipalByEmail()でエラーが発生: %v", err)
		}
		if byEmail.ID != "user-1" {
			t.Errorf("ID = %q, want %q", byEmail.ID, "user-1")
		}
	})

	t.Run("存在しないプリンシパルはErrPrincipalNotFoundになること", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		if _, err := s.PrincipalByID(context.Background(), "missing"); !errors.Is(err, auth.ErrPrincipalNotFound) {
			t.Errorf("PrincipalByID() error = %v, want ErrPrincipalNotFound", err)
		}
		if _, err := s.PrincipalByEmail(context.Background(), "missing@example.com"); !errors.Is(err, auth.ErrPrincipalNotFound) {
			t.Errorf("PrincipalByEmail() error = %v, want ErrPrincipalNotFound", err)
		}
	})

	t.Run("メールアドレスが重複する場合ErrEmailTakenになること", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		mustPrincipal(t, s, "user-1", "alice@example.com")

		err := s.CreatePrincipal(context.Background(), auth.Principal{
			ID:           "user-2",
			Email:        "alice@example.com",
			PasswordHash: "hash",
			CreatedAt:    base,
		})
		if !errors.Is(err, auth.ErrEmailTaken) {
			t.Errorf("CreatePrincipal() error = %v, want ErrEmailTaken", err)
		}
	})
}

// TestTaskList はタスク一覧の取得を検証する。
func TestTaskList(t *testing.T) {
	t.Parallel()

	t.Run("自分のタスクだけが作成日時の降順で返ること", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		mustPrincipal(t, s, "alice", "alice@example.com")
		mustPrincipal(t, s, "bob", "bob@example.com")
		mustTask(t, s, "t1", "alice", "first", "desc", task.StatusPending, base)
		mustTask(t, s, "t2", "alice", "second", "desc", task.StatusDone, base.Add(time.Second))
		mustTask(t, s, "t3", "bob", "other", "desc", task.StatusPending, base.Add(2*time.Second))

		page, err := s.List(context.Background(), "alice", task.Predicate{}, task.Window{Limit: 10})
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		if page.Total != 2 {
			t.Errorf("Total = %d, want 2", page.Total)
		}
		if len(page.Tasks) != 2 || page.Tasks[0].ID != "t2" || page.Tasks[1].ID != "t1" {
			t.Errorf("Tasks = %+v, want [t2 t1]", page.Tasks)
		}
	})

	t.Run("作成日時が同じ場合はIDの降順になること", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		mustPrincipal(t, s, "alice", "alice@example.com")
		mustTask(t, s, "a", "alice", "a", "desc", task.StatusPending, base)
		mustTask(t, s, "b", "alice", "b", "desc", task.StatusPending, base)

		page, err := s.List(context.Background(), "alice", task.Predicate{}, task.Window{Limit: 10})
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		if len(page.Tasks) != 2 || page.Tasks[0].ID != "b" {
			t.Errorf("Tasks = %+v, want [b a]", page.Tasks)
		}
	})

	t.Run("状態と検索語で絞り込めること", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		mustPrincipal(t, s, "alice", "alice@example.com")
		mustTask(t, s, "t1", "alice", "Buy Milk", "store", task.StatusPending, base)
		mustTask(t, s, "t2", "alice", "Call mom", "about MILK prices", task.StatusDone, base.Add(time.Second))
		mustTask(t, s, "t3", "alice", "Write report", "work", task.StatusPending, base.Add(2*time.Second))

		pred := task.Predicate{}.And(task.TextContains{Term: "milk"})
		page, err := s.List(context.Background(), "alice", pred, task.Window{Limit: 10})
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		if page.Total != 2 {
			t.Errorf("検索のみ: Total = %d, want 2", page.Total)
		}

		pred = pred.And(task.StatusIs{Status: task.StatusPending})
		page, err = s.List(context.Background(), "alice", pred, task.Window{Limit: 10})
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		if page.Total != 1 || page.Tasks[0].ID != "t1" {
			t.Errorf("検索+状態: %+v, want [t1]", page.Tasks)
		}
	})

	t.Run("検索語のワイルドカード文字がリテラルとして扱われること", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		mustPrincipal(t, s, "alice", "alice@example.com")
		mustTask(t, s, "t1", "alice", "100% done", "desc", task.StatusPending, base)
		mustTask(t, s, "t2", "alice", "1000 done", "desc", task.StatusPending, base.Add(time.Second))
		mustTask(t, s, "t3", "alice", "snake_case", "desc", task.StatusPending, base.Add(2*time.Second))
		mustTask(t, s, "t4", "alice", "snakeXcase", "desc", task.StatusPending, base.Add(3*time.Second))

		for term, want := range map[string]string{"0%": "t1", "e_c": "t3"} {
			pred := task.Predicate{}.And(task.TextContains{Term: term})
			page, err := s.List(context.Background(), "alice", pred, task.Window{Limit: 10})
			if err != nil {
				t.Fatalf("List()でエラーが発生: %v", err)
			}
			if page.Total != 1 || page.Tasks[0].ID != want {
				t.Errorf("search %q = %+v, want [%s]", term, page.Tasks, want)
			}
		}
	})

	t.Run("ASCII以外の文字も大文字小文字を区別せずに検索できること", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		mustPrincipal(t, s, "alice", "alice@example.com")
		mustTask(t, s, "t1", "alice", "ÉCOLE Привет", "desc", task.StatusPending, base)
		mustTask(t, s, "t2", "alice", "other", "Straße ÜBER", task.StatusPending, base.Add(time.Second))

		tests := []struct {
			term string
			want string
		}{
			{"école", "t1"},
			{"ÉCOLE", "t1"},
			{"привет", "t1"},
			{"ПРИВЕТ", "t1"},
			{"über", "t2"},
		}
		for _, tt := range tests {
			pred := task.Predicate{}.And(task.TextContains{Term: tt.term})
			page, err := s.List(context.Background(), "alice", pred, task.Window{Limit: 10})
			if err != nil {
				t.Fatalf("List()でエラーが発生: %v", err)
			}
			if page.Total != 1 || page.Tasks[0].ID != tt.want {
				t.Errorf("search %q = %+v, want [%s]", tt.term, page.Tasks, tt.want)
			}
		}
	})

	t.Run("取得範囲に関係なく総件数が返ること", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		mustPrincipal(t, s, "alice", "alice@example.com")
		for i := range 25 {
			mustTask(t, s, fmt.Sprintf("t%02d", i), "alice", "title", "desc", task.StatusPending, base.Add(time.Duration(i)*time.Second))
		}

		page, err := s.List(context.Background(), "alice", task.Predicate{}, task.Window{Offset: 20, Limit: 10})
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		if page.Total != 25 {
			t.Errorf("Total = %d, want 25", page.Total)
		}
		if len(page.Tasks) != 5 {
			t.Errorf("len(Tasks) = %d, want 5", len(page.Tasks))
		}
		if page.Tasks[0].ID != "t04" {
			t.Errorf("Tasks[0].ID = %q, want %q", page.Tasks[0].ID, "t04")
		}
	})
}

// TestTaskMutation はタスクの取得・更新・削除を検証する。
func TestTaskMutation(t *testing.T) {
	t.Parallel()

	t.Run("他の所有者のタスクは取得・更新・削除できないこと", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		mustPrincipal(t, s, "alice", "alice@example.com")
		mustPrincipal(t, s, "bob", "bob@example.com")
		mustTask(t, s, "t1", "alice", "title", "desc", task.StatusPending, base)

		ctx := context.Background()
		if _, err := s.Get(ctx, "bob", "t1"); !errors.Is(err, task.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
		if _, err := s.Update(ctx, "bob", "t1", task.Changes{Title: "x", Description: "y", UpdatedAt: base.Add(time.Hour)}); !errors.Is(err, task.ErrNotFound) {
			t.Errorf("Update() error = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "bob", "t1"); !errors.Is(err, task.ErrNotFound) {
			t.Errorf("Delete() error = %v, want ErrNotFound", err)
		}

		got, err := s.Get(ctx, "alice", "t1")
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		if got.Title != "title" {
			t.Errorf("Title = %q, want %q", got.Title, "title")
		}
	})

	t.Run("更新で状態を省略した場合は現在の状態が維持されること", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		mustPrincipal(t, s, "alice", "alice@example.com")
		mustTask(t, s, "t1", "alice", "title", "desc", task.StatusDone, base)

		got, err := s.Update(context.Background(), "alice", "t1", task.Changes{
			Title:       "new title",
			Description: "new desc",
			UpdatedAt:   base.Add(time.Minute),
		})
		if err != nil {
			t.Fatalf("Update()でエラーが発生: %v", err)
		}
		if got.Status != task.StatusDone {
			t.Errorf("Status = %q, want %q", got.Status, task.StatusDone)
		}
		if got.Title != "new title" || got.Description != "new desc" {
			t.Errorf("Update() = %+v", got)
		}
		if !got.UpdatedAt.Equal(base.Add(time.Minute)) {
			t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, base.Add(time.Minute))
		}
		if !got.CreatedAt.Equal(base) || got.OwnerID != "alice" {
			t.Errorf("作成日時または所有者が変わった: %+v", got)
		}
	})

	t.Run("時計が進まなくても更新日時が前進すること", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		mustPrincipal(t, s, "alice", "alice@example.com")
		mustTask(t, s, "t1", "alice", "title", "desc", task.StatusPending, base)

		got, err := s.Update(context.Background(), "alice", "t1", task.Changes{
			Title:       "t",
			Description: "d",
			Status:      task.StatusDone,
			UpdatedAt:   base,
		})
		if err != nil {
			t.Fatalf("Update()でエラーが発生: %v", err)
		}
		if !got.UpdatedAt.After(base) {
			t.Errorf("UpdatedAt = %v, want after %v", got.UpdatedAt, base)
		}
		if got.Status != task.StatusDone {
			t.Errorf("Status = %q, want %q", got.Status, task.StatusDone)
		}
	})

	t.Run("削除したタスクは取得できないこと", func(t *testing.T) {
		t.Parallel()

		s := setupStore(t)
		mustPrincipal(t, s, "alice", "alice@example.com")
		mustTask(t, s, "t1", "alice", "title", "desc", task.StatusPending, base)

		ctx := context.Background()
		if err := s.Delete(ctx, "alice", "t1"); err != nil {
			t.Fatalf("Delete()でエラーが発生: %v", err)
		}
		if _, err := s.Get(ctx, "alice", "t1"); !errors.Is(err, task.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "alice", "t1"); !errors.Is(err, task.ErrNotFound) {
			t.Errorf("2回目のDelete() error = %v, want ErrNotFound", err)
		}
	})
}

// TestOpen はマイグレーションの再適用を検証する。
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("同じファイルを2回開いてもマイグレーションが失敗しないこと", func(t *testing.T) {
		t.Parallel()

		path := t.TempDir() + "/taskhub.db"
		s, err := Open(context.Background(), path, nil)
		if err != nil {
			t.Fatalf("1回目のOpen()でエラーが発生: %v", err)
		}
		mustPrincipal(t, s, "alice", "alice@example.com")
		_ = s.Close()

		s, err = Open(context.Background(), path, nil)
		if err != nil {
			t.Fatalf("2回目のOpen()でエラーが発生: %v", err)
		}
		defer func() { _ = s.Close() }()

		if _, err := s.PrincipalByID(context.Background(), "alice"); err != nil {
			t.Errorf("再オープン後のPrincipalByID()でエラーが発生: %v", err)
		}
	})
}
