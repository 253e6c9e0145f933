package task

import (
	"strconv"
	"strings"

	"github.com/nao1215/taskhub/internal/apperr"
)

const (
	// DefaultPage は既定のページ番号。
	DefaultPage = 1
	// DefaultLimit は既定の1ページあたりの件数。
	DefaultLimit = 10
	// MaxLimit は1ページあたりの件数の上限。
	MaxLimit = 100
)

// StatusFilter は一覧の状態による絞り込み条件。
type StatusFilter string

const (
	// FilterAll は状態で絞り込まない。
	FilterAll StatusFilter = "all"
	// FilterPending は未完了のタスクだけを返す。
	FilterPending StatusFilter = "pending"
	// FilterDone は完了したタスクだけを返す。
	FilterDone StatusFilter = "done"
)

// ListParams はリクエストから受け取った一覧取得の条件。
type ListParams struct {
	// Search はタイトルまたは説明に対する部分一致の検索語。空なら絞り込まない。
	// 前後の空白も検索語の一部として扱う。
	Search string
	// Status は状態による絞り込み条件。
	Status StatusFilter
	// Page は1始まりのページ番号。
	Page int
	// Limit は1ページあたりの件数。
	Limit int
}

// ParseListParams はクエリパラメータの生の値からListParamsを組み立てる。
// pageとlimitは数値でない・1未満の場合に既定値へ戻す（エラーにはしない）。
func ParseListParams(search, status, page, limit string) (ListParams, error) {
	p := ListParams{
		Search: search,
		Status: FilterAll,
		Page:   parsePositive(page, DefaultPage),
		Limit:  parsePositive(limit, DefaultLimit),
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	switch StatusFilter(status) {
	case "", FilterAll:
	case FilterPending, FilterDone:
		p.Status = StatusFilter(status)
	default:
		return ListParams{}, apperr.Invalid(`Status filter must be one of "all", "pending" or "done"`)
	}
	return p, nil
}

// parsePositive は正の整数を解析し、失敗した場合はdefを返す。
func parsePositive(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}

// Clause は述語を構成する条件の1つ。
type Clause interface {
	clause()
}

// StatusIs は状態の一致条件。
type StatusIs struct {
	Status Status
}

func (StatusIs) clause() {}

// TextContains はタイトルまたは説明に検索語を含む条件（大文字小文字を区別しない）。
// 検索語はパターンではなくリテラル文字列として扱う。
type TextContains struct {
	Term string
}

func (TextContains) clause() {}

// LikePattern はSQLのLIKE句で使うパターンを返す。
// ワイルドカード文字はバックスラッシュでエスケープし、Foldで正規化する。
// 比較対象の列にも同じFoldを適用すること。
func (c TextContains) LikePattern() string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(Fold(c.Term)) + "%"
}

// Fold は大文字小文字を区別しない比較のために文字列を正規化する。
// ASCII以外の文字（É、Пなど）も小文字に変換する。
func Fold(s string) string {
	return strings.ToLower(s)
}

// Predicate は条件の論理積。値型で、Andは元の値を変更しない。
type Predicate struct {
	clauses []Clause
}

// And は条件を追加した新しいPredicateを返す。
func (p Predicate) And(c Clause) Predicate {
	next := make([]Clause, 0, len(p.clauses)+1)
	next = append(next, p.clauses...)
	next = append(next, c)
	return Predicate{clauses: next}
}

// Clauses は条件の一覧を返す。
func (p Predicate) Clauses() []Clause {
	return append([]Clause(nil), p.clauses...)
}

// Matches はタスクがすべての条件を満たすかを返す。
func (p Predicate) Matches(t Task) bool {
	for _, c := range p.clauses {
		switch c := c.(type) {
		case StatusIs:
			if t.Status != c.Status {
				return false
			}
		case TextContains:
			term := Fold(c.Term)
			if !strings.Contains(Fold(t.Title), term) &&
				!strings.Contains(Fold(t.Description), term) {
				return false
			}
		}
	}
	return true
}

// Window は一覧の取得範囲。
type Window struct {
	// Offset は読み飛ばす件数。
	Offset int
	// Limit は最大取得件数。
	Limit int
}

// Query は一覧取得の条件一式。所有者IDは認証済みIdentityからのみ設定する。
type Query struct {
	// OwnerID は所有者ID。
	OwnerID string
	// Predicate は所有者以外の絞り込み条件。
	Predicate Predicate
	// Window は取得範囲。
	Window Window
}

// BuildQuery は所有者IDとListParamsからQueryを組み立てる。
// 並び順は常に作成日時の降順。
func BuildQuery(ownerID string, p ListParams) Query {
	var pred Predicate
	if p.Status != FilterAll && p.Status != "" {
		pred = pred.And(StatusIs{Status: Status(p.Status)})
	}
	if p.Search != "" {
		pred = pred.And(TextContains{Term: p.Search})
	}
	return Query{
		OwnerID:   ownerID,
		Predicate: pred,
		Window: Window{
			Offset: (p.Page - 1) * p.Limit,
			Limit:  p.Limit,
		},
	}
}

// Pagination は一覧のページング情報。
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalTasks  int64 `json:"totalTasks"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NewPagination は総件数からページング情報を計算する。
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalTasks:  total,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}
