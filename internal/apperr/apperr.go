// Package apperr は認証・タスク操作の結果を分類するエラー型を提供する。
//
// 各コンポーネントは例外を投げず、Kindを持つエラーを返す。
// HTTPステータスへの変換はトランスポート層（Status）だけが行う。
package apperr

import (
	"errors"
	"net/http"
)

// Kind はエラーの分類を表す。
type Kind int

const (
	// Internal はストレージ障害など想定外の失敗を表す。詳細は呼び出し元に返さない。
	Internal Kind = iota
	// InvalidInput は不正・欠落・範囲外の入力を表す。クライアント側で修正可能。
	InvalidInput
	// Unauthenticated はトークンの欠落・不正・期限切れを表す。
	Unauthenticated
	// NotFound は所有するリソースが存在しないことを表す。
	// 他ユーザーのリソースが存在する場合も区別しない。
	NotFound
)

// String はKindの名前を返す。
func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case Unauthenticated:
		return "Unauthenticated"
	case NotFound:
		return "NotFound"
	default:
		return "Internal"
	}
}

// InternalMessage はInternalエラー時に呼び出し元へ返す固定メッセージ。
const InternalMessage = "Internal server error"

// Error は分類済みのエラー。
type Error struct {
	// Kind はエラーの分類。
	Kind Kind
	// Message は呼び出し元に返してよいメッセージ。
	Message string
	// Err は原因となったエラー。ログ出力用で、呼び出し元には返さない。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap は原因エラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// New は指定した分類とメッセージでエラーを生成する。
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap は原因エラーを保持したまま分類済みエラーを生成する。
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Invalid はInvalidInputエラーを生成する。
func Invalid(message string) *Error {
	return New(InvalidInput, message)
}

// Unauthorized はUnauthenticatedエラーを生成する。
func Unauthorized(message string) *Error {
	return New(Unauthenticated, message)
}

// NotFoundf はNotFoundエラーを生成する。
func NotFoundf(message string) *Error {
	return New(NotFound, message)
}

// InternalError は原因を包んだInternalエラーを生成する。
func InternalError(err error) *Error {
	return Wrap(Internal, InternalMessage, err)
}

// KindOf はエラーの分類を返す。分類されていないエラーはInternalとして扱う。
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// Message は呼び出し元に返すメッセージを返す。
// Internalの場合は原因に関わらず固定メッセージを返す。
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != Internal {
		return appErr.Message
	}
	return InternalMessage
}

// Status はKindに対応するHTTPステータスコードを返す。
func Status(kind Kind) int {
	switch kind {
	case InvalidInput:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
