// Package auth は認証の内部実装を提供する。
//
// プリンシパル（タスクの所有者）の登録とログイン、Bearerトークンによる
// リクエスト認証（Gateway）を担当する。認証に成功したリクエストだけが
// Identityを得て、タスク操作に進むことができる。
package auth
