// Package client はtaskhubのHTTP APIを呼び出すGoクライアントを提供する。
//
// 登録・ログインで得たトークンを WithToken で設定したクライアントから
// タスクのCRUDを呼び出す。APIがエラーを返した場合は *APIError を返す。
package client
