// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// 構造化リクエストログ、パニックリカバリ、CORS設定を含む。
// 認証はinternal/authのミドルウェアが担当する。
package middleware
