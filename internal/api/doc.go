// Package api はtaskhubのHTTPサーバーを提供する。
//
// 共通ミドルウェア（パニック復旧、リクエストログ、メトリクス、CORS）を組み立て、
// 認証エンドポイントとタスクのCRUDエンドポイントを登録する。
// 認証エンドポイントにはレート制限を、タスクのエンドポイントには認証を適用する。
package api
