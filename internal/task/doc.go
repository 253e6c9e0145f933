// Package task は所有者ごとに分離されたタスク管理の内部実装を提供する。
//
// 主な構成:
//   - Task / Status: タスクのドメインモデルと入力検証
//   - BuildQuery / Predicate: 検索・絞り込み・ページングの条件組み立て
//   - Repository: 所有者でスコープされたタスクの永続化の契約
//   - Service: 認証済みIdentityとリクエストから結果を返す業務処理
//   - Handler: ServiceをHTTPに公開する薄いアダプタ
//
// すべての読み書きは認証済みプリンシパルのIDで絞り込まれる。
// 他の所有者のタスクは「存在しない」ものとして扱い、存在自体を漏らさない。
package task
