package sqlite

import (
	"database/sql/driver"
	"fmt"

	"github.com/nao1215/taskhub/internal/task"
	"modernc.org/sqlite"
)

// foldFunc は検索で列に適用するSQL関数の名前。
// SQLite組み込みのlower()はASCIIしか小文字化しないため、task.Foldを登録して使う。
const foldFunc = "taskhub_fold"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(foldFunc, 1, fold)
}

// fold はtask.FoldをSQLから呼び出すための関数。NULLはNULLのまま返す。
func fold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return task.Fold(v), nil
	case []byte:
		return task.Fold(string(v)), nil
	default:
		return nil, fmt.Errorf("%s: 文字列以外の引数 %T", foldFunc, v)
	}
}
