package plugins

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/smeli-lang/smeli-sub000/internal/evaluator"
)

const sqliteResource = "sqlite"

// SQL gives programs SQLite databases. A database opened by open is owned
// by the evaluation that opened it and closed when that value is discarded.
func SQL() *Plugin {
	return &Plugin{
		Name: "sql",
		Bindings: []*evaluator.Binding{
			builtinBinding("open", builtinSqlOpen),
			builtinBinding("query", builtinSqlQuery),
			native("exec", 2, builtinSqlExec),
		},
		Code: "one: (db, q) => at(query(db, q), 0)",
	}
}

func builtinSqlOpen(rt *evaluator.Runtime, scope *evaluator.Scope, args []*evaluator.Evaluator) (evaluator.Result, error) {
	if err := checkArity("open", args, 1); err != nil {
		return evaluator.Result{}, err
	}
	values, err := evaluator.EvaluateArgs(rt, scope, args)
	if err != nil {
		return evaluator.Result{}, err
	}
	path, err := argString("open", values, 0)
	if err != nil {
		return evaluator.Result{}, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return evaluator.Result{}, evaluator.NewError(evaluator.ErrPlugin, "open %s: %v", path, err)
	}
	// one connection, so ":memory:" databases are shared by every query
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return evaluator.Result{}, evaluator.NewError(evaluator.ErrPlugin, "open %s: %v", path, err)
	}
	res := evaluator.NewResource(sqliteResource, db, db.Close)
	rt.Acquire(res)
	rt.Logger().Debug("sql open", "path", path)
	return evaluator.Done(res), nil
}

func argDB(fn string, v evaluator.Object) (*sql.DB, error) {
	res, ok := v.(*evaluator.Resource)
	if !ok || res.Kind != sqliteResource {
		return nil, evaluator.NewError(evaluator.ErrType, "%s expects a database opened with sql.open, got %s", fn, v.Type())
	}
	if res.Disposed() {
		return nil, evaluator.NewError(evaluator.ErrPlugin, "%s: database is closed", fn)
	}
	return res.Handle.(*sql.DB), nil
}

// exec runs a statement and returns the number of rows it affected.
func builtinSqlExec(args []evaluator.Object) (evaluator.Object, error) {
	db, err := argDB("exec", args[0])
	if err != nil {
		return nil, err
	}
	q, err := argString("exec", args, 1)
	if err != nil {
		return nil, err
	}
	result, err := db.Exec(q)
	if err != nil {
		return nil, evaluator.NewError(evaluator.ErrPlugin, "exec: %v", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, evaluator.NewError(evaluator.ErrPlugin, "exec: %v", err)
	}
	return &evaluator.Number{Value: float64(n)}, nil
}

// query returns one scope per row, with a binding per column.
func builtinSqlQuery(rt *evaluator.Runtime, scope *evaluator.Scope, args []*evaluator.Evaluator) (evaluator.Result, error) {
	if err := checkArity("query", args, 2); err != nil {
		return evaluator.Result{}, err
	}
	values, err := evaluator.EvaluateArgs(rt, scope, args)
	if err != nil {
		return evaluator.Result{}, err
	}
	db, err := argDB("query", values[0])
	if err != nil {
		return evaluator.Result{}, err
	}
	q, err := argString("query", values, 1)
	if err != nil {
		return evaluator.Result{}, err
	}

	rows, err := db.Query(q)
	if err != nil {
		return evaluator.Result{}, evaluator.NewError(evaluator.ErrPlugin, "query: %v", err)
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return evaluator.Result{}, evaluator.NewError(evaluator.ErrPlugin, "query: %v", err)
	}

	var out []evaluator.Object
	for rows.Next() {
		cells := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return evaluator.Result{}, evaluator.NewError(evaluator.ErrPlugin, "query: %v", err)
		}
		row := scope.NewChild(nil)
		rt.Acquire(row)
		for i, col := range columns {
			row.Push(evaluator.NewValueBinding(col, fromSQL(cells[i])))
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return evaluator.Result{}, evaluator.NewError(evaluator.ErrPlugin, "query: %v", err)
	}
	return evaluator.Done(&evaluator.List{Elements: out}), nil
}

func fromSQL(v interface{}) evaluator.Object {
	switch x := v.(type) {
	case nil:
		return evaluator.NIL
	case int64:
		return &evaluator.Number{Value: float64(x)}
	case float64:
		return &evaluator.Number{Value: x}
	case bool:
		return evaluator.NativeBool(x)
	case string:
		return &evaluator.String{Value: x}
	case []byte:
		return &evaluator.String{Value: string(x)}
	}
	return &evaluator.String{Value: fmt.Sprint(v)}
}
