// Package stdlib registers the builtin extensions SPEC_FULL.md §4.9
// adds beyond spec.md's seven core builtins: uuid/humanize as plain
// display helpers, and sql_*/ws_* fronting the teacher's database and
// network packages. Every extension is an ordinary vm.Native, reached
// through the same FnCall path as a user-defined function - no new
// opcode, no module/import syntax.
package stdlib

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"sentra/internal/database"
	"sentra/internal/network"
	"sentra/internal/value"
	"sentra/internal/vm"
)

// Register wires every extension into machine's function table. Called
// once per VM by the CLI's run/repl commands.
func Register(machine *vm.VM) {
	db := database.NewManager()
	ws := network.NewManager()

	machine.RegisterNative("uuid", vm.Native{Arity: 0, Fn: uuidFn})
	machine.RegisterNative("humanize", vm.Native{Arity: 1, Fn: humanizeFn})

	machine.RegisterNative("sql_open", vm.Native{Arity: 2, Fn: sqlOpen(db)})
	machine.RegisterNative("sql_query", vm.Native{Arity: 2, Fn: sqlQuery(db)})
	machine.RegisterNative("sql_exec", vm.Native{Arity: 2, Fn: sqlExec(db)})
	machine.RegisterNative("sql_close", vm.Native{Arity: 1, Fn: sqlClose(db)})

	machine.RegisterNative("ws_dial", vm.Native{Arity: 1, Fn: wsDial(ws)})
	machine.RegisterNative("ws_send", vm.Native{Arity: 2, Fn: wsSend(ws)})
	machine.RegisterNative("ws_recv", vm.Native{Arity: 1, Fn: wsRecv(ws)})
	machine.RegisterNative("ws_close", vm.Native{Arity: 1, Fn: wsClose(ws)})
}

func uuidFn(args []value.Value) (value.Value, error) {
	return value.Str(uuid.New().String()), nil
}

func humanizeFn(args []value.Value) (value.Value, error) {
	switch args[0].Kind {
	case value.KindInt:
		return value.Str(humanize.Comma(args[0].Int.Int64())), nil
	case value.KindFloat:
		f, _ := args[0].Flt.Float64()
		return value.Str(humanize.CommafWithDigits(f, 2)), nil
	default:
		return value.Value{}, fmt.Errorf("humanize: expected int or float, got %s", args[0].TypeName())
	}
}

func wantString(v value.Value, who string) (string, error) {
	if v.Kind != value.KindString {
		return "", fmt.Errorf("%s: expected string, got %s", who, v.TypeName())
	}
	return v.Str, nil
}

func wantHandle(v value.Value, who string) (int64, error) {
	if v.Kind != value.KindInt {
		return 0, fmt.Errorf("%s: expected handle (int), got %s", who, v.TypeName())
	}
	return v.Int.Int64(), nil
}

func sqlOpen(db *database.Manager) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		driver, err := wantString(args[0], "sql_open")
		if err != nil {
			return value.Value{}, err
		}
		dsn, err := wantString(args[1], "sql_open")
		if err != nil {
			return value.Value{}, err
		}
		h, err := db.Open(driver, dsn)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(h), nil
	}
}

func sqlQuery(db *database.Manager) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		h, err := wantHandle(args[0], "sql_query")
		if err != nil {
			return value.Value{}, err
		}
		query, err := wantString(args[1], "sql_query")
		if err != nil {
			return value.Value{}, err
		}
		result, err := db.Query(h, query)
		if err != nil {
			return value.Value{}, err
		}
		rows := make([]value.Value, len(result.Rows))
		for i, row := range result.Rows {
			cells := make([]value.Value, len(row))
			for j, cell := range row {
				cells[j] = fromGo(cell)
			}
			rows[i] = value.Array(cells)
		}
		return value.Array(rows), nil
	}
}

func sqlExec(db *database.Manager) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		h, err := wantHandle(args[0], "sql_exec")
		if err != nil {
			return value.Value{}, err
		}
		stmt, err := wantString(args[1], "sql_exec")
		if err != nil {
			return value.Value{}, err
		}
		n, err := db.Exec(h, stmt)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(n), nil
	}
}

func sqlClose(db *database.Manager) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		h, err := wantHandle(args[0], "sql_close")
		if err != nil {
			return value.Value{}, err
		}
		if err := db.Close(h); err != nil {
			return value.Value{}, err
		}
		return value.Nil(), nil
	}
}

func wsDial(ws *network.Manager) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		url, err := wantString(args[0], "ws_dial")
		if err != nil {
			return value.Value{}, err
		}
		h, err := ws.Dial(url)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(h), nil
	}
}

func wsSend(ws *network.Manager) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		h, err := wantHandle(args[0], "ws_send")
		if err != nil {
			return value.Value{}, err
		}
		text, err := wantString(args[1], "ws_send")
		if err != nil {
			return value.Value{}, err
		}
		if err := ws.Send(h, text); err != nil {
			return value.Value{}, err
		}
		return value.Nil(), nil
	}
}

func wsRecv(ws *network.Manager) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		h, err := wantHandle(args[0], "ws_recv")
		if err != nil {
			return value.Value{}, err
		}
		text, err := ws.Recv(h)
		if err != nil {
			return value.Value{}, err
		}
		return value.Str(text), nil
	}
}

func wsClose(ws *network.Manager) func([]value.Value) (value.Value, error) {
	return func(args []value.Value) (value.Value, error) {
		h, err := wantHandle(args[0], "ws_close")
		if err != nil {
			return value.Value{}, err
		}
		if err := ws.Close(h); err != nil {
			return value.Value{}, err
		}
		return value.Nil(), nil
	}
}

// fromGo converts one database/sql scan result into a Value, covering
// the column types the three wired drivers actually return.
func fromGo(v interface{}) value.Value {
	switch t := v.(type) {
	case nil:
		return value.Nil()
	case string:
		return value.Str(t)
	case bool:
		return value.Bool(t)
	case int64:
		return value.Int(t)
	case float64:
		return value.Float(t)
	default:
		return value.Str(fmt.Sprint(t))
	}
}
