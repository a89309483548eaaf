package modules

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// LuaToGo converts a Lua value to a Go value. Tables with only positive
// integer keys become slices, other tables become maps.
func LuaToGo(v lua.LValue) interface{} {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		return tableToGo(val)
	default:
		return v.String()
	}
}

func tableToGo(tbl *lua.LTable) interface{} {
	if n := tbl.MaxN(); n > 0 && countKeys(tbl) == n {
		arr := make([]interface{}, n)
		for i := 1; i <= n; i++ {
			arr[i-1] = LuaToGo(tbl.RawGetInt(i))
		}
		return arr
	}

	obj := make(map[string]interface{})
	tbl.ForEach(func(k, v lua.LValue) {
		obj[lua.LVAsString(k)] = LuaToGo(v)
	})
	return obj
}

func countKeys(tbl *lua.LTable) int {
	n := 0
	tbl.ForEach(func(lua.LValue, lua.LValue) { n++ })
	return n
}

// GoToLuaValue converts a Go value to a Lua value. Unknown types are
// formatted as strings.
func GoToLuaValue(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []interface{}:
		tbl := L.CreateTable(len(val), 0)
		for _, item := range val {
			tbl.Append(GoToLuaValue(L, item))
		}
		return tbl
	case map[string]interface{}:
		return MapToLuaTable(L, val)
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// MapToLuaTable converts a Go map to a Lua table
func MapToLuaTable(L *lua.LState, m map[string]any) *lua.LTable {
	tbl := L.CreateTable(0, len(m))
	for k, v := range m {
		tbl.RawSetString(k, GoToLuaValue(L, v))
	}
	return tbl
}

// optNumber reads a numeric field from an options table.
func optNumber(opts *lua.LTable, key string) (float64, bool) {
	n, ok := opts.RawGetString(key).(lua.LNumber)
	return float64(n), ok
}
