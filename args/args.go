package args

import (
	"os"
	"reflect"
	"strconv"
	"strings"
)

/*
	提供一个比较方便获取命令行参数的方法，支持等号赋值和shell模式赋值

	-key=value or -key value

	支持多次赋值

	-key value1 -key value2

	func FillEnv(env interface{})

	支持自动填入命令行参数到对象如
	type Env struct{
		K        int
		V        int `command:"v"`
	}
	var env = &Env{}
	FillEnv(env)

	./main -k 2 -v 1

	系统只会填入tag:command的导出字段
*/

var _args map[string][]string
var _other []string

func init() {
	Parse(os.Args[1:])
}

// Parse 重新解析参数列表，覆盖之前的结果
func Parse(l []string) {
	_args = make(map[string][]string)
	_other = nil
	for i := 0; i < len(l); {
		v := l[i]
		if len(v) > 1 && v[0] == '-' {
			// 读取下一个
			i = readValue(strings.TrimLeft(v, "-"), l, i)
		} else {
			// 把余下的放到一个大列表中
			_other = append(_other, v)
			i++
		}
	}
}

func readValue(key string, l []string, i int) int {
	if len(key) == 0 {
		return i + 1
	}
	// 支持golang 等号（=）赋值
	if idx := strings.IndexByte(key, '='); idx > 0 {
		appendValue(key[:idx], key[idx+1:])
		return i + 1
	}
	// 最后一个
	if len(l) == i+1 {
		appendValue(key, "")
		return i + 1
	}
	v := l[i+1]
	if len(v) > 0 && v[0] == '-' {
		appendValue(key, "")
		return i + 1
	}
	appendValue(key, v)
	return i + 2
}

func GetInt(key string) (v int, ok bool) {
	if vl, ok := _args[key]; ok && len(vl) > 0 {
		// 获取最后一个
		if i, err := strconv.Atoi(vl[len(vl)-1]); err == nil {
			return i, ok
		}
	}
	return
}

func GetString(key string) (v string, ok bool) {
	if vl, ok := _args[key]; ok && len(vl) > 0 {
		return vl[len(vl)-1], ok
	}
	return
}

func GetIntDefault(key string, df int) int {
	if v, ok := GetInt(key); ok {
		return v
	}
	return df
}

func GetStringDefault(key string, df string) string {
	if v, ok := GetString(key); ok {
		return v
	}
	return df
}

func GetBool(key string) bool {
	v, ok := GetString(key)
	if !ok {
		return false
	}
	// 只写了 -key 也算true
	return v == "" || v == "true" || v == "1"
}

func GetValues(key string) []string {
	if v, ok := _args[key]; ok {
		return v
	}
	return nil
}

func GetOther() []string {
	return _other
}

func appendValue(key, value string) {
	_args[key] = append(_args[key], value)
}

// 根据命令行参数，自动填充，目前仅仅支持 整数，bool，字符串
// env 需要是指针
func FillEnv(env interface{}) {
	vt := reflect.ValueOf(env)
	if vt.Kind() != reflect.Ptr || vt.IsNil() {
		return
	}
	vt = vt.Elem()
	if vt.Kind() != reflect.Struct {
		return
	}
	ft := vt.Type()
	for i := 0; i < ft.NumField(); i++ {
		fieldType := ft.Field(i)
		if name, ok := fieldType.Tag.Lookup("command"); ok && fieldType.IsExported() {
			setValue(vt.Field(i), name)
		}
	}
}

func setValue(f reflect.Value, name string) {
	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v, ok := GetInt(name); ok && !f.OverflowInt(int64(v)) {
			f.SetInt(int64(v))
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v, ok := GetInt(name); ok && v >= 0 && !f.OverflowUint(uint64(v)) {
			f.SetUint(uint64(v))
		}
	case reflect.String:
		if vs, ok := GetString(name); ok {
			f.SetString(vs)
		}
	case reflect.Bool:
		if _, ok := GetString(name); ok {
			f.SetBool(GetBool(name))
		}
	}
}
