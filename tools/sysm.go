package tools

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// Catch 把recover()的结果转成带堆栈的错误
func Catch(desc string, x any) error {
	if x == nil {
		return nil
	}
	head := fmt.Sprintf("%s panic: %v\n", desc, x)

	buf := make([]byte, 256*10)
	size := runtime.Stack(buf, true)
	stack := string(buf[0:size])
	return errors.Errorf("%v, stack:\n%v", head, stack)
}

// FuncName 函数短名(用于日志)
func FuncName(fun any) string {
	return FuncFullName(fun, '.')
}

func FuncFullName(fun any, seps ...rune) string {
	return FuncFullNameRef(reflect.ValueOf(fun), seps...)
}

func FuncFullNameRef(valFun reflect.Value, seps ...rune) string {
	fn := runtime.FuncForPC(valFun.Pointer()).Name()
	if len(seps) == 0 {
		return fn
	}

	fields := strings.FieldsFunc(fn, func(sep rune) bool {
		for _, s := range seps {
			if sep == s {
				return true
			}
		}
		return false
	})
	if size := len(fields); size > 0 {
		return strings.Split(fields[size-1], "-")[0]
	}
	return fn
}
