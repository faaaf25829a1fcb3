package mqrpc

import (
	"fmt"
	"reflect"
)

type callResult struct {
	Reply []byte
	Error error
}

// RpcResult 拼装CallResult
//
//	err := mqrpc.Json(&out, mqrpc.RpcResult(client.Call(ctx, key, action, data)))
func RpcResult(reply []byte, err error) callResult {
	return callResult{
		Reply: reply,
		Error: err,
	}
}

// Json 把成功回复解码到pObj
func Json(pObj any, ret callResult) error {
	if ret.Error != nil {
		return ret.Error
	}

	rv := reflect.ValueOf(pObj)
	if rv.Kind() != reflect.Ptr { //不是指针
		return fmt.Errorf("pObj [%v] not pointer type", rv.Type())
	}
	if ret.Reply == nil {
		return ErrNil
	}
	if err := json.Unmarshal(ret.Reply, pObj); err != nil {
		return NewError(KindDecode, err, "%s: %v", InvalidFormatMsg, err)
	}
	return nil
}

// JsMap 成功回复转为map
func JsMap(reply []byte, err error) (map[string]any, error) {
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, ErrNil
	}
	var m map[string]any
	if err := json.Unmarshal(reply, &m); err != nil {
		return nil, NewError(KindDecode, err, "%s: %v", InvalidFormatMsg, err)
	}
	return m, nil
}

// String 取成功回复中的字符串字段
//
//	name, err := mqrpc.String("username", mqrpc.RpcResult(client.Call(ctx, key, action, data)))
func String(field string, ret callResult) (string, error) {
	m, err := JsMap(ret.Reply, ret.Error)
	if err != nil {
		return "", err
	}
	switch v := m[field].(type) {
	case string:
		return v, nil
	case nil:
		return "", ErrNil
	default:
		return "", fmt.Errorf("mqrpc: unexpected type for %s, got type %T", field, v)
	}
}
