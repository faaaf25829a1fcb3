package mqrpc

import (
	"bytes"

	"github.com/cloudapex/mqaccount/mqrpc/core"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeRequest 请求信封 -> body
func EncodeRequest(req *core.RequestInfo) ([]byte, error) {
	if req.Action == "" {
		return nil, errors.New("empty action")
	}
	if !IsObject(req.Data) {
		return nil, errors.Errorf("action %s: data must be a json object", req.Action)
	}
	return json.Marshal(req)
}

// DecodeRequest body -> 请求信封(action和data都必须存在)
func DecodeRequest(body []byte) (*core.RequestInfo, error) {
	var req core.RequestInfo
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errors.Wrap(err, "unmarshal request")
	}
	if req.Action == "" {
		return nil, errors.New("missing action")
	}
	if !IsObject(req.Data) {
		return nil, errors.New("missing or non-object data")
	}
	return &req, nil
}

// EncodeResult 回复信封 -> body (成功为结果本身, 失败为 {"error": ...})
func EncodeResult(res *core.ResultInfo) ([]byte, error) {
	if res.Failed() {
		return json.Marshal(map[string]string{"error": res.Error})
	}
	if len(res.Result) == 0 {
		return []byte("{}"), nil
	}
	return res.Result, nil
}

// DecodeResult body -> 回复信封
func DecodeResult(cid string, body []byte) (*core.ResultInfo, error) {
	if !IsObject(body) {
		return nil, errors.New("reply is not a json object")
	}
	var fields map[string]jsoniter.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, errors.Wrap(err, "unmarshal reply")
	}
	if raw, ok := fields["error"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil {
			return &core.ResultInfo{Cid: cid, Error: msg}, nil
		}
	}
	return &core.ResultInfo{Cid: cid, Result: body}, nil
}

// MarshalData 把调用参数编码成data字段
func MarshalData(data any) (jsoniter.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return jsoniter.RawMessage("{}"), nil
	case jsoniter.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	}
	return json.Marshal(data)
}

// Bind 把data字段解码到结构体
func Bind(data jsoniter.RawMessage, pObj any) error {
	if err := json.Unmarshal(data, pObj); err != nil {
		return errors.Wrap(err, "bind data")
	}
	return nil
}

// IsObject body是否是json对象
func IsObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) >= 2 && b[0] == '{' && b[len(b)-1] == '}'
}
