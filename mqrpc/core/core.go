package core

import jsoniter "github.com/json-iterator/go"

// 传输层header(关联信息不进消息体)
const (
	HeaderCorrelationID = "Correlation-Id"
	HeaderReplyTo       = "Reply-To"
	HeaderTrace         = "Trace"
)

// RequestInfo 请求信封, body只有 {"action":..., "data":...}
type RequestInfo struct {
	Action  string              `json:"action"` // 操作名
	Data    jsoniter.RawMessage `json:"data"`   // 参数数据(json object)
	Cid     string              `json:"-"`      // 调用ID(header)
	ReplyTo string              `json:"-"`      // 回复地址(header),为空表示不需要回复
	Trace   []byte              `json:"-"`      // 跟踪信息(header)
}

// ResultInfo 回复信封, body为处理结果本身或 {"error":...}
type ResultInfo struct {
	Cid    string              // 调用ID(header)
	Error  string              // 错误信息
	Result jsoniter.RawMessage // 结果数据
}

// Failed 是否是错误回复
func (r *ResultInfo) Failed() bool { return r.Error != "" }
