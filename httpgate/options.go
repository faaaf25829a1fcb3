// Package httpgate 账号HTTP网关配置
package httpgate

import (
	"time"

	"github.com/cloudapex/mqaccount/conf"
)

// Config.Module[httpgate].Settings中可覆盖的配置
const (
	SettingKeyAddr           = "Addr"
	SettingKeyTLS            = "TLS"
	SettingKeyCertFile       = "CertFile"
	SettingKeyKeyFile        = "KeyFile"
	SettingKeyTimeOut        = "TimeOut" // 秒
	SettingKeyReadTimeout    = "ReadTimeout"
	SettingKeyWriteTimeout   = "WriteTimeout"
	SettingKeyIdleTimeout    = "IdleTimeout"
	SettingKeyMaxHeaderBytes = "MaxHeaderBytes"
)

// Option 配置
type Option func(*Options)

// Options 网关配置项
type Options struct {
	Addr           string
	TLS            bool
	CertFile       string
	KeyFile        string
	TimeOut        time.Duration // rpc超时时间
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
}

// NewOptions 创建配置(默认值取Config.Http)
func NewOptions(opts ...Option) Options {
	opt := Options{
		Addr:           conf.Conf.Http.Addr,
		TimeOut:        conf.Conf.Http.TimeOut.Std(),
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   conf.Conf.Http.TimeOut.Std() + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 4 * 1024,
	}
	if opt.Addr == "" {
		opt.Addr = ":8000"
	}

	for _, o := range opts {
		o(&opt)
	}

	return opt
}

// FromSettings 用模块settings覆盖配置(json数字按秒)
func FromSettings(settings map[string]any) []Option {
	var opts []Option
	for k, v := range settings {
		switch k {
		case SettingKeyAddr:
			if s, ok := v.(string); ok {
				opts = append(opts, Addr(s))
			}
		case SettingKeyTLS:
			if b, ok := v.(bool); ok {
				opts = append(opts, TLS(b))
			}
		case SettingKeyCertFile:
			if s, ok := v.(string); ok {
				opts = append(opts, CertFile(s))
			}
		case SettingKeyKeyFile:
			if s, ok := v.(string); ok {
				opts = append(opts, KeyFile(s))
			}
		case SettingKeyTimeOut:
			opts = append(opts, TimeOut(seconds(v)))
		case SettingKeyReadTimeout:
			opts = append(opts, ReadTimeout(seconds(v)))
		case SettingKeyWriteTimeout:
			opts = append(opts, WriteTimeout(seconds(v)))
		case SettingKeyIdleTimeout:
			opts = append(opts, IdleTimeout(seconds(v)))
		case SettingKeyMaxHeaderBytes:
			opts = append(opts, MaxHeaderBytes(int(number(v))))
		}
	}
	return opts
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func seconds(v any) time.Duration {
	return time.Duration(number(v) * float64(time.Second))
}

// Addr 设置监听地址
func Addr(addr string) Option {
	return func(o *Options) {
		o.Addr = addr
	}
}

// TLS 是否启用https
func TLS(on bool) Option {
	return func(o *Options) {
		o.TLS = on
	}
}

// CertFile 证书
func CertFile(s string) Option {
	return func(o *Options) {
		o.CertFile = s
	}
}

// KeyFile 私钥
func KeyFile(s string) Option {
	return func(o *Options) {
		o.KeyFile = s
	}
}

// TimeOut 设置网关超时时间
func TimeOut(s time.Duration) Option {
	return func(o *Options) {
		o.TimeOut = s
	}
}

// ReadTimeout http读超时
func ReadTimeout(s time.Duration) Option {
	return func(o *Options) {
		o.ReadTimeout = s
	}
}

// WriteTimeout http写超时
func WriteTimeout(s time.Duration) Option {
	return func(o *Options) {
		o.WriteTimeout = s
	}
}

// IdleTimeout keep-alive空闲超时
func IdleTimeout(s time.Duration) Option {
	return func(o *Options) {
		o.IdleTimeout = s
	}
}

// MaxHeaderBytes 最大header长度
func MaxHeaderBytes(n int) Option {
	return func(o *Options) {
		o.MaxHeaderBytes = n
	}
}
