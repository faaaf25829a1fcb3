// Copyright 2014 mqant Author. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/ilyakaznacheev/cleanenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Conf 全局配置结构体
var Conf = Default()

// LoadConfig 加载本地配置(文件之后再用环境变量覆盖)
func LoadConfig(path string) error {
	fmt.Println("app configuration path :", path)

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()

	cfg := Default()
	if err := Parse(f, &cfg); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	Conf = cfg
	return nil
}

// LoadConsul 从consul KV加载配置(key default: config/{env}/server)
func LoadConsul(addr, key string) error {
	ccfg := consulapi.DefaultConfig()
	if addr != "" {
		ccfg.Address = addr
	}
	client, err := consulapi.NewClient(ccfg)
	if err != nil {
		return errors.Wrap(err, "consul client")
	}
	pair, _, err := client.KV().Get(key, nil)
	if err != nil {
		return errors.Wrapf(err, "无法从consul获取配置:%s", key)
	}
	if pair == nil {
		return errors.Errorf("consul配置不存在:%s", key)
	}

	cfg := Default()
	if err := Parse(bytes.NewReader(pair.Value), &cfg); err != nil {
		return errors.Wrapf(err, "consul配置解析失败:%s", key)
	}
	Conf = cfg
	return nil
}

// Parse 解析配置(支持整行的 // 注释),然后用环境变量覆盖
func Parse(r io.Reader, cfg *Config) error {
	buf := new(bytes.Buffer)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadSlice('\n')
		if err != nil {
			if len(line) > 0 && !isComment(line) {
				buf.Write(line)
			}
			break
		}
		if !isComment(line) {
			buf.Write(line)
		}
	}
	if buf.Len() > 0 {
		if err := jsoniter.Unmarshal(buf.Bytes(), cfg); err != nil {
			return err
		}
	}
	return cleanenv.ReadEnv(cfg)
}

func isComment(line []byte) bool {
	return strings.HasPrefix(strings.TrimLeft(string(line), "\t "), "//")
}

// Default 默认配置
func Default() Config {
	return Config{
		Nats: Nats{
			Addr:          "127.0.0.1:4222",
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
		},
		Broker: Broker{
			Exchange:    "default_exchange",
			Queue:       "messages",
			RoutingKeys: []string{"user.v1.register", "user.v1.login"},
			Prefetch:    1,
		},
		RPC: RPC{
			Timeout: Duration(60 * time.Second),
		},
		Store: Store{
			Driver: "memory",
		},
		Http: Http{
			Addr:    ":8000",
			TimeOut: Duration(65 * time.Second),
		},
	}
}

// Config 配置结构体
type Config struct {
	Log    map[string]any // 不用定制
	RpcLog bool           `env:"RPC_LOG"`
	Module map[string][]*ModuleSettings
	Nats   Nats
	Broker Broker
	RPC    RPC
	Store  Store
	Http   Http
}

// ModuleSettings 模块配置
type ModuleSettings struct {
	ID         string `json:"ID"` // 节点id
	ProcessEnv string
	Settings   map[string]any
}

// Nats nats配置
type Nats struct {
	Addr          string   `env:"NATS_ADDR"`
	MaxReconnects int      `env:"NATS_MAX_RECONNECTS"`
	ReconnectWait Duration `env:"NATS_RECONNECT_WAIT"`
}

// Broker 消息拓扑配置(exchange=stream, queue=durable consumer)
type Broker struct {
	Exchange    string   `env:"EXCHANGE_NAME"`
	Queue       string   `env:"REQUEST_QUEUE"`
	RoutingKeys []string `env:"ROUTING_KEYS" env-separator:","`
	Prefetch    int      `env:"PREFETCH"`
}

// RPC 调用配置
type RPC struct {
	Timeout Duration `env:"RPC_TIMEOUT"`
}

// Store 账号存储配置
type Store struct {
	Driver    string `env:"STORE_DRIVER"` // memory|redis|postgres
	RedisAddr string `env:"REDIS_ADDR"`
	RedisDB   int    `env:"REDIS_DB"`
	DSN       string `env:"DATABASE_URL"`
}

// Http 网关配置
type Http struct {
	Addr    string   `env:"HTTP_ADDR"`
	TimeOut Duration `env:"HTTP_TIMEOUT"`
}

// Duration 支持 "60s" 这样的写法(json和环境变量)
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := jsoniter.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*d = Duration(time.Duration(x) * time.Second) // 数字按秒处理
	case string:
		return d.SetValue(x)
	default:
		return errors.Errorf("invalid duration %s", string(b))
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return jsoniter.Marshal(time.Duration(d).String())
}

// SetValue implements cleanenv.Setter
func (d *Duration) SetValue(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", s)
	}
	*d = Duration(v)
	return nil
}
