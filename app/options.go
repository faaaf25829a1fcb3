package app

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/nats-io/nats.go"
)

// NewOptions APP选项
func NewOptions(opts ...Option) Options {

	// default value
	opt := Options{
		Version:         "1.0.0",
		KillWaitTTL:     time.Second * time.Duration(60),
		RPCMaxCoroutine: 1, // 串行处理
		Debug:           true,
		Parse:           true,
		LogFileName: func(logdir, prefix, processID, suffix string) string {
			return fmt.Sprintf("%s/%v%s%s", logdir, prefix, processID, suffix)
		},
	}

	for _, o := range opts {
		o(&opt)
	}

	// 解析配置参数(环境变量和命令行参数同时指定的话优先使用命令行,应用层指定的优先级最高)
	var startArgs = startUpArgs{}
	if opt.Parse {
		// 其次使用环境变量
		if err := cleanenv.ReadEnv(&startArgs); err != nil {
			panic(err)
		}
		// 优先使用命令行参数
		flag.StringVar(&startArgs.WordDir, "wd", startArgs.WordDir, "Server work directory")
		flag.StringVar(&startArgs.ProcessEnv, "env", startArgs.ProcessEnv, "Server ProcessEnv")
		flag.StringVar(&startArgs.ConfPath, "conf", startArgs.ConfPath, "Server config file")
		flag.StringVar(&startArgs.ConsulAddr, "consul", startArgs.ConsulAddr, "Consul server addr")
		flag.StringVar(&startArgs.LogPath, "log", startArgs.LogPath, "Log file directory")
		flag.Parse()
	}

	// 工作目录(优先使用代码中的)
	if opt.WorkDir == "" {
		opt.WorkDir = startArgs.WordDir
	}

	// 设置进程分组环境(优先使用代码中的)
	if opt.ProcessEnv == "" {
		opt.ProcessEnv = startArgs.ProcessEnv
		if opt.ProcessEnv == "" {
			opt.ProcessEnv = "dev"
		}
	}

	// 最终检查设置工作目录
	appWorkDirPath := ""
	if opt.WorkDir != "" {
		if _, err := os.Stat(opt.WorkDir); err != nil {
			panic(err)
		}
		_ = os.Chdir(opt.WorkDir)
	}
	appWorkDirPath, err := os.Getwd()
	if err != nil {
		file, _ := exec.LookPath(os.Args[0])
		ApplicationPath, _ := filepath.Abs(file)
		appWorkDirPath, _ = filepath.Split(ApplicationPath)
	}
	opt.WorkDir = appWorkDirPath

	// 配置来源: 本地文件 > consul > 默认配置
	if opt.ConfPath == "" {
		opt.ConfPath = startArgs.ConfPath
	}
	if len(opt.ConsulAddr) == 0 && startArgs.ConsulAddr != "" {
		opt.ConsulAddr = append(opt.ConsulAddr, startArgs.ConsulAddr)
	}
	if opt.ConfigKey == "" {
		opt.ConfigKey = fmt.Sprintf("config/%v/server", opt.ProcessEnv)
	}

	// 日志目录(为空只输出到控制台)
	if opt.LogDir == "" {
		opt.LogDir = startArgs.LogPath
	}
	if opt.LogDir != "" {
		if _, err := os.Stat(opt.LogDir); os.IsNotExist(err) {
			if err := os.MkdirAll(opt.LogDir, os.ModePerm); err != nil {
				fmt.Println(err)
			}
		}
	}

	return opt
}

// Options 应用级别配置
type Options struct {
	Version     string        // app的版本
	Debug       bool          // 是否打印日志到控制台(true)
	Parse       bool          // 是否由框架解析启动环境变量,默认为true
	WorkDir     string        // 工作目录(from startUpArgs.WordDir)
	ProcessEnv  string        // 进程分组名称(from startUpArgs.ProcessEnv)
	ConfPath    string        // 本地配置文件(from startUpArgs.ConfPath)
	ConfigKey   string        // consul configKey(default: config/{env}/server)
	ConsulAddr  []string      // consul addr(from startUpArgs.ConsulAddr)
	LogDir      string        // Log目录(from startUpArgs.LogPath)
	KillWaitTTL time.Duration // 服务关闭超时强杀(60s)

	Nats *nats.Conn // 外部传入的连接(nil则按配置连接)

	RPCMaxCoroutine uint32 // 单个模块同时处理的请求数(1)

	ServerRPCHandler ServerRPCHandler // 配置全局的RPC服务方监控器(nil)

	// 自定义日志文件名字(主要作用方便k8s映射日志不会被冲突，建议使用k8s pod实现)
	LogFileName FileNameHandler // 日志文件名称(默认):fmt.Sprintf("%s/%v%s%s", logdir, prefix, processID, suffix)
}

// Option 应用级别配置项
type Option func(*Options)

// Version 应用版本
func Version(v string) Option {
	return func(o *Options) {
		o.Version = v
	}
}

// Debug 只有是在调试模式下才会在控制台打印日志, 非调试模式下只在日志文件中输出日志
func Debug(t bool) Option {
	return func(o *Options) {
		o.Debug = t
	}
}

// WorkDir 进程工作目录
func WorkDir(v string) Option {
	return func(o *Options) {
		o.WorkDir = v
	}
}

// ConfPath 本地配置文件
func ConfPath(v string) Option {
	return func(o *Options) {
		o.ConfPath = v
	}
}

// ConfigKey consul配置key
func ConfigKey(v string) Option {
	return func(o *Options) {
		o.ConfigKey = v
	}
}

// ConsulAddr consul 地址
func ConsulAddr(v ...string) Option {
	return func(o *Options) {
		o.ConsulAddr = append(o.ConsulAddr, v...)
	}
}

// LogDir 日志存储路径
func LogDir(v string) Option {
	return func(o *Options) {
		o.LogDir = v
	}
}

// ProcessID 进程分组ID
func ProcessID(v string) Option {
	return func(o *Options) {
		o.ProcessEnv = v
	}
}

// Nats  nats配置
func Nats(nc *nats.Conn) Option {
	return func(o *Options) {
		o.Nats = nc
	}
}

// KillWaitTTL 服务关闭超时强杀
func KillWaitTTL(t time.Duration) Option {
	return func(o *Options) {
		o.KillWaitTTL = t
	}
}

// SetServerRPCHandler 配置服务方监控器
func SetServerRPCHandler(t ServerRPCHandler) Option {
	return func(o *Options) {
		o.ServerRPCHandler = t
	}
}

// Parse 框架是否解析环境参数
func Parse(t bool) Option {
	return func(o *Options) {
		o.Parse = t
	}
}

// RPCMaxCoroutine 单个模块同时处理的请求数
func RPCMaxCoroutine(t uint32) Option {
	return func(o *Options) {
		o.RPCMaxCoroutine = t
	}
}

// WithLogFile 日志文件名称
func WithLogFile(name FileNameHandler) Option {
	return func(o *Options) {
		o.LogFileName = name
	}
}
