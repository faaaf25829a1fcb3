package app

// default app instance
var defaultApp IApp = nil

func Default(set ...IApp) IApp {
	if defaultApp != nil {
		return defaultApp
	}

	if len(set) != 0 {
		defaultApp = set[0]
	}

	return defaultApp
}

// 启动参数(命令行优先级比环境变量高)
type startUpArgs struct {
	WordDir    string `env:"wd" env-default:""`
	ProcessEnv string `env:"env" env-default:"dev"`
	ConfPath   string `env:"conf" env-default:""`   // 本地配置文件(优先于consul)
	ConsulAddr string `env:"consul" env-default:""` // use configKey: config/{env}/server
	LogPath    string `env:"log" env-default:""`
}
