package account

import (
	"context"
	"time"

	"github.com/cloudapex/mqaccount/app"
	"github.com/cloudapex/mqaccount/conf"
	"github.com/cloudapex/mqaccount/log"
	"github.com/cloudapex/mqaccount/module"
	"github.com/cloudapex/mqaccount/store"
)

var _ app.IRPCModule = &Module{}

// Module 账号消费模块: 消费请求队列并执行账号操作
type Module struct {
	module.ModuleBase

	store store.Store
	opts  []module.Option
}

// NewModule 创建模块, s为nil时按配置打开存储
func NewModule(s store.Store, opts ...module.Option) *Module {
	return &Module{store: s, opts: opts}
}

func (this *Module) GetType() string {
	// 很关键,需要与配置文件中的Module配置对应
	return "account"
}

func (this *Module) Version() string {
	// 可以在监控时了解代码版本
	return "1.0.0"
}

func (this *Module) OnInit(settings *conf.ModuleSettings) {
	this.ModuleBase.Init(this, settings, this.opts...) // 这是必须的

	if this.store == nil {
		cfg := conf.Conf
		if a := app.Default(); a != nil {
			cfg = a.Config()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := store.Open(ctx, cfg.Store)
		if err != nil {
			panic(err)
		}
		this.store = s
	}
	NewHandlers(this.store).RegisterTo(this)
}

func (this *Module) OnDestroy() {
	// 一定别忘了继承
	this.ModuleBase.OnDestroy()
	if err := this.store.Close(); err != nil {
		log.Warning("close account store: %v", err)
	}
}
