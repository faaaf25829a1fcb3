// Package module  模块管理器
package module

import (
	"fmt"
	"sync"

	"github.com/cloudapex/mqaccount/app"
	"github.com/cloudapex/mqaccount/conf"
	"github.com/cloudapex/mqaccount/log"
	"github.com/cloudapex/mqaccount/tools"
)

// NewModuleManager 新建模块管理器
func NewModuleManager() *ModuleManager {
	return &ModuleManager{}
}

// moduleUnit 模块结构
type moduleUnit struct {
	mi       app.IModule
	settings *conf.ModuleSettings // from Config.Module
	closeSig chan bool
	wg       sync.WaitGroup
}

// ModuleManager 模块管理器
type ModuleManager struct {
	mods    []*moduleUnit // 注册的modules
	runMods []*moduleUnit // 真正运行的modules
}

// Register 注册模块
func (this *ModuleManager) Register(mi app.IModule) {
	this.mods = append(this.mods, &moduleUnit{
		mi:       mi,
		closeSig: make(chan bool, 1),
	})
}

// RegisterRunMod 注册需要运行的模块(不受配置约束)
func (this *ModuleManager) RegisterRunMod(mi app.IModule) {
	this.runMods = append(this.runMods, &moduleUnit{
		mi:       mi,
		settings: &conf.ModuleSettings{},
		closeSig: make(chan bool, 1),
	})
}

// Init 初始化并运行模块
func (this *ModuleManager) Init(cfg conf.Config, processEnv string) {
	log.Info("This server app process run ProcessEnvId is [%s]", processEnv)

	// 配置文件规则检查(没通过的话直接panic)
	this.checkModuleSettings(cfg)

	// 程序注册的module与配置中的module进行匹配,得到最终runMods
	for _, m := range this.mods {
		modSettings, ok := cfg.Module[m.mi.GetType()]
		if !ok { // 没有配置的模块默认运行
			m.settings = &conf.ModuleSettings{ProcessEnv: processEnv}
			this.runMods = append(this.runMods, m)
			continue
		}
		for _, setting := range modSettings {
			if processEnv == setting.ProcessEnv { // 有匹配到
				m.settings = setting
				this.runMods = append(this.runMods, m) // 加入到运行列表中
				break
			}
		}
	}

	var onInited func(module app.IModule)
	if a := app.Default(); a != nil {
		onInited = a.GetModuleInited()
	}

	// 初始化并运行模块
	for _, m := range this.runMods {
		m.mi.OnInit(m.settings)

		if onInited != nil {
			onInited(m.mi)
		}

		m.wg.Add(1)
		go func(unit *moduleUnit) {
			defer unit.wg.Done()
			defer func() {
				if err := tools.Catch("module run", recover()); err != nil {
					log.Error("module[%q] run panic: %v", unit.mi.GetType(), err)
				}
			}()
			unit.mi.Run(unit.closeSig)
		}(m)
	}
}

// Running 正在运行的模块类型
func (this *ModuleManager) Running() []string {
	types := make([]string, 0, len(this.runMods))
	for _, m := range this.runMods {
		types = append(types, m.mi.GetType())
	}
	return types
}

// Destroy 停止模块(倒序)
func (this *ModuleManager) Destroy() {
	for i := len(this.runMods) - 1; i >= 0; i-- {
		m := this.runMods[i]
		m.closeSig <- true
		m.wg.Wait()
		func(unit *moduleUnit) {
			defer func() {
				if err := tools.Catch("module destroy", recover()); err != nil {
					log.Error("module[%q] destroy panic: %v", unit.mi.GetType(), err)
				}
			}()
			unit.mi.OnDestroy()
		}(m)
	}
}

// checkModuleSettings module配置文件规则检查(ID全局必须唯一) 且 每个类型的Module在同一个ProcessEnv中只能配置一个
func (this *ModuleManager) checkModuleSettings(cfg conf.Config) {
	gid := map[string]string{} // 用来保存全局ID:ModuleType
	for typ, modSettings := range cfg.Module {
		pid := map[string]string{} // 用来保存模块中的 ProcessEnv:ID
		for _, setting := range modSettings {
			if setting.ID != "" {
				if Stype, ok := gid[setting.ID]; ok {
					//如果Id已经存在,说明有两个相同Id的模块,这种情况不能被允许,这里就直接抛异常 强制崩溃以免以后调试找不到问题
					panic(fmt.Sprintf("Module.ID (%s) been used in modules of type [%s] and cannot be reused", setting.ID, Stype))
				}
				gid[setting.ID] = typ
			}

			if id, ok := pid[setting.ProcessEnv]; ok {
				//如果ProcessEnv已经存在,说明有两个相同ProcessEnv的模块,这种情况不能被允许,这里就直接抛异常 强制崩溃以免以后调试找不到问题
				panic(fmt.Sprintf("In the list of modules of type [%s], ProcessEnv (%s) has been used for ID module for (%s)", typ, setting.ProcessEnv, id))
			}
			pid[setting.ProcessEnv] = setting.ID
		}
	}
}
