// Package httpgatebase 账号HTTP网关模块
package httpgatebase

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudapex/mqaccount/account"
	"github.com/cloudapex/mqaccount/app"
	"github.com/cloudapex/mqaccount/conf"
	"github.com/cloudapex/mqaccount/httpgate"
	"github.com/cloudapex/mqaccount/log"
	"github.com/gin-gonic/gin"
)

var _ app.IModule = &HttpGateBase{}

// HttpGateBase 调用方网关: 把HTTP请求转成账号RPC调用
type HttpGateBase struct {
	opts     httpgate.Options
	settings *conf.ModuleSettings

	router *gin.Engine
}

// Init 初始化网关(由派生类调用), svc为nil时使用app的共享RPC客户端
func (this *HttpGateBase) Init(settings *conf.ModuleSettings, svc AccountService, opts ...httpgate.Option) {
	if settings == nil {
		settings = &conf.ModuleSettings{}
	}
	this.settings = settings

	// 使用settings的配置覆盖opts
	opts = append(opts, httpgate.FromSettings(settings.Settings)...)
	this.opts = httpgate.NewOptions(opts...)

	if svc == nil {
		rpc, err := app.Default().RPCClient()
		if err != nil {
			panic(err)
		}
		svc = account.NewClient(rpc)
	}

	// 创建路由
	gin.SetMode(gin.ReleaseMode)
	this.router = gin.New()
	this.router.Use(gin.Logger())
	this.router.Use(gin.Recovery())

	NewAuthHandler(svc, this.opts.TimeOut).Route(this.router)
}

func (this *HttpGateBase) GetType() string {
	// 很关键,需要与配置文件中的Module配置对应
	return "httpgate"
}
func (this *HttpGateBase) Version() string {
	// 可以在监控时了解代码版本
	return "1.0.0"
}

// OnInit 默认使用app的RPC客户端
func (this *HttpGateBase) OnInit(settings *conf.ModuleSettings) {
	this.Init(settings, nil)
}

func (this *HttpGateBase) OnAppConfigurationLoaded() {}

func (this *HttpGateBase) OnConfChanged(settings *conf.ModuleSettings) {}

func (this *HttpGateBase) Options() httpgate.Options { return this.opts }

func (this *HttpGateBase) Router() *gin.Engine { return this.router }

func (this *HttpGateBase) Run(closeSig chan bool) {
	srv := this.startHttpServer()

	<-closeSig

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Shutdown() error: %s", err)
	}
}

func (this *HttpGateBase) OnDestroy() {}

// ---------------

func (this *HttpGateBase) startHttpServer() *http.Server {
	srv := &http.Server{
		Addr:           this.opts.Addr,
		Handler:        this.router,
		ReadTimeout:    this.opts.ReadTimeout,
		WriteTimeout:   this.opts.WriteTimeout,
		IdleTimeout:    this.opts.IdleTimeout,
		MaxHeaderBytes: this.opts.MaxHeaderBytes,
	}

	go func() {
		var err error
		if this.opts.TLS {
			// TLS配置存在，使用HTTPS
			log.Info("Starting HTTPS server on %s with cert %s and key %s", this.opts.Addr, this.opts.CertFile, this.opts.KeyFile)
			err = srv.ListenAndServeTLS(this.opts.CertFile, this.opts.KeyFile)
		} else {
			// 没有TLS配置，使用HTTP
			log.Info("Starting HTTP server on %s", this.opts.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			// cannot panic, because this probably is an intentional close
			log.Error("ListenAndServe() error: %s", err)
		}
	}()
	// returning reference so caller can call Shutdown()
	return srv
}
