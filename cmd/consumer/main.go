// consumer 消费请求队列, 执行账号操作
package main

import (
	"os"

	"github.com/cloudapex/mqaccount"
	"github.com/cloudapex/mqaccount/account"
	"github.com/cloudapex/mqaccount/app"
	"github.com/cloudapex/mqaccount/log"
)

func main() {
	a := mqaccount.CreateApp(
		app.Version("1.0.0"),
	)
	if err := a.Run(account.NewModule(nil)); err != nil {
		log.Error("consumer exit: %v", err)
		log.Sync()
		os.Exit(1)
	}
}
