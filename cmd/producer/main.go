// producer 账号HTTP网关, 通过消息队列调用consumer
package main

import (
	"os"

	"github.com/cloudapex/mqaccount"
	"github.com/cloudapex/mqaccount/app"
	httpgatebase "github.com/cloudapex/mqaccount/httpgate/base"
	"github.com/cloudapex/mqaccount/log"
)

func main() {
	a := mqaccount.CreateApp(
		app.Version("1.0.0"),
	)
	if err := a.Run(&httpgatebase.HttpGateBase{}); err != nil {
		log.Error("producer exit: %v", err)
		log.Sync()
		os.Exit(1)
	}
}
