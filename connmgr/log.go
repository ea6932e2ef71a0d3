package connmgr

import (
	"github.com/junaeth-project/qposd/logger"
	"github.com/junaeth-project/qposd/util/panics"
)

var log = logger.GetLogger("CMGR")

var spawn = panics.GoroutineWrapperFunc(log)
