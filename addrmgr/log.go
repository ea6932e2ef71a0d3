package addrmgr

import "github.com/junaeth-project/qposd/logger"

var log = logger.GetLogger("ADDR")
