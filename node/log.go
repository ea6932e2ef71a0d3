package node

import "github.com/junaeth-project/qposd/logger"

var log = logger.GetLogger("NODE")
