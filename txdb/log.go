package txdb

import "github.com/junaeth-project/qposd/logger"

var log = logger.GetLogger("TXDB")
