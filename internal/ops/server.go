package ops

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	config "github.com/evmstream/processor/configs"
)

// StatusSource is the processor-side view the listener reports. Both heights
// are -1 before the first observation.
type StatusSource interface {
	LastProcessedBlock() int64
	ArchiveHeight() int64
}

type StatusResponse struct {
	LastProcessedBlock int64 `json:"lastProcessedBlock"`
	ArchiveHeight      int64 `json:"archiveHeight"`
}

func NewRouter(source StatusSource) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, StatusResponse{
			LastProcessedBlock: source.LastProcessedBlock(),
			ArchiveHeight:      source.ArchiveHeight(),
		})
	})

	return r
}

// Serve blocks on the configured port.
func Serve(cfg config.OpsConfig, source StatusSource) error {
	return NewRouter(source).Run(fmt.Sprintf(":%d", cfg.Port))
}
