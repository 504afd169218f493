// Package status serves a read-only HTTP view of a running pipeline.
package status

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	viamutils "go.viam.com/utils"

	"github.com/viam-modules/vehicle-tracking/identity"
	"github.com/viam-modules/vehicle-tracking/pipeline"
)

// Provider is the part of a pipeline the endpoint reports on.
type Provider interface {
	Stats() pipeline.Stats
	Objects() []identity.Object
}

// NewRouter returns the status routes:
//
//	GET /status   run counters and timing benchmark
//	GET /objects  first sighting of every distinct vehicle
func NewRouter(p Provider) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/status", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, p.Stats())
	})

	r.GET("/objects", func(ctx *gin.Context) {
		objects := p.Objects()
		if ctx.Query("label") == "true" {
			labels := make([]string, 0, len(objects))
			for _, o := range objects {
				labels = append(labels, o.String())
			}
			ctx.JSON(http.StatusOK, labels)
			return
		}
		ctx.JSON(http.StatusOK, objects)
	})

	return r
}

// Server runs the status router in the background until Close.
type Server struct {
	logger logging.Logger
	srv    *http.Server

	activeBackgroundWorkers sync.WaitGroup
}

// Start begins serving on addr.
func Start(addr string, p Provider, logger logging.Logger) *Server {
	s := &Server{
		logger: logger,
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(p),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	s.activeBackgroundWorkers.Add(1)
	viamutils.ManagedGo(func() {
		logger.Infof("status endpoint listening on %s", addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("status endpoint stopped: %v", err)
		}
	}, s.activeBackgroundWorkers.Done)
	return s
}

// Close stops the server and waits for it to exit.
func (s *Server) Close(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.activeBackgroundWorkers.Wait()
	return err
}
