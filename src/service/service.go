package service

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mosaicnetworks/paychan/src/channel"
	"github.com/mosaicnetworks/paychan/src/node"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Backend is what the service exposes. It is implemented by node.Node.
type Backend interface {
	Info() node.Info
	Channels() []*channel.Channel
	OpenChannel(peerID string, capacity uint64) (*channel.Channel, error)
	SendPayment(channelID string, amount uint64) (*channel.Payment, error)
	Payments(channelID string) ([]*channel.Payment, error)
	CloseChannel(channelID string) error
	Subscribe() (<-chan channel.Event, func())
}

// Service is the HTTP API of a node.
type Service struct {
	bindAddress string
	backend     Backend
	gatherer    prometheus.Gatherer
	router      *gin.Engine
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, backend Backend, gatherer prometheus.Gatherer, logger *logrus.Entry) *Service {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	gin.SetMode(gin.ReleaseMode)

	service := Service{
		bindAddress: bindAddress,
		backend:     backend,
		gatherer:    gatherer,
		router:      gin.New(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering API handlers")

	s.router.Use(gin.Recovery(), s.logRequests, cors)

	api := s.router.Group("/api")
	api.GET("/node/info", s.GetInfo)
	api.GET("/channels", s.GetChannels)
	api.POST("/channels", s.OpenChannel)
	api.POST("/channels/:id/payments", s.SendPayment)
	api.GET("/channels/:id/payments", s.GetPayments)
	api.POST("/channels/:id/close", s.CloseChannel)

	s.router.GET("/ws", s.Subscribe)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
}

// Handler returns the router, for in-process use and tests.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Serve listens on the bind address until ctx is done.
func (s *Service) Serve(ctx context.Context) error {
	s.logger.WithField("bind_address", s.bindAddress).Info("Serving API")

	srv := &http.Server{
		Addr:    s.bindAddress,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Service) logRequests(c *gin.Context) {
	start := time.Now()

	c.Next()

	s.logger.WithFields(logrus.Fields{
		"method":   c.Request.Method,
		"path":     c.Request.URL.Path,
		"status":   c.Writer.Status(),
		"duration": time.Since(start),
	}).Debug("API request")
}

func cors(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Next()
}
