package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rankflow/billing/docs"
	"github.com/rankflow/billing/internal/app/api/handlers"
	mw "github.com/rankflow/billing/internal/app/api/middleware"
	"github.com/rankflow/billing/internal/app/service/checkout"
	"github.com/rankflow/billing/internal/app/service/order"
	subsvc "github.com/rankflow/billing/internal/app/service/subscription"
	"github.com/rankflow/billing/internal/app/service/webhook"
	cfgpkg "github.com/rankflow/billing/pkg/config"
	"github.com/rankflow/billing/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Tracing only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func newMetrics(cfg *cfgpkg.Config, log *zap.SugaredLogger) *metrics.Metrics {
	return metrics.New(metrics.Options{Subsystem: "billing", Logger: log})
}

func registerRoutes(r *gin.Engine, log *zap.SugaredLogger, cfg *cfgpkg.Config, m *metrics.Metrics,
	wh *webhook.Handler, co *checkout.Service, orders *order.Service, subs *subsvc.Service) {

	if cfg != nil && cfg.MetricsAddr != "" {
		r.Use(m.Middleware())
		m.Serve(cfg.MetricsAddr)
		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())

	handlers.RegisterCheckoutRoutes(apiV1, co)
	handlers.RegisterSubscriptionRoutes(apiV1, subs)
	handlers.RegisterWebhookRoutes(apiV1.Group("/payment"), wh, m)

	admin := apiV1.Group("/admin")
	admin.Use(mw.AdminAuthMiddleware(cfg.Admin.JWTSecret))
	handlers.RegisterAdminRoutes(admin, orders)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Provide(newMetrics),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
