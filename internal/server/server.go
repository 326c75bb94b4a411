// Package server exposes the slim operational HTTP surface: health,
// metrics, usage limits and the manual ingestion endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	companydomain "github.com/smallbiznis/ordersignal/internal/company/domain"
	"github.com/smallbiznis/ordersignal/internal/config"
	"github.com/smallbiznis/ordersignal/internal/mail"
	"github.com/smallbiznis/ordersignal/internal/pipeline"
	usagedomain "github.com/smallbiznis/ordersignal/internal/usage/domain"
	"github.com/smallbiznis/ordersignal/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(
		NewEngine,
		NewServer,
	),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Log       *zap.Logger
	UsageSvc  usagedomain.Service
	Companies companydomain.Service
	Submitter *pipeline.Submitter
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	log       *zap.Logger
	usagesvc  usagedomain.Service
	companies companydomain.Service
	submitter *pipeline.Submitter
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		log:       p.Log.Named("http.server"),
		usagesvc:  p.UsageSvc,
		companies: p.Companies,
		submitter: p.Submitter,
	}
}

func registerRoutes(s *Server) {
	s.RegisterAPIRoutes()
}

func (s *Server) RegisterAPIRoutes() {
	v1 := s.engine.Group("/v1", tenantMiddleware())
	v1.GET("/usage/limits", s.getUsageLimits)
	v1.POST("/emails", s.submitEmail)
	v1.POST("/companies", s.registerCompany)
}

// tenantMiddleware resolves the tenant from the X-Tenant-ID header and stores
// it on the request context.
func tenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-Tenant-ID")
		tenantID, err := snowflake.ParseString(raw)
		if err != nil || raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing or invalid X-Tenant-ID header"})
			return
		}
		ctx := tenantctx.WithTenantID(c.Request.Context(), tenantID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) getUsageLimits(c *gin.Context) {
	tenantID, ok := tenantctx.TenantIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing tenant"})
		return
	}

	statuses, err := s.usagesvc.CheckAllUsageLimits(c.Request.Context(), tenantID)
	if err != nil {
		s.log.Error("usage limits query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "usage limits unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"limits": statuses})
}

func (s *Server) submitEmail(c *gin.Context) {
	tenantID, _ := tenantctx.TenantIDFromContext(c.Request.Context())

	var msg mail.IncomingEmail
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email payload"})
		return
	}
	if msg.MessageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message_id is required"})
		return
	}

	res := s.submitter.Submit(c.Request.Context(), tenantID, msg)
	c.JSON(http.StatusAccepted, gin.H{"success": res.Success, "queued": res.Queued})
}

type registerCompanyRequest struct {
	Sender      string `json:"sender" binding:"required"`
	CompanyName string `json:"company_name" binding:"required"`
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone"`
}

func (s *Server) registerCompany(c *gin.Context) {
	tenantID, _ := tenantctx.TenantIDFromContext(c.Request.Context())

	var req registerCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company payload"})
		return
	}

	company, err := s.companies.RegisterCompany(c.Request.Context(), tenantID, req.Sender, companydomain.ExtractedCompanyInfo{
		CompanyName: req.CompanyName,
		ContactName: req.ContactName,
		Phone:       req.Phone,
	})
	if err != nil {
		s.log.Warn("company registration failed", zap.String("sender", req.Sender), zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"company_id": company.ID.String(), "name": company.Name})
}

func run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
