package http

// this is entry point of the http request handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/omj-2025.net/internal/config"
	"gitlab.com/omj-2025.net/internal/core/ports/primary"
	"gitlab.com/omj-2025.net/internal/core/ports/secondary"
	auth2 "gitlab.com/omj-2025.net/internal/core/services/auth"
	"gitlab.com/omj-2025.net/internal/core/services/notify"
	"gitlab.com/omj-2025.net/internal/core/services/submission"
	"gitlab.com/omj-2025.net/internal/handlers"
	"gitlab.com/omj-2025.net/internal/handlers/auth"
	"gitlab.com/omj-2025.net/internal/handlers/submissions"
	"gitlab.com/omj-2025.net/internal/handlers/ws"
)

type ServiceProvider struct {
	submissionService submission.ISubmissionService
	uploadStore       secondary.UploadStore
	hub               *notify.Hub
	jwtService        primary.JWTService

	ggAuth    auth2.IAuthService
	localAuth auth2.IAuthService
}

func NewServiceProvider(
	submissionService submission.ISubmissionService,
	uploadStore secondary.UploadStore,
	hub *notify.Hub,
	jwtService primary.JWTService,
	ggAuth auth2.IAuthService,
	localAuth auth2.IAuthService,
) *ServiceProvider {
	return &ServiceProvider{
		submissionService: submissionService,
		uploadStore:       uploadStore,
		hub:               hub,
		jwtService:        jwtService,
		ggAuth:            ggAuth,
		localAuth:         localAuth,
	}
}

type Server struct {
	router          *mux.Router
	httpServer      *http.Server
	Port            int
	ServiceName     string
	ServiceProvider ServiceProvider
	UploadCfg       *config.UploadConfig
	GGAuthCfg       *config.GGAuthConfig
	logger          primary.Logger
}

func NewServer(port int, serviceName string, serviceProvider ServiceProvider, uploadCfg *config.UploadConfig, ggAuthCfg *config.GGAuthConfig, logger primary.Logger) *Server {
	return &Server{
		Port:            port,
		ServiceName:     serviceName,
		ServiceProvider: serviceProvider,
		UploadCfg:       uploadCfg,
		GGAuthCfg:       ggAuthCfg,
		logger:          logger,
	}
}

func (s *Server) Init() error {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		handlers.ResponseWithJson(w, http.StatusOK, map[string]string{"status": "ok", "service": s.ServiceName})
	}).Methods("GET")

	auth.NewHandler(s.GGAuthCfg).RegisterRoutes(r, &auth.ServiceDependencies{
		GGAuthService:    s.ServiceProvider.ggAuth,
		LocalAuthService: s.ServiceProvider.localAuth,
	})

	// Everything under /api requires a session token
	middleware := handlers.New(s.ServiceProvider.jwtService, s.logger)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.JWTMiddleware)

	submissions.
		NewHandler(s.ServiceProvider.submissionService, s.ServiceProvider.uploadStore, s.UploadCfg, s.logger).
		RegisterRoutes(api)
	ws.
		NewHandler(s.ServiceProvider.submissionService, s.ServiceProvider.hub, s.logger).
		RegisterRoutes(api)

	s.router = r
	return nil
}

func (s *Server) Start(ctx context.Context) {
	// Set up server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.Port),
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 0, // WebSocket streams outlive any sane write timeout
		IdleTimeout:  60 * time.Second,
	}
	s.httpServer = srv

	// Start the server in a goroutine
	go func() {
		s.logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()
}

func (s *Server) Stop() {
	s.logger.Info("Shutting down http server...")
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to shut down http server", "error", err)
		}
	}
}
