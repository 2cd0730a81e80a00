package di

import (
	"context"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/capgate/capgate/internal/server"
	"github.com/capgate/capgate/internal/version"
)

// HandlerService wraps the HTTP handler.
type HandlerService struct {
	Handler http.Handler
}

// NewHandler creates the route handler with all middleware.
func NewHandler(i do.Injector) (*HandlerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	admissionSvc := do.MustInvoke[*AdmissionService](i)
	breakerSvc := do.MustInvoke[*BreakerService](i)
	storeSvc := do.MustInvoke[*StoreService](i)

	handler := server.NewHandler(
		admissionSvc.Controller,
		breakerSvc.Registry,
		storeSvc.Store,
		cfgSvc,
		version.Version,
	)

	return &HandlerService{Handler: server.Routes(handler)}, nil
}

// ServerService wraps the HTTP server.
type ServerService struct {
	Server *server.Server
}

// NewHTTPServer creates the HTTP server.
func NewHTTPServer(i do.Injector) (*ServerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	handlerSvc := do.MustInvoke[*HandlerService](i)

	srv := server.NewServer(
		cfgSvc.Get().Server.Listen,
		handlerSvc.Handler,
		cfgSvc.Get().Server.EnableHTTP2,
	)

	return &ServerService{Server: srv}, nil
}

// Shutdown implements do.Shutdowner for graceful server shutdown.
func (s *ServerService) Shutdown() error {
	if s.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.Server.Shutdown(ctx)
	}
	return nil
}
