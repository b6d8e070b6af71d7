package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/shelfwise/shelfwise-server/internal/api"
	"github.com/shelfwise/shelfwise-server/internal/auth"
	"github.com/shelfwise/shelfwise-server/internal/config"
	"github.com/shelfwise/shelfwise-server/internal/logger"
	"github.com/shelfwise/shelfwise-server/internal/service"
	"github.com/shelfwise/shelfwise-server/internal/web"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideWebHandler provides the HTML form pages.
func ProvideWebHandler(i do.Injector) (*web.Handler, error) {
	log := do.MustInvoke[*logger.Logger](i)

	return web.New(web.Config{
		Library:         do.MustInvoke[*service.LibraryService](i),
		Auth:            do.MustInvoke[*service.AuthService](i),
		Sessions:        do.MustInvoke[*auth.Sessions](i),
		AuthRateLimiter: do.MustInvoke[*RateLimiterHandle](i).KeyedRateLimiter,
		Logger:          log.Component("web"),
	})
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)
	sessions := do.MustInvoke[*auth.Sessions](i)
	pages := do.MustInvoke[*web.Handler](i)

	services := &api.Services{
		Auth:    do.MustInvoke[*service.AuthService](i),
		Library: do.MustInvoke[*service.LibraryService](i),
	}

	handler := api.NewServer(services, api.Options{
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		AuthRateLimiter: limiter.KeyedRateLimiter,
		Sessions:        sessions,
		Events:          sseHandle.Manager,
		Store:           storeHandle.Store,
		Search:          indexHandle.Index,
		Pages:           pages.Register,
	}, log.Component("http"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server error")
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
