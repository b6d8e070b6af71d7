package providers

import (
	"github.com/jonboulle/clockwork"
	"github.com/samber/do/v2"

	"github.com/shelfwise/shelfwise-server/internal/auth"
	"github.com/shelfwise/shelfwise-server/internal/config"
	"github.com/shelfwise/shelfwise-server/internal/logger"
	"github.com/shelfwise/shelfwise-server/internal/service"
)

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	clock := do.MustInvoke[clockwork.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, clock, log.Component("auth")), nil
}

// ProvideLibraryService provides the shelving service with live events and
// title search wired in.
func ProvideLibraryService(i do.Injector) (*service.LibraryService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	clock := do.MustInvoke[clockwork.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewLibraryService(storeHandle.Store, cfg.Shelves, clock, log.Component("library"))
	svc.SetEventManager(sseHandle.Manager)
	svc.SetSearchIndex(indexHandle.Index)

	return svc, nil
}
