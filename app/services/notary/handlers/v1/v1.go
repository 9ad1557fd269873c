// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/starledger/starledger/app/services/notary/handlers/v1/public"
	"github.com/starledger/starledger/foundation/events"
	"github.com/starledger/starledger/foundation/nameservice"
	"github.com/starledger/starledger/foundation/starchain/state"
	"github.com/starledger/starledger/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodPost, version, "/challenge", pbl.Challenge)
	app.Handle(http.MethodPost, version, "/star/submit", pbl.SubmitStar)
	app.Handle(http.MethodGet, version, "/block/height/:number", pbl.BlockByNumber)
	app.Handle(http.MethodGet, version, "/block/hash/:hash", pbl.BlockByHash)
	app.Handle(http.MethodGet, version, "/stars/list/:account", pbl.StarsByOwner)
	app.Handle(http.MethodGet, version, "/chain/validate", pbl.ValidateChain)
	app.Handle(http.MethodGet, version, "/genesis/list", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/events", pbl.Events)
}
