// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/starledger/starledger/business/web/errs"
	"github.com/starledger/starledger/foundation/events"
	"github.com/starledger/starledger/foundation/nameservice"
	"github.com/starledger/starledger/foundation/starchain/database"
	"github.com/starledger/starledger/foundation/starchain/state"
	"github.com/starledger/starledger/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of star ledger endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Challenge issues the message a wallet owner must sign to prove control of
// the specified address before a star can be submitted.
func (h Handlers) Challenge(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req challengeRequest
	if err := web.Decode(r, &req); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	address, err := database.ToAccountID(req.Address)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("issue challenge", "traceid", v.TraceID, "address", address)

	resp := challengeResponse{
		Challenge: h.State.IssueChallenge(address),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitStar validates the signed challenge and notarizes the star into the
// next block on the chain.
func (h Handlers) SubmitStar(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req submitRequest
	if err := web.Decode(r, &req); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	address, err := database.ToAccountID(req.Address)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit star", "traceid", v.TraceID, "address", address, "story", req.Star.Story)

	st := database.Star{
		RA:    req.Star.RA,
		Dec:   req.Star.Dec,
		Story: req.Star.Story,
	}

	blk, err := h.State.SubmitStar(address, req.Challenge, req.Signature, st)
	if err != nil {
		switch {
		case errors.Is(err, state.ErrMalformedChallenge), errors.Is(err, state.ErrExpiredChallenge):
			return errs.NewTrusted(err, http.StatusBadRequest)
		case errors.Is(err, state.ErrBadSignature):
			return errs.NewTrusted(err, http.StatusUnauthorized)
		default:
			return err
		}
	}

	return web.Respond(ctx, w, toBlock(blk, h.NS), http.StatusOK)
}

// BlockByNumber returns the block at the specified height.
func (h Handlers) BlockByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	num, err := strconv.ParseUint(web.Param(r, "number"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid block number: %w", err), http.StatusBadRequest)
	}

	blk, err := h.State.RetrieveBlock(num)
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	return web.Respond(ctx, w, toBlock(blk, h.NS), http.StatusOK)
}

// BlockByHash returns the block with the specified hash.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := web.Param(r, "hash")

	blk, found := h.State.RetrieveBlockByHash(hash)
	if !found {
		return errs.NewTrusted(errors.New("block does not exist"), http.StatusNotFound)
	}

	return web.Respond(ctx, w, toBlock(blk, h.NS), http.StatusOK)
}

// StarsByOwner returns every star notarized for the specified address in
// submission order.
func (h Handlers) StarsByOwner(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address, err := database.ToAccountID(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	records, err := h.State.StarsByOwner(address)
	if err != nil {
		return err
	}

	stars := make([]starRecord, 0, len(records))
	for _, record := range records {
		stars = append(stars, toStarRecord(record, h.NS))
	}

	return web.Respond(ctx, w, stars, http.StatusOK)
}

// ValidateChain walks the chain and returns the list of integrity issues.
// An empty list means the chain is fully consistent.
func (h Handlers) ValidateChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	issues := h.State.ValidateChain()
	if issues == nil {
		issues = []database.Issue{}
	}

	return web.Respond(ctx, w, issues, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.Genesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}
