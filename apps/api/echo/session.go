package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dos/core/session"
	"github.com/trezcool/dos/core/user"
)

type sessionApi struct {
	svc *session.Service
}

func registerSessionAPI(e *echo.Echo, auth []echo.MiddlewareFunc, svc *session.Service) {
	api := sessionApi{svc: svc}

	sg := e.Group("/session", auth...)
	sg.Use(roleMiddleware(user.RoleStudent))
	sg.POST("/create", api.create)
	sg.POST("/start-agent", api.startAgent)
	sg.POST("/end", api.end)

	lg := e.Group("/sessions", auth...)
	lg.GET("", api.list, roleMiddleware(user.RoleStudent))
	lg.GET("/:id", api.retrieve)
}

// Handlers

func (api *sessionApi) create(ctx echo.Context) error {
	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	created, err := api.svc.Create(ctx.Request().Context(), id.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusOK, created)
}

func (api *sessionApi) startAgent(ctx echo.Context) error {
	var data session.StartAgent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartAgent")
	}
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.StartAgent(ctx.Request().Context(), id.ID, data); err != nil {
		return errors.Wrap(err, "starting agent")
	}
	return ctx.JSON(http.StatusOK, okResponse{OK: true})
}

func (api *sessionApi) end(ctx echo.Context) error {
	var data session.End
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to End")
	}
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.End(ctx.Request().Context(), id.ID, data); err != nil {
		return errors.Wrap(err, "ending session")
	}
	return ctx.JSON(http.StatusOK, okResponse{OK: true})
}

func (api *sessionApi) list(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	items, err := api.svc.List(ctx.Request().Context(), id.ID, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "listing sessions")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	detail, err := api.svc.Get(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	return ctx.JSON(http.StatusOK, detail)
}
