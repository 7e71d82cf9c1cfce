package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dos/core/progress"
	"github.com/trezcool/dos/core/user"
)

type progressApi struct {
	svc *progress.Service
}

func registerProgressAPI(e *echo.Echo, auth []echo.MiddlewareFunc, svc *progress.Service) {
	api := progressApi{svc: svc}

	e.GET("/progress/overview", api.overview, withRoles(auth, user.RoleStudent)...)
	e.POST("/repeat-flags/:id/resolve", api.resolveFlag, withRoles(auth, user.RoleStudent, user.RoleParent)...)
}

// Handlers

func (api *progressApi) overview(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	ov, err := api.svc.Overview(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "getting progress overview")
	}
	return ctx.JSON(http.StatusOK, ov)
}

func (api *progressApi) resolveFlag(ctx echo.Context) error {
	flagID, err := int64Param(ctx, "id", "repeat flag")
	if err != nil {
		return err
	}
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	flag, err := api.svc.ResolveRepeatFlag(ctx.Request().Context(), id, flagID)
	if err != nil {
		return errors.Wrap(err, "resolving repeat flag")
	}
	return ctx.JSON(http.StatusOK, flag)
}
