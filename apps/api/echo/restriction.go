package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/restriction"
	"github.com/trezcool/dos/core/user"
)

type restrictionApi struct {
	svc *restriction.Service
}

func registerRestrictionAPI(e *echo.Echo, auth []echo.MiddlewareFunc, svc *restriction.Service) {
	api := restrictionApi{svc: svc}

	rg := e.Group("/restrictions", auth...)
	rg.Use(roleMiddleware(user.RoleParent))
	rg.GET("", api.retrieve)
	rg.PUT("", api.upsert)
}

type restrictionResponse struct {
	Restriction *restriction.Restriction `json:"restriction"`
}

// Handlers

func (api *restrictionApi) retrieve(ctx echo.Context) error {
	studentID := core.CleanString(ctx.QueryParam("studentId"))
	if studentID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "studentId", Error: "this field is required"})
	}
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	r, err := api.svc.Get(ctx.Request().Context(), id.ID, studentID)
	if err != nil {
		return errors.Wrap(err, "getting restriction")
	}
	return ctx.JSON(http.StatusOK, restrictionResponse{Restriction: r})
}

func (api *restrictionApi) upsert(ctx echo.Context) error {
	var data restriction.UpsertRestriction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpsertRestriction")
	}
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	r, err := api.svc.Upsert(ctx.Request().Context(), id.ID, data)
	if err != nil {
		return errors.Wrap(err, "upserting restriction")
	}
	return ctx.JSON(http.StatusOK, restrictionResponse{Restriction: &r})
}
