package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dos/core/tutor"
	"github.com/trezcool/dos/core/user"
)

type tutorApi struct {
	svc *tutor.Service
}

func registerTutorAPI(e *echo.Echo, auth []echo.MiddlewareFunc, svc *tutor.Service) {
	api := tutorApi{svc: svc}
	student := withRoles(auth, user.RoleStudent)

	e.GET("/tutor-personas", api.listPersonas, student...)
	e.POST("/tutor-personas", api.createPersona, student...)
	e.PUT("/tutor-personas/:id", api.updatePersona, student...)
	e.DELETE("/tutor-personas/:id", api.deletePersona, student...)

	e.GET("/tutor-config", api.listConfigs, student...)
	e.PUT("/tutor-config", api.setConfig, student...)
}

type (
	personasResponse struct {
		Personas []tutor.Persona `json:"personas"`
	}
	personaResponse struct {
		Persona tutor.Persona `json:"persona"`
	}
	tutorConfigsResponse struct {
		Enrolments []tutor.Config `json:"enrolments"`
	}
)

// Handlers

func (api *tutorApi) listPersonas(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	personas, err := api.svc.ListPersonas(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "listing personas")
	}
	return ctx.JSON(http.StatusOK, personasResponse{Personas: personas})
}

func (api *tutorApi) createPersona(ctx echo.Context) error {
	var data tutor.PersonaData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PersonaData")
	}
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	p, err := api.svc.CreatePersona(ctx.Request().Context(), id.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating persona")
	}
	return ctx.JSON(http.StatusCreated, personaResponse{Persona: p})
}

func (api *tutorApi) updatePersona(ctx echo.Context) error {
	personaID, err := int64Param(ctx, "id", "persona")
	if err != nil {
		return err
	}
	var data tutor.PersonaData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PersonaData")
	}
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	p, err := api.svc.UpdatePersona(ctx.Request().Context(), id.ID, personaID, data)
	if err != nil {
		return errors.Wrap(err, "updating persona")
	}
	return ctx.JSON(http.StatusOK, personaResponse{Persona: p})
}

func (api *tutorApi) deletePersona(ctx echo.Context) error {
	personaID, err := int64Param(ctx, "id", "persona")
	if err != nil {
		return err
	}
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.DeletePersona(ctx.Request().Context(), id.ID, personaID); err != nil {
		return errors.Wrap(err, "deleting persona")
	}
	return ctx.JSON(http.StatusOK, okResponse{OK: true})
}

func (api *tutorApi) listConfigs(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	configs, err := api.svc.ListConfigs(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "listing tutor configs")
	}
	return ctx.JSON(http.StatusOK, tutorConfigsResponse{Enrolments: configs})
}

func (api *tutorApi) setConfig(ctx echo.Context) error {
	var data tutor.ConfigUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ConfigUpdate")
	}
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.SetConfig(ctx.Request().Context(), id.ID, data); err != nil {
		return errors.Wrap(err, "setting tutor config")
	}
	return ctx.JSON(http.StatusOK, okResponse{OK: true})
}
