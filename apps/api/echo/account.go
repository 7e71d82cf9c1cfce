package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dos/core/user"
)

type accountApi struct {
	svc *user.Service
}

func registerAccountAPI(e *echo.Echo, auth []echo.MiddlewareFunc, svc *user.Service) {
	api := accountApi{svc: svc}

	e.GET("/student/invite-code", api.inviteCode, withRoles(auth, user.RoleStudent)...)

	parent := withRoles(auth, user.RoleParent)
	e.GET("/parent/links", api.listLinks, parent...)
	e.POST("/parent/links", api.linkByEmail, parent...)
	e.POST("/parent/link-code", api.linkByCode, parent...)

	e.PATCH("/profile/terms-accept", api.acceptTerms, auth...)
	e.DELETE("/profile", api.deleteAccount, auth...)
}

type (
	linksResponse struct {
		Links []user.Link `json:"links"`
	}
	linkCodeResponse struct {
		OK        bool   `json:"ok"`
		StudentID string `json:"studentId"`
	}
	deleteAccountResponse struct {
		OK              bool `json:"ok"`
		SignOutRequired bool `json:"signOutRequired"`
	}
)

// Handlers

func (api *accountApi) inviteCode(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	code, err := api.svc.InviteCode(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "getting invite code")
	}
	return ctx.JSON(http.StatusOK, code)
}

func (api *accountApi) listLinks(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	links, err := api.svc.ListLinks(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "listing links")
	}
	return ctx.JSON(http.StatusOK, linksResponse{Links: links})
}

func (api *accountApi) linkByEmail(ctx echo.Context) error {
	var data user.NewLink
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLink")
	}
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.LinkByEmail(ctx.Request().Context(), id.ID, data); err != nil {
		return errors.Wrap(err, "linking student")
	}
	return ctx.JSON(http.StatusOK, okResponse{OK: true})
}

func (api *accountApi) linkByCode(ctx echo.Context) error {
	var data user.LinkCode
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LinkCode")
	}
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	studentID, err := api.svc.LinkByCode(ctx.Request().Context(), id.ID, data)
	if err != nil {
		return errors.Wrap(err, "linking student by code")
	}
	return ctx.JSON(http.StatusOK, linkCodeResponse{OK: true, StudentID: studentID})
}

func (api *accountApi) acceptTerms(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.AcceptTerms(ctx.Request().Context(), id.ID); err != nil {
		return errors.Wrap(err, "accepting terms")
	}
	return ctx.JSON(http.StatusOK, okResponse{OK: true})
}

func (api *accountApi) deleteAccount(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.DeleteAccount(ctx.Request().Context(), id.ID); err != nil {
		return errors.Wrap(err, "deleting account")
	}
	return ctx.JSON(http.StatusOK, deleteAccountResponse{OK: true, SignOutRequired: true})
}
