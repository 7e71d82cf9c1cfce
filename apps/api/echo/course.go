package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dos/core/course"
	"github.com/trezcool/dos/core/user"
)

type courseApi struct {
	svc *course.Service
}

func registerCourseAPI(e *echo.Echo, auth []echo.MiddlewareFunc, svc *course.Service) {
	api := courseApi{svc: svc}

	e.GET("/reference/board-subjects", api.listBoardSubjects, auth...)

	student := withRoles(auth, user.RoleStudent)
	e.GET("/student/enrolments", api.listEnrolments, student...)
	e.POST("/student/enrolments", api.enrol, student...)
	e.DELETE("/student/enrolments/:id", api.unenrol, student...)
}

type (
	boardSubjectsResponse struct {
		BoardSubjects []course.BoardSubject `json:"boardSubjects"`
	}
	enrolmentsResponse struct {
		Enrolments []course.Enrolment `json:"enrolments"`
	}
	enrolmentResponse struct {
		Enrolment course.Enrolment `json:"enrolment"`
	}
)

// Handlers

func (api *courseApi) listBoardSubjects(ctx echo.Context) error {
	subjects, err := api.svc.ListBoardSubjects(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing board subjects")
	}
	return ctx.JSON(http.StatusOK, boardSubjectsResponse{BoardSubjects: subjects})
}

func (api *courseApi) listEnrolments(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	enrolments, err := api.svc.ListEnrolments(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "listing enrolments")
	}
	return ctx.JSON(http.StatusOK, enrolmentsResponse{Enrolments: enrolments})
}

func (api *courseApi) enrol(ctx echo.Context) error {
	var data course.NewEnrolment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrolment")
	}
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	enr, err := api.svc.Enrol(ctx.Request().Context(), id.ID, data)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusOK, enrolmentResponse{Enrolment: enr})
}

func (api *courseApi) unenrol(ctx echo.Context) error {
	enrolmentID, err := int64Param(ctx, "id", "enrolment")
	if err != nil {
		return err
	}
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	if err = api.svc.Unenrol(ctx.Request().Context(), id.ID, enrolmentID); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.JSON(http.StatusOK, okResponse{OK: true})
}
