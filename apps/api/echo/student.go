package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/user"
)

type studentApi struct {
	users user.Repository
}

func registerStudentAPI(e *echo.Echo, auth []echo.MiddlewareFunc, users user.Repository) {
	api := studentApi{users: users}

	sg := e.Group("/students/:id", auth...)
	sg.GET("/consent-status", api.consentStatus)
}

// Handlers

// consentStatus tells the student, a linked guardian or an admin whether the consent gate applies.
func (api *studentApi) consentStatus(ctx echo.Context) error {
	caller, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	studentID := ctx.Param("id")
	reqCtx := ctx.Request().Context()

	switch {
	case caller.IsAdmin():
	case caller.IsStudent() && caller.ID == studentID:
	case caller.IsParent():
		linked, err := api.users.IsLinked(reqCtx, caller.ID, studentID)
		if err != nil {
			return errors.Wrap(err, "checking parent link")
		}
		if !linked {
			return core.NewNotFoundError("student")
		}
	default:
		return core.NewNotFoundError("student")
	}

	student, err := api.users.GetStudent(reqCtx, studentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewNotFoundError("student")
		}
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, student.ConsentStatus(core.NowFunc()))
}
