package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/course"
	"github.com/trezcool/dos/core/progress"
	"github.com/trezcool/dos/core/restriction"
	"github.com/trezcool/dos/core/session"
	"github.com/trezcool/dos/core/tutor"
	"github.com/trezcool/dos/core/user"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		Conf           *core.Config
		Logger         core.Logger
		Translator     ut.Translator
		// SignalShutdown is called when a handler fails with a core.shutdown error.
		SignalShutdown func()

		SessionSvc     *session.Service
		RestrictionSvc *restriction.Service
		ProgressSvc    *progress.Service
		CourseSvc      *course.Service
		TutorSvc       *tutor.Service
		UserSvc        *user.Service
		Users          user.Repository
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.SignalShutdown == nil {
		opts.SignalShutdown = func() {}
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/health", health)

	auth := []echo.MiddlewareFunc{middleware.JWTWithConfig(newJWTConfig(conf)), identityMiddleware(conf)}

	registerSessionAPI(s.app, auth, s.opts.SessionSvc)
	registerRestrictionAPI(s.app, auth, s.opts.RestrictionSvc)
	registerProgressAPI(s.app, auth, s.opts.ProgressSvc)
	registerStudentAPI(s.app, auth, s.opts.Users)
	registerCourseAPI(s.app, auth, s.opts.CourseSvc)
	registerTutorAPI(s.app, auth, s.opts.TutorSvc)
	registerAccountAPI(s.app, auth, s.opts.UserSvc)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
