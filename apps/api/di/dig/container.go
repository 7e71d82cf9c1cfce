package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/dos/apps/api/echo"
	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/analysis"
	"github.com/trezcool/dos/core/course"
	"github.com/trezcool/dos/core/progress"
	"github.com/trezcool/dos/core/restriction"
	"github.com/trezcool/dos/core/session"
	"github.com/trezcool/dos/core/tutor"
	"github.com/trezcool/dos/core/user"
	agentsvc "github.com/trezcool/dos/services/agent"
	completionsvc "github.com/trezcool/dos/services/completion"
	emailsvc "github.com/trezcool/dos/services/email"
	livekitsvc "github.com/trezcool/dos/services/livekit"
	logsvc "github.com/trezcool/dos/services/logger"
	"github.com/trezcool/dos/storage/database"
	sqlxrepos "github.com/trezcool/dos/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Shutdown receives OS signals, and the one sent when a handler hits a core.shutdown error.
type Shutdown chan os.Signal

func newShutdown() Shutdown {
	ch := make(Shutdown, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

// newDB creates the database if needed, opens it and applies pending migrations.
func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		ctx := context.Background()
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

// openDB only opens the database; migrations are left to the caller.
func openDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	db, err := database.Open(context.Background(), conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	return db
}

func newValidate(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}

func newEvaluator(conf *core.Config, repo restriction.Repository, usage restriction.UsageReader) *restriction.Evaluator {
	return restriction.NewEvaluator(repo, usage, conf.Location())
}

func newTranscriptWaiter(conf *core.Config, reader session.TranscriptReader) *session.TranscriptWaiter {
	return session.NewTranscriptWaiter(reader, conf.Session.TranscriptAttempts, conf.Session.TranscriptDelay)
}

type sessionParams struct {
	dig.In

	Conf        *core.Config
	Logger      core.Logger
	Validate    *validator.Validate
	Repo        session.Repository
	Courses     course.Repository
	Users       user.Repository
	Progress    progress.Repository
	Tutors      tutor.Repository
	Admission   *restriction.Evaluator
	Rooms       session.RoomService
	Agent       session.AgentService
	Transcripts *session.TranscriptWaiter
	Completer   analysis.Completer
	Mail        core.EmailService
}

func newSessionService(p sessionParams) *session.Service {
	return session.NewService(session.ServiceDeps{
		Conf:        p.Conf,
		Logger:      p.Logger,
		Validate:    p.Validate,
		Repo:        p.Repo,
		Courses:     p.Courses,
		Users:       p.Users,
		Progress:    p.Progress,
		Tutors:      p.Tutors,
		Admission:   p.Admission,
		Rooms:       p.Rooms,
		Agent:       p.Agent,
		Transcripts: p.Transcripts,
		Summarizer:  analysis.NewSummarizer(p.Completer),
		Analyzer:    analysis.NewProgressAnalyzer(p.Completer),
		Mail:        p.Mail,
	})
}

type serverParams struct {
	dig.In

	Conf           *core.Config
	Logger         core.Logger
	Translator     ut.Translator
	Shutdown       Shutdown
	SessionSvc     *session.Service
	RestrictionSvc *restriction.Service
	ProgressSvc    *progress.Service
	CourseSvc      *course.Service
	TutorSvc       *tutor.Service
	UserSvc        *user.Service
	Users          user.Repository
}

func newServer(p serverParams) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Address:        p.Conf.Server.Address,
		Conf:           p.Conf,
		Logger:         p.Logger,
		Translator:     p.Translator,
		SignalShutdown: func() { p.Shutdown <- syscall.SIGTERM },
		SessionSvc:     p.SessionSvc,
		RestrictionSvc: p.RestrictionSvc,
		ProgressSvc:    p.ProgressSvc,
		CourseSvc:      p.CourseSvc,
		TutorSvc:       p.TutorSvc,
		UserSvc:        p.UserSvc,
		Users:          p.Users,
	})
}

// New returns a new dependency injection dig.Container for the API.
func New() *dig.Container {
	return build(newDB)
}

// NewWithoutMigrations returns a container whose database is opened as is, for the admin CLI.
func NewWithoutMigrations() *dig.Container {
	return build(openDB)
}

func build(dbProvider func(*core.Config, DBLoggerParam) *sqlx.DB) *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newShutdown))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(dbProvider))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidate))
	must(c.Provide(emailsvc.NewService))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewCourseRepository, dig.As(new(course.Repository))))
	must(c.Provide(sqlxrepos.NewTutorRepository, dig.As(new(tutor.Repository))))
	must(c.Provide(sqlxrepos.NewRestrictionRepository, dig.As(new(restriction.Repository))))
	must(c.Provide(sqlxrepos.NewProgressRepository, dig.As(new(progress.Repository))))
	must(c.Provide(sqlxrepos.NewSessionRepository,
		dig.As(new(session.Repository), new(session.TranscriptReader), new(restriction.UsageReader))))

	// collaborators
	must(c.Provide(livekitsvc.NewRoomService, dig.As(new(session.RoomService))))
	must(c.Provide(agentsvc.NewClient, dig.As(new(session.AgentService))))
	must(c.Provide(completionsvc.NewOpenAICompleter, dig.As(new(analysis.Completer))))

	// services
	must(c.Provide(newEvaluator))
	must(c.Provide(newTranscriptWaiter))
	must(c.Provide(newSessionService))
	must(c.Provide(restriction.NewService))
	must(c.Provide(progress.NewService))
	must(c.Provide(course.NewService))
	must(c.Provide(tutor.NewService))
	must(c.Provide(user.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
