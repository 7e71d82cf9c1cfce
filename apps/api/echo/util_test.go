package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/dos/apps/api/echo"
	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/analysis"
	"github.com/trezcool/dos/core/course"
	"github.com/trezcool/dos/core/progress"
	"github.com/trezcool/dos/core/restriction"
	"github.com/trezcool/dos/core/session"
	"github.com/trezcool/dos/core/tutor"
	"github.com/trezcool/dos/core/user"
	"github.com/trezcool/dos/fs"
	"github.com/trezcool/dos/services/agent"
	"github.com/trezcool/dos/services/completion"
	"github.com/trezcool/dos/services/email"
	"github.com/trezcool/dos/storage/database/inmem"
	"github.com/trezcool/dos/tests"
)

// a Wednesday
var now = time.Date(2026, time.March, 11, 16, 30, 0, 0, time.UTC)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type roomStub struct{}

func (roomStub) EnsureRoom(context.Context, string) error { return nil }

func (roomStub) MintToken(_, identity string) (string, error) {
	return "token-" + identity, nil
}

type env struct {
	conf  *core.Config
	f     *testutil.Fixtures
	app   Server
	mail  *emailsvc.ConsoleServiceMock
	agent *agentServer
}

// agentServer fakes the voice agent's /join endpoint.
type agentServer struct {
	*httptest.Server
	status int
	body   string
	joined []session.JoinRequest
}

func newAgentServer(t *testing.T) *agentServer {
	a := &agentServer{status: http.StatusOK, body: `{"ok": true}`}
	a.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req session.JoinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			a.joined = append(a.joined, req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(a.status)
		_, _ = w.Write([]byte(a.body))
	}))
	t.Cleanup(a.Close)
	return a
}

func setup(t *testing.T) *env {
	testutil.MockNow(t, now)
	conf := core.NewTestConfig()
	logger := testutil.NewLogger(conf)
	translator := core.NewTranslator()
	validate := testutil.NewValidator()
	require.NoError(t, core.ParseEmailTemplates(appfs.FS, conf, logger))

	agentSrv := newAgentServer(t)
	conf.Agent.BaseURL = agentSrv.URL

	// set up DB & repos
	f := testutil.Seed(t)
	sessRepo := inmemdb.NewSessionRepository(f.DB)
	rstrRepo := inmemdb.NewRestrictionRepository(f.DB)
	progRepo := inmemdb.NewProgressRepository(f.DB)
	courseRepo := inmemdb.NewCourseRepository(f.DB)
	userRepo := inmemdb.NewUserRepository(f.DB)
	tutorRepo := inmemdb.NewTutorRepository(f.DB)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	completer := completionsvc.NewOpenAICompleter(conf) // no API key: pipelines fall back
	sessSvc := session.NewService(session.ServiceDeps{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Repo:        sessRepo,
		Courses:     courseRepo,
		Users:       userRepo,
		Progress:    progRepo,
		Tutors:      tutorRepo,
		Admission:   restriction.NewEvaluator(rstrRepo, sessRepo, time.UTC),
		Rooms:       roomStub{},
		Agent:       agentsvc.NewClient(conf, logger),
		Transcripts: session.NewTranscriptWaiter(sessRepo, 1, 0),
		Summarizer:  analysis.NewSummarizer(completer),
		Analyzer:    analysis.NewProgressAnalyzer(completer),
		Mail:        mailSvc,
	})

	// set up server
	app := NewServer(&Options{
		DisableReqLogs: true,
		Conf:           conf,
		Logger:         logger,
		Translator:     translator,
		SessionSvc:     sessSvc,
		RestrictionSvc: restriction.NewService(rstrRepo, userRepo, courseRepo, validate),
		ProgressSvc:    progress.NewService(progRepo, userRepo),
		CourseSvc:      course.NewService(courseRepo, validate),
		TutorSvc:       tutor.NewService(conf, tutorRepo, courseRepo, validate),
		UserSvc:        user.NewService(userRepo),
		Users:          userRepo,
	})
	return &env{conf: conf, f: f, app: app, mail: mailSvc, agent: agentSrv}
}

func (e *env) token(t *testing.T, id, role string) string {
	token, err := GenerateToken(e.conf.Auth.JWTSecret, NewClaims(e.conf, user.Identity{ID: id, Role: role}, time.Hour))
	if err != nil {
		t.Fatalf("token(): %v", err)
	}
	return token
}

func (e *env) studentToken(t *testing.T) string {
	return e.token(t, e.f.Student.ID, user.RoleStudent)
}

func (e *env) parentToken(t *testing.T) string {
	return e.token(t, e.f.Parent.ID, user.RoleParent)
}

// do serves the request and returns the recorder.
func (e *env) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	e.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("unmarshal(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
