package logsvc

import (
	"bytes"
	"context"
	"log"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/rollbar/rollbar-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/user"
)

func newTestLogger(t *testing.T, debug bool) (*RollbarLogger, *bytes.Buffer) {
	conf := core.NewTestConfig()
	conf.Debug = debug
	var buf bytes.Buffer
	return NewRollbarLogger(log.New(&buf, "", 0), conf), &buf
}

func TestRollbarLogger_prepare(t *testing.T) {
	l, _ := newTestLogger(t, false)
	kid := user.Identity{ID: "kid-1", Role: user.RoleStudent}
	err := errors.New("agent down")

	e := l.prepare("joining agent", []interface{}{
		err,
		map[string]interface{}{"sessionId": "s-1", "participantToken": "jwt"},
		kid,
		user.Identity{ID: "someone-else", Role: user.RoleParent},
		map[string]interface{}{"route": "/session/create", "agent": map[string]interface{}{"apiKey": "k", "url": "http://agent"}},
		42,
	})

	assert.Equal(t, err, e.err)
	require.NotNil(t, e.caller)
	assert.Equal(t, kid, *e.caller)
	assert.Equal(t, map[string]interface{}{
		"sessionId":        "s-1",
		"participantToken": redacted,
		"route":            "/session/create",
		"agent":            map[string]interface{}{"apiKey": redacted, "url": "http://agent"},
	}, e.extras)
	assert.Equal(t, []interface{}{42}, e.other)
}

func TestRollbarLogger_rollbarArgs(t *testing.T) {
	l, _ := newTestLogger(t, false)
	kid := user.Identity{ID: "kid-1", Role: user.RoleStudent, Email: "kid@test.uk"}

	args := l.prepare("oops", []interface{}{kid, "stray", map[string]interface{}{"transcript": "hello"}}).rollbarArgs()
	require.Len(t, args, 3)
	assert.Equal(t, "oops", args[0])
	assert.Equal(t, map[string]interface{}{"transcript": redacted, "details": []string{"stray"}}, args[1])

	ctx, ok := args[2].(context.Context)
	require.True(t, ok, "the caller travels in a context")
	p, ok := rollbar.PersonFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, &rollbar.Person{Id: "kid-1", Username: user.RoleStudent, Email: "kid@test.uk"}, p)

	assert.Equal(t, []interface{}{"plain"}, l.prepare("plain", nil).rollbarArgs())
}

func TestRollbarLogger_print(t *testing.T) {
	tests := []struct {
		name  string
		debug bool
		log   func(l *RollbarLogger)
		want  string
	}{
		{
			name: "debug dropped",
			log:  func(l *RollbarLogger) { l.Debug("room exists") },
		},
		{
			name:  "debug kept in debug mode",
			debug: true,
			log:   func(l *RollbarLogger) { l.Debug("room exists") },
			want:  "DEBUG room exists\n",
		},
		{
			name: "request and caller on the first line, extras sorted",
			log: func(l *RollbarLogger) {
				req := httptest.NewRequest("POST", "/session/create?x=1", nil)
				l.Error("Internal Server Error", req, user.Identity{ID: "kid-1", Role: user.RoleStudent},
					map[string]interface{}{"route": "/session/create", "token": "secret-jwt", "attempt": 2})
			},
			want: "ERROR Internal Server Error [POST /session/create] (student kid-1)\n" +
				"attempt=2 route=/session/create token=[redacted]\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newTestLogger(t, tt.debug)
			tt.log(l)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}
