package agentsvc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/session"
	testutil "github.com/trezcool/dos/tests"
)

type recorded struct {
	path   string
	apiKey string
	ctype  string
	body   session.JoinRequest
}

func newAgent(t *testing.T, status int, respBody string, rec *recorded) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		rec.path = r.URL.Path
		rec.apiKey = r.Header.Get("X-Internal-Api-Key")
		rec.ctype = r.Header.Get("Content-Type")
		require.NoError(t, json.Unmarshal(raw, &rec.body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Join(t *testing.T) {
	enrolmentID := int64(4)
	req := session.JoinRequest{
		RoomName:          "dos-1",
		SessionID:         "1",
		CourseID:          2,
		TopicID:           3,
		StudentID:         "student-1",
		EnrolmentID:       &enrolmentID,
		TutorName:         "Ms Byte",
		PersonalityPrompt: "Be kind.",
		TutorVoiceModel:   "aura-2-draco-en",
		TutorTTSSpeed:     "1.0",
		RepeatFlags:       []session.RepeatFlag{{Concept: "factorising", Priority: "high"}},
		RecommendedFocus:  []string{"completing the square"},
	}

	tests := []struct {
		name       string
		apiKey     string
		status     int
		respBody   string
		wantStatus int
		wantDetail string
	}{
		{name: "joined", apiKey: "k3y", status: http.StatusOK, respBody: `{"ok": true}`},
		{name: "joined without key", status: http.StatusOK, respBody: `{}`},
		{name: "refused with detail", apiKey: "wrong", status: http.StatusUnauthorized, respBody: `{"detail": "Unauthorized"}`, wantStatus: 401, wantDetail: "Unauthorized"},
		{name: "refused with structured detail", status: http.StatusUnprocessableEntity, respBody: `{"detail": [{"msg": "field required"}]}`, wantStatus: 422, wantDetail: "agent join failed"},
		{name: "refused without body", status: http.StatusInternalServerError, wantStatus: 500, wantDetail: "agent join failed"},
		{name: "refused with html", status: http.StatusBadGateway, respBody: "<html>bad gateway</html>", wantStatus: 502, wantDetail: "agent join failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorded{}
			srv := newAgent(t, tc.status, tc.respBody, rec)

			conf := core.NewTestConfig()
			conf.Agent.BaseURL = srv.URL + "/"
			conf.Agent.APIKey = tc.apiKey
			conf.Agent.Timeout = 5 * time.Second
			c := NewClient(conf, testutil.NewLogger(conf))

			err := c.Join(context.Background(), req)

			assert.Equal(t, "/join", rec.path)
			assert.Equal(t, tc.apiKey, rec.apiKey)
			assert.Equal(t, "application/json", rec.ctype)
			assert.Equal(t, req, rec.body)

			if tc.wantStatus == 0 {
				assert.NoError(t, err)
				return
			}
			var upErr *core.UpstreamError
			require.ErrorAs(t, err, &upErr)
			assert.Equal(t, "agent", upErr.Service)
			assert.Equal(t, tc.wantStatus, upErr.Status)
			assert.Equal(t, tc.wantDetail, upErr.Detail)
		})
	}
}

func TestClient_Join_unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	conf := core.NewTestConfig()
	conf.Agent.BaseURL = url
	c := NewClient(conf, testutil.NewLogger(conf))

	err := c.Join(context.Background(), session.JoinRequest{RoomName: "dos-1"})
	require.Error(t, err)
	var upErr *core.UpstreamError
	assert.False(t, errors.As(err, &upErr))
}
