package agentsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/session"
)

const (
	joinPath         = "/join"
	internalKeyHdr   = "X-Internal-Api-Key"
	defaultJoinError = "agent join failed"
)

type client struct {
	baseURL string
	apiKey  string
	http    *rest.Client
	logger  core.Logger
}

var _ session.AgentService = (*client)(nil) // interface compliance check

func NewClient(conf *core.Config, logger core.Logger) *client {
	timeout := conf.Agent.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &client{
		baseURL: strings.TrimRight(conf.Agent.BaseURL, "/"),
		apiKey:  conf.Agent.APIKey,
		http:    &rest.Client{HTTPClient: &http.Client{Timeout: timeout}},
		logger:  logger,
	}
}

// Join posts the join request to the agent.
// A refusal is returned as a *core.UpstreamError carrying the agent's `detail` when it sent one.
func (c client) Join(ctx context.Context, req session.JoinRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "encoding join request")
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	if c.apiKey != "" {
		headers[internalKeyHdr] = c.apiKey
	}

	httpReq, err := rest.BuildRequestObject(rest.Request{
		Method:  rest.Post,
		BaseURL: c.baseURL + joinPath,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		return errors.Wrap(err, "building join request")
	}
	httpRes, err := c.http.MakeRequest(httpReq.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "calling agent")
	}
	res, err := rest.BuildResponse(httpRes)
	if err != nil {
		return errors.Wrap(err, "reading agent response")
	}
	if res.StatusCode >= http.StatusMultipleChoices {
		detail := errorDetail(res.Body)
		c.logger.Warn("agent refused to join", map[string]interface{}{
			"room":   req.RoomName,
			"status": res.StatusCode,
			"detail": detail,
		})
		return core.NewUpstreamError("agent", res.StatusCode, detail)
	}
	return nil
}

// errorDetail extracts `detail` from a JSON error body, when it is a non-blank string.
func errorDetail(body string) string {
	var payload struct {
		Detail interface{} `json:"detail"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil {
		if s, ok := payload.Detail.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return defaultJoinError
}
