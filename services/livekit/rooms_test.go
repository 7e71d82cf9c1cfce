package livekitsvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/livekit/protocol/livekit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/dos/core"
	testutil "github.com/trezcool/dos/tests"
)

type clientStub struct {
	createErr error
	listErr   error
	existing  []string
	created   []string
	listed    int
}

func (c *clientStub) CreateRoom(_ context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error) {
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.created = append(c.created, req.GetName())
	return &livekit.Room{Name: req.GetName()}, nil
}

func (c *clientStub) ListRooms(_ context.Context, req *livekit.ListRoomsRequest) (*livekit.ListRoomsResponse, error) {
	c.listed++
	if c.listErr != nil {
		return nil, c.listErr
	}
	res := &livekit.ListRoomsResponse{}
	for _, name := range c.existing {
		for _, want := range req.GetNames() {
			if name == want {
				res.Rooms = append(res.Rooms, &livekit.Room{Name: name})
			}
		}
	}
	return res, nil
}

func testConfig() *core.Config {
	conf := core.NewTestConfig()
	conf.LiveKit.APIKey = "APItestkey"
	conf.LiveKit.APISecret = "a-long-enough-livekit-test-secret"
	conf.LiveKit.TokenTTL = time.Hour
	return conf
}

func TestRoomService_EnsureRoom(t *testing.T) {
	conf := testConfig()
	refused := errors.New("twirp error already_exists")

	tests := []struct {
		name       string
		client     *clientStub
		wantErr    bool
		wantListed int
	}{
		{name: "created", client: &clientStub{}},
		{name: "already exists", client: &clientStub{createErr: refused, existing: []string{"dos-1"}}, wantListed: 1},
		{name: "create failed, not listed", client: &clientStub{createErr: refused, existing: []string{"dos-2"}}, wantErr: true, wantListed: 1},
		{name: "create and list failed", client: &clientStub{createErr: refused, listErr: errors.New("unavailable")}, wantErr: true, wantListed: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newRoomService(tc.client, conf, testutil.NewLogger(conf))
			err := svc.EnsureRoom(context.Background(), "dos-1")
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.wantListed, tc.client.listed)
		})
	}
}

func TestRoomService_MintToken(t *testing.T) {
	conf := testConfig()
	svc := newRoomService(&clientStub{}, conf, testutil.NewLogger(conf))

	token, err := svc.MintToken("dos-abc", "student-1")
	require.NoError(t, err)

	parsed, err := jwt.Parse(token, func(tk *jwt.Token) (interface{}, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(conf.LiveKit.APISecret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "student-1", claims["sub"])
	assert.Equal(t, conf.LiveKit.APIKey, claims["iss"])

	video, ok := claims["video"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, video["roomJoin"])
	assert.Equal(t, "dos-abc", video["room"])
	assert.Equal(t, true, video["canPublish"])
	assert.Equal(t, true, video["canSubscribe"])
	assert.Equal(t, true, video["canPublishData"])

	exp, ok := claims["exp"].(float64)
	require.True(t, ok)
	assert.InDelta(t, float64(time.Now().Add(time.Hour).Unix()), exp, 60)
}

func TestRoomService_MintToken_missingKeys(t *testing.T) {
	conf := testConfig()
	conf.LiveKit.APISecret = ""
	svc := newRoomService(&clientStub{}, conf, testutil.NewLogger(conf))

	token, err := svc.MintToken("dos-abc", "student-1")
	assert.Error(t, err)
	assert.Empty(t, token)
}
