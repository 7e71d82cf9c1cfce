package livekitsvc

import (
	"context"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/session"
)

// roomClient is the part of the LiveKit room API we rely on.
type roomClient interface {
	CreateRoom(ctx context.Context, req *livekit.CreateRoomRequest) (*livekit.Room, error)
	ListRooms(ctx context.Context, req *livekit.ListRoomsRequest) (*livekit.ListRoomsResponse, error)
}

type roomService struct {
	client    roomClient
	apiKey    string
	apiSecret string
	tokenTTL  time.Duration
	logger    core.Logger
}

var _ session.RoomService = (*roomService)(nil) // interface compliance check

func NewRoomService(conf *core.Config, logger core.Logger) *roomService {
	return newRoomService(
		lksdk.NewRoomServiceClient(conf.LiveKit.URL, conf.LiveKit.APIKey, conf.LiveKit.APISecret),
		conf, logger,
	)
}

func newRoomService(client roomClient, conf *core.Config, logger core.Logger) *roomService {
	ttl := conf.LiveKit.TokenTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &roomService{
		client:    client,
		apiKey:    conf.LiveKit.APIKey,
		apiSecret: conf.LiveKit.APISecret,
		tokenTTL:  ttl,
		logger:    logger,
	}
}

// EnsureRoom creates the room. A failed create is fine as long as the room shows up when listed.
func (svc roomService) EnsureRoom(ctx context.Context, name string) error {
	_, createErr := svc.client.CreateRoom(ctx, &livekit.CreateRoomRequest{Name: name})
	if createErr == nil {
		return nil
	}

	res, err := svc.client.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{name}})
	if err != nil {
		return errors.Wrapf(err, "listing room %q (create: %v)", name, createErr)
	}
	for _, room := range res.GetRooms() {
		if room.GetName() == name {
			svc.logger.Debug("room already exists: " + name)
			return nil
		}
	}
	return errors.Wrapf(createErr, "ensuring room %q", name)
}

// MintToken signs a participant token allowed to join `roomName`, publish and subscribe.
func (svc roomService) MintToken(roomName, identity string) (string, error) {
	grant := &auth.VideoGrant{RoomJoin: true, Room: roomName}
	grant.SetCanPublish(true)
	grant.SetCanSubscribe(true)
	grant.SetCanPublishData(true)

	token, err := auth.NewAccessToken(svc.apiKey, svc.apiSecret).
		SetIdentity(identity).
		SetName(identity).
		AddGrant(grant).
		SetValidFor(svc.tokenTTL).
		ToJWT()
	return token, errors.Wrap(err, "signing participant token")
}
