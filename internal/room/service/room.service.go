package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"discordbot/internal/apperr"
	"discordbot/internal/room/model"
	"discordbot/pkg/logger"

	"go.uber.org/zap"
)

var ErrCreationDisabled = errors.New("room creation is not configured")

type Repository interface {
	Get(ctx context.Context, serverID string) (*model.Room, error)
	Upsert(ctx context.Context, room model.Room) error
	Delete(ctx context.Context, serverID string) (bool, error)
}

// Creator requests a brand new room from the external provider.
type Creator interface {
	CreateRoom(ctx context.Context) (string, error)
}

// Checker asks the provider whether a stored room still exists.
type Checker interface {
	RoomExists(ctx context.Context, url string) (bool, error)
}

type Notifier interface {
	Notify(serverID, kind string, payload any)
}

type RoomService struct {
	repo     Repository
	creator  Creator
	checker  Checker
	notifier Notifier
	window   time.Duration
	now      func() time.Time
	log      *zap.SugaredLogger
}

// NewRoomService builds the service. A nil creator disables creating rooms
// through the provider; callers can still supply their own URL.
func NewRoomService(repo Repository, creator Creator, log *zap.SugaredLogger) *RoomService {
	return &RoomService{
		repo:    repo,
		creator: creator,
		window:  model.FreshnessWindow,
		now:     time.Now,
		log:     log,
	}
}

func (s *RoomService) WithChecker(c Checker) *RoomService {
	s.checker = c
	return s
}

func (s *RoomService) WithNotifier(n Notifier) *RoomService {
	s.notifier = n
	return s
}

func (s *RoomService) WithClock(now func() time.Time) *RoomService {
	s.now = now
	return s
}

// GetOrCreate returns the server's room, replacing it when it is missing,
// older than the freshness window, reported gone by the checker, or when
// url is supplied. Staleness is only evaluated here.
func (s *RoomService) GetOrCreate(ctx context.Context, serverID, requesterID, url string) (*model.Result, error) {
	start := time.Now()
	url = strings.TrimSpace(url)

	existing, err := s.repo.Get(ctx, serverID)
	if err != nil {
		return nil, apperr.Storage("load room", err)
	}

	if existing != nil && url == "" && existing.Fresh(s.now(), s.window) && s.alive(ctx, existing.URL) {
		return &model.Result{Room: *existing}, nil
	}

	roomURL := url
	if roomURL == "" {
		if s.creator == nil {
			return nil, apperr.RoomCreation(ErrCreationDisabled)
		}
		roomURL, err = s.creator.CreateRoom(ctx)
		if err != nil {
			s.log.Errorf("Failed to create watch room for guild %s: %v", serverID, err)
			return nil, apperr.RoomCreation(err)
		}
	}

	room := model.Room{
		ServerID:  serverID,
		URL:       roomURL,
		CreatedBy: requesterID,
		CreatedAt: s.now(),
	}
	if err := s.repo.Upsert(ctx, room); err != nil {
		return nil, apperr.Storage("save room", err)
	}

	logger.Performance(s.log, "room.create", time.Since(start), "guild_id", serverID, "renewed", existing != nil)
	s.publish(serverID, model.EventOpened, model.Event{ServerID: serverID, URL: room.URL, CreatedBy: requesterID})
	return &model.Result{Room: room, Created: true, Renewed: existing != nil}, nil
}

// alive reports false only when the checker definitely says the room is
// gone. Checker errors keep the room.
func (s *RoomService) alive(ctx context.Context, url string) bool {
	if s.checker == nil {
		return true
	}
	ok, err := s.checker.RoomExists(ctx, url)
	if err != nil {
		s.log.Warnf("Room check failed for %s, keeping it: %v", url, err)
		return true
	}
	return ok
}

// Delete removes the server's room. It returns the removed room, or nil when
// there was none; absence is not an error.
func (s *RoomService) Delete(ctx context.Context, serverID string) (*model.Room, error) {
	existing, err := s.repo.Get(ctx, serverID)
	if err != nil {
		return nil, apperr.Storage("load room", err)
	}
	if existing == nil {
		return nil, nil
	}

	if _, err := s.repo.Delete(ctx, serverID); err != nil {
		return nil, apperr.Storage("delete room", err)
	}
	s.publish(serverID, model.EventDeleted, model.Event{ServerID: serverID})
	return existing, nil
}

func (s *RoomService) publish(serverID, kind string, payload model.Event) {
	if s.notifier != nil {
		s.notifier.Notify(serverID, kind, payload)
	}
}
