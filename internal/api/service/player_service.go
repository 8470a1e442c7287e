package service

import (
	"context"

	"github.com/google/uuid"
)

// PlayerService issues client identities.
type PlayerService interface {
	GuestLogin(ctx context.Context) (string, error)
}

type playerService struct{}

func NewPlayerService() PlayerService {
	return &playerService{}
}

// GuestLogin generates a UUID for a guest player.
func (s *playerService) GuestLogin(ctx context.Context) (string, error) {
	return uuid.New().String(), nil
}
