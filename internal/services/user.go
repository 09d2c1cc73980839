package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/studypilot-backend/internal/pkg/dbctx"
	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
	"github.com/yungbote/studypilot-backend/internal/repos"
	"github.com/yungbote/studypilot-backend/internal/requestdata"
	"github.com/yungbote/studypilot-backend/internal/types"
)

type UserService interface {
	GetMe(ctx context.Context) (*types.User, error)
	UpdateName(ctx context.Context, firstName, lastName string) (*types.User, error)
	UploadAvatarImage(ctx context.Context, raw []byte) (*types.User, error)
}

type userService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	avatarService AvatarService
	notifier      Notifier
}

func NewUserService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, avatarService AvatarService, notifier Notifier) UserService {
	serviceLog := log.With("service", "UserService")
	return &userService{
		db:            db,
		log:           serviceLog,
		userRepo:      userRepo,
		avatarService: avatarService,
		notifier:      notifier,
	}
}

func (us *userService) GetMe(ctx context.Context) (*types.User, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, fmt.Errorf("No request data found in context")
	}
	user, err := us.userRepo.GetByID(dbctx.Context{Ctx: ctx}, rd.UserID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load user: %w", err)
	}
	return user, nil
}

func (us *userService) UpdateName(ctx context.Context, firstName, lastName string) (*types.User, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, fmt.Errorf("No request data found in context")
	}
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("First and last name are required")
	}

	dbc := dbctx.Context{Ctx: ctx}
	if err := us.userRepo.UpdateFields(dbc, rd.UserID, map[string]interface{}{
		"first_name": firstName,
		"last_name":  lastName,
	}); err != nil {
		return nil, fmt.Errorf("Failed to update name: %w", err)
	}
	return us.userRepo.GetByID(dbc, rd.UserID)
}

func (us *userService) UploadAvatarImage(ctx context.Context, raw []byte) (*types.User, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		return nil, fmt.Errorf("No request data found in context")
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("Empty avatar image")
	}

	dbc := dbctx.Context{Ctx: ctx}
	user, err := us.userRepo.GetByID(dbc, rd.UserID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load user: %w", err)
	}

	if err := us.avatarService.CreateAndUploadUserAvatarFromImage(ctx, user, raw); err != nil {
		return nil, fmt.Errorf("Failed to process avatar image: %w", err)
	}

	if err := us.userRepo.UpdateFields(dbc, user.ID, map[string]interface{}{
		"avatar_bucket_key": user.AvatarBucketKey,
		"avatar_url":        user.AvatarURL,
	}); err != nil {
		return nil, fmt.Errorf("Failed to persist avatar: %w", err)
	}

	us.notifier.AvatarUpdated(ctx, user.ID, user.AvatarURL)
	return user, nil
}
