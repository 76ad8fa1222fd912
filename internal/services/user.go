package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/warbler-social/warbler/internal/locks"
	"github.com/warbler-social/warbler/internal/metrics"
	"github.com/warbler-social/warbler/internal/models"
	"github.com/warbler-social/warbler/internal/repository"
	"github.com/warbler-social/warbler/pkg/logger"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	db          *gorm.DB
	userRepo    *repository.UserRepository
	followRepo  *repository.FollowRepository
	userLocks   *locks.KeyedMutex
	recorder    ActivityRecorder
	invalidator FeedInvalidator
	logger      *logger.Logger
}

func NewUserService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	followRepo *repository.FollowRepository,
	userLocks *locks.KeyedMutex,
	recorder ActivityRecorder,
	invalidator FeedInvalidator,
	logger *logger.Logger,
) *UserService {
	return &UserService{
		db:          db,
		userRepo:    userRepo,
		followRepo:  followRepo,
		userLocks:   userLocks,
		recorder:    recorder,
		invalidator: invalidator,
		logger:      logger,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=50"`
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	Name       *string `json:"name" binding:"omitempty,max=50"`
	Username   *string `json:"username" binding:"omitempty,min=3,max=30"`
	Bio        *string `json:"bio" binding:"omitempty,max=500"`
	Location   *string `json:"location" binding:"omitempty,max=100"`
	Website    *string `json:"website" binding:"omitempty,max=200"`
	ProfilePic *string `json:"profile_pic"`
	CoverPic   *string `json:"cover_pic"`
}

func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	existing, err = s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:     strings.TrimSpace(req.Name),
		Username: username,
		Email:    email,
		Password: string(hashedPassword),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

func (s *UserService) Login(ctx context.Context, req *LoginRequest) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.logger.WithField("user_id", user.ID).Info("User logged in")
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ValidationError{Field: "user id", Reason: "not a valid id"}
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*models.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ValidationError{Field: "user id", Reason: "not a valid id"}
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	if req.Username != nil && *req.Username != user.Username {
		taken, err := s.userRepo.UsernameTaken(ctx, *req.Username, id)
		if err != nil {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
		if taken {
			return nil, ErrUsernameTaken
		}
		user.Username = *req.Username
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Location != nil {
		user.Location = *req.Location
	}
	if req.Website != nil {
		user.Website = *req.Website
	}
	if req.ProfilePic != nil {
		user.ProfilePic = *req.ProfilePic
	}
	if req.CoverPic != nil {
		user.CoverPic = *req.CoverPic
	}

	// Posts keep the author snapshot taken when they were created. Profile
	// edits do not fan out; the staleness window is a documented choice.
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("Profile updated")
	return user, nil
}

// Follow creates the directed edge actor -> target. Mutations touching a
// user's edges are serialized through the per-user lock, taken for both
// endpoints, so two opposite operations on the same pair cannot interleave.
func (s *UserService) Follow(ctx context.Context, actorID, targetID string) error {
	actorUUID, err := uuid.Parse(actorID)
	if err != nil {
		return &ValidationError{Field: "actor id", Reason: "not a valid id"}
	}
	targetUUID, err := uuid.Parse(targetID)
	if err != nil {
		return &ValidationError{Field: "target id", Reason: "not a valid id"}
	}

	if actorUUID == targetUUID {
		return ErrSelfFollow
	}

	unlock := s.userLocks.Lock(actorUUID.String(), targetUUID.String())
	defer unlock()

	actor, err := s.userRepo.GetByID(ctx, actorUUID)
	if err != nil {
		return fmt.Errorf("failed to get actor: %w", err)
	}
	if actor == nil {
		return ErrNotFound
	}

	target, err := s.userRepo.GetByID(ctx, targetUUID)
	if err != nil {
		return fmt.Errorf("failed to get target: %w", err)
	}
	if target == nil {
		return ErrNotFound
	}

	following, err := s.followRepo.Exists(ctx, actorUUID, targetUUID)
	if err != nil {
		return fmt.Errorf("failed to check follow status: %w", err)
	}
	if following {
		return ErrAlreadyFollowing
	}

	// Edge row and both counters commit together or not at all.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.followRepo.Tx(tx).Create(ctx, &models.Follow{
			FollowerID:  actorUUID,
			FollowingID: targetUUID,
		}); err != nil {
			return err
		}
		if err := s.userRepo.Tx(tx).UpdateFollowingCount(ctx, actorUUID, 1); err != nil {
			return err
		}
		return s.userRepo.Tx(tx).UpdateFollowerCount(ctx, targetUUID, 1)
	})
	if err != nil {
		return fmt.Errorf("failed to create follow: %w", err)
	}

	metrics.GraphMutations.WithLabelValues("follow").Inc()
	s.recorder.Record(ctx, &models.ActivityEvent{
		Type:         models.ActivityFollowed,
		ActorID:      actorUUID,
		TargetUserID: &targetUUID,
	})
	// A graph change redraws the viewer's merged feeds, so cached pages are
	// stale the moment the edge lands.
	if s.invalidator != nil {
		s.invalidator.InvalidateFeeds(ctx)
	}

	s.logger.WithFields(map[string]interface{}{
		"actor_id":  actorID,
		"target_id": targetID,
	}).Info("User followed")
	return nil
}

func (s *UserService) Unfollow(ctx context.Context, actorID, targetID string) error {
	actorUUID, err := uuid.Parse(actorID)
	if err != nil {
		return &ValidationError{Field: "actor id", Reason: "not a valid id"}
	}
	targetUUID, err := uuid.Parse(targetID)
	if err != nil {
		return &ValidationError{Field: "target id", Reason: "not a valid id"}
	}

	unlock := s.userLocks.Lock(actorUUID.String(), targetUUID.String())
	defer unlock()

	actor, err := s.userRepo.GetByID(ctx, actorUUID)
	if err != nil {
		return fmt.Errorf("failed to get actor: %w", err)
	}
	if actor == nil {
		return ErrNotFound
	}

	target, err := s.userRepo.GetByID(ctx, targetUUID)
	if err != nil {
		return fmt.Errorf("failed to get target: %w", err)
	}
	if target == nil {
		return ErrNotFound
	}

	following, err := s.followRepo.Exists(ctx, actorUUID, targetUUID)
	if err != nil {
		return fmt.Errorf("failed to check follow status: %w", err)
	}
	if !following {
		return ErrNotFollowing
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.followRepo.Tx(tx).Delete(ctx, actorUUID, targetUUID); err != nil {
			return err
		}
		if err := s.userRepo.Tx(tx).UpdateFollowingCount(ctx, actorUUID, -1); err != nil {
			return err
		}
		return s.userRepo.Tx(tx).UpdateFollowerCount(ctx, targetUUID, -1)
	})
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}

	metrics.GraphMutations.WithLabelValues("unfollow").Inc()
	s.recorder.Record(ctx, &models.ActivityEvent{
		Type:         models.ActivityUnfollowed,
		ActorID:      actorUUID,
		TargetUserID: &targetUUID,
	})
	if s.invalidator != nil {
		s.invalidator.InvalidateFeeds(ctx)
	}

	s.logger.WithFields(map[string]interface{}{
		"actor_id":  actorID,
		"target_id": targetID,
	}).Info("User unfollowed")
	return nil
}

func (s *UserService) IsFollowing(ctx context.Context, actorID, targetID string) (bool, error) {
	actorUUID, err := uuid.Parse(actorID)
	if err != nil {
		return false, &ValidationError{Field: "actor id", Reason: "not a valid id"}
	}
	targetUUID, err := uuid.Parse(targetID)
	if err != nil {
		return false, &ValidationError{Field: "target id", Reason: "not a valid id"}
	}
	return s.followRepo.Exists(ctx, actorUUID, targetUUID)
}

func (s *UserService) GetFollowers(ctx context.Context, userID string, limit int) ([]*models.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ValidationError{Field: "user id", Reason: "not a valid id"}
	}
	followers, err := s.followRepo.GetFollowers(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get followers: %w", err)
	}
	return followers, nil
}

func (s *UserService) GetFollowing(ctx context.Context, userID string, limit int) ([]*models.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ValidationError{Field: "user id", Reason: "not a valid id"}
	}
	following, err := s.followRepo.GetFollowing(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get following: %w", err)
	}
	return following, nil
}

// OtherUsers lists everyone except the caller, for the who-to-follow rail.
func (s *UserService) OtherUsers(ctx context.Context, userID string, limit int) ([]*models.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ValidationError{Field: "user id", Reason: "not a valid id"}
	}
	users, err := s.userRepo.ListOthers(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
