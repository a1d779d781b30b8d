package user

import "context"

// Usecase defines the interface for user record operations.
type Usecase interface {
	ListUsers(ctx context.Context) (*ListUsersResponse, error)
	CreateUser(ctx context.Context, in CreateUserRequest) (*User, error)
	UpdateUser(ctx context.Context, in UpdateUserRequest) (*User, error)
	DeleteUser(ctx context.Context, in DeleteUserRequest) (*DeleteUserResponse, error)
	GetRecommendations(ctx context.Context, in GetRecommendationsRequest) (*GetRecommendationsResponse, error)
}

var _ Usecase = (*Service)(nil)
