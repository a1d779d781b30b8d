package user

// CreateUserRequest represents the request payload for creating a new user.
type CreateUserRequest struct {
	Name            string   `field:"user_name" validate:"required"`
	Email           string   `field:"user_email" validate:"required"`
	Age             *int     `field:"age" validate:"omitempty,gt=0,lt=110"`
	Recommendations []string // Defaults to an empty list
	ZipCode         *string  `field:"zip_code" validate:"omitempty,min=4,max=8"`
}

// UpdateUserRequest represents the request payload for replacing an existing user.
// Every field is replaced; omitted optional fields are cleared.
type UpdateUserRequest struct {
	ID              int64
	Name            string   `field:"user_name" validate:"required"`
	Email           string   `field:"user_email" validate:"required"`
	Age             *int     `field:"age" validate:"omitempty,gt=0,lt=110"`
	Recommendations []string // Defaults to an empty list
	ZipCode         *string  `field:"zip_code" validate:"omitempty,min=4,max=8"`
}

// DeleteUserRequest represents the request payload for deleting a user.
type DeleteUserRequest struct {
	ID int64
}

// DeleteUserResponse represents the response payload after deleting a user.
type DeleteUserResponse struct {
	ID      int64
	Message string
}

// GetRecommendationsRequest represents the request payload for a user's recommendations.
type GetRecommendationsRequest struct {
	ID int64
}

// GetRecommendationsResponse holds the decoded recommendations of a user.
type GetRecommendationsResponse struct {
	Recommendations []string
}

// ListUsersResponse represents the response payload for user listing.
type ListUsersResponse struct {
	Users []User
}

// User represents a user DTO (Data Transfer Object) for API responses.
type User struct {
	ID              int64
	Name            string
	Email           string
	Age             *int
	Recommendations []string
	ZipCode         *string
}
