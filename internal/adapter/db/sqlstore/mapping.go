package sqlstore

import (
	"encoding/json"
	"fmt"

	"user-records-service/internal/domain/user"
)

// EncodeRecommendations serializes recommendations into the persisted text form.
// A nil slice is stored as an empty JSON array.
func EncodeRecommendations(recs []string) (string, error) {
	if recs == nil {
		recs = []string{}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return "", fmt.Errorf("failed to encode recommendations: %w", err)
	}
	return string(data), nil
}

// DecodeRecommendations parses the persisted text form back into an ordered slice.
// NULL and empty columns decode to an empty, non-nil slice.
func DecodeRecommendations(raw *string) ([]string, error) {
	if raw == nil || *raw == "" {
		return []string{}, nil
	}

	var recs []string
	if err := json.Unmarshal([]byte(*raw), &recs); err != nil {
		return nil, fmt.Errorf("failed to decode recommendations: %w", err)
	}
	if recs == nil {
		recs = []string{}
	}
	return recs, nil
}

// toSchema maps a domain user to its row representation.
func toSchema(u *user.User) (UserSchema, error) {
	recs, err := EncodeRecommendations(u.Recommendations)
	if err != nil {
		return UserSchema{}, err
	}

	return UserSchema{
		UserID:          u.ID,
		UserName:        u.Name,
		UserEmail:       u.Email,
		Age:             u.Age,
		Recommendations: &recs,
		ZipCode:         u.ZipCode,
	}, nil
}

// toDomain maps a row back to a domain user.
func toDomain(m *UserSchema) (*user.User, error) {
	recs, err := DecodeRecommendations(m.Recommendations)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", m.UserID, err)
	}

	return &user.User{
		ID:              m.UserID,
		Name:            m.UserName,
		Email:           m.UserEmail,
		Age:             m.Age,
		Recommendations: recs,
		ZipCode:         m.ZipCode,
	}, nil
}
