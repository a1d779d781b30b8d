package user

// User represents a user record in the system.
type User struct {
	ID              int64    // ID is the store-generated identity, immutable after creation
	Name            string   // Name is the display name of the user
	Email           string   // Email is unique across all records
	Age             *int     // Age is optional
	Recommendations []string // Recommendations is an ordered list of free-text entries
	ZipCode         *string  // ZipCode is optional
}
