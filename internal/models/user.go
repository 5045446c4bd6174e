package models

// User is the logged-in cashier.
type User struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Cluster  string `json:"cluster,omitempty"`
}
