package entity

// Identity is the caller verified from a bearer token.
type Identity struct {
	Subject  string
	Username string
	Email    string
	TokenUse string
	Claims   map[string]interface{}
}
