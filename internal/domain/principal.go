package domain

// Principal is the authenticated identity being authorized. It is
// supplied by the auth layer; this core never creates or destroys
// principals.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
