package requests

import "strings"

// CreateInput is the POST /requests body.
type CreateInput struct {
	Field string `json:"field" validate:"max=4000"`
}

// Normalize trims surrounding whitespace. Blank and oversized fields are
// rejected by the service after authorization.
func (in *CreateInput) Normalize() {
	in.Field = strings.TrimSpace(in.Field)
}

// DecideInput is the PATCH /requests/{id} body.
type DecideInput struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
}

// ListResult carries one page of requests.
type ListResult struct {
	Requests []Request
	Total    int
}
