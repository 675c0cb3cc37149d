package engine

import "context"

// Input is what a route authorization decision sees.
type Input struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

// Evaluator decides whether an authenticated principal may call a route.
type Evaluator interface {
	Authorize(ctx context.Context, in Input) (bool, error)
}
