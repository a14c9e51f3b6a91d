package http

import "strings"

// StatusResponse is the body of liveness endpoints.
type StatusResponse struct {
	Status string `json:"status"`
	Models *int   `json:"models,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"market"`
	Tag     string                 `json:"-"`
	Message string                 `json:"message,omitempty" example:"market is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ValidationErrors is returned by ReadAndValidateRequest when binding or validation fails.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Fields lists the failing field names in report order.
func (v ValidationErrors) Fields() []string {
	out := make([]string, 0, len(v))
	for _, e := range v {
		out = append(out, e.Field)
	}
	return out
}

// AllTag reports whether every failure came from the given validator tag.
func (v ValidationErrors) AllTag(tag string) bool {
	if len(v) == 0 {
		return false
	}
	for _, e := range v {
		if e.Tag != tag {
			return false
		}
	}
	return true
}
