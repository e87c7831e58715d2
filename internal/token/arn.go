package token

import (
	"fmt"
	"strings"
)

// MethodARN is a parsed API gateway method descriptor of the form
// arn:aws:execute-api:{region}:{account}:{api}/{stage}/{method}/{resource}.
type MethodARN struct {
	Region    string
	AccountID string
	APIID     string
	Stage     string
	Method    string
	Resource  string
}

// ParseMethodARN splits a method descriptor into its components.
func ParseMethodARN(arn string) (MethodARN, error) {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) != 6 || parts[0] != "arn" {
		return MethodARN{}, fmt.Errorf("%w: %q", ErrMalformedMethodARN, arn)
	}

	path := strings.SplitN(parts[5], "/", 4)
	if len(path) < 2 {
		return MethodARN{}, fmt.Errorf("%w: %q has no stage", ErrMalformedMethodARN, arn)
	}

	parsed := MethodARN{
		Region:    parts[3],
		AccountID: parts[4],
		APIID:     path[0],
		Stage:     path[1],
	}
	if len(path) > 2 {
		parsed.Method = path[2]
	}
	if len(path) > 3 {
		parsed.Resource = path[3]
	}

	if parsed.Region == "" || parsed.AccountID == "" || parsed.APIID == "" || parsed.Stage == "" {
		return MethodARN{}, fmt.Errorf("%w: %q has empty components", ErrMalformedMethodARN, arn)
	}
	return parsed, nil
}

// FormatMethodARN builds a method descriptor. A leading '/' on resource is dropped.
func FormatMethodARN(region, accountID, apiID, stage string, method Method, resource string) string {
	return fmt.Sprintf("arn:aws:execute-api:%s:%s:%s/%s/%s/%s",
		region, accountID, apiID, stage, method, strings.TrimLeft(resource, "/"))
}
