package token

import "strings"

// PolicyVersion is the IAM policy language version emitted in documents.
const PolicyVersion = "2012-10-17"

// InvokeAction is the single action granted by authorizer policies. It is the
// API gateway's capability name for invoking a method, which the gateway
// requires verbatim; the bare "invoke" capability maps to it.
const InvokeAction = "execute-api:Invoke"

// Effect of a policy statement.
type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

// Method is an HTTP verb as it appears in a method ARN.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
	MethodAll     Method = "*"
)

// Statement is one policy entry.
type Statement struct {
	Action   []string `json:"Action"`
	Effect   Effect   `json:"Effect"`
	Resource []string `json:"Resource"`
}

// PolicyDocument is returned to the gateway with each decision.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// EffectFor evaluates the document for resource. An explicit Deny wins over
// Allow, and a resource no statement covers is denied.
func (p PolicyDocument) EffectFor(resource string) Effect {
	allowed := false
	for _, stmt := range p.Statement {
		for _, pattern := range stmt.Resource {
			if !matchResource(pattern, resource) {
				continue
			}
			if stmt.Effect == EffectDeny {
				return EffectDeny
			}
			if stmt.Effect == EffectAllow {
				allowed = true
			}
		}
	}
	if allowed {
		return EffectAllow
	}
	return EffectDeny
}

// PolicyBuilder accumulates statements scoped to one API stage.
type PolicyBuilder struct {
	region    string
	accountID string
	apiID     string
	stage     string
	policy    PolicyDocument
}

// NewPolicyBuilder starts an empty policy for the given API stage.
func NewPolicyBuilder(region, accountID, apiID, stage string) *PolicyBuilder {
	return &PolicyBuilder{
		region:    region,
		accountID: accountID,
		apiID:     apiID,
		stage:     stage,
		policy:    PolicyDocument{Version: PolicyVersion, Statement: []Statement{}},
	}
}

// NewPolicyBuilderFor scopes a builder to the stage of a parsed method ARN.
func NewPolicyBuilderFor(arn MethodARN) *PolicyBuilder {
	return NewPolicyBuilder(arn.Region, arn.AccountID, arn.APIID, arn.Stage)
}

func (b *PolicyBuilder) AddMethodARN(effect Effect, resourceARN string) *PolicyBuilder {
	b.policy.Statement = append(b.policy.Statement, Statement{
		Action:   []string{InvokeAction},
		Effect:   effect,
		Resource: []string{resourceARN},
	})
	return b
}

func (b *PolicyBuilder) AddMethod(effect Effect, method Method, resource string) *PolicyBuilder {
	return b.AddMethodARN(effect, FormatMethodARN(b.region, b.accountID, b.apiID, b.stage, method, resource))
}

func (b *PolicyBuilder) AllowAllMethods() *PolicyBuilder {
	return b.AddMethod(EffectAllow, MethodAll, "*")
}

func (b *PolicyBuilder) DenyAllMethods() *PolicyBuilder {
	return b.AddMethod(EffectDeny, MethodAll, "*")
}

func (b *PolicyBuilder) AllowMethod(method Method, resource string) *PolicyBuilder {
	return b.AddMethod(EffectAllow, method, resource)
}

func (b *PolicyBuilder) DenyMethod(method Method, resource string) *PolicyBuilder {
	return b.AddMethod(EffectDeny, method, resource)
}

func (b *PolicyBuilder) Build() PolicyDocument {
	return b.policy
}

// matchResource matches an ARN against a pattern where '*' spans any run of
// characters, slashes included.
func matchResource(pattern, resource string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == resource
	}

	segments := strings.Split(pattern, "*")
	if !strings.HasPrefix(resource, segments[0]) {
		return false
	}
	rest := resource[len(segments[0]):]
	last := len(segments) - 1
	for _, seg := range segments[1:last] {
		idx := strings.Index(rest, seg)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(seg):]
	}
	return strings.HasSuffix(rest, segments[last])
}
