package policyopa

import "github.com/open-policy-agent/opa/ast"

// allowedBuiltins are pure functions only: no clock, network or randomness.
var allowedBuiltins = map[string]struct{}{
	"abs":               {},
	"and":               {},
	"array.concat":      {},
	"assign":            {},
	"ceil":              {},
	"concat":            {},
	"contains":          {},
	"count":             {},
	"endswith":          {},
	"eq":                {},
	"equal":             {},
	"floor":             {},
	"format_int":        {},
	"internal.member_2": {},
	"gt":                {},
	"gte":               {},
	"lower":             {},
	"lt":                {},
	"lte":               {},
	"max":               {},
	"min":               {},
	"neq":               {},
	"object.get":        {},
	"object.keys":       {},
	"or":                {},
	"regex.match":       {},
	"replace":           {},
	"sort":              {},
	"split":             {},
	"sprintf":           {},
	"startswith":        {},
	"substring":         {},
	"sum":               {},
	"trim":              {},
	"trim_space":        {},
	"upper":             {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(builtins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; ok {
			allowed = append(allowed, builtin)
		}
	}
	return allowed
}
