package checker

import (
	"fmt"
	"sort"
	"strings"
)

// Environment names accepted by ResolveEndpoint.
const (
	EnvProduction = "production"
	EnvSandbox    = "sandbox"
)

// Endpoints maps an environment to the GST registration search URL.
var Endpoints = map[string]string{
	EnvProduction: "https://apiservices.iras.gov.sg/iras/prod/GSTListing/SearchGSTRegistered",
	EnvSandbox:    "https://apisandbox.iras.gov.sg/iras/sb/GSTListing/SearchGSTRegistered",
}

// ResolveEndpoint returns the search URL for env. Matching ignores case and
// surrounding whitespace.
func ResolveEndpoint(env string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(env))
	if endpoint, ok := Endpoints[key]; ok {
		return endpoint, nil
	}
	return "", fmt.Errorf("unknown environment %q (expected one of %s)", env, strings.Join(Environments(), ", "))
}

// Environments lists the known environment names in sorted order.
func Environments() []string {
	names := make([]string, 0, len(Endpoints))
	for name := range Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
