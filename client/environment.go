package client

import (
	"fmt"
	"net/url"
)

// Named deployments the client can connect to.
const (
	Production  = "Production"
	Development = "Development"
	Staging     = "Staging"
)

// Environment binds a deployment name to its API base URL and its
// device-data upload base URL (a distinct host).
type Environment struct {
	Name          string
	APIBaseURL    *url.URL
	UploadBaseURL *url.URL
}

var environments = map[string]Environment{
	Production:  mustEnv(Production, "https://api.tidepool.org", "https://uploads.tidepool.org"),
	Development: mustEnv(Development, "https://dev-api.tidepool.org", "https://dev-uploads.tidepool.org"),
	Staging:     mustEnv(Staging, "https://stg-api.tidepool.org", "https://stg-uploads.tidepool.org"),
}

// ResolveEnvironment maps a deployment name to its URLs. Pure lookup; the
// name must be one of Production, Development or Staging.
func ResolveEnvironment(name string) (Environment, error) {
	env, ok := environments[name]
	if !ok {
		return Environment{}, fmt.Errorf("%w: %q", ErrUnknownEnvironment, name)
	}
	return env, nil
}

func mustEnv(name, api, upload string) Environment {
	a, err := url.Parse(api)
	if err != nil {
		panic(err)
	}
	u, err := url.Parse(upload)
	if err != nil {
		panic(err)
	}
	return Environment{Name: name, APIBaseURL: a, UploadBaseURL: u}
}

// apiURL joins a path (and optional raw query) onto the environment's API
// base URL.
func (e Environment) apiURL(path, rawQuery string) string {
	u := *e.APIBaseURL
	u.Path = path
	u.RawQuery = rawQuery
	return u.String()
}

// uploadURL joins a path onto the environment's upload base URL.
func (e Environment) uploadURL(path string) string {
	u := *e.UploadBaseURL
	u.Path = path
	return u.String()
}
