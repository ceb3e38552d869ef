// Package endpoint maps Garmin Connect resources to concrete request URLs.
//
// A Resolver is bound to one Garmin domain (garmin.com for the global service,
// garmin.cn for the China region) and performs no I/O.
package endpoint

import (
	"fmt"
	"net/url"
	"strings"
)

// Domain identifies a Garmin Connect deployment.
type Domain string

const (
	DomainGlobal Domain = "garmin.com"
	DomainChina  Domain = "garmin.cn"
)

// DefaultDomain is used when no domain is configured.
const DefaultDomain = DomainGlobal

// Resource names a logical API resource.
type Resource string

const (
	UserSettings   Resource = "user_settings"
	UserProfile    Resource = "user_profile"
	Activities     Resource = "activities"
	Activity       Resource = "activity"
	StatActivities Resource = "stat_activities"
	DownloadZip    Resource = "download_zip"
	DownloadGPX    Resource = "download_gpx"
	DownloadTCX    Resource = "download_tcx"
	DownloadKML    Resource = "download_kml"
	Workouts       Resource = "workouts"
	Workout        Resource = "workout"
)

// resourcePaths are relative to the connectapi host. Resources taking an id
// have it appended as the final path segment.
var resourcePaths = map[Resource]string{
	UserSettings:   "/userprofile-service/userprofile/user-settings/",
	UserProfile:    "/userprofile-service/socialProfile",
	Activities:     "/activitylist-service/activities/search/activities",
	Activity:       "/activity-service/activity/",
	StatActivities: "/fitnessstats-service/activity",
	DownloadZip:    "/download-service/files/activity/",
	DownloadGPX:    "/download-service/export/gpx/activity/",
	DownloadTCX:    "/download-service/export/tcx/activity/",
	DownloadKML:    "/download-service/export/kml/activity/",
	Workouts:       "/workout-service/workouts",
	Workout:        "/workout-service/workout/",
}

// ParseDomain validates a configured domain. Empty input yields DefaultDomain.
func ParseDomain(s string) (Domain, error) {
	switch d := Domain(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DefaultDomain, nil
	case DomainGlobal, DomainChina:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported domain: %s", s)
	}
}

// Resolver builds request targets for a single domain.
type Resolver struct {
	domain Domain
}

// NewResolver creates a Resolver for domain, falling back to DefaultDomain.
func NewResolver(domain Domain) *Resolver {
	if domain == "" {
		domain = DefaultDomain
	}
	return &Resolver{domain: domain}
}

// Domain returns the domain the resolver is bound to.
func (r *Resolver) Domain() Domain {
	return r.domain
}

// API returns the base URL of the data API host.
func (r *Resolver) API() string {
	return "https://connectapi." + string(r.domain)
}

// Modern returns the web application URL used as the SSO service target.
func (r *Resolver) Modern() string {
	return "https://connect." + string(r.domain) + "/modern"
}

// SSOOrigin returns the origin of the SSO host.
func (r *Resolver) SSOOrigin() string {
	return "https://sso." + string(r.domain)
}

// SSOEmbed returns the embedded SSO widget URL.
func (r *Resolver) SSOEmbed() string {
	return r.SSOOrigin() + "/sso/embed"
}

// SignIn returns the SSO sign-in form URL.
func (r *Resolver) SignIn() string {
	return r.SSOOrigin() + "/sso/signin"
}

// OAuth returns the base URL of the OAuth service.
func (r *Resolver) OAuth() string {
	return r.API() + "/oauth-service/oauth"
}

// Preauthorized returns the URL exchanging an SSO ticket for an OAuth1 token.
func (r *Resolver) Preauthorized() string {
	return r.OAuth() + "/preauthorized"
}

// Exchange returns the URL exchanging an OAuth1 token for an OAuth2 token.
func (r *Resolver) Exchange() string {
	return r.OAuth() + "/exchange/user/2.0"
}

// URL resolves a resource without an id.
func (r *Resolver) URL(res Resource) (string, error) {
	path, ok := resourcePaths[res]
	if !ok {
		return "", fmt.Errorf("unknown resource: %s", res)
	}
	return r.API() + path, nil
}

// URLWithID resolves a resource and appends id as a path segment.
func (r *Resolver) URLWithID(res Resource, id string) (string, error) {
	base, err := r.URL(res)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(base, "/") + "/" + url.PathEscape(id), nil
}

// Resolve turns a caller supplied target into an absolute URL. Absolute
// targets are returned unchanged, anything else is joined to the API host.
func (r *Resolver) Resolve(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", fmt.Errorf("empty target")
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target %q: %w", target, err)
	}
	if u.IsAbs() {
		return target, nil
	}
	return r.API() + "/" + strings.TrimPrefix(target, "/"), nil
}
