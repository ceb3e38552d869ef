package endpoint

import (
	"testing"
)

func TestParseDomain(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Domain
		wantErr bool
	}{
		{name: "empty defaults to global", input: "", want: DomainGlobal},
		{name: "global", input: "garmin.com", want: DomainGlobal},
		{name: "china mixed case", input: " Garmin.CN ", want: DomainChina},
		{name: "unknown", input: "example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDomain(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolverURLs(t *testing.T) {
	r := NewResolver(DomainChina)

	tests := []struct {
		name string
		got  func() (string, error)
		want string
	}{
		{
			name: "user settings",
			got:  func() (string, error) { return r.URL(UserSettings) },
			want: "https://connectapi.garmin.cn/userprofile-service/userprofile/user-settings/",
		},
		{
			name: "activity with id",
			got:  func() (string, error) { return r.URLWithID(Activity, "12345") },
			want: "https://connectapi.garmin.cn/activity-service/activity/12345",
		},
		{
			name: "workout id is escaped",
			got:  func() (string, error) { return r.URLWithID(Workout, "a/b") },
			want: "https://connectapi.garmin.cn/workout-service/workout/a%2Fb",
		},
		{
			name: "zip download",
			got:  func() (string, error) { return r.URLWithID(DownloadZip, "7") },
			want: "https://connectapi.garmin.cn/download-service/files/activity/7",
		},
		{
			name: "relative target",
			got:  func() (string, error) { return r.Resolve("/device-service/deviceregistration/devices") },
			want: "https://connectapi.garmin.cn/device-service/deviceregistration/devices",
		},
		{
			name: "absolute target unchanged",
			got:  func() (string, error) { return r.Resolve("https://connect.garmin.cn/modern/x") },
			want: "https://connect.garmin.cn/modern/x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.got()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolverErrors(t *testing.T) {
	r := NewResolver("")
	if r.Domain() != DefaultDomain {
		t.Errorf("expected default domain, got %q", r.Domain())
	}
	if _, err := r.URL(Resource("nope")); err == nil {
		t.Error("expected error for unknown resource")
	}
	if _, err := r.Resolve("   "); err == nil {
		t.Error("expected error for empty target")
	}
}

func TestResolverSSO(t *testing.T) {
	r := NewResolver(DomainGlobal)
	if got := r.SignIn(); got != "https://sso.garmin.com/sso/signin" {
		t.Errorf("signin: %s", got)
	}
	if got := r.Exchange(); got != "https://connectapi.garmin.com/oauth-service/oauth/exchange/user/2.0" {
		t.Errorf("exchange: %s", got)
	}
	if got := r.Modern(); got != "https://connect.garmin.com/modern" {
		t.Errorf("modern: %s", got)
	}
}
