package backoffice

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEndpoints(t *testing.T) {
	affiliateLogin := &LoginEndpoints{Page: "https://aff.brandx.example/login", Submit: "https://aff.brandx.example/login/submit"}
	endpoints, err := NewEndpoints(map[Brand]BrandEndpoints{
		"brandx": {
			Login: LoginEndpoints{Page: "https://bo.brandx.example/login", Submit: "https://bo.brandx.example/login/submit"},
			Reports: map[ReportType]ReportEndpoint{
				Affiliates:  {URL: "https://aff.brandx.example/report/players", Login: affiliateLogin},
				SocialMedia: {URL: "https://bo.brandx.example/report/affiliates"},
			},
		},
		"alpha": {
			Login:   LoginEndpoints{Page: "http://alpha.example/login", Submit: "http://alpha.example/submit"},
			Reports: map[ReportType]ReportEndpoint{SocialMedia: {URL: "http://alpha.example/report"}},
		},
	})
	require.NoError(t, err)

	require.Equal(t, []Brand{"alpha", "brandx"}, endpoints.Brands())
	require.Equal(t, []ReportType{Affiliates, SocialMedia}, endpoints.Reports("brandx"))
	require.Equal(t, []ReportType{SocialMedia}, endpoints.Reports("alpha"))
	require.Nil(t, endpoints.Reports("nope"))

	set, err := endpoints.Lookup("brandx", Affiliates)
	require.NoError(t, err)
	require.Equal(t, EndpointSet{
		LoginPage:   affiliateLogin.Page,
		LoginSubmit: affiliateLogin.Submit,
		Report:      "https://aff.brandx.example/report/players",
	}, set)

	set, err = endpoints.Lookup("brandx", SocialMedia)
	require.NoError(t, err)
	require.Equal(t, "https://bo.brandx.example/login", set.LoginPage)

	_, err = endpoints.Lookup("alpha", Affiliates)
	require.True(t, IsKind(err, KindConfiguration))
	_, err = endpoints.Lookup("brandz", SocialMedia)
	require.True(t, IsKind(err, KindConfiguration))
	require.Contains(t, err.Error(), "brand=brandz")
}

func TestNewEndpointsValidation(t *testing.T) {
	_, err := NewEndpoints(map[Brand]BrandEndpoints{
		"broken": {
			Reports: map[ReportType]ReportEndpoint{Affiliates: {URL: "ftp://broken.example/report"}},
		},
		"empty": {},
	})
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "brands.broken.reports.Affiliates.url")
	require.Contains(t, msg, "brands.broken.login.page is empty")
	require.Contains(t, msg, "brands.empty: no reports configured")
}

func TestReportType(t *testing.T) {
	for _, name := range []string{"Affiliates", "affiliates", " SOCIALMEDIA "} {
		_, err := ParseReportType(name)
		require.NoError(t, err, name)
	}
	_, err := ParseReportType("Players")
	require.Error(t, err)

	var r ReportType
	require.NoError(t, r.UnmarshalText([]byte("socialmedia")))
	require.Equal(t, SocialMedia, r)
	text, err := Affiliates.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "Affiliates", string(text))
}

func TestErrorKinds(t *testing.T) {
	inner := errors.New("connection reset")
	err := fmt.Errorf("fetch: %w", &Error{Kind: KindTimeout, Brand: "brandx", Page: 2, Err: inner})

	require.Equal(t, KindTimeout, KindOf(err))
	require.True(t, IsKind(err, KindTimeout))
	require.False(t, IsKind(err, KindStall))
	require.False(t, IsKind(nil, KindTimeout))
	require.ErrorIs(t, err, inner)
	require.Equal(t, Kind(0), KindOf(inner))
	require.Equal(t, "fetch: backoffice: timeout brand=brandx page=2: connection reset", err.Error())
}
