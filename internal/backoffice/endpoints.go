package backoffice

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Brand identifies one vendor portal, each brand lives on its own domain with its own login.
type Brand string

// LoginEndpoints are the two URLs of the login handshake.
type LoginEndpoints struct {
	Page   string
	Submit string
}

// ReportEndpoint is where a report is queried, a report may require its own login pair.
type ReportEndpoint struct {
	URL   string
	Login *LoginEndpoints
}

// BrandEndpoints is the endpoint configuration of a single brand.
type BrandEndpoints struct {
	Login   LoginEndpoints
	Reports map[ReportType]ReportEndpoint
}

// EndpointSet is everything needed to authenticate for and query one report of one brand.
type EndpointSet struct {
	LoginPage   string
	LoginSubmit string
	Report      string
}

// Endpoints is the brand -> endpoint registry, it is immutable after construction.
type Endpoints struct {
	brands map[Brand]BrandEndpoints
}

func validateURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is empty", field)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s: %q is not an http(s) url", field, raw)
	}
	return nil
}

func (l LoginEndpoints) validate(prefix string) []error {
	var errs []error
	if err := validateURL(prefix+".page", l.Page); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL(prefix+".submit", l.Submit); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// NewEndpoints validates every brand entry up front so an incomplete brand is
// rejected at startup rather than half way through a run.
func NewEndpoints(brands map[Brand]BrandEndpoints) (Endpoints, error) {
	var errs []error
	copied := make(map[Brand]BrandEndpoints, len(brands))
	for brand, cfg := range brands {
		if strings.TrimSpace(string(brand)) == "" {
			errs = append(errs, fmt.Errorf("brand with empty name"))
			continue
		}
		prefix := fmt.Sprintf("brands.%s", brand)
		if len(cfg.Reports) == 0 {
			errs = append(errs, fmt.Errorf("%s: no reports configured", prefix))
		}
		for report, endpoint := range cfg.Reports {
			reportPrefix := fmt.Sprintf("%s.reports.%s", prefix, report)
			if err := validateURL(reportPrefix+".url", endpoint.URL); err != nil {
				errs = append(errs, err)
			}
			if endpoint.Login != nil {
				errs = append(errs, endpoint.Login.validate(reportPrefix+".login")...)
			} else {
				errs = append(errs, cfg.Login.validate(prefix+".login")...)
			}
		}

		reports := make(map[ReportType]ReportEndpoint, len(cfg.Reports))
		for k, v := range cfg.Reports {
			reports[k] = v
		}
		copied[brand] = BrandEndpoints{Login: cfg.Login, Reports: reports}
	}
	if len(errs) > 0 {
		return Endpoints{}, errors.Join(errs...)
	}
	return Endpoints{brands: copied}, nil
}

// Brands returns the configured brands sorted by name.
func (e Endpoints) Brands() []Brand {
	out := make([]Brand, 0, len(e.brands))
	for b := range e.brands {
		out = append(out, b)
	}
	slices.Sort(out)
	return out
}

// Reports returns the report types configured for a brand in run order.
func (e Endpoints) Reports(brand Brand) []ReportType {
	cfg, ok := e.brands[brand]
	if !ok {
		return nil
	}
	var out []ReportType
	for _, r := range ReportTypes {
		if _, ok := cfg.Reports[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Lookup resolves the endpoint set of a brand's report, a missing brand or report is a
// configuration error.
func (e Endpoints) Lookup(brand Brand, report ReportType) (EndpointSet, error) {
	cfg, ok := e.brands[brand]
	if !ok {
		return EndpointSet{}, &Error{
			Kind:   KindConfiguration,
			Brand:  brand,
			Report: report,
			Err:    fmt.Errorf("brand is not configured"),
		}
	}
	endpoint, ok := cfg.Reports[report]
	if !ok {
		return EndpointSet{}, &Error{
			Kind:   KindConfiguration,
			Brand:  brand,
			Report: report,
			Err:    fmt.Errorf("report is not configured for brand"),
		}
	}
	login := cfg.Login
	if endpoint.Login != nil {
		login = *endpoint.Login
	}
	return EndpointSet{
		LoginPage:   login.Page,
		LoginSubmit: login.Submit,
		Report:      endpoint.URL,
	}, nil
}
