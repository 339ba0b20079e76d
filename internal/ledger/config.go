package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"boledger/internal/backoffice"
	"boledger/internal/components/chrono"
	"boledger/internal/components/telemetry"
	"boledger/internal/configutil"
	"boledger/internal/projector"
)

const (
	DefaultSchedule = "30 6 * * *"

	defaultPlayerTab      = "*Daily_Data (Player)"
	defaultSocialMediaTab = "*Daily_Data (SocialMedia)"
)

type LoginConfig struct {
	Page   string `json:"page"`
	Submit string `json:"submit"`
}

type ReportEndpointConfig struct {
	URL string `json:"url"`
	// Login overrides the brand's login pair for this report.
	Login *LoginConfig `json:"login,omitempty"`
}

type BrandConfig struct {
	Login LoginConfig `json:"login"`
	// Reports is keyed by report type name ("Affiliates", "SocialMedia").
	Reports map[string]ReportEndpointConfig `json:"reports"`
	// SourceRange is the A1 range of the brand's keyword column in the source sheet.
	SourceRange string `json:"source_range"`
	Cloudflare  bool   `json:"cloudflare"`
	UserAgent   string `json:"user_agent"`
}

type ReportConfig struct {
	// Projection names a built-in field map, Fields replaces it when set.
	Projection string            `json:"projection"`
	Fields     []projector.Field `json:"fields"`
	Tab        string            `json:"tab"`
	BatchSize  int               `json:"batch_size"`
	PageSize   int               `json:"page_size"`
}

type FetchConfig struct {
	MaxRetries        int     `json:"max_retries"`
	MaxPages          int     `json:"max_pages"`
	StallThreshold    int     `json:"stall_threshold"`
	StallMatch        string  `json:"stall_match"`
	CurrencyType      *int    `json:"currency_type"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	AuthTimeoutSecs   int     `json:"auth_timeout_seconds"`
	DataTimeoutSecs   int     `json:"data_timeout_seconds"`
}

type ScheduleConfig struct {
	Cron     string `json:"cron"`
	Timezone string `json:"timezone"`
}

type DebugConfig struct {
	// DumpDir receives one json file per fetch, empty disables dumps.
	DumpDir  string `json:"dump_dir"`
	Compress bool   `json:"compress"`
	// HttpDir receives every raw HTTP exchange, empty disables it.
	HttpDir string `json:"http_dir"`
}

type Config struct {
	Brands    map[string]BrandConfig  `json:"brands"`
	Reports   map[string]ReportConfig `json:"reports"`
	Fetch     FetchConfig             `json:"fetch"`
	Schedule  ScheduleConfig          `json:"schedule"`
	Telemetry telemetry.Config        `json:"telemetry"`
	Debug     DebugConfig             `json:"debug"`
}

// ReadConfig loads `path` with its local overrides, fills defaults and validates.
func ReadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg = cfg.WithDefaults()
	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultReport(report backoffice.ReportType) ReportConfig {
	switch report {
	case backoffice.SocialMedia:
		return ReportConfig{
			Projection: projector.SocialMedia.Name,
			Tab:        defaultSocialMediaTab,
			BatchSize:  backoffice.DefaultBatchSize,
			PageSize:   backoffice.DefaultPageSize,
		}
	default:
		return ReportConfig{
			Projection: projector.Player.Name,
			Tab:        defaultPlayerTab,
			BatchSize:  backoffice.DefaultBatchSize,
			PageSize:   backoffice.DefaultPageSize,
		}
	}
}

// WithDefaults fills every unset value, report entries are completed field by field.
func (c Config) WithDefaults() Config {
	reports := make(map[string]ReportConfig, len(backoffice.ReportTypes))
	for _, rt := range backoffice.ReportTypes {
		reports[rt.String()] = defaultReport(rt)
	}
	for name, rc := range c.Reports {
		rt, err := backoffice.ParseReportType(name)
		if err != nil {
			// kept as is so Validate can name it
			reports[name] = rc
			continue
		}
		def := defaultReport(rt)
		if rc.Projection == "" && len(rc.Fields) == 0 {
			rc.Projection = def.Projection
		}
		if rc.Tab == "" {
			rc.Tab = def.Tab
		}
		if rc.BatchSize <= 0 {
			rc.BatchSize = def.BatchSize
		}
		if rc.PageSize <= 0 {
			rc.PageSize = def.PageSize
		}
		reports[rt.String()] = rc
	}
	c.Reports = reports

	if c.Fetch.MaxRetries <= 0 {
		c.Fetch.MaxRetries = backoffice.DefaultMaxRetries
	}
	if c.Fetch.MaxPages <= 0 {
		c.Fetch.MaxPages = backoffice.DefaultMaxPages
	}
	if c.Fetch.StallThreshold <= 0 {
		c.Fetch.StallThreshold = backoffice.DefaultStallThreshold
	}
	if c.Fetch.StallMatch == "" {
		c.Fetch.StallMatch = backoffice.StallMatchContent.String()
	}
	if c.Fetch.CurrencyType == nil {
		all := backoffice.AllCurrencies
		c.Fetch.CurrencyType = &all
	}
	if c.Fetch.AuthTimeoutSecs <= 0 {
		c.Fetch.AuthTimeoutSecs = int(backoffice.DefaultAuthTimeout / time.Second)
	}
	if c.Fetch.DataTimeoutSecs <= 0 {
		c.Fetch.DataTimeoutSecs = int(backoffice.DefaultDataTimeout / time.Second)
	}

	if c.Schedule.Cron == "" {
		c.Schedule.Cron = DefaultSchedule
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "UTC"
	}
	return c
}

// Validate reports every problem of the config at once.
func (c Config) Validate() error {
	var errs []error
	if len(c.Brands) == 0 {
		errs = append(errs, fmt.Errorf("no brands configured"))
	}
	for name, bc := range c.Brands {
		if strings.TrimSpace(bc.SourceRange) == "" {
			errs = append(errs, fmt.Errorf("brands.%s.source_range is empty", name))
		}
		for report := range bc.Reports {
			_, err := backoffice.ParseReportType(report)
			if err != nil {
				errs = append(errs, fmt.Errorf("brands.%s.reports: %w", name, err))
			}
		}
	}
	_, err := c.Endpoints()
	if err != nil {
		errs = append(errs, err)
	}

	for name, rc := range c.Reports {
		_, err := backoffice.ParseReportType(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("reports: %w", err))
			continue
		}
		_, err = rc.fieldMap(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("reports.%s: %w", name, err))
		}
		if strings.TrimSpace(rc.Tab) == "" {
			errs = append(errs, fmt.Errorf("reports.%s.tab is empty", name))
		}
	}

	_, err = backoffice.ParseStallMatch(c.Fetch.StallMatch)
	if err != nil {
		errs = append(errs, fmt.Errorf("fetch.stall_match: %w", err))
	}
	if c.Fetch.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("fetch.requests_per_second must not be negative"))
	}

	clock, err := chrono.NewStandardImpl(c.Schedule.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("schedule.timezone: %w", err))
	} else {
		_, err = chrono.Next(c.Schedule.Cron, clock.Now())
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule.cron: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Endpoints converts the brand section into the back-office endpoint registry.
func (c Config) Endpoints() (backoffice.Endpoints, error) {
	brands := make(map[backoffice.Brand]backoffice.BrandEndpoints, len(c.Brands))
	for name, bc := range c.Brands {
		reports := make(map[backoffice.ReportType]backoffice.ReportEndpoint, len(bc.Reports))
		for reportName, rc := range bc.Reports {
			rt, err := backoffice.ParseReportType(reportName)
			if err != nil {
				continue
			}
			endpoint := backoffice.ReportEndpoint{URL: rc.URL}
			if rc.Login != nil {
				endpoint.Login = &backoffice.LoginEndpoints{Page: rc.Login.Page, Submit: rc.Login.Submit}
			}
			reports[rt] = endpoint
		}
		brands[backoffice.Brand(name)] = backoffice.BrandEndpoints{
			Login:   backoffice.LoginEndpoints{Page: bc.Login.Page, Submit: bc.Login.Submit},
			Reports: reports,
		}
	}
	return backoffice.NewEndpoints(brands)
}

// FetchOptions converts the fetch section, call it on a config that passed Validate.
func (c Config) FetchOptions() backoffice.FetchOptions {
	opts := backoffice.DefaultFetchOptions()
	opts.MaxRetries = c.Fetch.MaxRetries
	opts.MaxPages = c.Fetch.MaxPages
	opts.StallThreshold = c.Fetch.StallThreshold
	opts.StallMatch, _ = backoffice.ParseStallMatch(c.Fetch.StallMatch)
	if c.Fetch.CurrencyType != nil {
		opts.CurrencyType = *c.Fetch.CurrencyType
	}
	opts.DataTimeout = time.Duration(c.Fetch.DataTimeoutSecs) * time.Second
	return opts
}

// ReportPlan is a report section resolved against its field map.
type ReportPlan struct {
	Type      backoffice.ReportType
	Fields    projector.FieldMap
	Tab       string
	BatchSize int
	PageSize  int
}

func (rc ReportConfig) fieldMap(name string) (projector.FieldMap, error) {
	if len(rc.Fields) > 0 {
		m := projector.FieldMap{Name: name, Fields: rc.Fields}
		return m, m.Validate()
	}
	return projector.Lookup(rc.Projection)
}

func (c Config) Plan(report backoffice.ReportType) (ReportPlan, error) {
	rc, ok := c.Reports[report.String()]
	if !ok {
		rc = defaultReport(report)
	}
	fields, err := rc.fieldMap(report.String())
	if err != nil {
		return ReportPlan{}, err
	}
	return ReportPlan{
		Type:      report,
		Fields:    fields,
		Tab:       rc.Tab,
		BatchSize: rc.BatchSize,
		PageSize:  rc.PageSize,
	}, nil
}
