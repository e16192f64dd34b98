package services

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/callsync/internal/models"
	"github.com/desertthunder/callsync/internal/shared"
)

// Endpoint names one upstream API operation.
type Endpoint string

const (
	EndpointEmployees       Endpoint = "employees"
	EndpointSummary         Endpoint = "summary"
	EndpointCallLogs        Endpoint = "call-logs"
	EndpointEmployeeSummary Endpoint = "employee-summary"
	EndpointAnalysis        Endpoint = "analysis"
	EndpointUniqueClients   Endpoint = "unique-clients"
	EndpointHourly          Endpoint = "hourly"
	EndpointDaywise         Endpoint = "daywise"
)

// AuthScheme selects how a request is authenticated.
type AuthScheme int

const (
	// AuthAPIKey sends the api key in the spi-key header together with the company header.
	AuthAPIKey AuthScheme = iota
	// AuthBearer sends the api key as a bearer token.
	AuthBearer
)

type endpointDef struct {
	method string
	path   func(s *models.SettingsEntry) string
	auth   AuthScheme
	kind   models.RecordKind
}

func fixedPath(p string) func(*models.SettingsEntry) string {
	return func(*models.SettingsEntry) string { return p }
}

var catalog = map[Endpoint]endpointDef{
	EndpointEmployees: {
		method: http.MethodGet,
		path:   func(s *models.SettingsEntry) string { return s.EmployeePath() },
		auth:   AuthAPIKey,
		kind:   models.KindEmployee,
	},
	EndpointSummary: {
		method: http.MethodPost,
		path:   func(s *models.SettingsEntry) string { return s.CallLogPath() + "/summary_report" },
		auth:   AuthAPIKey,
	},
	EndpointCallLogs:        {http.MethodPost, fixedPath("call-log/history"), AuthBearer, models.KindCallLog},
	EndpointEmployeeSummary: {http.MethodPost, fixedPath("call-log/employee-summary"), AuthBearer, models.KindEmployeeSummary},
	EndpointAnalysis:        {http.MethodPost, fixedPath("call-log/analysis"), AuthBearer, models.KindAnalysis},
	EndpointUniqueClients:   {http.MethodPost, fixedPath("call-log/unique-client"), AuthBearer, models.KindUniqueClient},
	EndpointHourly:          {http.MethodPost, fixedPath("call-log/hourly-analytics"), AuthBearer, models.KindHourly},
	EndpointDaywise:         {http.MethodPost, fixedPath("call-log/daywise-analysis"), AuthBearer, models.KindDaywise},
}

// Endpoints lists every endpoint in a stable order.
func Endpoints() []Endpoint {
	return []Endpoint{
		EndpointEmployees, EndpointCallLogs, EndpointEmployeeSummary, EndpointAnalysis,
		EndpointUniqueClients, EndpointHourly, EndpointDaywise, EndpointSummary,
	}
}

// ReportEndpoints lists the bearer-authenticated call-log report endpoints.
func ReportEndpoints() []Endpoint {
	var out []Endpoint
	for _, e := range Endpoints() {
		if catalog[e].auth == AuthBearer {
			out = append(out, e)
		}
	}
	return out
}

// ParseEndpoint accepts an endpoint name; underscores are read as dashes.
func ParseEndpoint(name string) (Endpoint, error) {
	e := Endpoint(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-"))
	if _, ok := catalog[e]; !ok {
		return "", fmt.Errorf("%w: unknown report %q", shared.ErrInvalidArgument, name)
	}
	return e, nil
}

// Kind returns the record kind the endpoint yields, or "" for the summary passthrough.
func (e Endpoint) Kind() models.RecordKind {
	return catalog[e].kind
}

// Auth returns the endpoint's authentication scheme.
func (e Endpoint) Auth() AuthScheme {
	return catalog[e].auth
}

// URL resolves the endpoint against the settings' domain_api.
func (e Endpoint) URL(s *models.SettingsEntry) string {
	def := catalog[e]
	return joinURL(s.DomainAPI(), def.path(s))
}

func (e Endpoint) String() string {
	return string(e)
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
