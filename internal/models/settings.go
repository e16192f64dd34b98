package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SettingsEntry is one company's Callyzer API configuration.
type SettingsEntry struct {
	id           string
	name         string
	company      string
	domainAPI    string
	employeePath string
	callLogPath  string
	apiKey       string
	active       bool
	createdAt    time.Time
	updatedAt    time.Time
}

// NewSettingsEntry creates an active [SettingsEntry]. The ID is assigned on insert.
func NewSettingsEntry(name, company, domainAPI, employeePath, callLogPath, apiKey string) *SettingsEntry {
	now := time.Now()
	return &SettingsEntry{
		name:         name,
		company:      company,
		domainAPI:    domainAPI,
		employeePath: employeePath,
		callLogPath:  callLogPath,
		apiKey:       apiKey,
		active:       true,
		createdAt:    now,
		updatedAt:    now,
	}
}

func (s *SettingsEntry) ID() string { return s.id }
func (s *SettingsEntry) Name() string { return s.name }
func (s *SettingsEntry) Company() string { return s.company }
func (s *SettingsEntry) DomainAPI() string { return s.domainAPI }
func (s *SettingsEntry) EmployeePath() string { return s.employeePath }
func (s *SettingsEntry) CallLogPath() string { return s.callLogPath }
func (s *SettingsEntry) APIKey() string { return s.apiKey }
func (s *SettingsEntry) Active() bool { return s.active }
func (s *SettingsEntry) CreatedAt() time.Time { return s.createdAt }
func (s *SettingsEntry) UpdatedAt() time.Time { return s.updatedAt }

func (s *SettingsEntry) SetID(id string) { s.id = id }
func (s *SettingsEntry) SetActive(active bool) { s.active = active }
func (s *SettingsEntry) SetAPIKey(key string) { s.apiKey = key }
func (s *SettingsEntry) SetCreatedAt(t time.Time) { s.createdAt = t }
func (s *SettingsEntry) SetUpdatedAt(t time.Time) { s.updatedAt = t }
func (s *SettingsEntry) SetEmployeePath(p string) { s.employeePath = p }
func (s *SettingsEntry) SetCallLogPath(p string) { s.callLogPath = p }
func (s *SettingsEntry) SetDomainAPI(domain string) { s.domainAPI = domain }

// Validate checks that the entry can build upstream requests.
func (s *SettingsEntry) Validate() error {
	if strings.TrimSpace(s.name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(s.company) == "" {
		return fmt.Errorf("company is required")
	}
	if s.domainAPI == "" {
		return fmt.Errorf("domain_api is required")
	}
	u, err := url.Parse(s.domainAPI)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("domain_api must be an absolute URL: %q", s.domainAPI)
	}
	return nil
}
