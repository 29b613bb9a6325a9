package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Environment string
	HTTPAddr    string

	AirtableAPIKey     string
	AirtableBaseID     string
	AirtableBaseURL    string
	AirtableTimeoutSec int
	TrafficTable       string
	ProjectsTable      string
	ClientsTable       string
	UpdatesTable       string
	MeetingsTable      string

	AnthropicAPIKey     string
	AnthropicBaseURL    string
	AnthropicModel      string
	AnthropicTimeoutSec int
	MaxToolRounds       int

	TrafficPromptFile string
	HubPromptFile     string

	SelfSenderEmail  string
	AllowedDomain    string
	ClientCodesCSV   string
	PostmanURL       string
	HubURL           string
	LogoURL          string
	WorkerTimeoutSec int
	MailTimeoutSec   int

	SessionBackend    string // memory | sqlite
	SessionDBPath     string
	SessionTimeoutSec int
	SessionMaxTurns   int

	PendingTTLDays  int
	JanitorSchedule string

	IMAPHost          string
	IMAPPort          int
	IMAPUsername      string
	IMAPPassword      string
	IMAPMailbox       string
	IMAPPollSeconds   int
	IMAPTLSSkipVerify bool
}

func FromEnv() Config {
	return Config{
		Environment: stringOrDefault("DOT_TRAFFIC_ENV", "development"),
		HTTPAddr:    stringOrDefault("DOT_TRAFFIC_HTTP_ADDR", ":8080"),

		AirtableAPIKey:     strings.TrimSpace(os.Getenv("AIRTABLE_API_KEY")),
		AirtableBaseID:     stringOrDefault("AIRTABLE_BASE_ID", "app8CI7NAZqhQ4G1Y"),
		AirtableBaseURL:    stringOrDefault("AIRTABLE_BASE_URL", "https://api.airtable.com/v0"),
		AirtableTimeoutSec: intOrDefault("DOT_TRAFFIC_AIRTABLE_TIMEOUT_SECONDS", 10),
		TrafficTable:       stringOrDefault("DOT_TRAFFIC_TRAFFIC_TABLE", "Traffic"),
		ProjectsTable:      stringOrDefault("DOT_TRAFFIC_PROJECTS_TABLE", "Projects"),
		ClientsTable:       stringOrDefault("DOT_TRAFFIC_CLIENTS_TABLE", "Clients"),
		UpdatesTable:       stringOrDefault("DOT_TRAFFIC_UPDATES_TABLE", "Updates"),
		MeetingsTable:      stringOrDefault("DOT_TRAFFIC_MEETINGS_TABLE", "Meetings"),

		AnthropicAPIKey:     strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		AnthropicBaseURL:    stringOrDefault("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),
		AnthropicModel:      stringOrDefault("DOT_TRAFFIC_MODEL", "claude-sonnet-4-20250514"),
		AnthropicTimeoutSec: intOrDefault("DOT_TRAFFIC_LLM_TIMEOUT_SECONDS", 60),
		MaxToolRounds:       intOrDefault("DOT_TRAFFIC_MAX_TOOL_ROUNDS", 5),

		TrafficPromptFile: stringOrDefault("DOT_TRAFFIC_PROMPT_FILE", "prompt_unified.txt"),
		HubPromptFile:     stringOrDefault("DOT_TRAFFIC_HUB_PROMPT_FILE", "prompt_hub.txt"),

		SelfSenderEmail:  stringOrDefault("DOT_TRAFFIC_SELF_SENDER", "dot@hunch.co.nz"),
		AllowedDomain:    stringOrDefault("DOT_TRAFFIC_ALLOWED_DOMAIN", "hunch.co.nz"),
		ClientCodesCSV:   stringOrDefault("DOT_TRAFFIC_CLIENT_CODES", "ONE,ONS,ONB,SKY,TOW,FIS,FST,WKA,HUN,LAB,EON,OTH"),
		PostmanURL:       strings.TrimSpace(os.Getenv("PA_POSTMAN_URL")),
		HubURL:           stringOrDefault("DOT_TRAFFIC_HUB_URL", "https://dot.hunch.co.nz"),
		LogoURL:          stringOrDefault("DOT_TRAFFIC_LOGO_URL", "https://raw.githubusercontent.com/MGhunch/dot-hub/main/images/ai2-logo.png"),
		WorkerTimeoutSec: intOrDefault("DOT_TRAFFIC_WORKER_TIMEOUT_SECONDS", 30),
		MailTimeoutSec:   intOrDefault("DOT_TRAFFIC_MAIL_TIMEOUT_SECONDS", 30),

		SessionBackend:    stringOrDefault("DOT_TRAFFIC_SESSION_BACKEND", "memory"),
		SessionDBPath:     stringOrDefault("DOT_TRAFFIC_SESSION_DB_PATH", "/data/dot-traffic/sessions.sqlite"),
		SessionTimeoutSec: intOrDefault("DOT_TRAFFIC_SESSION_TIMEOUT_SECONDS", 30*60),
		SessionMaxTurns:   intOrDefault("DOT_TRAFFIC_SESSION_MAX_TURNS", 20),

		PendingTTLDays:  intOrDefault("DOT_TRAFFIC_PENDING_TTL_DAYS", 7),
		JanitorSchedule: stringOrDefault("DOT_TRAFFIC_JANITOR_SCHEDULE", "@every 1h"),

		IMAPHost:          strings.TrimSpace(os.Getenv("DOT_TRAFFIC_IMAP_HOST")),
		IMAPPort:          intOrDefault("DOT_TRAFFIC_IMAP_PORT", 993),
		IMAPUsername:      strings.TrimSpace(os.Getenv("DOT_TRAFFIC_IMAP_USERNAME")),
		IMAPPassword:      os.Getenv("DOT_TRAFFIC_IMAP_PASSWORD"),
		IMAPMailbox:       stringOrDefault("DOT_TRAFFIC_IMAP_MAILBOX", "INBOX"),
		IMAPPollSeconds:   intOrDefault("DOT_TRAFFIC_IMAP_POLL_SECONDS", 60),
		IMAPTLSSkipVerify: boolOrDefault("DOT_TRAFFIC_IMAP_TLS_SKIP_VERIFY", false),
	}
}

// ClientCodes returns the allow-listed client codes, upper-cased and trimmed.
func (c Config) ClientCodes() []string {
	parts := strings.Split(c.ClientCodesCSV, ",")
	codes := make([]string, 0, len(parts))
	for _, part := range parts {
		code := strings.ToUpper(strings.TrimSpace(part))
		if code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

func stringOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func boolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
