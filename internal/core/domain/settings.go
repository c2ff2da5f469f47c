package domain

// AIProvider identifies the AI/embedding provider
type AIProvider string

const (
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAzure     AIProvider = "azure"
	AIProviderAnthropic AIProvider = "anthropic"
	AIProviderOllama    AIProvider = "ollama"
	AIProviderLocal     AIProvider = "local" // Offline deterministic adapters
)

// EmbeddingSettings configures the embedding service
type EmbeddingSettings struct {
	Provider   AIProvider `json:"provider"`
	Model      string     `json:"model"`
	Dimensions int        `json:"dimensions"`
	APIKey     string     `json:"-"` // Never serialize to JSON
	BaseURL    string     `json:"base_url,omitempty"`
	APIVersion string     `json:"api_version,omitempty"` // Azure only
}

// IsConfigured returns true if embedding settings are properly configured
func (e *EmbeddingSettings) IsConfigured() bool {
	if e.Provider == "" {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	if e.Provider == AIProviderAzure && e.BaseURL == "" {
		return false
	}
	return true
}

// LLMSettings configures the bias assessor and content rewriter
type LLMSettings struct {
	Provider          AIProvider `json:"provider"`
	Model             string     `json:"model"`
	APIKey            string     `json:"-"` // Never serialize to JSON
	BaseURL           string     `json:"base_url,omitempty"`
	APIVersion        string     `json:"api_version,omitempty"`
	RequestsPerMinute int        `json:"requests_per_minute"`
}

// IsConfigured returns true if LLM settings are properly configured
func (l *LLMSettings) IsConfigured() bool {
	if l.Provider == "" {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	if l.Provider == AIProviderAzure && l.BaseURL == "" {
		return false
	}
	return true
}

// RequiresAPIKey returns true if this provider requires an API key
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOllama, AIProviderLocal:
		return false // Self-hosted or offline, no API key needed
	default:
		return true
	}
}

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderAzure, AIProviderAnthropic, AIProviderOllama, AIProviderLocal:
		return true
	default:
		return false
	}
}
