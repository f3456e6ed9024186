package providers

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ChamsBouzaiene/asimov/internal/engine"
)

// Options selects and configures a chat-completion provider.
type Options struct {
	Provider string // "openai" when empty
	APIKey   string // falls back to the provider's key variable
	BaseURL  string // falls back to the provider's default endpoint
}

// preset describes a provider reachable through one of the two SDK clients.
type preset struct {
	keyEnv      string
	baseURLEnv  string
	baseURL     string
	defaultKey  string // local servers accept any key
	anthropic   bool
	requiresKey bool
}

var presets = map[string]preset{
	"openai":    {keyEnv: "OPENAI_API_KEY", baseURLEnv: "OPENAI_BASE_URL", requiresKey: true},
	"anthropic": {keyEnv: "ANTHROPIC_API_KEY", baseURLEnv: "ANTHROPIC_BASE_URL", anthropic: true, requiresKey: true},
	// Kimi through BytePlus ModelArk.
	"kimi":     {keyEnv: "KIMI_API_KEY", baseURLEnv: "KIMI_BASE_URL", baseURL: "https://ark.ap-southeast.bytepluses.com/api/v3", requiresKey: true},
	"gemini":   {keyEnv: "GEMINI_API_KEY", baseURL: "https://generativelanguage.googleapis.com/v1beta/openai", requiresKey: true},
	"lmstudio": {keyEnv: "LMSTUDIO_API_KEY", baseURLEnv: "LMSTUDIO_BASE_URL", baseURL: "http://localhost:1234/v1", defaultKey: "lm-studio"},
	"ollama":   {keyEnv: "OLLAMA_API_KEY", baseURLEnv: "OLLAMA_BASE_URL", baseURL: "http://localhost:11434/v1", defaultKey: "ollama"},
	"glm":      {keyEnv: "GLM_API_KEY", baseURL: "https://open.bigmodel.cn/api/paas/v4", requiresKey: true},
	"minimax":  {keyEnv: "MINIMAX_API_KEY", baseURL: "https://api.minimax.chat/v1", requiresKey: true},
	"deepseek": {keyEnv: "DEEPSEEK_API_KEY", baseURL: "https://api.deepseek.com/v1", requiresKey: true},
	"groq":     {keyEnv: "GROQ_API_KEY", baseURL: "https://api.groq.com/openai/v1", requiresKey: true},
}

// Supported lists the provider names NewLLMClient accepts.
func Supported() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// APIKeyEnv returns the environment variable holding the provider's key.
func APIKeyEnv(provider string) string {
	return presets[normalize(provider)].keyEnv
}

// NewLLMClient creates an engine.LLMClient for the selected provider.
func NewLLMClient(opts Options) (engine.LLMClient, error) {
	name := normalize(opts.Provider)
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: %s)", opts.Provider, strings.Join(Supported(), ", "))
	}

	apiKey := opts.APIKey
	if apiKey == "" && p.keyEnv != "" {
		apiKey = os.Getenv(p.keyEnv)
	}
	if apiKey == "" {
		apiKey = p.defaultKey
	}
	if apiKey == "" && p.requiresKey {
		return nil, fmt.Errorf("%s not set", p.keyEnv)
	}

	baseURL := opts.BaseURL
	if baseURL == "" && p.baseURLEnv != "" {
		baseURL = os.Getenv(p.baseURLEnv)
	}
	if baseURL == "" {
		baseURL = p.baseURL
	}

	if p.anthropic {
		client, err := NewAnthropicClient(apiKey, baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Anthropic client: %w", err)
		}
		return client, nil
	}

	client, err := NewOpenAIClient(apiKey, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", name, err)
	}
	return client, nil
}

func normalize(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return "openai"
	}
	return provider
}
