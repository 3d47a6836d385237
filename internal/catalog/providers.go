package catalog

// Provider names. Keys into the api_keys config map.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderGoogle     = "google"
	ProviderDeepSeek   = "deepseek"
	ProviderOpenRouter = "openrouter"
)

const anthropicVersion = "2023-06-01"

var baseURLs = map[string]string{
	ProviderAnthropic:  "https://api.anthropic.com/v1",
	ProviderOpenAI:     "https://api.openai.com/v1",
	ProviderGoogle:     "https://generativelanguage.googleapis.com/v1beta/openai",
	ProviderDeepSeek:   "https://api.deepseek.com/v1",
	ProviderOpenRouter: "https://openrouter.ai/api/v1",
}

// Providers lists every known provider name.
func Providers() []string {
	return []string{ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderDeepSeek, ProviderOpenRouter}
}

func KnownProvider(name string) bool {
	_, ok := baseURLs[name]
	return ok
}

// BaseURL returns the fixed API root for a provider.
func BaseURL(provider string) string {
	return baseURLs[provider]
}

// CompletionsPath returns the request path appended to the provider base URL.
// Anthropic exposes /messages instead of /chat/completions; the OpenAI-shaped
// body is sent there as-is, which is a known protocol gap logged at dispatch.
func CompletionsPath(provider string) string {
	if provider == ProviderAnthropic {
		return "/messages"
	}
	return "/chat/completions"
}

// AuthHeaders returns the authentication headers for a provider. Anthropic
// uses x-api-key plus an explicit API version; everything else is Bearer.
func AuthHeaders(provider, key string) map[string]string {
	if provider == ProviderAnthropic {
		return map[string]string{
			"x-api-key":         key,
			"anthropic-version": anthropicVersion,
		}
	}
	return map[string]string{"Authorization": "Bearer " + key}
}
