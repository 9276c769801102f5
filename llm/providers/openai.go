package providers

import (
	"net/http"
	"os"

	"github.com/c360studio/agentflow/llm"
)

func init() {
	llm.RegisterProvider(&OpenAI{})
}

// OpenAI targets the hosted OpenAI API, or OpenRouter when its headers
// are configured.
type OpenAI struct {
	openAICompat
}

func (*OpenAI) Name() string { return "openai" }

func (*OpenAI) Endpoint(base string) string {
	return chatCompletionsURL(base, "https://api.openai.com/v1")
}

func (*OpenAI) Authenticate(req *http.Request) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	// OpenRouter attribution headers, if routing through it.
	if site := os.Getenv("OPENROUTER_SITE_URL"); site != "" {
		req.Header.Set("HTTP-Referer", site)
	}
	if name := os.Getenv("OPENROUTER_SITE_NAME"); name != "" {
		req.Header.Set("X-Title", name)
	}
}
