package providers

import (
	"net/http"
	"os"

	"github.com/c360studio/agentflow/llm"
)

func init() {
	llm.RegisterProvider(&Ollama{})
}

// Ollama targets a local Ollama server (or anything else serving the
// OpenAI wire format on a local port, such as vLLM).
type Ollama struct {
	openAICompat
}

func (*Ollama) Name() string { return "ollama" }

func (*Ollama) Endpoint(base string) string {
	return chatCompletionsURL(base, "http://localhost:11434/v1")
}

// Authenticate sends a bearer token only when one is configured; a
// stock Ollama install needs none.
func (*Ollama) Authenticate(req *http.Request) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}
