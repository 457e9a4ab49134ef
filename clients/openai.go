package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	cfg "github.com/maastricht-university/meeting-intelligence/config"
)

// embedBatch caps the number of inputs per embeddings request.
const embedBatch = 64

func newOpenAI(s cfg.Service) *openai.Client {
	key := s.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	c := openai.DefaultConfig(key)
	if s.URL != "" {
		c.BaseURL = strings.TrimRight(s.URL, "/")
	}
	c.HTTPClient = &http.Client{Timeout: cfg.DurSeconds(s.TimeoutSec)}
	return openai.NewClientWithConfig(c)
}

// Embedder produces text embeddings through an OpenAI-compatible API.
type Embedder struct {
	client *openai.Client
	model  string
}

func NewEmbedder(s cfg.Service) *Embedder {
	return &Embedder{client: newOpenAI(s), model: s.Model}
}

func (e *Embedder) Model() string { return e.model }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for lo := 0; lo < len(texts); lo += embedBatch {
		hi := min(lo+embedBatch, len(texts))
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts[lo:hi],
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("embeddings: %w", err)
		}
		for _, d := range resp.Data {
			if d.Index < 0 || lo+d.Index >= hi {
				return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
			}
			out[lo+d.Index] = d.Embedding
		}
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("embeddings: no vector for input %d", i)
		}
	}
	return out, nil
}

const systemPrompt = `You answer questions about a recorded meeting using only the transcript excerpts provided.
Cite speakers by name or role. If the excerpts do not contain the answer, say so plainly.`

// Generator writes answers with a chat completion model.
type Generator struct {
	client *openai.Client
	model  string
}

func NewGenerator(s cfg.Service) *Generator {
	return &Generator{client: newOpenAI(s), model: s.Model}
}

// Answer asks the model to answer question from excerpts, the formatted
// retrieval results. A non-empty speaker focuses the answer on that role.
func (g *Generator) Answer(ctx context.Context, question, excerpts, speaker string) (string, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Meeting excerpts:\n\n%s\n\n", excerpts)
	if speaker != "" {
		fmt.Fprintf(&user, "Focus on what %s said.\n", speaker)
	}
	fmt.Fprintf(&user, "Question: %s", question)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user.String()},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices")
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.New("chat completion: empty answer")
	}
	return answer, nil
}
