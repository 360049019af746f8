// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jaycherian/broll-scout/internal/core/prompt"
	"github.com/openai/openai-go/v3"
	oaioption "github.com/openai/openai-go/v3/option"
)

// DefaultFallbackModel is used when fallback.model is empty.
const DefaultFallbackModel = "gpt-4.1-mini"

const jsonOnlyInstruction = "You must respond with valid JSON only. Do not include any text outside the JSON object."

// TextCompleter answers plain and JSON text requests. It is the shape of the
// fallback provider.
type TextCompleter interface {
	CompleteText(ctx context.Context, req prompt.Request, jsonOnly bool) (string, error)
}

// OpenAIFallback completes text and structured requests with OpenAI chat
// completions. Attachments are not forwarded.
type OpenAIFallback struct {
	client    *openai.Client
	model     string
	maxTokens int64
}

// NewOpenAIFallback returns nil when apiKey is empty.
func NewOpenAIFallback(apiKey, modelName string, opts ...oaioption.RequestOption) *OpenAIFallback {
	if apiKey == "" {
		return nil
	}
	if modelName == "" {
		modelName = DefaultFallbackModel
	}
	client := openai.NewClient(append([]oaioption.RequestOption{oaioption.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIFallback{client: &client, model: modelName, maxTokens: 8192}
}

func (o *OpenAIFallback) CompleteText(ctx context.Context, req prompt.Request, jsonOnly bool) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Instruction)}
	if jsonOnly {
		messages = []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(jsonOnlyInstruction),
			openai.UserMessage(req.Instruction),
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(o.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai %s failed: %w", req.Name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai %s returned no choices", req.Name)
	}
	slog.InfoContext(ctx, "fallback completion", "call", req.Name, "model", o.model,
		"prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}
