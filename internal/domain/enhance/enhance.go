// Package enhance polishes a finished transcript with a chat model.
package enhance

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	"vietscribe-go/internal/platform/config"
	"vietscribe-go/internal/platform/errors"
	"vietscribe-go/internal/platform/logging"
	"vietscribe-go/internal/platform/observability"
)

// Enhancer rewrites text. On failure it returns the input unchanged together
// with the error.
type Enhancer interface {
	Enhance(ctx context.Context, text string) (string, error)
}

const systemPrompt = `Bạn là chuyên gia cải thiện văn bản tiếng Việt. Nhiệm vụ của bạn là cải thiện đoạn văn bản được cung cấp:

1. Sửa lỗi chính tả và ngữ pháp
2. Cải thiện dấu câu (thêm dấu câu đúng chỗ, sửa dấu câu sai)
3. Viết hoa đầu câu và tên riêng
4. Loại bỏ khoảng trắng thừa
5. Cải thiện cách diễn đạt để văn bản tự nhiên và dễ đọc hơn
6. Giữ nguyên nội dung và ý nghĩa gốc
7. Không thêm thông tin mới không có trong văn bản gốc

Hãy trả về chỉ văn bản đã được cải thiện, không thêm giải thích hay comment nào khác.`

// maxGrowth rejects answers that are much longer than the input; the model
// is not supposed to add content.
const maxGrowth = 2.0

// ChatEnhancer calls an OpenAI-compatible chat completion endpoint.
type ChatEnhancer struct {
	client *openai.Client
	model  string
	logger *logging.Logger
}

// New builds a ChatEnhancer from configuration.
func New(cfg config.EnhanceConfig, logger *logging.Logger) (*ChatEnhancer, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New(errors.KindConfig, "enhance.new", "missing API key for enhancement")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &ChatEnhancer{client: openai.NewClientWithConfig(clientConfig), model: model, logger: logger}, nil
}

func (e *ChatEnhancer) Enhance(ctx context.Context, text string) (out string, err error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	ctx, end := observability.StartSpan(ctx, "enhance", "chat")
	defer func() { end(err) }()

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		e.logger.WarnTag("ENHANCE", "enhancement failed, keeping original text: %v", err)
		return text, errors.Wrap(errors.KindBackend, "enhance.chat", "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return text, errors.New(errors.KindBackend, "enhance.chat", "empty completion")
	}

	out = strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return text, errors.New(errors.KindBackend, "enhance.chat", "empty completion")
	}
	if float64(utf8.RuneCountInString(out)) > maxGrowth*float64(utf8.RuneCountInString(text)) {
		e.logger.WarnTag("ENHANCE", "enhanced text grew %d -> %d runes, discarded", utf8.RuneCountInString(text), utf8.RuneCountInString(out))
		return text, errors.New(errors.KindBackend, "enhance.chat", "completion much longer than input")
	}
	return out, nil
}

// Passthrough returns text unchanged.
type Passthrough struct{}

func (Passthrough) Enhance(_ context.Context, text string) (string, error) { return text, nil }
