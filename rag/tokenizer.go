package rag

import (
	"fmt"
	"sync"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Tokenizer 分词器接口：分块预算以 token 计。
type Tokenizer interface {
	CountTokens(text string) int
}

// =============================================================================
// tiktoken 分词器
// =============================================================================

// TiktokenTokenizer 基于 tiktoken 的分词器，cl100k_base 编码。
// 编码数据延迟初始化（首次使用可能触发下载）；
// 初始化失败时回退到字符估算并记录警告。
type TiktokenTokenizer struct {
	encoding string
	logger   *zap.Logger

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewTiktokenTokenizer 创建 tiktoken 分词器。
func NewTiktokenTokenizer(logger *zap.Logger) *TiktokenTokenizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TiktokenTokenizer{
		encoding: "cl100k_base",
		logger:   logger.With(zap.String("component", "tokenizer")),
	}
}

func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// CountTokens 返回文本的 token 数，初始化失败时回退到估算。
func (t *TiktokenTokenizer) CountTokens(text string) int {
	if err := t.init(); err != nil {
		t.logger.Warn("tiktoken unavailable, falling back to estimate", zap.Error(err))
		return estimateTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// =============================================================================
// 估算分词器
// =============================================================================

// EstimatorTokenizer 无依赖的估算分词器：CJK 按字计，
// 其余按约 4 字符一个 token 估算。测试与离线环境使用。
type EstimatorTokenizer struct{}

// NewEstimatorTokenizer 创建估算分词器。
func NewEstimatorTokenizer() *EstimatorTokenizer { return &EstimatorTokenizer{} }

// CountTokens 返回估算的 token 数。
func (EstimatorTokenizer) CountTokens(text string) int {
	return estimateTokens(text)
}

func estimateTokens(text string) int {
	cjk := 0
	other := 0
	for _, r := range text {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			cjk++
		} else {
			other++
		}
	}
	n := cjk + (other+3)/4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}
