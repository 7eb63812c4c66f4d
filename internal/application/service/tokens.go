package service

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const tokenEncoding = "cl100k_base"

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

// DefaultTokenCounter counts cl100k_base tokens. The encoder is built once
// from the BPE ranks bundled with the loader, so counting never touches the
// network. If the encoder cannot be built, it estimates four runes per token.
func DefaultTokenCounter(text string) int {
	encoderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		enc, err := tiktoken.GetEncoding(tokenEncoding)
		if err == nil {
			encoder = enc
		}
	})
	if encoder == nil {
		return (utf8.RuneCountInString(text) + 3) / 4
	}
	return len(encoder.EncodeOrdinary(text))
}

// TruncateUTF8 cuts s to at most maxBytes without splitting a rune.
func TruncateUTF8(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
