package service

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// cl100k is loaded from the BPE ranks embedded by the offline loader, so
// counting never reaches the network.
var cl100k = sync.OnceValues(func() (*tiktoken.Tiktoken, error) {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	enc, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", tiktoken.MODEL_CL100K_BASE, err)
	}
	return enc, nil
})

// LoadTokenizer loads the token encoding up front so a broken build fails at
// startup instead of on the first upload.
func LoadTokenizer() error {
	_, err := cl100k()
	return err
}

// CountTokens returns the number of cl100k_base tokens in text. Special
// token markup such as <|endoftext|> is counted as ordinary text.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	enc, err := cl100k()
	if err != nil {
		panic(err)
	}
	return len(enc.EncodeOrdinary(text))
}
