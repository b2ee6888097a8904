package corpus

import (
	"fmt"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// htmlConverter converts HTML pages to markdown, which keeps headings and
// lists as chunkable structure instead of flattening everything.
type htmlConverter struct{}

func (htmlConverter) Convert(path string, raw []byte) (string, error) {
	md, err := htmltomarkdown.ConvertString(string(raw))
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return md, nil
}
