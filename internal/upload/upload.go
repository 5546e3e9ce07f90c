package upload

import (
	"bytes"
	"fmt"
	"strings"

	"aichat/internal/models"
)

const (
	// PromptSuffix marks an upload that carries an oversized user message
	// instead of an attachment.
	PromptSuffix = ".prompt"

	// LargePromptName is the name the web client uses when it moves a long
	// message into a file to stay under request size limits.
	LargePromptName = "large-text" + PromptSuffix

	sampleSize    = 512
	textThreshold = 0.7
)

// Classification is the vendor-independent verdict for an upload.
type Classification struct {
	IsText       bool
	IsPromptFile bool
}

// Classify inspects an upload's mime type, name and content.
func Classify(u models.Upload) Classification {
	return Classification{
		IsText:       IsText(u),
		IsPromptFile: IsPromptFile(u.Name),
	}
}

// IsPromptFile reports whether name uses the reserved prompt pseudo-extension.
func IsPromptFile(name string) bool {
	return strings.HasSuffix(name, PromptSuffix)
}

// IsText reports whether an upload should be treated as text. Any text/*
// mime type wins; otherwise the first 512 bytes are sampled and at least
// 70% of them must be printable.
func IsText(u models.Upload) bool {
	if strings.HasPrefix(u.MIME, "text/") {
		return true
	}

	sample := u.Content
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	if len(sample) == 0 {
		return false
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return false
	}

	return float64(printableBytes(sample))/float64(len(sample)) >= textThreshold
}

// printableBytes counts tab, newline, carriage return, printable ASCII and
// the bytes of complete UTF-8 multi-byte sequences.
func printableBytes(sample []byte) int {
	count := 0
	for i := 0; i < len(sample); {
		b := sample[i]
		if n := utf8SequenceLen(sample[i:]); n > 1 {
			count += n
			i += n
			continue
		}
		if b == 0x09 || b == 0x0A || b == 0x0D || (b >= 0x20 && b <= 0x7E) {
			count++
		}
		i++
	}
	return count
}

// utf8SequenceLen returns the length of the well-formed multi-byte sequence
// at the start of p, or 0 when there is none.
func utf8SequenceLen(p []byte) int {
	var n int
	switch b := p[0]; {
	case b >= 0xC2 && b <= 0xDF:
		n = 2
	case b >= 0xE0 && b <= 0xEF:
		n = 3
	case b >= 0xF0 && b <= 0xF4:
		n = 4
	default:
		return 0
	}
	if len(p) < n {
		return 0
	}
	for _, c := range p[1:n] {
		if c < 0x80 || c > 0xBF {
			return 0
		}
	}
	return n
}

// Accepts reports whether mime is in allowList, ignoring case.
func Accepts(mime string, allowList []string) bool {
	for _, allowed := range allowList {
		if strings.EqualFold(mime, allowed) {
			return true
		}
	}
	return false
}

// TextBlock formats a text upload for inclusion in a prompt. Prompt files
// are not attachments and yield an empty block.
func TextBlock(u models.Upload) string {
	if IsPromptFile(u.Name) {
		return ""
	}
	return fmt.Sprintf("[start of file named \"%s\"]\n\n%s\n\n[end of file named \"%s\"]\n\n", u.Name, u.Content, u.Name)
}

// ExtractPrompt removes the large prompt pseudo-file from uploads and
// returns its content. found is false when no such upload exists.
func ExtractPrompt(uploads []models.Upload) (prompt string, rest []models.Upload, found bool) {
	for i, u := range uploads {
		if u.Name != LargePromptName {
			continue
		}
		rest = make([]models.Upload, 0, len(uploads)-1)
		rest = append(rest, uploads[:i]...)
		rest = append(rest, uploads[i+1:]...)
		return string(u.Content), rest, true
	}
	return "", uploads, false
}
