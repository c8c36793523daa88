package application

import (
	"context"
	"strings"

	"wear-voice/internal/domain"
)

type IntentParser interface {
	Parse(ctx context.Context, text string) (*domain.Command, error)
}

// KeywordParser matches transcripts by case-insensitive substring.
// News is checked before stop, so a transcript with both keywords is a news request.
type KeywordParser struct {
	newsKeyword string
	stopKeyword string
}

func NewKeywordParser(newsKeyword, stopKeyword string) *KeywordParser {
	return &KeywordParser{
		newsKeyword: strings.ToLower(newsKeyword),
		stopKeyword: strings.ToLower(stopKeyword),
	}
}

func (p *KeywordParser) Parse(_ context.Context, text string) (*domain.Command, error) {
	lower := strings.ToLower(text)

	action := domain.ActionUnknown
	switch {
	case p.newsKeyword != "" && strings.Contains(lower, p.newsKeyword):
		action = domain.ActionNews
	case p.stopKeyword != "" && strings.Contains(lower, p.stopKeyword):
		action = domain.ActionStop
	}

	return &domain.Command{Action: action, RawText: text}, nil
}
