package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mezonai/starledger/errors"
	"github.com/mezonai/starledger/types"
	"golang.org/x/text/unicode/norm"
)

var InjectionRegexp = BuildInjectionPatterns()

// BuildInjectionPatterns builds regexp for injection detection (case-insensitive)
func BuildInjectionPatterns() *regexp.Regexp {
	parts := make([]string, 0, len(InjectionPatterns))
	for _, pattern := range InjectionPatterns {
		pNorm := norm.NFC.String(pattern)
		parts = append(parts, regexp.QuoteMeta(pNorm))
	}
	// (?i) for case-insensitive
	return regexp.MustCompile("(?i)" + strings.Join(parts, "|"))
}

// ValidateRequired rejects empty or blank values.
func ValidateRequired(fieldName, fieldValue string) error {
	if strings.TrimSpace(fieldValue) == "" {
		return errors.NewError(
			errors.ErrCodeInvalidRequest,
			fmt.Sprintf(errors.ErrMsgFieldMissing, fieldName),
		)
	}
	return nil
}

// ValidateShortTextLength validates short text field length and content
func ValidateShortTextLength(fieldName, fieldValue string) error {
	normalized := norm.NFC.String(fieldValue)

	if utf8.RuneCountInString(normalized) > MaxShortTextLength {
		return errors.NewError(
			errors.ErrCodeInvalidRequest,
			fmt.Sprintf(errors.ErrMsgFieldTooLong, fieldName, MaxShortTextLength),
		)
	}
	if InjectionRegexp.MatchString(normalized) {
		return errors.NewError(
			errors.ErrCodeInvalidRequest,
			fmt.Sprintf(errors.ErrMsgInvalidCharacters, fieldName),
		)
	}
	return nil
}

// NormalizeStory returns the NFC form of story after checking it is printable
// ASCII of at most MaxStoryBytes bytes.
func NormalizeStory(story string) (string, error) {
	normalized := norm.NFC.String(story)

	if len(normalized) > MaxStoryBytes {
		return "", errors.NewError(
			errors.ErrCodeInvalidRequest,
			fmt.Sprintf(errors.ErrMsgFieldTooLong, StoryField, MaxStoryBytes),
		)
	}
	for _, r := range normalized {
		if r >= unicode.MaxASCII || (r < 0x20 && r != '\n' && r != '\t') {
			return "", errors.NewError(
				errors.ErrCodeInvalidRequest,
				fmt.Sprintf(errors.ErrMsgInvalidCharacters, StoryField),
			)
		}
	}
	if InjectionRegexp.MatchString(normalized) {
		return "", errors.NewError(
			errors.ErrCodeInvalidRequest,
			fmt.Sprintf(errors.ErrMsgInvalidCharacters, StoryField),
		)
	}
	return normalized, nil
}

// ValidateStarRequest checks a star registration and returns its normalized body
// with the story still in plain text.
func ValidateStarRequest(req *types.StarRequest) (*types.StarBody, error) {
	if req == nil {
		return nil, errors.ErrInvalidRequest
	}
	if err := ValidateRequired(AddressField, req.Address); err != nil {
		return nil, err
	}
	if err := ValidateShortTextLength(AddressField, req.Address); err != nil {
		return nil, err
	}
	if req.Star == nil {
		return nil, errors.NewError(
			errors.ErrCodeInvalidRequest,
			fmt.Sprintf(errors.ErrMsgFieldMissing, StarField),
		)
	}

	star := *req.Star
	for _, f := range []struct {
		name     string
		value    string
		required bool
	}{
		{RAField, star.RA, true},
		{DecField, star.Dec, true},
		{MagField, star.Mag, false},
		{CenField, star.Cen, false},
	} {
		if f.required {
			if err := ValidateRequired(f.name, f.value); err != nil {
				return nil, err
			}
		}
		if err := ValidateShortTextLength(f.name, f.value); err != nil {
			return nil, err
		}
	}

	if err := ValidateRequired(StoryField, star.Story); err != nil {
		return nil, err
	}
	story, err := NormalizeStory(star.Story)
	if err != nil {
		return nil, err
	}

	return &types.StarBody{
		Address: strings.TrimSpace(req.Address),
		Star: types.Star{
			RA:    norm.NFC.String(star.RA),
			Dec:   norm.NFC.String(star.Dec),
			Mag:   norm.NFC.String(star.Mag),
			Cen:   norm.NFC.String(star.Cen),
			Story: story,
		},
	}, nil
}
