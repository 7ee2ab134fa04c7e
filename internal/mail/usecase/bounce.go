package usecase

import (
	"strings"
	"time"

	"bizportal-backend/internal/mail/domain"
)

// Bounce phrase tables, checked in priority order: hard, then soft, then
// complaint. An unmatched error stays a generic failure.
var (
	hardBouncePhrases = []string{
		"user unknown",
		"address rejected",
		"no such user",
		"mailbox not found",
		"domain not found",
	}
	softBouncePhrases = []string{
		"mailbox full",
		"quota exceeded",
		"temporarily unavailable",
		"try again later",
	}
	complaintPhrases = []string{
		"spam",
		"blocked",
		"blacklist",
	}
)

// retryBackoff is indexed by retry count; counts beyond the table clamp to
// the last entry
var retryBackoff = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
}

// ClassifyBounce classifies a transport error message. The returned reason is
// the phrase that matched; an unrecognized message yields ("", "").
func ClassifyBounce(errMsg string) (domain.BounceType, string) {
	lower := strings.ToLower(errMsg)

	for _, phrase := range hardBouncePhrases {
		if strings.Contains(lower, phrase) {
			return domain.BounceHard, phrase
		}
	}
	for _, phrase := range softBouncePhrases {
		if strings.Contains(lower, phrase) {
			return domain.BounceSoft, phrase
		}
	}
	for _, phrase := range complaintPhrases {
		if strings.Contains(lower, phrase) {
			return domain.BounceComplaint, phrase
		}
	}
	return "", ""
}

// NextRetryDelay returns the backoff delay for a given retry count
func NextRetryDelay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount >= len(retryBackoff) {
		return retryBackoff[len(retryBackoff)-1]
	}
	return retryBackoff[retryCount]
}

// sendStateForBounce maps a bounce kind to the SendStatus failure state
func sendStateForBounce(bounce domain.BounceType) domain.SendState {
	switch bounce {
	case domain.BounceHard:
		return domain.SendStateHard
	case domain.BounceSoft:
		return domain.SendStateSoft
	case domain.BounceComplaint:
		return domain.SendStateComplaint
	default:
		return domain.SendStateFailed
	}
}
