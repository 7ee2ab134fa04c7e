package usecase

import (
	"testing"
	"time"

	"bizportal-backend/internal/mail/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestClassifyBounce(t *testing.T) {
	cases := []struct {
		errMsg     string
		wantType   domain.BounceType
		wantReason string
	}{
		{"550 5.1.1 User unknown", domain.BounceHard, "user unknown"},
		{"Recipient address rejected: undeliverable", domain.BounceHard, "address rejected"},
		{"no such user here", domain.BounceHard, "no such user"},
		{"Mailbox not found", domain.BounceHard, "mailbox not found"},
		{"Domain not found", domain.BounceHard, "domain not found"},
		{"452 mailbox full", domain.BounceSoft, "mailbox full"},
		{"quota exceeded for user", domain.BounceSoft, "quota exceeded"},
		{"service temporarily unavailable", domain.BounceSoft, "temporarily unavailable"},
		{"421 try again later", domain.BounceSoft, "try again later"},
		{"message rejected as spam", domain.BounceComplaint, "spam"},
		{"sender blocked by policy", domain.BounceComplaint, "blocked"},
		{"ip on blacklist", domain.BounceComplaint, "blacklist"},
		{"connection reset by peer", "", ""},
		{"", "", ""},
	}

	for _, tc := range cases {
		gotType, gotReason := ClassifyBounce(tc.errMsg)
		if gotType != tc.wantType || gotReason != tc.wantReason {
			t.Errorf("ClassifyBounce(%q) = (%s, %q), want (%s, %q)",
				tc.errMsg, gotType, gotReason, tc.wantType, tc.wantReason)
		}
	}
}

// Hard bounces outrank soft ones when an error message matches both tables
func TestClassifyBouncePriority(t *testing.T) {
	gotType, _ := ClassifyBounce("user unknown and mailbox full")
	if gotType != domain.BounceHard {
		t.Errorf("expected hard to win, got %s", gotType)
	}
}

func TestSendStateForBounce(t *testing.T) {
	cases := []struct {
		bounce domain.BounceType
		want   domain.SendState
	}{
		{domain.BounceHard, domain.SendStateHard},
		{domain.BounceSoft, domain.SendStateSoft},
		{domain.BounceComplaint, domain.SendStateComplaint},
		{"", domain.SendStateFailed},
	}

	for _, tc := range cases {
		if got := sendStateForBounce(tc.bounce); got != tc.want {
			t.Errorf("sendStateForBounce(%s) = %s, want %s", tc.bounce, got, tc.want)
		}
	}
}

func TestNextRetryDelaySchedule(t *testing.T) {
	want := []time.Duration{
		time.Minute,
		5 * time.Minute,
		30 * time.Minute,
		2 * time.Hour,
		2 * time.Hour, // clamped past the table
	}
	for count, delay := range want {
		if got := NextRetryDelay(count); got != delay {
			t.Errorf("NextRetryDelay(%d) = %v, want %v", count, got, delay)
		}
	}
	if got := NextRetryDelay(-1); got != time.Minute {
		t.Errorf("negative retry count must use the first slot, got %v", got)
	}
}

func TestProperty_BackoffNeverDecreases(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("backoff is monotone in the retry count", prop.ForAll(
		func(a, b int) bool {
			if a > b {
				a, b = b, a
			}
			return NextRetryDelay(a) <= NextRetryDelay(b)
		},
		gen.IntRange(0, 50),
		gen.IntRange(0, 50),
	))

	properties.Property("backoff is always positive", prop.ForAll(
		func(count int) bool {
			return NextRetryDelay(count) > 0
		},
		gen.IntRange(-5, 100),
	))

	properties.TestingRun(t)
}
