package stripe

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/smallbiznis/fintrack/internal/billing/domain"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_123","type":"checkout.session.completed","data":{"object":{}}}`)
	now := time.Unix(1741000000, 0)

	header := SignatureHeader(payload, secret, now)
	if err := VerifySignature(payload, header, secret, now, DefaultTolerance); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}

	if err := VerifySignature(payload, SignatureHeader(payload, "wrong", now), secret, now, DefaultTolerance); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature error, got %v", err)
	}

	tampered := []byte(`{"id":"evt_124","type":"checkout.session.completed","data":{"object":{}}}`)
	if err := VerifySignature(tampered, header, secret, now, DefaultTolerance); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected tampered payload to fail, got %v", err)
	}
}

func TestVerifySignatureTolerance(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{}`)
	signedAt := time.Unix(1741000000, 0)
	header := SignatureHeader(payload, secret, signedAt)

	if err := VerifySignature(payload, header, secret, signedAt.Add(4*time.Minute), DefaultTolerance); err != nil {
		t.Fatalf("expected signature within tolerance, got %v", err)
	}
	if err := VerifySignature(payload, header, secret, signedAt.Add(6*time.Minute), DefaultTolerance); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected stale signature to fail, got %v", err)
	}
}

func TestVerifySignatureAcceptsAnyV1(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1741000000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)

	header := "t=" + ts + ",v1=deadbeef,v0=ignored,v1=" + Sign(payload, ts, secret)
	if err := VerifySignature(payload, header, secret, now, DefaultTolerance); err != nil {
		t.Fatalf("expected second v1 to match, got %v", err)
	}

	for _, bad := range []string{"", "v1=abc", "t=" + ts, "t=notanumber,v1=abc"} {
		if err := VerifySignature(payload, bad, secret, now, DefaultTolerance); !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("header %q: expected invalid signature, got %v", bad, err)
		}
	}
}
