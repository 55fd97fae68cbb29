package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the HTTP header the processor puts the signature in.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance is the accepted distance between a signature timestamp
// and the local clock.
const DefaultTolerance = 5 * time.Minute

const (
	timestampKey = "t"
	signatureKey = "v1"
)

// signedPair is a timestamp together with the v1 signatures bound to it.
type signedPair struct {
	timestamp  int64
	signatures []string
}

// Sign computes a signature header for payload at the given time.
// Format: t=<unix>,v1=<hex(HMAC-SHA256(secret, "<unix>.<payload>"))>
func Sign(secret string, payload []byte, at time.Time) string {
	ts := at.Unix()
	return timestampKey + "=" + strconv.FormatInt(ts, 10) + "," +
		signatureKey + "=" + computeSignature(secret, ts, payload)
}

// Verify authenticates rawBody against signatureHeader and decodes the
// event envelope. A tolerance of zero or less disables the timestamp check.
func Verify(rawBody []byte, signatureHeader, secret string, tolerance time.Duration) (*VerifiedEvent, error) {
	return verifyAt(rawBody, signatureHeader, secret, tolerance, time.Now())
}

func verifyAt(rawBody []byte, header, secret string, tolerance time.Duration, now time.Time) (*VerifiedEvent, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, ErrMissingSignature
	}

	pairs, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	// Reject before any HMAC work when even the freshest timestamp is out of range.
	freshest := pairs[0].timestamp
	for _, p := range pairs[1:] {
		if p.timestamp > freshest {
			freshest = p.timestamp
		}
	}
	if !withinTolerance(freshest, now, tolerance) {
		return nil, fmt.Errorf("%w: timestamp %d, now %d, tolerance %s", ErrStaleSignature, freshest, now.Unix(), tolerance)
	}

	var (
		matched    *signedPair
		matchedSig string
		staleMatch bool
	)
	for i := range pairs {
		p := &pairs[i]
		expected := computeSignature(secret, p.timestamp, rawBody)
		for _, sig := range p.signatures {
			if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sig))) {
				continue
			}
			if !withinTolerance(p.timestamp, now, tolerance) {
				staleMatch = true
				continue
			}
			matched, matchedSig = p, sig
			break
		}
		if matched != nil {
			break
		}
	}
	if matched == nil {
		if staleMatch {
			return nil, fmt.Errorf("%w: matching signature is outside tolerance %s", ErrStaleSignature, tolerance)
		}
		return nil, ErrSignatureMismatch
	}

	var evt Event
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if evt.Type == "" {
		return nil, fmt.Errorf("%w: event type is empty", ErrMalformedPayload)
	}

	return &VerifiedEvent{
		Event:     evt,
		RawBody:   rawBody,
		SignedAt:  time.Unix(matched.timestamp, 0).UTC(),
		Signature: matchedSig,
	}, nil
}

// parseHeader splits "t=...,v1=...,v1=...,t=...,v1=..." into pairs.
// Unknown keys (v0 and friends) are skipped.
func parseHeader(header string) ([]signedPair, error) {
	var pairs []signedPair
	for item := range strings.SplitSeq(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok {
			continue
		}
		switch key {
		case timestampKey:
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: timestamp %q is not an integer", ErrMalformedHeader, value)
			}
			pairs = append(pairs, signedPair{timestamp: ts})
		case signatureKey:
			if len(pairs) == 0 {
				return nil, fmt.Errorf("%w: signature precedes any timestamp", ErrMalformedHeader)
			}
			if value != "" {
				last := &pairs[len(pairs)-1]
				last.signatures = append(last.signatures, value)
			}
		}
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: no timestamp", ErrMalformedHeader)
	}
	var signed []signedPair
	for _, p := range pairs {
		if len(p.signatures) > 0 {
			signed = append(signed, p)
		}
	}
	if len(signed) == 0 {
		return nil, fmt.Errorf("%w: no %s signature", ErrMalformedHeader, signatureKey)
	}
	return signed, nil
}

func computeSignature(secret string, ts int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte("."))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func withinTolerance(ts int64, now time.Time, tolerance time.Duration) bool {
	if tolerance <= 0 {
		return true
	}
	diff := now.Sub(time.Unix(ts, 0))
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
