// Package aadhaar checks an Aadhaar card photo against the stored profile of
// a citizen.
package aadhaar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/ai"
	"github.com/spigell/scheme-matcher/internal/logger"
	"github.com/spigell/scheme-matcher/internal/metrics"
	"github.com/spigell/scheme-matcher/internal/utils"
	"github.com/spigell/scheme-matcher/internal/welfare"
)

const (
	FieldName    = "name"
	FieldAge     = "age"
	FieldGender  = "gender"
	FieldPincode = "pincode"
)

type UserGetter interface {
	GetUser(ctx context.Context, email string) (*welfare.Profile, error)
}

type Result struct {
	Verified   bool     `json:"verified"`
	Extracted  Fields   `json:"extracted"`
	Mismatches []string `json:"mismatches,omitempty"`
}

type Verifier struct {
	users  UserGetter
	ocr    ai.TextExtractor
	logger *zap.Logger
	now    func() time.Time
}

func NewVerifier(users UserGetter, ocr ai.TextExtractor, log *zap.Logger) *Verifier {
	return &Verifier{
		users:  users,
		ocr:    ocr,
		logger: logger.WithFields(log, zap.String("component", "aadhaar")),
		now:    time.Now,
	}
}

// Verify reads name, date of birth and gender from the front of the card and
// the pincode from the back. The card is verified only when all four values
// match the profile stored for email.
func (v *Verifier) Verify(ctx context.Context, email string, front, back Image) (*Result, error) {
	log := logger.WithFields(v.logger, logger.UserFields(email, "")...)

	profile, err := v.users.GetUser(ctx, email)
	if err != nil {
		metrics.AadhaarVerifications.WithLabelValues("error").Inc()
		return nil, err
	}

	fields, err := v.read(ctx, front, back)
	if err != nil {
		metrics.AadhaarVerifications.WithLabelValues("error").Inc()
		return nil, err
	}

	res := &Result{Extracted: fields, Mismatches: compare(profile, fields)}
	res.Verified = len(res.Mismatches) == 0

	outcome := "rejected"
	if res.Verified {
		outcome = "verified"
	}
	metrics.AadhaarVerifications.WithLabelValues(outcome).Inc()

	log.Info("aadhaar verification finished",
		zap.Bool("verified", res.Verified),
		zap.Strings("mismatches", res.Mismatches),
	)

	return res, nil
}

func (v *Verifier) read(ctx context.Context, front, back Image) (Fields, error) {
	frontText, err := v.ocr.ExtractText(ctx, front.Data, front.MIME)
	if err != nil {
		return Fields{}, fmt.Errorf("read front side: %w", err)
	}
	backText, err := v.ocr.ExtractText(ctx, back.Data, back.MIME)
	if err != nil {
		return Fields{}, fmt.Errorf("read back side: %w", err)
	}

	v.logger.Debug("document text",
		zap.String("front", utils.TruncateForLog(frontText, 300)),
		zap.String("back", utils.TruncateForLog(backText, 300)),
	)

	fields := Fields{
		Name:    ExtractName(frontText),
		Gender:  ExtractGender(frontText),
		Pincode: ExtractPincode(backText),
	}
	if dob, ok := ExtractDOB(frontText); ok {
		fields.DOB = dob.Format(dateLayout)
		fields.Age = Age(dob, v.now())
	}

	return fields, nil
}

func compare(p *welfare.Profile, f Fields) []string {
	var mismatches []string

	if f.Name == "" || !strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(f.Name)) {
		mismatches = append(mismatches, FieldName)
	}
	if f.DOB == "" || p.Age != f.Age {
		mismatches = append(mismatches, FieldAge)
	}
	if f.Gender == "" || p.Gender != f.Gender {
		mismatches = append(mismatches, FieldGender)
	}
	if f.Pincode == "" || strings.TrimSpace(p.Pincode) != f.Pincode {
		mismatches = append(mismatches, FieldPincode)
	}

	return mismatches
}
