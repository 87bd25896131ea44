package security

import (
	"context"
	"regexp"
	"strings"
)

// Detection is one masked PII occurrence, recorded for audit. The raw value
// is deliberately not retained.
type Detection struct {
	Category string `json:"category"`
	Masked   string `json:"masked"`
}

type piiPattern struct {
	category string
	re       *regexp.Regexp
	mask     func(match string, maskRune rune) string
}

// Mask shapes: phones keep the first 3 and last 4 digits, national IDs keep
// the first 6 and last 4, everything else is fully masked.
var piiPatterns = []piiPattern{
	{
		category: "phone",
		re:       regexp.MustCompile(`\b1[3-9]\d{9}\b`),
		mask: func(m string, r rune) string {
			return m[:3] + strings.Repeat(string(r), 4) + m[len(m)-4:]
		},
	},
	{
		category: "national_id",
		re:       regexp.MustCompile(`\b\d{17}[\dXx]\b|\b\d{15}\b`),
		mask: func(m string, r rune) string {
			return m[:6] + strings.Repeat(string(r), 8) + m[len(m)-4:]
		},
	},
	{
		category: "bank_card",
		re:       regexp.MustCompile(`\b\d{19}\b|\b\d{16}\b`),
		mask:     maskAll,
	},
	{
		category: "email",
		re:       regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		mask:     maskAll,
	},
}

func maskAll(m string, r rune) string {
	return strings.Repeat(string(r), len(m))
}

// PIIMasker finds personal data (phone numbers, national IDs, bank cards,
// emails) and masks each match in place rather than rejecting. Every
// detection lands in annotations for audit.
type PIIMasker struct {
	maskRune rune
}

// NewPIIMasker creates the masking layer.
func NewPIIMasker(cfg PIIConfig) *PIIMasker {
	r := cfg.MaskRune
	if r == 0 {
		r = '*'
	}
	return &PIIMasker{maskRune: r}
}

func (p *PIIMasker) Name() string { return "pii" }

func (p *PIIMasker) Check(ctx context.Context, req Request) Verdict {
	message := req.Message
	var detections []Detection

	for _, pat := range piiPatterns {
		message = pat.re.ReplaceAllStringFunc(message, func(match string) string {
			masked := pat.mask(match, p.maskRune)
			detections = append(detections, Detection{Category: pat.category, Masked: masked})
			return masked
		})
	}

	v := Allow(message)
	if len(detections) > 0 {
		v.Annotations = map[string]any{
			"pii_detected": true,
			"pii_items":    detections,
		}
	}
	return v
}
