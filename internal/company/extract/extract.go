// Package extract holds the pattern heuristics used to pull a candidate
// company name and contact out of an unmatched order email.
package extract

import (
	"regexp"
	"strings"

	"github.com/smallbiznis/ordersignal/internal/company/domain"
)

var (
	bracketPrefix = regexp.MustCompile(`^\s*[\[［](.+?)[\]］]`)
	companyLabel  = regexp.MustCompile(`(?m)^\s*(?:회사명|업체명|거래처|Company)\s*[:：]\s*(.+)$`)
	contactLabel  = regexp.MustCompile(`(?m)^\s*(?:담당자|Contact)\s*[:：]\s*(.+)$`)
	phoneLabel    = regexp.MustCompile(`(?m)^\s*(?:연락처|전화번호|Phone|Tel)\s*[:：]\s*([\d\-\+\s]+)$`)
)

type labelExtractor struct{}

// New returns the default label-based extractor.
func New() domain.Extractor { return labelExtractor{} }

// Extract scans labeled lines in the body first, then falls back to a
// bracketed subject prefix for the company name.
func (labelExtractor) Extract(subject, body string) domain.ExtractedCompanyInfo {
	info := domain.ExtractedCompanyInfo{}

	if m := companyLabel.FindStringSubmatch(body); m != nil {
		info.CompanyName = strings.TrimSpace(m[1])
	}
	if info.CompanyName == "" {
		if m := bracketPrefix.FindStringSubmatch(subject); m != nil {
			info.CompanyName = strings.TrimSpace(m[1])
		}
	}
	if m := contactLabel.FindStringSubmatch(body); m != nil {
		info.ContactName = strings.TrimSpace(m[1])
	}
	if m := phoneLabel.FindStringSubmatch(body); m != nil {
		info.Phone = strings.TrimSpace(m[1])
	}

	if info.CompanyName != "" {
		info.SuggestedActions = append(info.SuggestedActions, "register_company")
	}
	info.SuggestedActions = append(info.SuggestedActions, "notify_admin")
	return info
}
