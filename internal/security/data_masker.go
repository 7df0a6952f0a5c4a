package security

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRe    = regexp.MustCompile(`(?i)email`)
	fullMaskRe = regexp.MustCompile(`(?i)password|passwd|secret|token|api_key|apikey|access_key|private_key`)
	// credentials embedded in a command line, e.g. --password=hunter2
	inlineSecretRe = regexp.MustCompile(`(?i)((?:--?)(?:password|passwd|token|secret|api[-_]?key)[= ])(\S+)`)
)

// DataMasker masks sensitive values in tool arguments before they are logged
// or shipped to an audit sink.
type DataMasker struct {
	sensitiveKeys []string
}

func NewDataMasker(sensitiveKeys []string) *DataMasker {
	return &DataMasker{sensitiveKeys: sensitiveKeys}
}

// MaskArguments returns a copy of args with sensitive values masked. Nested
// objects are masked recursively.
func (m *DataMasker) MaskArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		switch val := v.(type) {
		case map[string]any:
			out[k] = m.MaskArguments(val)
		case string:
			if m.isSensitive(k) {
				out[k] = m.maskValue(k, val)
			} else {
				out[k] = inlineSecretRe.ReplaceAllString(val, "${1}***")
			}
		default:
			if m.isSensitive(k) {
				out[k] = m.maskValue(k, fmt.Sprintf("%v", val))
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func (m *DataMasker) isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range m.sensitiveKeys {
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return emailRe.MatchString(key) || fullMaskRe.MatchString(key)
}

func (m *DataMasker) maskValue(key, val string) string {
	if emailRe.MatchString(key) {
		return maskEmail(val)
	}
	return "***"
}

// maskEmail: "john.doe@example.com" → "jo***@***.com"
func maskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***"
	}
	local := parts[0]
	domain := parts[1]

	visible := 2
	if len(local) < visible {
		visible = len(local)
	}
	maskedLocal := local[:visible] + "***"

	domainParts := strings.Split(domain, ".")
	ext := domainParts[len(domainParts)-1]
	return fmt.Sprintf("%s@***.%s", maskedLocal, ext)
}
