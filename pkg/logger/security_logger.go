package logger

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"serp-go/pkg/utils"
)

var apiKeyPattern = regexp.MustCompile(`(?i)(key|token|secret)[=:]\s*[a-zA-Z0-9_\-]+`)

// SecurityLogger masks credentials and endpoints before they reach the log
type SecurityLogger struct {
	*Logger
}

// NewSecurityLogger wraps the given logger
func NewSecurityLogger(l *Logger) *SecurityLogger {
	return &SecurityLogger{Logger: l}
}

// MaskAPIEndpoint keeps the host of an endpoint and hashes the rest
func (sl *SecurityLogger) MaskAPIEndpoint(apiURL string) string {
	if apiURL == "" {
		return ""
	}

	parsedURL, err := url.Parse(apiURL)
	if err != nil || parsedURL.Host == "" {
		return "api-endpoint#" + utils.ShortHash(apiURL)
	}

	return fmt.Sprintf("%s/api#%s", parsedURL.Host, utils.ShortHash(apiURL))
}

// MaskAPIKey reports whether a key is set without revealing it
func (sl *SecurityLogger) MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return "unset"
	}
	return "api-key#" + utils.ShortHash(apiKey)
}

// MaskSensitiveData masks credential and endpoint values in a field map
func (sl *SecurityLogger) MaskSensitiveData(data map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{}, len(data))

	for key, value := range data {
		lowerKey := strings.ToLower(key)
		str, isString := value.(string)

		switch {
		case !isString:
			masked[key] = value
		case strings.Contains(lowerKey, "key") || strings.Contains(lowerKey, "secret") ||
			strings.Contains(lowerKey, "password") || strings.Contains(lowerKey, "token"):
			masked[key] = sl.MaskAPIKey(str)
		case strings.Contains(lowerKey, "url") || strings.Contains(lowerKey, "endpoint"):
			masked[key] = sl.MaskAPIEndpoint(str)
		default:
			masked[key] = value
		}
	}

	return masked
}

// MaskLogMessage strips inline credentials from a message
func (sl *SecurityLogger) MaskLogMessage(message string) string {
	return apiKeyPattern.ReplaceAllString(message, "${1}=***")
}

// SafeInfo logs info with automatic sensitive data masking
func (sl *SecurityLogger) SafeInfo(msg string, fields map[string]interface{}) {
	if fields != nil {
		sl.Logger.WithFields(sl.MaskSensitiveData(fields)).Info(sl.MaskLogMessage(msg))
		return
	}
	sl.Logger.Info(sl.MaskLogMessage(msg))
}

// SafeWarn logs a warning with automatic sensitive data masking
func (sl *SecurityLogger) SafeWarn(msg string, fields map[string]interface{}) {
	if fields != nil {
		sl.Logger.WithFields(sl.MaskSensitiveData(fields)).Warn(sl.MaskLogMessage(msg))
		return
	}
	sl.Logger.Warn(sl.MaskLogMessage(msg))
}
