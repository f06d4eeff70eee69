package utils

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

// SanitizeString 清理字符串，移除或转义危险字符
func SanitizeString(input string) string {
	// 1. HTML 转义，防止 XSS
	sanitized := html.EscapeString(input)

	// 2. 移除控制字符（除了换行符和制表符）
	var result strings.Builder
	for _, r := range sanitized {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}

// ValidateRequestID 验证申请 ID 格式
func ValidateRequestID(id string) error {
	// 1. 检查是否为空
	if id == "" {
		return ErrEmptyID
	}

	// 2. 检查格式（只允许字母、数字、连字符、下划线）
	matched, _ := regexp.MatchString(`^[a-zA-Z0-9_-]+$`, id)
	if !matched {
		return ErrInvalidIDFormat
	}

	// 3. 检查长度（最大 64 字符）
	if len(id) > 64 {
		return ErrIDTooLong
	}

	return nil
}

// ValidateTrackingCode 验证跟踪码格式 SGC-YYYYMMDD-XXXXXXXX
func ValidateTrackingCode(code string) error {
	if code == "" {
		return ErrEmptyID
	}

	matched, _ := regexp.MatchString(`^SGC-\d{8}-[A-Z0-9]{8}$`, code)
	if !matched {
		return ErrInvalidTrackingCode
	}

	return nil
}

// ValidateStateName 验证状态名称格式 (大写字母和下划线)
func ValidateStateName(state string) error {
	if state == "" {
		return ErrEmptyString
	}

	matched, _ := regexp.MatchString(`^[A-Z][A-Z_]*$`, state)
	if !matched {
		return ErrInvalidStateFormat
	}

	if len(state) > 32 {
		return ErrStringTooLong
	}

	return nil
}

// TrimAndValidate 清理并验证字符串
func TrimAndValidate(s string, maxLen int) (string, error) {
	// 1. 去除首尾空白字符
	trimmed := strings.TrimSpace(s)

	// 2. 检查是否为空
	if trimmed == "" {
		return "", ErrEmptyString
	}

	// 3. 检查长度
	if maxLen > 0 && len(trimmed) > maxLen {
		return "", ErrStringTooLong
	}

	// 4. 清理危险字符
	sanitized := SanitizeString(trimmed)

	return sanitized, nil
}

// 错误定义
var (
	ErrEmptyID             = &ValidationError{Code: "EMPTY_ID", Message: "id cannot be empty"}
	ErrInvalidIDFormat     = &ValidationError{Code: "INVALID_ID_FORMAT", Message: "id contains invalid characters"}
	ErrIDTooLong           = &ValidationError{Code: "ID_TOO_LONG", Message: "id exceeds maximum length"}
	ErrInvalidTrackingCode = &ValidationError{Code: "INVALID_TRACKING_CODE", Message: "tracking code format is invalid"}
	ErrInvalidStateFormat  = &ValidationError{Code: "INVALID_STATE_FORMAT", Message: "state name must be uppercase"}
	ErrEmptyString         = &ValidationError{Code: "EMPTY_STRING", Message: "string cannot be empty"}
	ErrStringTooLong       = &ValidationError{Code: "STRING_TOO_LONG", Message: "string exceeds maximum length"}
)

// ValidationError 验证错误
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
