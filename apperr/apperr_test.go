package apperr

import (
	"fmt"
	"testing"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		code Code
		lang Lang
		want string
	}{
		{"success zh", Success, LangZH, "成功"},
		{"success en", Success, LangEN, "Success"},
		{"validation zh", ParamValidationFailed, LangZH, "参数校验失败"},
		{"validation en", ParamValidationFailed, LangEN, "Parameter validation failed"},
		{"unknown lang falls back to zh", DownloadFileFailed, Lang("fr"), "下载文件失败"},
		{"empty lang falls back to zh", AudioDurationGetFailed, Lang(""), "获取音频时长失败"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.code.Message(tt.lang); got != tt.want {
				t.Errorf("Message(%q) = %q, want %q", tt.lang, got, tt.want)
			}
		})
	}
}

func TestPayload(t *testing.T) {
	tests := []struct {
		name        string
		code        Code
		lang        Lang
		detail      string
		wantCode    int
		wantMessage string
	}{
		{"no detail", Success, LangEN, "", 0, "Success"},
		{"detail appended in parens", FileSizeLimitExceeded, LangEN, "200.00 MB", 2004, "File size exceeds the limit(200.00 MB)"},
		{"zh with detail", DownloadFileFailed, LangZH, "connection reset", 2005, "下载文件失败(connection reset)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.code.Payload(tt.lang, tt.detail)
			if got.Code != tt.wantCode {
				t.Errorf("Payload code = %d, want %d", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("Payload message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestCodeValues(t *testing.T) {
	// The numeric values are a published API contract and must never drift.
	tests := []struct {
		code Code
		want int
	}{
		{Success, 0},
		{ParamValidationFailed, 1001},
		{ResourceNotFound, 1002},
		{AuthenticationFailed, 1004},
		{InvalidDraftURL, 2001},
		{FileSizeLimitExceeded, 2004},
		{DownloadFileFailed, 2005},
		{AudioDurationGetFailed, 2034},
		{DownloadFileTimeout, 2035},
		{InternalServerError, 9998},
		{UnknownError, 9999},
	}

	for _, tt := range tests {
		if tt.code.Value != tt.want {
			t.Errorf("code %s has value %d, want %d", tt.code.EN, tt.code.Value, tt.want)
		}
	}
}

func TestErrorString(t *testing.T) {
	err := New(DownloadFileFailed, "")
	if got := err.Error(); got != "code 2005: Download file failed" {
		t.Errorf("Error() = %q", got)
	}

	err = Newf(AudioDurationGetFailed, "exit status %d", 1)
	if got := err.Error(); got != "code 2034: Get audio duration failed (exit status 1)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestAs(t *testing.T) {
	base := New(InvalidDraftURL, "draft_id parameter is required")
	wrapped := fmt.Errorf("listing draft files: %w", base)

	coded, ok := As(wrapped)
	if !ok {
		t.Fatal("As() did not find the coded error in the chain")
	}
	if coded.Code != InvalidDraftURL {
		t.Errorf("As() returned code %d, want %d", coded.Code.Value, InvalidDraftURL.Value)
	}

	if _, ok := As(fmt.Errorf("plain error")); ok {
		t.Error("As() matched a non-coded error")
	}
}
