// Package apperr defines the bilingual coded error table shared by every
// API response of the service.
package apperr

import (
	"errors"
	"fmt"
)

// Lang selects which message translation a code renders with.
type Lang string

const (
	LangZH Lang = "zh"
	LangEN Lang = "en"
)

// Code is one entry of the error table: a stable numeric code with its
// Chinese and English messages. Chinese is the canonical fallback.
type Code struct {
	Value int
	ZH    string
	EN    string
}

// Base codes (0-1999)
var (
	Success               = Code{0, "成功", "Success"}
	ParamValidationFailed = Code{1001, "参数校验失败", "Parameter validation failed"}
	ResourceNotFound      = Code{1002, "资源不存在", "Resource not found"}
	PermissionDenied      = Code{1003, "权限不足", "Permission denied"}
	AuthenticationFailed  = Code{1004, "认证失败", "Authentication failed"}
)

// Business codes (2000-2999)
var (
	InvalidDraftURL             = Code{2001, "无效的草稿URL", "Invalid draft URL"}
	DraftCreateFailed           = Code{2002, "草稿创建失败", "Draft creation failed"}
	InvalidVideoInfo            = Code{2003, "无效的视频信息，请检查video_infos字段值是否正确", "Invalid video information, please check if the value of the video_infos field is correct."}
	FileSizeLimitExceeded       = Code{2004, "文件大小超出限制", "File size exceeds the limit"}
	DownloadFileFailed          = Code{2005, "下载文件失败", "Download file failed"}
	VideoAddFailed              = Code{2006, "视频添加失败", "Video addition failed"}
	InvalidAudioInfo            = Code{2007, "无效的音频信息，请检查audio_infos字段值是否正确", "Invalid audio information, please check if the value of the audio_infos field is correct."}
	AudioAddFailed              = Code{2008, "音频添加失败", "Audio addition failed"}
	InvalidImageInfo            = Code{2009, "无效的图片信息，请检查image_infos字段值是否正确", "Invalid image information, please check if the value of the image_infos field is correct."}
	ImageAddFailed              = Code{2010, "图片添加失败", "Image addition failed"}
	InvalidStickerInfo          = Code{2011, "无效的贴纸信息，请检查贴纸参数是否正确", "Invalid sticker information, please check if sticker parameters are correct."}
	StickerAddFailed            = Code{2012, "贴纸添加失败", "Sticker addition failed"}
	InvalidKeyframeInfo         = Code{2013, "无效的关键帧信息，请检查keyframes字段值是否正确", "Invalid keyframe information, please check if the value of the keyframes field is correct."}
	KeyframeAddFailed           = Code{2014, "关键帧添加失败", "Keyframe addition failed"}
	SegmentNotFound             = Code{2015, "片段未找到，请检查segment_id是否正确", "Segment not found, please check if the segment_id is correct."}
	InvalidSegmentType          = Code{2016, "无效的片段类型，该片段不支持关键帧", "Invalid segment type, this segment does not support keyframes."}
	InvalidKeyframeProperty     = Code{2017, "无效的关键帧属性类型", "Invalid keyframe property type."}
	InvalidCaptionInfo          = Code{2018, "无效的字幕信息，请检查captions字段值是否正确", "Invalid caption information, please check if the value of the captions field is correct."}
	CaptionAddFailed            = Code{2019, "字幕添加失败", "Caption addition failed"}
	InvalidEffectInfo           = Code{2020, "无效的特效信息，请检查effect_infos字段值是否正确", "Invalid effect information, please check if the value of the effect_infos field is correct."}
	EffectAddFailed             = Code{2021, "特效添加失败", "Effect addition failed"}
	EffectNotFound              = Code{2022, "特效未找到，请检查特效名称是否正确", "Effect not found, please check if the effect name is correct."}
	InvalidMaskInfo             = Code{2023, "无效的遮罩信息，请检查遮罩参数是否正确", "Invalid mask information, please check if mask parameters are correct."}
	MaskAddFailed               = Code{2024, "遮罩添加失败", "Mask addition failed"}
	MaskNotFound                = Code{2025, "遮罩类型未找到，请检查遮罩名称是否正确", "Mask type not found, please check if the mask name is correct."}
	InvalidTextStyleInfo        = Code{2026, "无效的文本样式信息，请检查文本或关键词参数", "Invalid text style information, please check text or keyword parameters."}
	TextStyleCreateFailed       = Code{2027, "文本样式创建失败", "Text style creation failed"}
	MaterialCreateFailed        = Code{2028, "素材创建失败", "Material creation failed"}
	TextAnimationGetFailed      = Code{2029, "获取文字动画失败", "Get text animation failed"}
	VideoGenerationSubmitFailed = Code{2030, "视频生成任务提交失败", "Video generation task submit failed"}
	VideoTaskNotFound           = Code{2031, "视频生成任务未找到", "Video generation task not found"}
	VideoStatusQueryFailed      = Code{2032, "视频任务状态查询失败", "Video task status query failed"}
	ImageAnimationGetFailed     = Code{2033, "获取图片动画失败", "Get image animation failed"}
	AudioDurationGetFailed      = Code{2034, "获取音频时长失败", "Get audio duration failed"}
	DownloadFileTimeout         = Code{2035, "下载文件超时", "Download file timeout"}
)

// System codes (9000-9999)
var (
	InternalServerError = Code{9998, "系统内部错误", "Internal server error"}
	UnknownError        = Code{9999, "未知异常", "Unknown error"}
)

// Message returns the localized message for the code.
func (c Code) Message(lang Lang) string {
	if lang == LangEN {
		return c.EN
	}
	return c.ZH
}

// Payload is the wire form of a code inside the unified response envelope.
type Payload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Payload renders the code for the given language, appending a non-empty
// detail in parentheses the way clients expect it.
func (c Code) Payload(lang Lang, detail string) Payload {
	message := c.Message(lang)
	if detail != "" {
		message += "(" + detail + ")"
	}
	return Payload{Code: c.Value, Message: message}
}

// Error is a coded business error. Handlers and services return it so the
// response middleware can render the matching envelope.
type Error struct {
	Code   Code
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("code %d: %s (%s)", e.Code.Value, e.Code.EN, e.Detail)
	}
	return fmt.Sprintf("code %d: %s", e.Code.Value, e.Code.EN)
}

// New wraps a code and optional detail into an error.
func New(code Code, detail string) *Error {
	return &Error{Code: code, Detail: detail}
}

// Newf wraps a code with a formatted detail.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// As extracts a coded error from an error chain.
func As(err error) (*Error, bool) {
	var coded *Error
	if errors.As(err, &coded) {
		return coded, true
	}
	return nil, false
}
