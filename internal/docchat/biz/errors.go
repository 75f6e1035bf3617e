package biz

import "errors"

// 业务错误哨兵。处理层通过 errors.Is 映射到 HTTP 状态码：
// 校验类错误返回 4xx，依赖能力失败返回 5xx。
var (
	// ErrNotConfigured 外部服务凭据缺失。首次调用时报错，不阻止进程启动。
	ErrNotConfigured = errors.New("external service is not configured")

	// ErrNoFile 上传请求缺少文件。
	ErrNoFile = errors.New("no file uploaded")

	// ErrUnsupportedFileType 上传了不支持的文件类型。
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrEmptyQuery 查询内容缺失或为空白。
	ErrEmptyQuery = errors.New("query is required")

	// ErrQueryTooLong 查询超出长度上限。
	ErrQueryTooLong = errors.New("query exceeds maximum length")

	// ErrInvalidChunking 分块参数非法（重叠不小于块大小等）。
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrExtractionFailed 文本提取失败。上传流程内部消化，不上抛。
	ErrExtractionFailed = errors.New("document text extraction failed")

	// ErrEmbeddingUnavailable 向量化能力失败或未配置。
	// 上传时内部消化（chunkCount 为 0），查询时上抛为 5xx。
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationFailed 回答生成失败，绝不静默替换为凭空答案。
	ErrGenerationFailed = errors.New("answer generation failed")
)
