package rag

import "errors"

var (
	// ErrDuplicateContent 重复内容。摄取路径内部使用，对调用方表现为成功无操作。
	ErrDuplicateContent = errors.New("rag: duplicate content")

	// ErrEmptyContent 空白内容，摄取时视为无操作。
	ErrEmptyContent = errors.New("rag: empty content")

	// ErrStore 存储层 I/O 失败。摄取/加载硬失败，内存状态保持与持久化一致。
	ErrStore = errors.New("rag: store failure")

	// ErrSourceNotFound 指定名称的文档来源不存在。
	ErrSourceNotFound = errors.New("rag: source not found")
)
