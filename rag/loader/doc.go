// Copyright 2025-2026 Tenaga Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// Package loader turns files on disk into rag.Document values ready for
// chunking and ingestion.
//
// Each loader reads one format and produces []rag.Document with provenance
// metadata (file name, path, loader name). Registry routes loading by file
// extension; DirectoryProcessor walks a directory, loads and chunks files
// concurrently, and feeds the chunks through a rag.SourceRegistry so every
// knowledge item keeps its source attribution.
//
// Supported formats out of the box:
//   - Plain text (.txt)
//   - Markdown (.md, .markdown)
//   - CSV (.csv)
//   - JSON / JSONL (.json, .jsonl)
package loader
